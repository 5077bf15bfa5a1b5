package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// KillBackends terminates a random server backend of the current database
// every few ticks, forcing in-flight quote writes to fail mid-transaction.
// It returns how many kills it attempted.
func KillBackends(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) int64 {
	var killed int64
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return killed
		case <-stop:
			return killed
		case <-ticker.C:
			if rand.Intn(5) != 0 {
				continue
			}
			_, err := pool.Exec(ctx, `
				SELECT pg_terminate_backend(pid) FROM pg_stat_activity
				WHERE datname = current_database() AND pid <> pg_backend_pid() AND backend_type = 'client backend'
				ORDER BY random() LIMIT 1`)
			if err == nil {
				killed++
			}
		}
	}
}
