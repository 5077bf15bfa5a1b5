package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"maintflow/test/actors"
	"maintflow/test/chaos"
	"maintflow/test/infra"
	"maintflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors per role")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flRequests    = flag.Int("requests", 6, "open maintenance requests seeded before the run")
	flContractors = flag.Int("contractors", 5, "contractors competing for work")
)

// TestWorkflowConcurrency races quote requests, bids, approvals and
// rejections against the same requests and checks the oracles throughout.
// It needs Docker, a local Postgres, or -dsn; run it with -run Workflow.
func TestWorkflowConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress run skipped in -short mode")
	}
	seed := *flSeed
	rand.Seed(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	var (
		pgC    = &infra.PGContainer{}
		dsn    string
		shared bool
		err    error
	)
	switch {
	case *flDSN != "":
		dsn, shared = *flDSN, true
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn, shared = os.Getenv("STRESS_TEST_PG_DSN"), true
	case dockerAvailable(ctx):
		pgC, dsn, err = infra.StartPostgres16(ctx, "")
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
	default:
		dsn, err = infra.InitLocalDatabase(ctx)
		if err != nil {
			t.Skipf("no database available: %v", err)
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	env := actors.NewEnv(pool, mustSeed(t, ctx, pool, *flRequests, *flContractors))

	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Requester(gctx, env, stop) })
		g.Go(func() error { return actors.Bidder(gctx, env, stop) })
		g.Go(func() error { return actors.Approver(gctx, env, stop) })
	}
	g.Go(func() error { return actors.Rejecter(gctx, env, stop) })
	g.Go(func() error { return actors.Creator(gctx, env, stop) })
	g.Go(func() error { return actors.OutboxWorker(gctx, pool, stop) })

	kills := make(chan int64, 1)
	go func() { kills <- chaos.KillBackends(gctx, pool, 2*time.Second, stop) }()

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	check := func() bool {
		name, row, err := oracles.Run(ctx, pool)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			// A killed backend can take the oracle query with it.
			t.Logf("oracle query error: %v", err)
			return true
		}
		if name != "" {
			dumpRecent(t, ctx, pool)
			t.Fatalf("oracle %s failed, first row %s (seed=%d)", name, row, seed)
		}
		return true
	}

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if !check() {
				break loop
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("actors errored: %v", err)
	}
	check()

	t.Logf("seed=%d %s backend_kills=%d", seed, env.Stats, <-kills)
	if env.Stats.Approved.Load() == 0 {
		t.Logf("no approval landed; consider a longer -duration")
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, requests, contractors int) actors.Seed {
	t.Helper()
	var s actors.Seed
	tag := rand.Int63()

	if err := pool.QueryRow(ctx, `INSERT INTO organizations (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Stress Lettings %d", tag)).Scan(&s.OrganizationID); err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO users (organization_id, email, full_name, role) VALUES ($1, $2, 'Stress Manager', 'manager')
		RETURNING id`, s.OrganizationID, fmt.Sprintf("manager-%d@example.com", tag)).Scan(&s.ManagerUserID); err != nil {
		t.Fatalf("seed manager: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO properties (organization_id, name, address_line1, city, postcode)
		VALUES ($1, 'Stress House', '1 Load Street', 'Leeds', 'LS1 1AA') RETURNING id`,
		s.OrganizationID).Scan(&s.PropertyID); err != nil {
		t.Fatalf("seed property: %v", err)
	}

	for i := 0; i < contractors; i++ {
		var c actors.Contractor
		email := fmt.Sprintf("contractor-%d-%d@example.com", tag, i)
		if err := pool.QueryRow(ctx, `
			INSERT INTO users (organization_id, email, full_name, role) VALUES ($1, $2, $3, 'contractor')
			RETURNING id`, s.OrganizationID, email, fmt.Sprintf("Contractor %d", i)).Scan(&c.UserID); err != nil {
			t.Fatalf("seed contractor user: %v", err)
		}
		if err := pool.QueryRow(ctx, `
			INSERT INTO contractors (organization_id, user_id, company_name, contact_name, email, trade)
			VALUES ($1, $2, $3, $4, $5, 'plumbing') RETURNING id`,
			s.OrganizationID, c.UserID, fmt.Sprintf("Fixers %d Ltd", i), fmt.Sprintf("Contractor %d", i), email).Scan(&c.ID); err != nil {
			t.Fatalf("seed contractor: %v", err)
		}
		s.Contractors = append(s.Contractors, c)
	}

	for i := 0; i < requests; i++ {
		if _, err := pool.Exec(ctx, `
			INSERT INTO maintenance_requests (organization_id, property_id, created_by_user_id, title, status)
			VALUES ($1, $2, $3, $4, 'open')`,
			s.OrganizationID, s.PropertyID, s.ManagerUserID, fmt.Sprintf("Leaking tap %d", i)); err != nil {
			t.Fatalf("seed request: %v", err)
		}
	}
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	dumps := []struct {
		name string
		sql  string
	}{
		{"maintenance_requests", `SELECT id, status, contractor_id, quoted_amount, updated_at FROM maintenance_requests ORDER BY updated_at DESC LIMIT 20`},
		{"quotes", `SELECT id, request_id, contractor_id, status, amount, updated_at FROM quotes ORDER BY updated_at DESC LIMIT 50`},
		{"quote_logs", `SELECT quote_id, action, old_amount, new_amount, created_at FROM quote_logs ORDER BY created_at DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			line := make([]any, 0, len(vals))
			for i := range vals {
				line = append(line, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
			}
			t.Logf("%v", line)
		}
		rows.Close()
	}
}
