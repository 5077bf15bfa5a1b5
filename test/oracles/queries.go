package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists queries that must return no rows at any point during a run.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_award",
			SQL: `SELECT request_id, COUNT(*) FROM quotes
                  WHERE status = 'approved'
                  GROUP BY request_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_assignment_matches_award",
			SQL: `SELECT r.id, r.contractor_id, q.contractor_id, r.quoted_amount, q.amount
                  FROM maintenance_requests r
                  JOIN quotes q ON q.request_id = r.id AND q.status = 'approved'
                  WHERE r.contractor_id IS NOT NULL
                    AND (r.contractor_id <> q.contractor_id OR r.quoted_amount <> q.amount)`,
		},
		{
			Name: "O3_assigned_without_award",
			SQL: `SELECT r.id FROM maintenance_requests r
                  WHERE r.status = 'in-progress'
                    AND NOT EXISTS (SELECT 1 FROM quotes q WHERE q.request_id = r.id AND q.status = 'approved')`,
		},
		{
			Name: "O4_requested_carries_placeholder",
			SQL:  `SELECT id, amount FROM quotes WHERE status = 'requested' AND amount <> 1`,
		},
		{
			Name: "O5_single_tenant",
			SQL: `SELECT q.id FROM quotes q
                  JOIN contractors c ON c.id = q.contractor_id
                  JOIN maintenance_requests r ON r.id = q.request_id
                  WHERE c.organization_id <> q.organization_id OR r.organization_id <> q.organization_id`,
		},
		{
			Name: "O6_outbox_progress",
			SQL: `SELECT id FROM outbox
                  WHERE status NOT IN ('processed', 'dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O7_audit_log_guard",
			SQL: `SELECT 'missing_quote_logs_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'quote_logs_no_mutation')`,
		},
		{
			Name: "O8_log_matches_quote",
			SQL: `SELECT l.id FROM quote_logs l
                  JOIN quotes q ON q.id = l.quote_id
                  WHERE l.request_id <> q.request_id OR l.contractor_id <> q.contractor_id`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
