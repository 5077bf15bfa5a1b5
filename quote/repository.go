package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the data access the quote workflow needs. Every write is a
// single statement; no method holds a lock across calls.
type Repository interface {
	Get(ctx context.Context, id string) (Quote, error)
	FindForContractor(ctx context.Context, requestID, contractorID string) (Quote, error)
	ListForRequest(ctx context.Context, requestID string, statuses ...Status) ([]Quote, error)
	ListForContractor(ctx context.Context, contractorID string) ([]Quote, error)
	Insert(ctx context.Context, q Quote) (Quote, error)
	// Update writes q only if the stored status still equals from.
	Update(ctx context.Context, q Quote, from Status) (Quote, error)
	// RejectPending rejects the listed quotes that are still pending and
	// returns the rows it changed.
	RejectPending(ctx context.Context, ids []string) ([]Quote, error)
	AppendLog(ctx context.Context, entry LogEntry) error
	ListLogs(ctx context.Context, quoteID string) ([]LogEntry, error)
}

const (
	quoteColumns = `id, organization_id, request_id, contractor_id, amount::float8, description, status,
		submitted_at, approved_at, created_at, updated_at`
	logColumns = `id, quote_id, request_id, contractor_id, organization_id, action,
		old_amount::float8, new_amount::float8, old_description, new_description, actor_user_id, created_at`

	uniqueRequestContractor  = "quotes_request_contractor_key"
	uniqueApprovedPerRequest = "quotes_one_approved_per_request"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, id string) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quote: get: %w", err)
	}
	return q, nil
}

func (r *PGRepository) FindForContractor(ctx context.Context, requestID, contractorID string) (Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE request_id = $1 AND contractor_id = $2`
	q, err := scanQuote(r.pool.QueryRow(ctx, query, requestID, contractorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quote: find for contractor: %w", err)
	}
	return q, nil
}

func (r *PGRepository) ListForRequest(ctx context.Context, requestID string, statuses ...Status) ([]Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE request_id = $1`
	args := []any{requestID}
	if len(statuses) > 0 {
		list := make([]string, len(statuses))
		for i, s := range statuses {
			list[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, list)
	}
	query += ` ORDER BY submitted_at ASC, id ASC`
	return r.list(ctx, "list for request", query, args...)
}

func (r *PGRepository) ListForContractor(ctx context.Context, contractorID string) ([]Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE contractor_id = $1 ORDER BY submitted_at DESC`
	return r.list(ctx, "list for contractor", query, contractorID)
}

func (r *PGRepository) list(ctx context.Context, op, query string, args ...any) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]Quote, 0, 8)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote: scan: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Insert(ctx context.Context, q Quote) (Quote, error) {
	query := `
		INSERT INTO quotes (id, organization_id, request_id, contractor_id, amount, description, status, submitted_at, approved_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + quoteColumns

	created, err := scanQuote(r.pool.QueryRow(ctx, query,
		q.ID,
		q.OrganizationID,
		q.RequestID,
		q.ContractorID,
		q.Amount,
		q.Description,
		q.Status,
		q.SubmittedAt,
		q.ApprovedAt,
	))
	if err != nil {
		return Quote{}, mapWriteError("insert", err)
	}
	return created, nil
}

func (r *PGRepository) Update(ctx context.Context, q Quote, from Status) (Quote, error) {
	query := `
		UPDATE quotes
		SET amount = $2,
		    description = $3,
		    status = $4,
		    submitted_at = $5,
		    approved_at = $6,
		    updated_at = now()
		WHERE id = $1 AND status = $7
		RETURNING ` + quoteColumns

	updated, err := scanQuote(r.pool.QueryRow(ctx, query,
		q.ID,
		q.Amount,
		q.Description,
		q.Status,
		q.SubmittedAt,
		q.ApprovedAt,
		from,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, mapWriteError("update", err)
	}

	if _, gerr := r.Get(ctx, q.ID); gerr != nil {
		return Quote{}, gerr
	}
	return Quote{}, ErrConflict
}

func (r *PGRepository) RejectPending(ctx context.Context, ids []string) ([]Quote, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		UPDATE quotes
		SET status = 'rejected', updated_at = now()
		WHERE id = ANY($1) AND status = 'pending'
		RETURNING ` + quoteColumns
	return r.list(ctx, "reject pending", query, ids)
}

// AppendLog inserts an audit row. The table has no update or delete path.
func (r *PGRepository) AppendLog(ctx context.Context, e LogEntry) error {
	const query = `
		INSERT INTO quote_logs (id, quote_id, request_id, contractor_id, organization_id, action,
			old_amount, new_amount, old_description, new_description, actor_user_id)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := r.pool.Exec(ctx, query,
		e.ID,
		e.QuoteID,
		e.RequestID,
		e.ContractorID,
		e.OrganizationID,
		e.Action,
		e.OldAmount,
		e.NewAmount,
		e.OldDescription,
		e.NewDescription,
		e.ActorUserID,
	); err != nil {
		return fmt.Errorf("quote: append log: %w", err)
	}
	return nil
}

func (r *PGRepository) ListLogs(ctx context.Context, quoteID string) ([]LogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM quote_logs WHERE quote_id = $1 ORDER BY created_at ASC, id ASC`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("quote: list logs: %w", err)
	}
	defer rows.Close()

	out := make([]LogEntry, 0, 8)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(
			&e.ID,
			&e.QuoteID,
			&e.RequestID,
			&e.ContractorID,
			&e.OrganizationID,
			&e.Action,
			&e.OldAmount,
			&e.NewAmount,
			&e.OldDescription,
			&e.NewDescription,
			&e.ActorUserID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("quote: scan log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate logs: %w", err)
	}
	return out, nil
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID,
		&q.OrganizationID,
		&q.RequestID,
		&q.ContractorID,
		&q.Amount,
		&q.Description,
		&q.Status,
		&q.SubmittedAt,
		&q.ApprovedAt,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	return q, err
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, uniqueApprovedPerRequest):
			return ErrAlreadyAwarded
		case pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, uniqueRequestContractor):
			return ErrDuplicate
		case pgErr.Code == "23503":
			return fmt.Errorf("quote: %s: %w: %s", op, ErrCrossTenant, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("quote: %s: %w", op, err)
}
