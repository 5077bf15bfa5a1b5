package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("maintenance: request not found")
	// ErrNotAssignable is returned when a completed or cancelled request is assigned.
	ErrNotAssignable = errors.New("maintenance: request cannot be assigned in its current state")
)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error)
	List(ctx context.Context, filters Filters) ([]Request, int, error)
	Get(ctx context.Context, id string) (Request, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, cancelReason *string) (Request, error)
	MarkQuoteRequested(ctx context.Context, id string) error
	Assign(ctx context.Context, a Assignment) (Request, error)
}

const requestColumns = `id, organization_id, property_id, created_by_user_id, title, description, location, priority,
	status, contractor_id, quote_requested, quoted_amount::float8, assigned_at, completed_at, cancel_reason, created_at, updated_at`

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error) {
	query := `
		INSERT INTO maintenance_requests (id, organization_id, property_id, created_by_user_id, title, description,
			location, priority, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + requestColumns

	row := tx.QueryRow(ctx, query,
		req.ID,
		req.OrganizationID,
		req.PropertyID,
		req.CreatedByUserID,
		req.Title,
		req.Description,
		req.Location,
		req.Priority,
		req.Status,
	)

	created, err := scanRequest(row)
	if err != nil {
		return Request{}, fmt.Errorf("maintenance: insert request: %w", err)
	}
	return created, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Request, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := `SELECT ` + requestColumns + ` FROM maintenance_requests`
	where := []string{"1=1"}
	args := []any{}

	if filters.OrganizationID != "" {
		where = append(where, fmt.Sprintf("organization_id=$%d", len(args)+1))
		args = append(args, filters.OrganizationID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}
	if filters.Priority != "" {
		where = append(where, fmt.Sprintf("priority=$%d", len(args)+1))
		args = append(args, filters.Priority)
	}
	if filters.PropertyID != "" {
		where = append(where, fmt.Sprintf("property_id=$%d", len(args)+1))
		args = append(args, filters.PropertyID)
	}
	if filters.ContractorID != "" {
		where = append(where, fmt.Sprintf("contractor_id=$%d", len(args)+1))
		args = append(args, filters.ContractorID)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	sortOrder := strings.ToUpper(filters.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY %s %s LIMIT %d OFFSET %d`, base, whereClause, mapSortKey(filters.SortKey), sortOrder, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("maintenance: query list: %w", err)
	}
	defer rows.Close()

	list := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("maintenance: scan request: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("maintenance: iterate requests: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM maintenance_requests"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("maintenance: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("maintenance: get request: %w", err)
	}
	return req, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error) {
	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("maintenance: get request for update: %w", err)
	}
	return req, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, cancelReason *string) (Request, error) {
	query := `
		UPDATE maintenance_requests
		SET status = $2,
		    cancel_reason = COALESCE($3, cancel_reason),
		    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + requestColumns

	req, err := scanRequest(tx.QueryRow(ctx, query, id, status, cancelReason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("maintenance: update status: %w", err)
	}
	return req, nil
}

// MarkQuoteRequested flags that at least one contractor has been asked to bid.
func (r *PGRepository) MarkQuoteRequested(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE maintenance_requests SET quote_requested = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("maintenance: mark quote requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Assign records the approved contractor and moves the request to in-progress.
// Re-assigning an in-progress request overwrites the contractor and amount.
func (r *PGRepository) Assign(ctx context.Context, a Assignment) (Request, error) {
	query := `
		UPDATE maintenance_requests
		SET contractor_id = $2,
		    quoted_amount = $3,
		    status = 'in-progress',
		    assigned_at = $4,
		    updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'open', 'in-progress')
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, a.RequestID, a.ContractorID, a.QuotedAmount, a.AssignedAt))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("maintenance: assign request: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM maintenance_requests WHERE id = $1)`, a.RequestID).Scan(&exists); err != nil {
		return Request{}, fmt.Errorf("maintenance: verify request: %w", err)
	}
	if !exists {
		return Request{}, ErrNotFound
	}
	return Request{}, ErrNotAssignable
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID,
		&req.OrganizationID,
		&req.PropertyID,
		&req.CreatedByUserID,
		&req.Title,
		&req.Description,
		&req.Location,
		&req.Priority,
		&req.Status,
		&req.ContractorID,
		&req.QuoteRequested,
		&req.QuotedAmount,
		&req.AssignedAt,
		&req.CompletedAt,
		&req.CancelReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	return req, err
}

func mapSortKey(key string) string {
	switch key {
	case "priority":
		return "priority"
	case "status":
		return "status"
	case "updatedAt":
		return "updated_at"
	case "createdAt":
		fallthrough
	default:
		return "created_at"
	}
}
