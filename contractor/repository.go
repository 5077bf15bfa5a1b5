package contractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested contractor does not exist.
var ErrNotFound = errors.New("contractor: not found")

const selectColumns = `id, organization_id, user_id, company_name, contact_name, email, phone, trade, active, created_at`

// Repository provides read access to contractor profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a contractor profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	query := `SELECT ` + selectColumns + ` FROM contractors WHERE id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("contractor: query by id: %w", err)
	}
	return profile, nil
}

// GetByUserID resolves the contractor record linked to an authenticated user.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	query := `SELECT ` + selectColumns + ` FROM contractors WHERE user_id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("contractor: query by user: %w", err)
	}
	return profile, nil
}

// ListByOrganization fetches up to limit active contractors ordered by company name.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + selectColumns + `
		FROM contractors
		WHERE organization_id = $1 AND active
		ORDER BY company_name ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("contractor: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("contractor: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contractor: iterate profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.UserID,
		&p.CompanyName,
		&p.ContactName,
		&p.Email,
		&p.Phone,
		&p.Trade,
		&p.Active,
		&p.CreatedAt,
	)
	return p, err
}
