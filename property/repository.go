package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested property does not exist.
var ErrNotFound = errors.New("property: not found")

// Repository provides read access to property profiles.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a property profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, organization_id, name, address_line1, address_line2, city, postcode,
		       practice_leader_name, practice_leader_email, practice_leader_phone,
		       landlord_name, landlord_email, created_at
		FROM properties
		WHERE id = $1
	`

	var p Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Name,
		&p.AddressLine1,
		&p.AddressLine2,
		&p.City,
		&p.Postcode,
		&p.PracticeLeaderName,
		&p.PracticeLeaderEmail,
		&p.PracticeLeaderPhone,
		&p.LandlordName,
		&p.LandlordEmail,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("property: query by id: %w", err)
	}
	return p, nil
}
