package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGInbox stores notifications in the notifications table.
type PGInbox struct {
	pool *pgxpool.Pool
}

func NewInbox(pool *pgxpool.Pool) *PGInbox {
	return &PGInbox{pool: pool}
}

func (r *PGInbox) Insert(ctx context.Context, n Notification) (Notification, error) {
	const query = `
		INSERT INTO notifications (user_id, organization_id, title, message, type, link)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, user_id, COALESCE(organization_id::text, ''), title, message, type, COALESCE(link, ''), read_at, created_at
	`
	out, err := scanNotification(r.pool.QueryRow(ctx, query, n.UserID, n.OrganizationID, n.Title, n.Message, n.Type, n.Link))
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert notification: %w", err)
	}
	return out, nil
}

// ListForUser returns unread notifications first, newest first within each group.
func (r *PGInbox) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, COALESCE(organization_id::text, ''), title, message, type, COALESCE(link, ''), read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY (read_at IS NULL) DESC, created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate notifications: %w", err)
	}
	return out, nil
}

// MarkRead stamps read_at on a notification owned by userID. Marking twice is a no-op.
func (r *PGInbox) MarkRead(ctx context.Context, id, userID string) error {
	const query = `
		UPDATE notifications
		SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
		RETURNING id
	`
	var got string
	if err := r.pool.QueryRow(ctx, query, id, userID).Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("notify: mark read: %w", err)
	}
	return nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.OrganizationID, &n.Title, &n.Message, &n.Type, &n.Link, &n.ReadAt, &n.CreatedAt)
	return n, err
}
