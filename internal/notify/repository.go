package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Insert writes n through q, which is usually the caller's open transaction.
func Insert(ctx context.Context, q db.Querier, n Notification) (Notification, error) {
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	err := q.QueryRow(ctx, `INSERT INTO notifications (user_id, title, message, type)
VALUES ($1,$2,$3,$4) RETURNING id, is_read, created_at`, n.UserID, n.Title, n.Message, n.Type).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert: %w", db.Translate(err))
	}
	return n, nil
}

// Repository reads and updates notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForUser returns the newest notifications of userID.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, title, message, type, is_read, created_at
FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts notifications of userID not yet read.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

// MarkRead flags one notification of userID as read.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("notification", id)
	}
	return nil
}

// MarkAllRead flags every notification of userID as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Create stores a single notification outside any ledger transaction.
func (r *Repository) Create(ctx context.Context, n Notification) (Notification, error) {
	return Insert(ctx, r.pool, n)
}

// Delete removes one notification of userID.
func (r *Repository) Delete(ctx context.Context, userID, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("notification", id)
	}
	return nil
}
