package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/photoreach/club-outreach/internal/domain"
)

// NotificationRepo stores the operator review queue.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo creates the repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Add inserts one notification. A missing ID is generated.
func (r *NotificationRepo) Add(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, club_name, kind, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.ClubName, n.Kind, n.Message, n.Read, n.CreatedAt,
	); err != nil {
		return &domain.StorageError{Op: "add notification", Err: err}
	}
	return nil
}

// ListUnread returns unread notifications oldest first.
func (r *NotificationRepo) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	query := `
		SELECT id, club_name, kind, message, is_read, created_at
		FROM notifications
		WHERE is_read = 0
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.StorageError{Op: "list notifications", Err: err}
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.ClubName, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, &domain.StorageError{Op: "scan notification", Err: err}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as handled.
func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return &domain.StorageError{Op: "mark notification read", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.StorageError{Op: "mark notification read", Err: sql.ErrNoRows}
	}
	return nil
}
