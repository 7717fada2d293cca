package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/photoreach/club-outreach/internal/domain"
)

// WatermarkRepo stores named high-water timestamps. The response checker
// uses one to remember how far its event scan has progressed.
type WatermarkRepo struct {
	db *sql.DB
}

// NewWatermarkRepo creates the repository.
func NewWatermarkRepo(db *sql.DB) *WatermarkRepo {
	return &WatermarkRepo{db: db}
}

// Get returns the watermark value and whether it exists.
func (r *WatermarkRepo) Get(ctx context.Context, name string) (time.Time, bool, error) {
	var value time.Time
	err := r.db.QueryRowContext(ctx, `SELECT value FROM watermarks WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &domain.StorageError{Op: "get watermark", Err: err}
	}
	return value, true, nil
}

// Set writes the watermark value.
func (r *WatermarkRepo) Set(ctx context.Context, name string, value time.Time) error {
	query := `
		INSERT INTO watermarks (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`

	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return &domain.StorageError{Op: "set watermark", Err: err}
	}
	return nil
}
