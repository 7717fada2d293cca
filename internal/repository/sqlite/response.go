package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/photoreach/club-outreach/internal/domain"
)

// ResponseRepo stores detected inbound responses. The primary key on
// response_id plus INSERT OR IGNORE gives atomic insert-if-absent, which is
// what makes automatic detection idempotent across overlapping scans.
type ResponseRepo struct {
	db *sql.DB
}

// NewResponseRepo creates the repository.
func NewResponseRepo(db *sql.DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

const insertResponseSQL = `
	INSERT OR IGNORE INTO response_records (
		response_id, club_name, contact_name, contact_email,
		email_type, response_type, content, response_date,
		detection_method, processed, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func responseArgs(rec *domain.ResponseRecord) []interface{} {
	return []interface{}{
		rec.ResponseID, rec.ClubName, rec.ContactName, rec.ContactEmail,
		rec.EmailType, rec.ResponseType, rec.Content, rec.ResponseDate,
		rec.Detection, rec.Processed, rec.CreatedAt,
	}
}

// InsertIfAbsentWithMessage inserts the response and its conversation message
// in one transaction. A detected reply must land in the audit trail with its
// response row or not at all; committing them separately would let a crash
// between the two writes lose the message forever, since the ID collision
// makes every retry a no-op.
func (r *ResponseRepo) InsertIfAbsentWithMessage(ctx context.Context, rec *domain.ResponseRecord, msg *domain.ConversationMessage) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &domain.StorageError{Op: "insert response", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertResponseSQL, responseArgs(rec)...)
	if err != nil {
		return false, &domain.StorageError{Op: "insert response", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.StorageError{Op: "insert response", Err: err}
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, insertConversationSQL, conversationArgs(msg)...); err != nil {
		return false, &domain.StorageError{Op: "append conversation", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return false, &domain.StorageError{Op: "insert response", Err: err}
	}
	return true, nil
}

// Get returns the response with the given ID, or nil when absent.
func (r *ResponseRepo) Get(ctx context.Context, responseID string) (*domain.ResponseRecord, error) {
	query := selectResponses + ` WHERE response_id = ?`

	var rec domain.ResponseRecord
	err := r.db.QueryRowContext(ctx, query, responseID).Scan(
		&rec.ResponseID, &rec.ClubName, &rec.ContactName, &rec.ContactEmail,
		&rec.EmailType, &rec.ResponseType, &rec.Content, &rec.ResponseDate,
		&rec.Detection, &rec.Processed, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get response", Err: err}
	}
	return &rec, nil
}

const selectResponses = `
	SELECT response_id, club_name, contact_name, contact_email,
	       email_type, response_type, content, response_date,
	       detection_method, processed, created_at
	FROM response_records`

// List returns every response, most recent first.
func (r *ResponseRepo) List(ctx context.Context) ([]domain.ResponseRecord, error) {
	return r.query(ctx, selectResponses+` ORDER BY response_date DESC`)
}

// ListByClub returns a club's responses, most recent first.
func (r *ResponseRepo) ListByClub(ctx context.Context, clubName string) ([]domain.ResponseRecord, error) {
	return r.query(ctx, selectResponses+` WHERE club_name = ? ORDER BY response_date DESC`, clubName)
}

// Latest returns the club's most recent response by response date, or nil.
func (r *ResponseRepo) Latest(ctx context.Context, clubName string) (*domain.ResponseRecord, error) {
	query := selectResponses + ` WHERE club_name = ? ORDER BY response_date DESC LIMIT 1`

	var rec domain.ResponseRecord
	err := r.db.QueryRowContext(ctx, query, clubName).Scan(
		&rec.ResponseID, &rec.ClubName, &rec.ContactName, &rec.ContactEmail,
		&rec.EmailType, &rec.ResponseType, &rec.Content, &rec.ResponseDate,
		&rec.Detection, &rec.Processed, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "latest response", Err: err}
	}
	return &rec, nil
}

// CountManual returns how many manual responses exist for the club and email
// type, counting the shared base ID and any sequence-suffixed IDs. The next
// manual entry uses sequence count+1.
func (r *ResponseRepo) CountManual(ctx context.Context, clubName string, t domain.EmailType) (int, error) {
	base := domain.ResponseID(clubName, t)

	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM response_records WHERE response_id = ? OR response_id LIKE ?`,
		base, base+"#%",
	).Scan(&n)
	if err != nil {
		return 0, &domain.StorageError{Op: "count manual responses", Err: err}
	}
	return n, nil
}

// MarkProcessed flags a response as handled by the operator.
func (r *ResponseRepo) MarkProcessed(ctx context.Context, responseID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE response_records SET processed = 1 WHERE response_id = ?`, responseID,
	)
	if err != nil {
		return &domain.StorageError{Op: "mark processed", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "mark processed", Err: err}
	}
	if n == 0 {
		return &domain.StorageError{Op: "mark processed", Err: sql.ErrNoRows}
	}
	return nil
}

func (r *ResponseRepo) query(ctx context.Context, query string, args ...interface{}) ([]domain.ResponseRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list responses", Err: err}
	}
	defer rows.Close()

	var records []domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		if err := rows.Scan(
			&rec.ResponseID, &rec.ClubName, &rec.ContactName, &rec.ContactEmail,
			&rec.EmailType, &rec.ResponseType, &rec.Content, &rec.ResponseDate,
			&rec.Detection, &rec.Processed, &rec.CreatedAt,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan response", Err: err}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
