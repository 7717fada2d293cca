package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/photoreach/club-outreach/internal/domain"
)

// EmailRepo stores the current generated email per (club, email type).
// Regeneration overwrites; there is no version history here.
type EmailRepo struct {
	db *sql.DB
}

// NewEmailRepo creates the repository.
func NewEmailRepo(db *sql.DB) *EmailRepo {
	return &EmailRepo{db: db}
}

// Upsert writes the generated email, replacing any previous generation for
// the same club and email type. Sent state is reset; a regenerated email has
// not been sent.
func (r *EmailRepo) Upsert(ctx context.Context, e *domain.GeneratedEmail) error {
	query := `
		INSERT INTO generated_emails (
			club_name, email_type, snippet, body,
			search_cost, content_cost, web_search_cost, total_cost,
			sent, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(club_name, email_type) DO UPDATE SET
			snippet = excluded.snippet,
			body = excluded.body,
			search_cost = excluded.search_cost,
			content_cost = excluded.content_cost,
			web_search_cost = excluded.web_search_cost,
			total_cost = excluded.total_cost,
			sent = excluded.sent,
			sent_at = excluded.sent_at,
			created_at = excluded.created_at`

	_, err := r.db.ExecContext(ctx, query,
		e.ClubName, e.EmailType, e.Snippet, e.Body,
		e.Costs.SearchCost, e.Costs.ContentCost, e.Costs.WebSearchCost, e.Costs.TotalCost,
		e.Sent, e.SentAt, e.CreatedAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "upsert email", Err: err}
	}
	return nil
}

// Get returns the generated email for a club and type, or nil when none
// exists.
func (r *EmailRepo) Get(ctx context.Context, clubName string, t domain.EmailType) (*domain.GeneratedEmail, error) {
	query := `
		SELECT club_name, email_type, snippet, body,
		       search_cost, content_cost, web_search_cost, total_cost,
		       sent, sent_at, created_at
		FROM generated_emails
		WHERE club_name = ? AND email_type = ?`

	var e domain.GeneratedEmail
	err := r.db.QueryRowContext(ctx, query, clubName, t).Scan(
		&e.ClubName, &e.EmailType, &e.Snippet, &e.Body,
		&e.Costs.SearchCost, &e.Costs.ContentCost, &e.Costs.WebSearchCost, &e.Costs.TotalCost,
		&e.Sent, &e.SentAt, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get email", Err: err}
	}
	return &e, nil
}

// MarkSent flags the email as sent at the given time.
func (r *EmailRepo) MarkSent(ctx context.Context, clubName string, t domain.EmailType, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE generated_emails SET sent = 1, sent_at = ? WHERE club_name = ? AND email_type = ?`,
		at, clubName, t,
	)
	if err != nil {
		return &domain.StorageError{Op: "mark sent", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.StorageError{Op: "mark sent", Err: sql.ErrNoRows}
	}
	return nil
}

// ListByClub returns all generated emails for a club.
func (r *EmailRepo) ListByClub(ctx context.Context, clubName string) ([]domain.GeneratedEmail, error) {
	return r.list(ctx, `
		SELECT club_name, email_type, snippet, body,
		       search_cost, content_cost, web_search_cost, total_cost,
		       sent, sent_at, created_at
		FROM generated_emails
		WHERE club_name = ?
		ORDER BY created_at`, clubName)
}

// ListSentBefore returns emails sent before the cutoff. The follow-up
// detector uses this to find clubs that have gone quiet.
func (r *EmailRepo) ListSentBefore(ctx context.Context, cutoff time.Time) ([]domain.GeneratedEmail, error) {
	return r.list(ctx, `
		SELECT club_name, email_type, snippet, body,
		       search_cost, content_cost, web_search_cost, total_cost,
		       sent, sent_at, created_at
		FROM generated_emails
		WHERE sent = 1 AND sent_at < ?
		ORDER BY sent_at`, cutoff)
}

func (r *EmailRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.GeneratedEmail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list emails", Err: err}
	}
	defer rows.Close()

	var emails []domain.GeneratedEmail
	for rows.Next() {
		var e domain.GeneratedEmail
		if err := rows.Scan(
			&e.ClubName, &e.EmailType, &e.Snippet, &e.Body,
			&e.Costs.SearchCost, &e.Costs.ContentCost, &e.Costs.WebSearchCost, &e.Costs.TotalCost,
			&e.Sent, &e.SentAt, &e.CreatedAt,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan email", Err: err}
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// LatestSent returns the most recently sent email for a club, or nil when
// nothing has been sent. The status projection keys off this.
func (r *EmailRepo) LatestSent(ctx context.Context, clubName string) (*domain.GeneratedEmail, error) {
	query := `
		SELECT club_name, email_type, snippet, body,
		       search_cost, content_cost, web_search_cost, total_cost,
		       sent, sent_at, created_at
		FROM generated_emails
		WHERE club_name = ? AND sent = 1
		ORDER BY sent_at DESC
		LIMIT 1`

	var e domain.GeneratedEmail
	err := r.db.QueryRowContext(ctx, query, clubName).Scan(
		&e.ClubName, &e.EmailType, &e.Snippet, &e.Body,
		&e.Costs.SearchCost, &e.Costs.ContentCost, &e.Costs.WebSearchCost, &e.Costs.TotalCost,
		&e.Sent, &e.SentAt, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "latest sent", Err: err}
	}
	return &e, nil
}
