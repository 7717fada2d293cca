package sqlite

import (
	"context"
	"database/sql"

	"github.com/photoreach/club-outreach/internal/domain"
)

// Summary is the dashboard rollup across the whole campaign.
type Summary struct {
	EmailsGenerated int     `json:"emails_generated"`
	EmailsSent      int     `json:"emails_sent"`
	Responses       int     `json:"responses"`
	Positive        int     `json:"positive"`
	Negative        int     `json:"negative"`
	Neutral         int     `json:"neutral"`
	ClubsResearched int     `json:"clubs_researched"`
	TotalCost       float64 `json:"total_cost"`
}

// ResponseRate is responses over emails sent, zero when nothing was sent.
func (s Summary) ResponseRate() float64 {
	if s.EmailsSent == 0 {
		return 0
	}
	return float64(s.Responses) / float64(s.EmailsSent)
}

// StatsRepo computes the dashboard summary.
type StatsRepo struct {
	db *sql.DB
}

// NewStatsRepo creates the repository.
func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Summary rolls up generation, send, response and cost counters.
func (r *StatsRepo) Summary(ctx context.Context) (*Summary, error) {
	var s Summary

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(sent), 0),
		       COALESCE(SUM(total_cost), 0)
		FROM generated_emails`).Scan(&s.EmailsGenerated, &s.EmailsSent, &s.TotalCost)
	if err != nil {
		return nil, &domain.StorageError{Op: "stats emails", Err: err}
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN response_type = 'positive' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN response_type = 'negative' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN response_type = 'neutral' THEN 1 ELSE 0 END), 0)
		FROM response_records`).Scan(&s.Responses, &s.Positive, &s.Negative, &s.Neutral)
	if err != nil {
		return nil, &domain.StorageError{Op: "stats responses", Err: err}
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM club_research`).Scan(&s.ClubsResearched)
	if err != nil {
		return nil, &domain.StorageError{Op: "stats research", Err: err}
	}

	return &s, nil
}
