package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/photoreach/club-outreach/internal/domain"
)

// ResearchRepo stores club research. One row per club; Upsert replaces the
// previous research run wholesale.
type ResearchRepo struct {
	db *sql.DB
}

// NewResearchRepo creates the repository.
func NewResearchRepo(db *sql.DB) *ResearchRepo {
	return &ResearchRepo{db: db}
}

// Upsert writes the research row for a club, replacing any previous run.
func (r *ResearchRepo) Upsert(ctx context.Context, res *domain.ClubResearch) error {
	query := `
		INSERT INTO club_research (
			club_name, country, website,
			introduction_research, checkup_research, acceptance_research, full_research,
			search_cost, web_search_cost, total_cost,
			researched_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(club_name) DO UPDATE SET
			country = excluded.country,
			website = excluded.website,
			introduction_research = excluded.introduction_research,
			checkup_research = excluded.checkup_research,
			acceptance_research = excluded.acceptance_research,
			full_research = excluded.full_research,
			search_cost = excluded.search_cost,
			web_search_cost = excluded.web_search_cost,
			total_cost = excluded.total_cost,
			researched_at = excluded.researched_at,
			expires_at = excluded.expires_at`

	_, err := r.db.ExecContext(ctx, query,
		res.ClubName, res.Country, res.Website,
		res.IntroductionResearch, res.CheckupResearch, res.AcceptanceResearch, res.FullResearch,
		res.SearchCost, res.WebSearchCost, res.TotalCost,
		res.ResearchedAt, res.ExpiresAt,
	)
	if err != nil {
		return &domain.StorageError{Op: "upsert research", Err: err}
	}
	return nil
}

// Get returns the research row for a club, or nil when none exists.
// Freshness is the caller's concern; expired rows are returned as-is.
func (r *ResearchRepo) Get(ctx context.Context, clubName string) (*domain.ClubResearch, error) {
	query := `
		SELECT club_name, country, website,
		       introduction_research, checkup_research, acceptance_research, full_research,
		       search_cost, web_search_cost, total_cost,
		       researched_at, expires_at
		FROM club_research
		WHERE club_name = ?`

	var res domain.ClubResearch
	err := r.db.QueryRowContext(ctx, query, clubName).Scan(
		&res.ClubName, &res.Country, &res.Website,
		&res.IntroductionResearch, &res.CheckupResearch, &res.AcceptanceResearch, &res.FullResearch,
		&res.SearchCost, &res.WebSearchCost, &res.TotalCost,
		&res.ResearchedAt, &res.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get research", Err: err}
	}
	return &res, nil
}

// List returns every research row, most recent first.
func (r *ResearchRepo) List(ctx context.Context) ([]domain.ClubResearch, error) {
	query := `
		SELECT club_name, country, website,
		       introduction_research, checkup_research, acceptance_research, full_research,
		       search_cost, web_search_cost, total_cost,
		       researched_at, expires_at
		FROM club_research
		ORDER BY researched_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.StorageError{Op: "list research", Err: err}
	}
	defer rows.Close()

	var results []domain.ClubResearch
	for rows.Next() {
		var res domain.ClubResearch
		if err := rows.Scan(
			&res.ClubName, &res.Country, &res.Website,
			&res.IntroductionResearch, &res.CheckupResearch, &res.AcceptanceResearch, &res.FullResearch,
			&res.SearchCost, &res.WebSearchCost, &res.TotalCost,
			&res.ResearchedAt, &res.ExpiresAt,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan research", Err: err}
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Delete removes a club's research row.
func (r *ResearchRepo) Delete(ctx context.Context, clubName string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM club_research WHERE club_name = ?`, clubName); err != nil {
		return &domain.StorageError{Op: "delete research", Err: err}
	}
	return nil
}
