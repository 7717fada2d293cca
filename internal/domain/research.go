package domain

import "time"

// ClubResearch holds the AI research for one club, split into the three
// sections used by the corresponding email types. One row per club; a new
// research run supersedes the previous row rather than merging with it.
type ClubResearch struct {
	ClubName string `json:"club_name" db:"club_name"`
	Country  string `json:"country" db:"country"`
	Website  string `json:"website" db:"website"`

	IntroductionResearch string `json:"introduction_research" db:"introduction_research"`
	CheckupResearch      string `json:"checkup_research" db:"checkup_research"`
	AcceptanceResearch   string `json:"acceptance_research" db:"acceptance_research"`
	FullResearch         string `json:"full_research" db:"full_research"`

	SearchCost    float64 `json:"search_cost" db:"search_cost"`
	WebSearchCost float64 `json:"web_search_cost" db:"web_search_cost"`
	TotalCost     float64 `json:"total_cost" db:"total_cost"`

	ResearchedAt time.Time `json:"researched_at" db:"researched_at"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
}

// ValidAt reports whether the research is still fresh at the given instant.
// Expiry is a pure read; rows are never mutated to mark them invalid.
func (r *ClubResearch) ValidAt(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// SectionFor returns the research section matching an email type.
func (r *ClubResearch) SectionFor(t EmailType) string {
	switch t {
	case EmailIntroduction:
		return r.IntroductionResearch
	case EmailCheckup:
		return r.CheckupResearch
	case EmailAcceptance:
		return r.AcceptanceResearch
	}
	return r.FullResearch
}
