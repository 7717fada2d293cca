package domain

import "time"

// CostBreakdown tracks the AI spend for one research/generation run.
type CostBreakdown struct {
	SearchCost    float64 `json:"search_cost" db:"search_cost"`
	ContentCost   float64 `json:"content_cost" db:"content_cost"`
	WebSearchCost float64 `json:"web_search_cost" db:"web_search_cost"`
	TotalCost     float64 `json:"total_cost" db:"total_cost"`
}

// Add accumulates another breakdown into this one.
func (c *CostBreakdown) Add(other CostBreakdown) {
	c.SearchCost += other.SearchCost
	c.ContentCost += other.ContentCost
	c.WebSearchCost += other.WebSearchCost
	c.TotalCost += other.TotalCost
}

// GeneratedEmail is the current generated email for a (club, email type)
// pair. Regeneration overwrites the row; conversation history is tracked
// separately and is never rewritten.
type GeneratedEmail struct {
	ClubName  string    `json:"club_name" db:"club_name"`
	EmailType EmailType `json:"email_type" db:"email_type"`

	// Snippet is only the personalized addition; Body is the full merged email.
	Snippet string `json:"snippet" db:"snippet"`
	Body    string `json:"body" db:"body"`

	Costs CostBreakdown `json:"costs"`

	Sent      bool       `json:"sent" db:"sent"`
	SentAt    *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
