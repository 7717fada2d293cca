// Package provider implements the AI research and content providers. The
// research provider searches the web for club-specific findings split into
// three email-type sections; the content provider turns a section into the
// one-or-two sentence personalization inserted into the email template.
// Two backends exist: OpenAI (default) and AWS Bedrock.
package provider

import (
	"context"

	"github.com/photoreach/club-outreach/internal/domain"
)

// ClubInfo carries what the research prompt knows about a club.
type ClubInfo struct {
	Name    string
	Country string
	Website string

	// RecentPosts are headline titles scouted from the club site's feed,
	// used to ground the research prompt. Optional.
	RecentPosts []string
}

// Usage is the token accounting returned by a model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// Research is the structured result of one research run.
type Research struct {
	Introduction string
	Checkup      string
	Acceptance   string
	FullText     string
	Costs        domain.CostBreakdown
}

// Personalization is the generated snippet for one email.
type Personalization struct {
	Content string
	Costs   domain.CostBreakdown
}

// ResearchProvider researches a club on the open web.
type ResearchProvider interface {
	Research(ctx context.Context, info ClubInfo) (*Research, error)
}

// ContentProvider generates the personalized snippet from research text.
type ContentProvider interface {
	GeneratePersonalization(ctx context.Context, clubName, researchText string, emailType domain.EmailType) (*Personalization, error)
}
