// Package personalizer produces the outreach emails: AI-personalized
// snippet merged into the Liquid template for the club's pipeline stage.
package personalizer

import (
	"context"
	"time"

	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
	"github.com/photoreach/club-outreach/internal/provider"
	"github.com/photoreach/club-outreach/internal/research"
	"github.com/photoreach/club-outreach/internal/roster"
)

// EmailStore is the persistence the personalizer needs.
type EmailStore interface {
	Upsert(ctx context.Context, e *domain.GeneratedEmail) error
	Get(ctx context.Context, clubName string, t domain.EmailType) (*domain.GeneratedEmail, error)
}

// Personalizer generates personalized outreach emails.
type Personalizer struct {
	roster     *roster.Roster
	research   *research.Service
	content    provider.ContentProvider
	emails     EmailStore
	templates  *Templates
	senderName string
	now        func() time.Time
}

// New creates the personalizer.
func New(r *roster.Roster, rs *research.Service, content provider.ContentProvider, emails EmailStore, templates *Templates, senderName string) *Personalizer {
	return &Personalizer{
		roster:     r,
		research:   rs,
		content:    content,
		emails:     emails,
		templates:  templates,
		senderName: senderName,
		now:        time.Now,
	}
}

// Generate produces the email for a club and email type and persists it,
// overwriting any previous generation for the pair. Research is resolved
// (and persisted) first, so a content failure after a fresh research run
// does not waste the research spend. forceResearch bypasses the cache.
func (p *Personalizer) Generate(ctx context.Context, clubName string, emailType domain.EmailType, forceResearch bool) (*domain.GeneratedEmail, error) {
	club, err := p.roster.Lookup(clubName)
	if err != nil {
		return nil, err
	}

	res, err := p.research.Get(ctx, club, forceResearch)
	if err != nil {
		return nil, err
	}

	pers, err := p.content.GeneratePersonalization(ctx, club.Name, res.SectionFor(emailType), emailType)
	if err != nil {
		return nil, err
	}

	body, err := p.templates.Render(emailType, map[string]interface{}{
		"club_name":       club.Name,
		"contact_name":    club.ContactName,
		"contact_role":    club.ContactRole,
		"country":         club.Country,
		"personalization": pers.Content,
		"sender_name":     p.senderName,
	})
	if err != nil {
		return nil, err
	}

	email := &domain.GeneratedEmail{
		ClubName:  club.Name,
		EmailType: emailType,
		Snippet:   pers.Content,
		Body:      body,
		Costs: domain.CostBreakdown{
			SearchCost:    res.SearchCost,
			WebSearchCost: res.WebSearchCost,
			ContentCost:   pers.Costs.ContentCost,
			TotalCost:     res.SearchCost + res.WebSearchCost + pers.Costs.ContentCost,
		},
		CreatedAt: p.now(),
	}

	if err := p.emails.Upsert(ctx, email); err != nil {
		return nil, err
	}

	logger.Info("email generated",
		"club", club.Name,
		"email_type", emailType,
		"total_cost", email.Costs.TotalCost)
	return email, nil
}

// Get returns the stored email for a club and type without regenerating.
func (p *Personalizer) Get(ctx context.Context, clubName string, emailType domain.EmailType) (*domain.GeneratedEmail, error) {
	club, err := p.roster.Lookup(clubName)
	if err != nil {
		return nil, err
	}
	return p.emails.Get(ctx, club.Name, emailType)
}
