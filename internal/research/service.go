// Package research manages the club research cache: fresh research is
// served from storage, stale or missing research triggers a provider run.
package research

import (
	"context"
	"time"

	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/feeds"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
	"github.com/photoreach/club-outreach/internal/provider"
)

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, clubName string) (*domain.ClubResearch, error)
	Upsert(ctx context.Context, res *domain.ClubResearch) error
}

// Scout supplies recent feed posts for the research prompt.
type Scout interface {
	RecentPosts(ctx context.Context, website string) []feeds.Post
}

// Service caches research per club with a freshness window.
type Service struct {
	store     Store
	provider  provider.ResearchProvider
	scout     Scout
	freshness time.Duration
	now       func() time.Time
}

// NewService creates the research service. scout may be nil when feed
// scouting is disabled.
func NewService(store Store, p provider.ResearchProvider, scout Scout, freshness time.Duration) *Service {
	return &Service{
		store:     store,
		provider:  p,
		scout:     scout,
		freshness: freshness,
		now:       time.Now,
	}
}

// Get returns fresh research for the club, from cache when valid, otherwise
// by running the provider. force bypasses the cache. New research is
// persisted before returning, so a later content-generation failure does not
// lose the expensive research run.
func (s *Service) Get(ctx context.Context, club domain.Club, force bool) (*domain.ClubResearch, error) {
	now := s.now()

	if !force {
		cached, err := s.store.Get(ctx, club.Name)
		if err != nil {
			return nil, err
		}
		if cached != nil && cached.ValidAt(now) {
			logger.Debug("research cache hit", "club", club.Name, "expires_at", cached.ExpiresAt)
			return cached, nil
		}
	}

	info := provider.ClubInfo{
		Name:    club.Name,
		Country: club.Country,
		Website: club.Website,
	}
	if s.scout != nil && club.Website != "" {
		info.RecentPosts = feeds.Titles(s.scout.RecentPosts(ctx, club.Website))
	}

	result, err := s.provider.Research(ctx, info)
	if err != nil {
		return nil, err
	}

	res := &domain.ClubResearch{
		ClubName:             club.Name,
		Country:              club.Country,
		Website:              club.Website,
		IntroductionResearch: result.Introduction,
		CheckupResearch:      result.Checkup,
		AcceptanceResearch:   result.Acceptance,
		FullResearch:         result.FullText,
		SearchCost:           result.Costs.SearchCost,
		WebSearchCost:        result.Costs.WebSearchCost,
		TotalCost:            result.Costs.TotalCost,
		ResearchedAt:         now,
		ExpiresAt:            now.Add(s.freshness),
	}

	if err := s.store.Upsert(ctx, res); err != nil {
		return nil, err
	}

	logger.Info("research completed",
		"club", club.Name,
		"total_cost", res.TotalCost,
		"expires_at", res.ExpiresAt)
	return res, nil
}
