package research

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/provider"
)

type memStore struct {
	rows map[string]*domain.ClubResearch
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*domain.ClubResearch{}}
}

func (s *memStore) Get(_ context.Context, clubName string) (*domain.ClubResearch, error) {
	return s.rows[clubName], nil
}

func (s *memStore) Upsert(_ context.Context, res *domain.ClubResearch) error {
	s.rows[res.ClubName] = res
	return nil
}

type stubProvider struct {
	calls  int
	result *provider.Research
	err    error
}

func (p *stubProvider) Research(_ context.Context, _ provider.ClubInfo) (*provider.Research, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func testClub() domain.Club {
	return domain.Club{Name: "BOISE CAMERA CLUB", Country: "USA"}
}

func TestGetRunsProviderAndCaches(t *testing.T) {
	store := newMemStore()
	p := &stubProvider{result: &provider.Research{
		Introduction: "intro",
		Checkup:      "checkup",
		Acceptance:   "accept",
		FullText:     "full",
		Costs:        domain.CostBreakdown{SearchCost: 0.05, TotalCost: 0.06, WebSearchCost: 0.01},
	}}

	svc := NewService(store, p, nil, 30*24*time.Hour)
	svc.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Get(context.Background(), testClub(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "intro", res.IntroductionResearch)
	assert.InDelta(t, 0.06, res.TotalCost, 1e-9)
	assert.Equal(t, res.ResearchedAt.Add(30*24*time.Hour), res.ExpiresAt)

	// Persisted before return.
	assert.NotNil(t, store.rows["BOISE CAMERA CLUB"])

	// Second call inside the window is a cache hit.
	_, err = svc.Get(context.Background(), testClub(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestGetExpiredReruns(t *testing.T) {
	store := newMemStore()
	p := &stubProvider{result: &provider.Research{FullText: "fresh"}}

	svc := NewService(store, p, nil, 30*24*time.Hour)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	store.rows["BOISE CAMERA CLUB"] = &domain.ClubResearch{
		ClubName:  "BOISE CAMERA CLUB",
		ExpiresAt: now.Add(-time.Hour),
	}

	res, err := svc.Get(context.Background(), testClub(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "fresh", res.FullResearch)
}

func TestGetForceBypassesCache(t *testing.T) {
	store := newMemStore()
	p := &stubProvider{result: &provider.Research{FullText: "rerun"}}

	svc := NewService(store, p, nil, 30*24*time.Hour)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	store.rows["BOISE CAMERA CLUB"] = &domain.ClubResearch{
		ClubName:  "BOISE CAMERA CLUB",
		ExpiresAt: now.Add(24 * time.Hour),
	}

	res, err := svc.Get(context.Background(), testClub(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "rerun", res.FullResearch)
}

func TestGetProviderError(t *testing.T) {
	store := newMemStore()
	p := &stubProvider{err: &domain.ProviderError{Stage: domain.StageResearch, Err: assert.AnError}}

	svc := NewService(store, p, nil, 30*24*time.Hour)
	_, err := svc.Get(context.Background(), testClub(), false)
	require.Error(t, err)

	var provErr *domain.ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Empty(t, store.rows)
}
