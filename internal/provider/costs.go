package provider

import (
	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

// CostTracker accumulates token spend for one research/generation run.
// Prices are per 1M tokens, keyed by model name in config.
type CostTracker struct {
	pricing           map[string]config.ModelPricing
	webSearchPerQuery float64
	costs             domain.CostBreakdown
}

// NewCostTracker creates a tracker against the configured pricing table.
func NewCostTracker(pricing map[string]config.ModelPricing, webSearchPerQuery float64) *CostTracker {
	return &CostTracker{pricing: pricing, webSearchPerQuery: webSearchPerQuery}
}

// tokenCost prices one model call. Cached input tokens are billed at the
// cached rate and excluded from the regular input count. Unknown models
// price at zero with a warning, matching how new models show up before the
// pricing table catches up.
func (t *CostTracker) tokenCost(model string, u Usage) float64 {
	p, ok := t.pricing[model]
	if !ok {
		logger.Warn("model missing from pricing table, costing at zero", "model", model)
		return 0
	}

	regular := u.InputTokens - u.CachedTokens
	if regular < 0 {
		regular = 0
	}
	cost := float64(regular) / 1_000_000 * p.Input
	cost += float64(u.CachedTokens) / 1_000_000 * p.CachedInput
	cost += float64(u.OutputTokens) / 1_000_000 * p.Output
	return cost
}

// AddSearch records a research model call.
func (t *CostTracker) AddSearch(model string, u Usage) {
	c := t.tokenCost(model, u)
	t.costs.SearchCost += c
	t.costs.TotalCost += c
}

// AddContent records a content model call.
func (t *CostTracker) AddContent(model string, u Usage) {
	c := t.tokenCost(model, u)
	t.costs.ContentCost += c
	t.costs.TotalCost += c
}

// AddWebSearch records n web-search tool invocations.
func (t *CostTracker) AddWebSearch(n int) {
	c := float64(n) * t.webSearchPerQuery
	t.costs.WebSearchCost += c
	t.costs.TotalCost += c
}

// Costs returns the accumulated breakdown.
func (t *CostTracker) Costs() domain.CostBreakdown { return t.costs }
