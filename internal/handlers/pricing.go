package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/pkg/models"
)

// PricingHandler computes an optimized nightly rate for one property from
// the current price, competitor prices, occupancy and season, then asks the
// LLM to refine it.
type PricingHandler struct {
	deps *Deps
}

func (h *PricingHandler) Intent() string { return models.IntentPricing }

// seasonalityFactor maps the tenant's season onto the pricing multiplier.
func seasonalityFactor(season string) float64 {
	switch season {
	case "alta":
		return 1.2
	case "bassa":
		return 0.8
	default: // "media"
		return 1.0
	}
}

func (h *PricingHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	propertyID := req.String("property_id")
	if propertyID == "" {
		return models.Errored("property_id is required"), nil
	}

	currentPrice, ok := req.Float("current_price")
	if !ok || currentPrice <= 0 {
		return models.Errored("current_price is required"), nil
	}

	competitors := floatSlice(req.Context["competitor_prices"])
	if len(competitors) == 0 {
		return models.Errored("competitor_prices is required"), nil
	}
	var sum float64
	for _, p := range competitors {
		sum += p
	}
	avgCompetitor := sum / float64(len(competitors))

	state, err := h.deps.Store.GetTenantState(req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant state: %w", err)
	}

	factor := seasonalityFactor(state.Season)
	basePrice := (currentPrice*0.7 + avgCompetitor*0.3) * factor

	optimized := basePrice
	prompt := fmt.Sprintf(
		"Current nightly rate: %.2f. Competitor average: %.2f. Occupancy: %d%%. Season: %s. Baseline suggestion: %.2f. Reply with a single optimized nightly rate as a plain number.",
		currentPrice, avgCompetitor, state.OccupancyRate, state.Season, basePrice,
	)
	answer, _, err := h.deps.LLM.Complete(ctx, []provider.ChatMessage{
		{Role: "system", Content: "You are a revenue manager for short-stay properties. Answer with a number only."},
		{Role: "user", Content: prompt},
	}, 0.2, 16)
	if err != nil {
		h.deps.Logger.Warn("pricing", "LLM refinement failed, keeping baseline", map[string]any{
			"tenant_id": req.TenantID,
			"error":     err.Error(),
		})
	} else if parsed, perr := parsePrice(answer); perr == nil && parsed > 0 {
		optimized = parsed
	}

	quote := &models.PriceQuote{
		PropertyID:        propertyID,
		TenantID:          req.TenantID,
		CurrentPrice:      currentPrice,
		OptimizedPrice:    round2(optimized),
		OccupancyRate:     float64(state.OccupancyRate),
		CompetitorPrices:  competitors,
		SeasonalityFactor: factor,
		GeneratedAt:       h.deps.now(),
	}
	if err := h.deps.Store.UpsertPriceQuote(quote); err != nil {
		return models.Errored(fmt.Sprintf("failed to persist price quote: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"property_id":        propertyID,
		"optimized_price":    quote.OptimizedPrice,
		"base_price":         round2(basePrice),
		"competitor_avg":     round2(avgCompetitor),
		"seasonality_factor": factor,
	}), nil
}

// parsePrice extracts a float from a model answer, tolerating currency signs
// and decimal commas.
func parsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "€$£ \t\n")
	s = strings.ReplaceAll(s, ",", ".")
	if i := strings.IndexAny(s, " \n"); i > 0 {
		s = s[:i]
	}
	return strconv.ParseFloat(s, 64)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func floatSlice(raw any) []float64 {
	switch v := raw.(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			}
		}
		return out
	}
	return nil
}
