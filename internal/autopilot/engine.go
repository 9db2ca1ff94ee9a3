package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/internal/retry"
	"github.com/staypro/agenthub/pkg/config"
	"github.com/staypro/agenthub/pkg/models"
)

// Store is the database slice the engine reads and writes.
type Store interface {
	GetTenantState(tenantID string) (*models.TenantState, error)
	CountRecentFailures(tenantID string, window time.Duration) (int, error)
	CreateInsight(insight *models.Insight) error
}

// Dispatcher re-enters the dispatch loop for decided intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error)
}

// Engine is the autopilot decision engine: it scores the tenant's situation,
// derives a decision list from fixed-precedence rules, and dispatches each
// decided intent with retry. Tuning is hot-swappable.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	logger     *logging.Manager
	metrics    *metrics.Metrics

	mu  sync.RWMutex
	cfg config.AutopilotConfig
}

// New creates an engine with the given tuning.
func New(store Store, dispatcher Dispatcher, logger *logging.Manager, m *metrics.Metrics, cfg config.AutopilotConfig) *Engine {
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		cfg:        cfg,
	}
}

// SetConfig swaps the tuning. Wired to the config file watcher.
func (e *Engine) SetConfig(cfg config.AutopilotConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.logger.Info("autopilot", "Tuning reloaded", nil)
}

// Config returns the current tuning.
func (e *Engine) Config() config.AutopilotConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Score computes the priority score for a tenant state, clamped to 0..100.
func Score(cfg config.AutopilotConfig, state *models.TenantState) int {
	score := float64(cfg.BaseScore)

	if state.AIMode == models.AIModeAggressive {
		score += float64(cfg.AggressiveBonus)
	}

	occupancyGap := float64(cfg.OccupancyThreshold - state.OccupancyRate)
	if occupancyGap < 0 {
		occupancyGap = 0
	}
	occupancyBoost := occupancyGap * cfg.OccupancyWeight
	if occupancyBoost > 45 {
		occupancyBoost = 45
	}
	score += occupancyBoost

	penalty := float64(state.NegativeFeedback30 * 2)
	if penalty > float64(cfg.FeedbackPenaltyCap) {
		penalty = float64(cfg.FeedbackPenaltyCap)
	}
	score -= penalty

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// Decide applies the rules in fixed precedence and returns the decision list
// with a human-readable trace. The list is never empty.
func Decide(cfg config.AutopilotConfig, state *models.TenantState, score int) ([]string, []string) {
	var decisions []string
	var trace []string

	if score > cfg.HighPriorityCutoff {
		decisions = append(decisions, models.IntentInsight, models.IntentAlert)
		trace = append(trace, fmt.Sprintf("score %d above cutoff %d: analyze and alert", score, cfg.HighPriorityCutoff))
	}
	if state.OccupancyRate < cfg.OccupancyThreshold {
		decisions = append(decisions, models.IntentPricing, models.IntentMarketing)
		trace = append(trace, fmt.Sprintf("occupancy %d%% below %d%%: reprice and promote", state.OccupancyRate, cfg.OccupancyThreshold))
	}
	if len(state.PendingTasks) > 0 {
		decisions = append(decisions, models.IntentCheckin, models.IntentCleaning)
		trace = append(trace, fmt.Sprintf("%d pending tasks: prepare arrivals and housekeeping", len(state.PendingTasks)))
	}
	if state.LastAction == models.IntentInsight {
		decisions = append(decisions, models.IntentFollowup)
		trace = append(trace, "last action was an insight: follow up")
	}
	if state.AIMode == models.AIModeAggressive {
		decisions = append(decisions, models.IntentUpsell)
		trace = append(trace, "aggressive mode: push upsells")
	}
	if len(decisions) == 0 {
		decisions = append(decisions, models.IntentInsight)
		trace = append(trace, "no rule matched: baseline analysis")
	}
	return decisions, trace
}

// Run executes one autopilot cycle for a tenant. It is invoked as the
// autopilot intent's handler, so the cycle's own ledger row is owned by the
// surrounding dispatch; this result becomes that row's output.
func (e *Engine) Run(ctx context.Context, tenantID string) (models.Result, error) {
	cfg := e.Config()
	e.metrics.AutopilotRuns.WithLabelValues(tenantID).Inc()

	failures, err := e.store.CountRecentFailures(tenantID, cfg.CircuitWindow)
	if err != nil {
		return models.Errored("failed to read failure registry: " + err.Error()), nil
	}
	if failures >= cfg.CircuitThreshold {
		e.metrics.CircuitOpen.WithLabelValues(tenantID).Set(1)
		e.logger.Warn("autopilot", "Circuit open, skipping cycle", map[string]any{
			"tenant_id": tenantID,
			"failures":  failures,
			"window":    cfg.CircuitWindow.String(),
		})
		return models.Completed(map[string]any{
			"circuit_open":    true,
			"recent_failures": failures,
			"decisions":       []string{},
			"dispatched":      []map[string]any{},
		}), nil
	}
	e.metrics.CircuitOpen.WithLabelValues(tenantID).Set(0)

	state, err := e.store.GetTenantState(tenantID)
	if err != nil {
		return models.Errored("failed to load tenant state: " + err.Error()), nil
	}

	score := Score(cfg, state)
	decisions, trace := Decide(cfg, state, score)

	policy := retry.Policy{
		MaxAttempts:    cfg.RetryAttempts,
		BaseDelay:      cfg.RetryBaseDelay,
		Jitter:         500 * time.Millisecond,
		AttemptTimeout: cfg.DispatchCallTimeout,
	}

	outcomes := make([]map[string]any, 0, len(decisions))
	for _, intent := range decisions {
		outcome := e.dispatchWithRetry(ctx, policy, tenantID, intent, score)
		outcomes = append(outcomes, outcome)
		e.metrics.AutopilotDispatches.WithLabelValues(intent, outcome["status"].(string)).Inc()
	}

	e.recordSummary(tenantID, score, decisions, trace, outcomes)

	return models.Completed(map[string]any{
		"priority_score": score,
		"decisions":      decisions,
		"trace":          trace,
		"dispatched":     outcomes,
	}), nil
}

func (e *Engine) dispatchWithRetry(ctx context.Context, policy retry.Policy, tenantID, intent string, score int) map[string]any {
	var last *models.DispatchResult

	err := policy.Do(ctx, func(ctx context.Context) error {
		result, err := e.dispatcher.Dispatch(ctx, tenantID, intent, map[string]any{
			"triggered_by":   "autopilot",
			"priority_score": score,
		})
		if err != nil {
			return err
		}
		last = result
		if result.Status == "error" {
			return fmt.Errorf("dispatch errored: %s", result.Message)
		}
		return nil
	})

	outcome := map[string]any{"intent": intent}
	if err != nil {
		// Each failed attempt already reached the failure registry through
		// the dispatcher; exhaustion only ends this intent, not the cycle.
		e.logger.Error("autopilot", "Intent exhausted retries", map[string]any{
			"tenant_id": tenantID,
			"intent":    intent,
			"error":     err.Error(),
		})
		outcome["status"] = "error"
		outcome["error"] = err.Error()
		if last != nil {
			outcome["action_id"] = last.ActionID
		}
		return outcome
	}

	outcome["status"] = "completed"
	outcome["action_id"] = last.ActionID
	return outcome
}

func (e *Engine) recordSummary(tenantID string, score int, decisions, trace []string, outcomes []map[string]any) {
	completed := 0
	for _, o := range outcomes {
		if o["status"] == "completed" {
			completed++
		}
	}

	summary := &models.Insight{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		SourceAgent: models.IntentAutopilot,
		Comment: fmt.Sprintf("Autopilot cycle: score %d, %d/%d intents completed (%v)",
			score, completed, len(decisions), decisions),
		Note:            fmt.Sprintf("trace: %v", trace),
		Category:        models.InsightCategoryOperational,
		Severity:        models.SeverityLow,
		Recommendations: nil,
		PriorityScore:   score,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.store.CreateInsight(summary); err != nil {
		e.logger.Warn("autopilot", "Failed to record cycle summary", map[string]any{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
	}
}
