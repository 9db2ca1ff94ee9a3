package autopilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/pkg/config"
	"github.com/staypro/agenthub/pkg/models"
)

type fakeStore struct {
	state    *models.TenantState
	failures int
	insights []*models.Insight
}

func (f *fakeStore) GetTenantState(tenantID string) (*models.TenantState, error) {
	if f.state != nil {
		return f.state, nil
	}
	return models.DefaultTenantState(tenantID), nil
}

func (f *fakeStore) CountRecentFailures(tenantID string, window time.Duration) (int, error) {
	return f.failures, nil
}

func (f *fakeStore) CreateInsight(insight *models.Insight) error {
	f.insights = append(f.insights, insight)
	return nil
}

type dispatchCall struct {
	intent string
}

type fakeDispatcher struct {
	calls      []dispatchCall
	failIntent string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error) {
	f.calls = append(f.calls, dispatchCall{intent: intent})
	if intent == f.failIntent {
		return &models.DispatchResult{Status: "error", Message: "handler down", ActionID: "a-err"}, nil
	}
	return &models.DispatchResult{Status: "completed", ActionID: "a-ok"}, nil
}

func fastConfig() config.AutopilotConfig {
	cfg := config.DefaultAutopilot()
	cfg.RetryAttempts = 2
	cfg.RetryBaseDelay = time.Millisecond
	cfg.DispatchCallTimeout = time.Second
	return cfg
}

func newEngine(store *fakeStore, dispatcher *fakeDispatcher) *Engine {
	return New(store, dispatcher, logging.NewManager(nil), metrics.NewMetrics(), fastConfig())
}

func TestScoreReference(t *testing.T) {
	cfg := config.DefaultAutopilot()
	cases := []struct {
		name  string
		state models.TenantState
		want  int
	}{
		{"defaults", models.TenantState{OccupancyRate: 0, AIMode: models.AIModeAssist}, 95},
		{"full occupancy", models.TenantState{OccupancyRate: 100, AIMode: models.AIModeAssist}, 50},
		{"aggressive full", models.TenantState{OccupancyRate: 100, AIMode: models.AIModeAggressive}, 65},
		{"low occupancy aggressive", models.TenantState{OccupancyRate: 10, AIMode: models.AIModeAggressive}, 95},
		{"clamped top", models.TenantState{OccupancyRate: 0, AIMode: models.AIModeAggressive}, 100},
		{"feedback penalty", models.TenantState{OccupancyRate: 100, AIMode: models.AIModeAssist, NegativeFeedback30: 5}, 40},
		{"penalty capped", models.TenantState{OccupancyRate: 100, AIMode: models.AIModeAssist, NegativeFeedback30: 50}, 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(cfg, &tc.state))
		})
	}
}

func TestScoreAlwaysClamped(t *testing.T) {
	cfg := config.DefaultAutopilot()
	cfg.FeedbackPenaltyCap = 200
	state := &models.TenantState{OccupancyRate: 100, NegativeFeedback30: 90, AIMode: models.AIModeAssist}
	got := Score(cfg, state)
	assert.GreaterOrEqual(t, got, 0)
	assert.LessOrEqual(t, got, 100)
}

func TestDecideHighScore(t *testing.T) {
	cfg := config.DefaultAutopilot()
	state := &models.TenantState{OccupancyRate: 50, AIMode: models.AIModeAssist}
	decisions, trace := Decide(cfg, state, 80)

	assert.Equal(t, []string{models.IntentInsight, models.IntentAlert}, decisions)
	assert.NotEmpty(t, trace, "expected a rule trace")
}

func TestDecideNeverEmpty(t *testing.T) {
	cfg := config.DefaultAutopilot()
	state := &models.TenantState{OccupancyRate: 80, AIMode: models.AIModeAssist}
	decisions, _ := Decide(cfg, state, 50)

	assert.Equal(t, []string{models.IntentInsight}, decisions, "expected insight fallback")
}

func TestDecideStacksRules(t *testing.T) {
	cfg := config.DefaultAutopilot()
	state := &models.TenantState{
		OccupancyRate: 10,
		AIMode:        models.AIModeAggressive,
		PendingTasks:  []string{"clean 101"},
		LastAction:    models.IntentInsight,
	}
	decisions, _ := Decide(cfg, state, 90)

	assert.Equal(t, []string{
		models.IntentInsight, models.IntentAlert,
		models.IntentPricing, models.IntentMarketing,
		models.IntentCheckin, models.IntentCleaning,
		models.IntentFollowup,
		models.IntentUpsell,
	}, decisions)
}

func TestDecideBusyAggressiveTenant(t *testing.T) {
	cfg := config.DefaultAutopilot()
	state := &models.TenantState{
		OccupancyRate: 20,
		PendingTasks:  []string{"clean room 4"},
		AIMode:        models.AIModeAggressive,
	}

	score := Score(cfg, state)
	require.Equal(t, 80, score, "50 base +15 aggressive +15 occupancy")

	decisions, _ := Decide(cfg, state, score)
	assert.Equal(t, []string{
		models.IntentInsight, models.IntentAlert,
		models.IntentPricing, models.IntentMarketing,
		models.IntentCheckin, models.IntentCleaning,
		models.IntentUpsell,
	}, decisions)
}

func TestRunDispatchesDecisions(t *testing.T) {
	store := &fakeStore{state: &models.TenantState{
		TenantID: "tenant-1", OccupancyRate: 10, AIMode: models.AIModeAssist, Season: "media",
	}}
	dispatcher := &fakeDispatcher{}
	e := newEngine(store, dispatcher)

	res, err := e.Run(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "completed", res.Status())

	decisions := res["decisions"].([]string)
	require.NotEmpty(t, decisions, "decision list must never be empty")
	assert.Len(t, dispatcher.calls, len(decisions))
	assert.Len(t, store.insights, 1, "expected a cycle summary insight")
}

func TestRunCircuitOpenDispatchesNothing(t *testing.T) {
	store := &fakeStore{failures: 5}
	dispatcher := &fakeDispatcher{}
	e := newEngine(store, dispatcher)

	res, err := e.Run(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, true, res["circuit_open"])
	assert.Empty(t, dispatcher.calls, "circuit open must dispatch nothing")
}

func TestRunBelowThresholdKeepsCircuitClosed(t *testing.T) {
	store := &fakeStore{failures: 4}
	dispatcher := &fakeDispatcher{}
	e := newEngine(store, dispatcher)

	res, err := e.Run(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.NotEqual(t, true, res["circuit_open"], "4 failures must not open the circuit")
	assert.NotEmpty(t, dispatcher.calls, "expected dispatches with closed circuit")
}

func TestRunFailedIntentDoesNotAbortCycle(t *testing.T) {
	store := &fakeStore{state: &models.TenantState{
		TenantID: "tenant-1", OccupancyRate: 10, AIMode: models.AIModeAssist, Season: "media",
	}}
	dispatcher := &fakeDispatcher{failIntent: models.IntentPricing}
	e := newEngine(store, dispatcher)

	res, err := e.Run(context.Background(), "tenant-1")
	require.NoError(t, err)

	outcomes := res["dispatched"].([]map[string]any)
	var sawError, sawCompleted bool
	for _, o := range outcomes {
		switch o["status"] {
		case "error":
			sawError = true
		case "completed":
			sawCompleted = true
		}
	}
	assert.True(t, sawError, "expected a failed outcome")
	assert.True(t, sawCompleted, "expected a completed outcome")

	// Retries: failing intent should be attempted RetryAttempts times.
	pricingCalls := 0
	for _, c := range dispatcher.calls {
		if c.intent == models.IntentPricing {
			pricingCalls++
		}
	}
	assert.Equal(t, 2, pricingCalls)
}

func TestSetConfigSwapsTuning(t *testing.T) {
	e := newEngine(&fakeStore{}, &fakeDispatcher{})

	cfg := fastConfig()
	cfg.CircuitThreshold = 99
	e.SetConfig(cfg)

	assert.Equal(t, 99, e.Config().CircuitThreshold)
}
