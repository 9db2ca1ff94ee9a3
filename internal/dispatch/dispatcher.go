package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/messagebus"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/pkg/models"
)

// Store is the slice of the database the dispatcher owns. Only the
// dispatcher transitions ledger rows.
type Store interface {
	CreateAction(action *models.Action) error
	CompleteAction(actionID string, output map[string]any) error
	FailAction(actionID string, message string) error
	SetLastAction(tenantID, intent string) error
	RecordDispatchFailure(tenantID, intent, errorMessage string) error
}

// Dispatcher runs the intent lifecycle: ledger row in pending, handler
// invocation, exactly one terminal transition, then lifecycle fan-out.
// It is safe for concurrent use and reentrant: handlers may dispatch
// further intents through it.
type Dispatcher struct {
	store    Store
	registry *Registry
	logger   *logging.Manager
	metrics  *metrics.Metrics
	bus      messagebus.MessageBus
	tracer   trace.Tracer
}

// New creates a dispatcher. bus may be nil; lifecycle publishing is then
// skipped.
func New(store Store, registry *Registry, logger *logging.Manager, m *metrics.Metrics, bus messagebus.MessageBus) *Dispatcher {
	if bus == nil {
		bus = messagebus.NoopBus{}
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		logger:   logger,
		metrics:  m,
		bus:      bus,
		tracer:   otel.Tracer("agenthub/dispatch"),
	}
}

// Registry exposes the intent table for introspection endpoints.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one intent for a tenant. Every call owns exactly one ledger
// row, created pending and transitioned exactly once to completed or error.
// The returned DispatchResult mirrors the terminal state. A registry miss
// still produces a ledger row; the sentinel error (ErrUnknownIntent or
// ErrUnsupportedIntent) is returned alongside the error result so callers
// can map it to a client error.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, intent string, inputContext map[string]any) (*models.DispatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	action := &models.Action{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Intent:       intent,
		Status:       models.ActionStatusPending,
		StartedAt:    time.Now().UTC(),
		InputContext: inputContext,
	}
	if err := d.store.CreateAction(action); err != nil {
		return nil, fmt.Errorf("failed to open action: %w", err)
	}

	d.metrics.ActionsPending.Inc()
	defer d.metrics.ActionsPending.Dec()

	handler, err := d.registry.Get(intent)
	if err != nil {
		d.logger.Warn("dispatcher", "Rejected dispatch", map[string]any{
			"tenant_id": tenantID,
			"intent":    intent,
			"action_id": action.ID,
			"error":     err.Error(),
		})
		return d.finishError(ctx, action, err.Error()), err
	}

	d.logger.Info("dispatcher", "Dispatching intent", map[string]any{
		"tenant_id": tenantID,
		"intent":    intent,
		"action_id": action.ID,
	})
	d.publishAction(ctx, action, "")

	ctx, span := d.tracer.Start(ctx, "dispatch."+intent,
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("action.id", action.ID),
		),
	)
	defer span.End()

	started := time.Now()
	result := d.invoke(ctx, handler, &Request{
		TenantID: tenantID,
		Intent:   intent,
		ActionID: action.ID,
		Context:  inputContext,
	})
	d.metrics.DispatchDuration.WithLabelValues(intent).Observe(time.Since(started).Seconds())

	if result.Status() == "error" {
		message, _ := result["message"].(string)
		if message == "" {
			message = "handler failed"
		}
		return d.finishError(ctx, action, message), nil
	}
	return d.finishCompleted(ctx, action, result), nil
}

// invoke runs the handler with panic recovery. A panicking handler yields
// an error result instead of taking the process down.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, req *Request) (result models.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher", "Handler panicked", map[string]any{
				"tenant_id": req.TenantID,
				"intent":    req.Intent,
				"action_id": req.ActionID,
				"panic":     fmt.Sprintf("%v", r),
			})
			result = models.Errored(fmt.Sprintf("handler panic: %v", r))
		}
	}()

	result, err := handler.Handle(ctx, req)
	if err != nil {
		return models.Errored(err.Error())
	}
	if result == nil {
		return models.Errored("handler returned no result")
	}
	if result.Status() == "" {
		result["status"] = "completed"
	}
	return result
}

func (d *Dispatcher) finishCompleted(ctx context.Context, action *models.Action, result models.Result) *models.DispatchResult {
	output := map[string]any(result)
	if err := d.store.CompleteAction(action.ID, output); err != nil {
		// The row is still pending in storage; report the truth rather
		// than a success the ledger does not show.
		d.logger.Error("dispatcher", "Failed to close action", map[string]any{
			"action_id": action.ID,
			"error":     err.Error(),
		})
		return d.finishError(ctx, action, fmt.Sprintf("failed to persist result: %v", err))
	}

	if err := d.store.SetLastAction(action.TenantID, action.Intent); err != nil {
		d.logger.Warn("dispatcher", "Failed to update last action", map[string]any{
			"tenant_id": action.TenantID,
			"error":     err.Error(),
		})
	}

	d.metrics.DispatchesTotal.WithLabelValues(action.Intent, "completed").Inc()
	d.logger.Info("dispatcher", "Intent completed", map[string]any{
		"tenant_id": action.TenantID,
		"intent":    action.Intent,
		"action_id": action.ID,
	})

	action.Status = models.ActionStatusCompleted
	d.publishAction(ctx, action, "")

	return &models.DispatchResult{
		Status:   "completed",
		Output:   output,
		ActionID: action.ID,
	}
}

func (d *Dispatcher) finishError(ctx context.Context, action *models.Action, message string) *models.DispatchResult {
	if err := d.store.FailAction(action.ID, message); err != nil {
		d.logger.Error("dispatcher", "Failed to mark action errored", map[string]any{
			"action_id": action.ID,
			"error":     err.Error(),
		})
	}
	if err := d.store.RecordDispatchFailure(action.TenantID, action.Intent, message); err != nil {
		d.logger.Warn("dispatcher", "Failed to record dispatch failure", map[string]any{
			"tenant_id": action.TenantID,
			"error":     err.Error(),
		})
	}

	d.metrics.DispatchesTotal.WithLabelValues(action.Intent, "error").Inc()
	d.logger.Error("dispatcher", "Intent failed", map[string]any{
		"tenant_id": action.TenantID,
		"intent":    action.Intent,
		"action_id": action.ID,
		"error":     message,
	})

	action.Status = models.ActionStatusError
	d.publishAction(ctx, action, message)

	return &models.DispatchResult{
		Status:   "error",
		Message:  message,
		ActionID: action.ID,
	}
}

func (d *Dispatcher) publishAction(ctx context.Context, action *models.Action, errMsg string) {
	err := d.bus.PublishAction(ctx, &messagebus.ActionMessage{
		ActionID: action.ID,
		TenantID: action.TenantID,
		Intent:   action.Intent,
		Status:   action.Status,
		Error:    errMsg,
	})
	if err != nil {
		d.logger.Warn("dispatcher", "Failed to publish action message", map[string]any{
			"action_id": action.ID,
			"error":     err.Error(),
		})
		return
	}
	d.metrics.EventsPublished.WithLabelValues("hub.actions").Inc()
}
