package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staypro/agenthub/pkg/models"
)

// Store is the slice of the database the memory provider reads.
type Store interface {
	ListRecentActions(tenantID string, status models.ActionStatus, limit int) ([]*models.Action, error)
	ListRecentDocuments(tenantID string, limit int) ([]*models.Document, error)
	GetTenantState(tenantID string) (*models.TenantState, error)
}

// Provider assembles per-tenant working memory: live state, a short-term
// merge of recent activity, and optional Redis-backed long-term notes.
type Provider struct {
	store Store
	redis *redis.Client
}

// New creates a memory provider. redisClient may be nil; long-term memory is
// then always empty.
func New(store Store, redisClient *redis.Client) *Provider {
	return &Provider{store: store, redis: redisClient}
}

// State returns the tenant's context singleton, materializing defaults for
// unknown tenants.
func (p *Provider) State(tenantID string) (*models.TenantState, error) {
	return p.store.GetTenantState(tenantID)
}

// Recent merges the tenant's last n completed actions and last n documents
// into one list ordered newest first, keeping at most n entries total.
// Entries without a timestamp sort last. The merge is recomputed per call
// and never persisted.
func (p *Provider) Recent(tenantID string, n int) ([]models.MemoryEntry, error) {
	if n <= 0 {
		n = 5
	}

	actions, err := p.store.ListRecentActions(tenantID, models.ActionStatusCompleted, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent actions: %w", err)
	}
	docs, err := p.store.ListRecentDocuments(tenantID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent documents: %w", err)
	}

	entries := make([]models.MemoryEntry, 0, len(actions)+len(docs))
	for _, action := range actions {
		entries = append(entries, models.MemoryEntry{
			Type:      "action:" + action.Intent,
			Output:    action.Output,
			Timestamp: action.CompletedAt,
		})
	}
	for _, doc := range docs {
		ts := doc.GeneratedAt
		entries = append(entries, models.MemoryEntry{
			Type:      "document:" + doc.Type,
			Output:    doc.Content,
			Timestamp: &ts,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Timestamp, entries[j].Timestamp
		switch {
		case ti == nil && tj == nil:
			return false
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// longTermKey is the Redis key holding a tenant's durable notes.
func longTermKey(tenantID string) string {
	return "memory:longterm:" + tenantID
}

// LongTerm returns the tenant's durable notes. Without Redis, or on any
// backend error, it returns an empty map so callers never branch on
// availability.
func (p *Provider) LongTerm(ctx context.Context, tenantID string) map[string]any {
	if p.redis == nil {
		return map[string]any{}
	}

	raw, err := p.redis.Get(ctx, longTermKey(tenantID)).Result()
	if err != nil {
		return map[string]any{}
	}

	var notes map[string]any
	if json.Unmarshal([]byte(raw), &notes) != nil || notes == nil {
		return map[string]any{}
	}
	return notes
}

// Remember merges the given fields into the tenant's long-term notes. A nil
// Redis client makes this a no-op.
func (p *Provider) Remember(ctx context.Context, tenantID string, fields map[string]any) error {
	if p.redis == nil || len(fields) == 0 {
		return nil
	}

	notes := p.LongTerm(ctx, tenantID)
	for k, v := range fields {
		notes[k] = v
	}

	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to marshal long-term memory: %w", err)
	}
	if err := p.redis.Set(ctx, longTermKey(tenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store long-term memory: %w", err)
	}
	return nil
}

// Snapshot is the full working-memory view handed to handlers and exposed on
// the API.
type Snapshot struct {
	TenantID  string              `json:"tenant_id"`
	State     *models.TenantState `json:"state"`
	Recent    []models.MemoryEntry `json:"recent"`
	LongTerm  map[string]any      `json:"long_term"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Full assembles the complete memory snapshot for a tenant.
func (p *Provider) Full(ctx context.Context, tenantID string, n int) (*Snapshot, error) {
	state, err := p.State(tenantID)
	if err != nil {
		return nil, err
	}
	recent, err := p.Recent(tenantID, n)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		TenantID:  tenantID,
		State:     state,
		Recent:    recent,
		LongTerm:  p.LongTerm(ctx, tenantID),
		FetchedAt: time.Now().UTC(),
	}, nil
}
