package logging

import (
	"container/ring"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	// MaxBufferSize is the maximum number of log entries kept in memory.
	MaxBufferSize = 10000

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry is a single structured log entry. Tenant, intent and action IDs
// are extracted from metadata for indexed querying.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Manager collects, buffers, and persists log entries. Persistence is
// best-effort: a failed write must never block or fail the primary path.
type Manager struct {
	mu       sync.RWMutex
	buffer   *ring.Ring
	db       *sql.DB
	handlers []func(LogEntry)
}

// NewManager creates a logging manager backed by the given database.
// A nil db keeps logs in memory only.
func NewManager(db *sql.DB) *Manager {
	m := &Manager{
		buffer: ring.New(MaxBufferSize),
		db:     db,
	}

	if err := m.initSchema(); err != nil {
		log.Printf("Warning: failed to initialize logging schema: %v", err)
	}

	return m
}

// rebindQuery converts ? placeholders to $N for PostgreSQL.
func rebindQuery(query string) string {
	n := 1
	var out strings.Builder
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&out, "$%d", n)
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

func (m *Manager) initSchema() error {
	if m.db == nil {
		return nil
	}

	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_logs (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			level TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata_json TEXT,
			tenant_id TEXT,
			intent TEXT,
			action_id TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create agent_logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_agent_logs_timestamp ON agent_logs(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_agent_logs_level ON agent_logs(level)",
		"CREATE INDEX IF NOT EXISTS idx_agent_logs_tenant_id ON agent_logs(tenant_id)",
		"CREATE INDEX IF NOT EXISTS idx_agent_logs_intent ON agent_logs(intent)",
	}
	for _, indexSQL := range indexes {
		if _, err := m.db.Exec(indexSQL); err != nil {
			log.Printf("Warning: failed to create index: %v", err)
		}
	}

	return nil
}

// Log adds an entry to the ring buffer, notifies handlers, and persists it
// asynchronously.
func (m *Manager) Log(level, source, message string, metadata map[string]any) {
	entry := LogEntry{
		ID:        fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    source,
		Message:   message,
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.buffer.Value = entry
	m.buffer = m.buffer.Next()
	handlers := m.handlers
	m.mu.Unlock()

	for _, handler := range handlers {
		go handler(entry)
	}

	go m.persistLog(entry)
}

func (m *Manager) persistLog(entry LogEntry) {
	if m.db == nil {
		return
	}

	var metadataJSON *string
	if len(entry.Metadata) > 0 {
		if data, err := json.Marshal(entry.Metadata); err == nil {
			s := string(data)
			metadataJSON = &s
		}
	}

	var tenantID, intent, actionID *string
	if v := getMetaString(entry.Metadata, "tenant_id"); v != "" {
		tenantID = &v
	}
	if v := getMetaString(entry.Metadata, "intent"); v != "" {
		intent = &v
	}
	if v := getMetaString(entry.Metadata, "action_id"); v != "" {
		actionID = &v
	}

	_, err := m.db.Exec(rebindQuery(`
		INSERT INTO agent_logs (id, timestamp, level, source, message, metadata_json, tenant_id, intent, action_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Timestamp, entry.Level, entry.Source, entry.Message, metadataJSON, tenantID, intent, actionID)

	if err != nil {
		log.Printf("Failed to persist log entry: %v", err)
	}
}

// GetRecent returns the most recent buffered entries, newest first,
// optionally filtered by level, source and tenant.
func (m *Manager) GetRecent(limit int, levelFilter, sourceFilter, tenantID string) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > MaxBufferSize {
		limit = 100
	}

	// m.buffer points at the next write slot, so walking Prev() from there
	// visits entries newest first. A nil slot means the buffer never wrapped.
	logs := make([]LogEntry, 0, limit)
	r := m.buffer.Prev()
	for i := 0; i < MaxBufferSize && len(logs) < limit; i++ {
		entry, ok := r.Value.(LogEntry)
		r = r.Prev()
		if !ok {
			break
		}
		if levelFilter != "" && entry.Level != levelFilter {
			continue
		}
		if sourceFilter != "" && entry.Source != sourceFilter {
			continue
		}
		if tenantID != "" && getMetaString(entry.Metadata, "tenant_id") != tenantID {
			continue
		}
		logs = append(logs, entry)
	}

	return logs
}

// AddHandler registers a handler invoked for each new entry (live feeds).
func (m *Manager) AddHandler(handler func(LogEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Debug logs a debug-level message.
func (m *Manager) Debug(source, message string, metadata map[string]any) {
	m.Log(LogLevelDebug, source, message, metadata)
}

// Info logs an info-level message.
func (m *Manager) Info(source, message string, metadata map[string]any) {
	m.Log(LogLevelInfo, source, message, metadata)
}

// Warn logs a warning-level message.
func (m *Manager) Warn(source, message string, metadata map[string]any) {
	m.Log(LogLevelWarn, source, message, metadata)
}

// Error logs an error-level message.
func (m *Manager) Error(source, message string, metadata map[string]any) {
	m.Log(LogLevelError, source, message, metadata)
}

func getMetaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if val, ok := meta[key].(string); ok {
		return val
	}
	return ""
}
