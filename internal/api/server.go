package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/staypro/agenthub/internal/auth"
	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/memory"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/pkg/config"
	"github.com/staypro/agenthub/pkg/models"
)

// Store is the database slice the HTTP layer reads and writes directly.
// Ledger writes stay behind the dispatcher.
type Store interface {
	GetAction(actionID string) (*models.Action, error)
	ListRecentActions(tenantID string, statusFilter models.ActionStatus, limit int) ([]*models.Action, error)
	GetTenantState(tenantID string) (*models.TenantState, error)
	UpdateTenantState(tenantID string, updates map[string]any) (*models.TenantState, error)
	CreateEvent(event *models.Event) error
	ListEvents(tenantID string, statusFilter models.EventStatus, limit int) ([]*models.Event, error)
	CreateProposal(proposal *models.Proposal) error
	GetProposal(proposalID string) (*models.Proposal, error)
	ResolveProposal(proposalID string, status models.ProposalStatus) (*models.Proposal, error)
	ListProposals(tenantID string, statusFilter models.ProposalStatus, limit int) ([]*models.Proposal, error)
}

// Dispatcher runs intents on behalf of API callers.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, intent string, reqCtx map[string]any) (*models.DispatchResult, error)
}

// Classifier maps a free-text message to an intent name.
type Classifier interface {
	Classify(ctx context.Context, tenantID, message string) string
}

// Memory exposes the tenant memory views.
type Memory interface {
	State(tenantID string) (*models.TenantState, error)
	Recent(tenantID string, n int) ([]models.MemoryEntry, error)
	LongTerm(ctx context.Context, tenantID string) map[string]any
	Full(ctx context.Context, tenantID string, n int) (*memory.Snapshot, error)
}

// Server is the HTTP API server.
type Server struct {
	config     *config.Config
	store      Store
	dispatcher Dispatcher
	classifier Classifier
	memory     Memory
	auth       *auth.Manager
	logger     *logging.Manager
	metrics    *metrics.Metrics
	stream     *streamHub
}

// NewServer creates an API server. auth may be nil when authentication is
// disabled. Live dispatch activity is fed to the websocket stream through a
// logging handler, so the feed works with or without a message bus.
func NewServer(cfg *config.Config, store Store, dispatcher Dispatcher, classifier Classifier, mem Memory, authMgr *auth.Manager, logger *logging.Manager, m *metrics.Metrics) *Server {
	s := &Server{
		config:     cfg,
		store:      store,
		dispatcher: dispatcher,
		classifier: classifier,
		memory:     mem,
		auth:       authMgr,
		logger:     logger,
		metrics:    m,
		stream:     newStreamHub(),
	}

	logger.AddHandler(func(entry logging.LogEntry) {
		if entry.Source != "dispatcher" {
			return
		}
		if actionID := metaString(entry.Metadata, "action_id"); actionID != "" {
			s.stream.Broadcast(streamFrame{
				Timestamp: entry.Timestamp,
				Level:     entry.Level,
				Message:   entry.Message,
				ActionID:  actionID,
				TenantID:  metaString(entry.Metadata, "tenant_id"),
				Intent:    metaString(entry.Metadata, "intent"),
			})
		}
	})

	return s
}

// SetupRoutes configures HTTP routes and wraps them in the middleware chain.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/api/v1/auth/users", s.handleCreateUser)

	mux.HandleFunc("/api/v1/dispatch", s.handleDispatch)
	mux.HandleFunc("/api/v1/classify", s.handleClassify)
	mux.HandleFunc("/api/v1/chat", s.handleChat)

	mux.HandleFunc("/api/v1/context", s.handleContext)
	mux.HandleFunc("/api/v1/memory", s.handleMemory)

	mux.HandleFunc("/api/v1/actions", s.handleActions)
	mux.HandleFunc("/api/v1/actions/stream", s.handleActionStream)
	mux.HandleFunc("/api/v1/actions/", s.handleAction)

	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/proposals", s.handleProposals)
	mux.HandleFunc("/api/v1/proposals/", s.handleProposalDecision)

	mux.HandleFunc("/api/v1/autopilot/run", s.handleAutopilotRun)

	mux.HandleFunc("/api/v1/logs", s.handleLogs)

	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "agenthub-api")

	return handler
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware records request metrics and a debug log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades hijack the connection; the recorder would
		// break the handshake.
		if r.URL.Path == "/api/v1/actions/stream" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(started)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, httpStatusLabel(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())

		s.logger.Debug("api", "Request handled", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
	})
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// corsMiddleware handles CORS headers and preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Security.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowed := range s.config.Security.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowed)
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token and attaches claims to the
// request context. Health, metrics and login stay open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" ||
			r.URL.Path == "/metrics" ||
			r.URL.Path == "/api/v1/auth/login" {
			next.ServeHTTP(w, r)
			return
		}

		if !s.config.Security.EnableAuth || s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			s.respondError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// bearerToken extracts the JWT from the Authorization header, falling back
// to the token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// resolveTenant returns the tenant the request operates on. With auth
// enabled the token's tenant wins over whatever the body or query says.
func (s *Server) resolveTenant(r *http.Request, requested string) string {
	if claims := requestClaims(r); claims != nil && claims.TenantID != "" {
		return claims.TenantID
	}
	return requested
}

// Helper functions

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a structured JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseJSON parses a JSON request body.
func (s *Server) parseJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// extractID extracts the first path segment after prefix.
func extractID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.TrimSuffix(id, "/")

	parts := strings.Split(id, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return id
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, _ := meta[key].(string)
	return v
}
