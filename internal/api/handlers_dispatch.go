package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// DispatchRequest is the body of POST /api/v1/dispatch. user_id is accepted
// as a legacy alias of tenant_id.
type DispatchRequest struct {
	TenantID string         `json:"tenant_id"`
	UserID   string         `json:"user_id"`
	Intent   string         `json:"intent"`
	Context  map[string]any `json:"context"`
}

func (req *DispatchRequest) tenant() string {
	if req.TenantID != "" {
		return req.TenantID
	}
	return req.UserID
}

// handleDispatch handles POST /api/v1/dispatch.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req DispatchRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tenantID := s.resolveTenant(r, req.tenant())
	if tenantID == "" || req.Intent == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id and intent are required")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), tenantID, req.Intent, req.Context)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownIntent) || errors.Is(err, dispatch.ErrUnsupportedIntent) {
			// The ledger row exists and is marked errored; the caller
			// still gets a client error with the action reference.
			s.respondJSON(w, http.StatusBadRequest, result)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
}

// handleClassify handles POST /api/v1/classify.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ClassifyRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tenantID := s.resolveTenant(r, req.TenantID)
	if tenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	intent := s.classifier.Classify(r.Context(), tenantID, req.Message)
	s.respondJSON(w, http.StatusOK, map[string]string{"intent": intent})
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	TenantID string         `json:"tenant_id"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context"`
}

// handleChat classifies a free-text message and either dispatches the intent
// (aggressive mode) or parks it as a proposal awaiting confirmation (assist
// mode, the default).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tenantID := s.resolveTenant(r, req.TenantID)
	if tenantID == "" || req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id and message are required")
		return
	}

	intent := s.classifier.Classify(r.Context(), tenantID, req.Message)
	if intent == models.IntentUnknown {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"intent":  intent,
			"message": "I could not map that request to a known action. Try rephrasing it.",
		})
		return
	}

	state, err := s.store.GetTenantState(tenantID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reqCtx := req.Context
	if reqCtx == nil {
		reqCtx = map[string]any{}
	}
	reqCtx["message"] = req.Message

	if state.AIMode == models.AIModeAggressive {
		result, err := s.dispatcher.Dispatch(r.Context(), tenantID, intent, reqCtx)
		if err != nil && result == nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"intent": intent,
			"mode":   "dispatched",
			"result": result,
		})
		return
	}

	proposal := &models.Proposal{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		Intent:         intent,
		Context:        reqCtx,
		Status:         models.ProposalStatusWaiting,
		SuggestionText: fmt.Sprintf("Run the %s agent for: %s", intent, req.Message),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateProposal(proposal); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"intent":   intent,
		"mode":     "proposed",
		"proposal": proposal,
	})
}
