package api

import (
	"net/http"
	"strings"

	"github.com/staypro/agenthub/pkg/models"
)

// handleProposals handles GET /api/v1/proposals.
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tenantID := s.resolveTenant(r, r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	status := models.ProposalStatus(r.URL.Query().Get("status"))
	proposals, err := s.store.ListProposals(tenantID, status, queryInt(r, "limit", 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"proposals": proposals,
	})
}

// handleProposalDecision handles POST /api/v1/proposals/{id}/accept and
// POST /api/v1/proposals/{id}/reject. Accepting resolves the proposal first
// and only then dispatches, so a concurrent accept of the same proposal
// dispatches at most once.
func (s *Server) handleProposalDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/proposals/")
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		s.respondError(w, http.StatusBadRequest, "expected /api/v1/proposals/{id}/accept or .../reject")
		return
	}
	proposalID, verb := parts[0], parts[1]

	proposal, err := s.store.GetProposal(proposalID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}
	if claims := requestClaims(r); claims != nil && claims.TenantID != "" && claims.TenantID != proposal.TenantID {
		s.respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}

	switch verb {
	case "accept":
		resolved, err := s.store.ResolveProposal(proposalID, models.ProposalStatusAccepted)
		if err != nil {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}

		result, err := s.dispatcher.Dispatch(r.Context(), resolved.TenantID, resolved.Intent, resolved.Context)
		if err != nil && result == nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"proposal": resolved,
			"result":   result,
		})

	case "reject":
		resolved, err := s.store.ResolveProposal(proposalID, models.ProposalStatusRejected)
		if err != nil {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"proposal": resolved})

	default:
		s.respondError(w, http.StatusBadRequest, "unknown decision: "+verb)
	}
}
