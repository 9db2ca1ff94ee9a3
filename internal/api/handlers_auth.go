package api

import (
	"net/http"
)

// handleLogin handles POST /api/v1/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.auth == nil {
		s.respondError(w, http.StatusNotImplemented, "Authentication is disabled")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleCreateUser handles POST /api/v1/auth/users. With auth enabled only
// admins may create accounts.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.auth == nil {
		s.respondError(w, http.StatusNotImplemented, "Authentication is disabled")
		return
	}

	if claims := requestClaims(r); s.config.Security.EnableAuth && (claims == nil || claims.Role != "admin") {
		s.respondError(w, http.StatusForbidden, "Admin role required")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		TenantID string `json:"tenant_id"`
		Role     string `json:"role"`
	}
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.auth.CreateUser(req.Username, req.Password, req.TenantID, req.Role)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}
