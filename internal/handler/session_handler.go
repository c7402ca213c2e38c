package handler

import (
	"log"
	"net/http"

	"willcloud/internal/auth"
	"willcloud/internal/service"
)

type SessionHandler struct {
	sessions *service.Sessions
	lookup   sessionLookup
}

func NewSessionHandler(sessions *service.Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions, lookup: tokenSessions{sessions: sessions}}
}

// SignIn establishes a session for the bearer token and returns the dashboard.
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	d, err := h.sessions.Establish(r.Context(), token)
	if err != nil {
		log.Printf("[Auth] sign-in failed: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, d.View())
}

// SignOut ends the session and revokes its token.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.End(r.Context(), token); err != nil {
		log.Printf("[Auth] sign-out failed: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDashboard returns the current dashboard state without re-fetching.
func (h *SessionHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.lookup, w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, d.View())
}

// RefreshDashboard bumps the refresh trigger and re-fetches.
func (h *SessionHandler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.lookup, w, r)
	if !ok {
		return
	}

	d.Refresh(r.Context())
	writeJSON(w, http.StatusOK, d.View())
}
