package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"willcloud/internal/auth"
	"willcloud/internal/service"
)

// sessionLookup resolves the dashboard behind a request's bearer token.
type sessionLookup interface {
	Lookup(r *http.Request) (*service.Dashboard, error)
}

type tokenSessions struct {
	sessions *service.Sessions
}

func (t tokenSessions) Lookup(r *http.Request) (*service.Dashboard, error) {
	token, err := auth.BearerToken(r)
	if err != nil {
		return nil, err
	}
	return t.sessions.Lookup(r.Context(), token)
}

func dashboardFor(lookup sessionLookup, w http.ResponseWriter, r *http.Request) (*service.Dashboard, bool) {
	d, err := lookup.Lookup(r)
	if err != nil {
		log.Printf("[Auth] %s %s rejected: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// statusFor maps workflow errors to HTTP statuses; the body keeps the free-text message.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotConfirmed):
		return http.StatusConflict
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoUser),
		errors.Is(err, auth.ErrNoToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrRevoked),
		errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
