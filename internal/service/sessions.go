package service

import (
	"context"
	"sync"
	"time"

	"willcloud/internal/auth"
)

// Sessions keeps one Dashboard per established session.
type Sessions struct {
	provider *auth.Provider
	uploads  *UploadService
	listing  *ListingService
	users    UserStore
	interval time.Duration

	mu     sync.Mutex
	active map[string]*Dashboard
}

func NewSessions(provider *auth.Provider, uploads *UploadService, listing *ListingService, users UserStore, interval time.Duration) *Sessions {
	return &Sessions{
		provider: provider,
		uploads:  uploads,
		listing:  listing,
		users:    users,
		interval: interval,
		active:   make(map[string]*Dashboard),
	}
}

// Establish signs the token in and starts its dashboard. Signing in again
// with the same token returns the running dashboard.
func (s *Sessions) Establish(ctx context.Context, token string) (*Dashboard, error) {
	_, sessionID, err := s.provider.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	existing, ok := s.active[sessionID]
	s.mu.Unlock()
	if ok {
		return existing, nil
	}

	sess, err := s.provider.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	d := NewDashboard(sess, s.uploads, s.listing, s.users, s.interval)
	d.FetchFiles(ctx)

	s.mu.Lock()
	if existing, ok := s.active[sess.ID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.active[sess.ID] = d
	s.mu.Unlock()

	d.Start(context.Background(), func() { s.forget(sess.ID, d) })

	return d, nil
}

// Lookup returns the dashboard of an established session.
func (s *Sessions) Lookup(ctx context.Context, token string) (*Dashboard, error) {
	_, sessionID, err := s.provider.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	d, ok := s.active[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, auth.ErrNoSession
	}

	return d, nil
}

// End signs the session out and stops its dashboard.
func (s *Sessions) End(ctx context.Context, token string) error {
	d, err := s.Lookup(ctx, token)
	if err != nil {
		return err
	}

	s.forget(d.Session().ID, d)
	d.Stop()

	return s.provider.SignOut(ctx, d.Session())
}

// Close stops every dashboard without revoking tokens.
func (s *Sessions) Close() {
	s.mu.Lock()
	dashboards := make([]*Dashboard, 0, len(s.active))
	for id, d := range s.active {
		dashboards = append(dashboards, d)
		delete(s.active, id)
	}
	s.mu.Unlock()

	for _, d := range dashboards {
		d.Stop()
	}
}

// Len reports the number of established sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Sessions) forget(id string, d *Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[id] == d {
		delete(s.active, id)
	}
}
