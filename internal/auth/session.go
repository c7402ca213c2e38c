package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"willcloud/internal/domain"
)

// Session is the signed-in context every workflow call receives. It is
// established by SignIn and ends with SignOut.
type Session struct {
	ID            string
	UserID        string
	Email         string
	ExpiresAt     time.Time
	EstablishedAt time.Time
	// User is the record as loaded at sign-in.
	User *domain.User
}

// UserResolver loads the user record for a verified identity.
type UserResolver interface {
	GetOrCreate(ctx context.Context, id, email string) (*domain.User, error)
}

// Provider is the session provider: it turns bearer tokens into sessions.
type Provider struct {
	verifier    *Verifier
	revocations Revocations
	users       UserResolver
	now         func() time.Time
}

func NewProvider(verifier *Verifier, revocations Revocations, users UserResolver) *Provider {
	return &Provider{
		verifier:    verifier,
		revocations: revocations,
		users:       users,
		now:         time.Now,
	}
}

// Authenticate verifies the token and returns its claims and session id.
func (p *Provider) Authenticate(ctx context.Context, token string) (*Claims, string, error) {
	claims, err := p.verifier.Verify(token)
	if err != nil {
		return nil, "", err
	}

	sessionID := claims.SessionID(token)
	revoked, err := p.revocations.IsRevoked(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if revoked {
		return nil, "", ErrRevoked
	}

	return claims, sessionID, nil
}

// SignIn establishes a session and loads the current user record.
func (p *Provider) SignIn(ctx context.Context, token string) (*Session, error) {
	claims, sessionID, err := p.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := p.users.GetOrCreate(ctx, claims.Subject, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	log.Printf("[Auth] session %s established for user %s", shortID(sessionID), user.ID)

	return &Session{
		ID:            sessionID,
		UserID:        user.ID,
		Email:         user.Email,
		ExpiresAt:     expiresAt,
		EstablishedAt: p.now(),
		User:          user,
	}, nil
}

// SignOut revokes the session's token for the rest of its lifetime.
func (p *Provider) SignOut(ctx context.Context, sess *Session) error {
	until := sess.ExpiresAt
	if until.IsZero() {
		until = p.now().Add(24 * time.Hour)
	}
	if err := p.revocations.Revoke(ctx, sess.ID, until); err != nil {
		return err
	}

	log.Printf("[Auth] session %s signed out", shortID(sess.ID))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
