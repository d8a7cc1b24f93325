package session

import (
	"context"
	"fmt"
	"time"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/tokenstore"
	"kaspas-storefront/pkg/jwt"
)

// State is a read-only view of the locally persisted session.
type State struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string

	// IsAuthenticated is true while a user profile is cached, regardless of
	// token freshness; the client refreshes stale tokens on demand.
	IsAuthenticated bool
	IsAdmin         bool

	// AccessExpiresAt is zero when the access token is absent or carries no
	// readable expiry.
	AccessExpiresAt time.Time
}

type Reader struct {
	tokens *tokenstore.Store
}

func NewReader(tokens *tokenstore.Store) *Reader {
	return &Reader{tokens: tokens}
}

func (r *Reader) Current(ctx context.Context) (State, error) {
	user, err := r.tokens.User(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to read cached user: %w", err)
	}
	access, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := r.tokens.RefreshToken(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to read refresh token: %w", err)
	}

	st := State{
		User:            user,
		AccessToken:     access,
		RefreshToken:    refresh,
		IsAuthenticated: user != nil,
		IsAdmin:         user.IsAdmin(),
	}
	if access != "" {
		if exp, err := jwt.ExpiresAt(access); err == nil {
			st.AccessExpiresAt = exp
		}
	}
	return st, nil
}

// Expired reports whether the access token is known to have expired at now.
func (s State) Expired(now time.Time) bool {
	return !s.AccessExpiresAt.IsZero() && !now.Before(s.AccessExpiresAt)
}
