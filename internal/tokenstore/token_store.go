package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/storage"
)

const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
	UserKey         = "user"
)

// Store persists credentials and the cached user profile. It performs no
// validation of token contents.
type Store struct {
	storage storage.Storage
}

func New(s storage.Storage) *Store {
	return &Store{storage: s}
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, AccessTokenKey)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, RefreshTokenKey)
}

// SetTokens stores the access token and, when non-empty, the refresh token.
// An empty refresh token keeps the previously stored one.
func (s *Store) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.storage.Set(ctx, AccessTokenKey, accessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	if refreshToken != "" {
		if err := s.storage.Set(ctx, RefreshTokenKey, refreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}

	return nil
}

// ClearTokens removes both tokens. It attempts both deletes even if the
// first one fails.
func (s *Store) ClearTokens(ctx context.Context) error {
	errAccess := s.storage.Delete(ctx, AccessTokenKey)
	errRefresh := s.storage.Delete(ctx, RefreshTokenKey)
	if err := errors.Join(errAccess, errRefresh); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// User returns the cached profile, or nil when none is cached.
func (s *Store) User(ctx context.Context) (*domain.User, error) {
	raw, err := s.get(ctx, UserKey)
	if err != nil || raw == "" {
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &user, nil
}

func (s *Store) SetUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return s.ClearUser(ctx)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	if err := s.storage.Set(ctx, UserKey, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *Store) ClearUser(ctx context.Context) error {
	if err := s.storage.Delete(ctx, UserKey); err != nil {
		return fmt.Errorf("failed to clear user: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	value, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}
