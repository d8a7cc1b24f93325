package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-playground/validator/v10"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/tokenstore"
)

// AuthorizationClearer drops any Authorization header the client installed
// as a default.
type AuthorizationClearer interface {
	ClearAuthorization()
}

type AuthService struct {
	api       *api.Service
	tokens    *tokenstore.Store
	client    AuthorizationClearer
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAuthService(apiService *api.Service, tokens *tokenstore.Store, client AuthorizationClearer, logger *slog.Logger) *AuthService {
	return &AuthService{
		api:       apiService,
		tokens:    tokens,
		client:    client,
		validator: validator.New(),
		logger:    logger,
	}
}

// LoginResult carries the signed-in user and the page they land on.
type LoginResult struct {
	User    *domain.User
	Landing string
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err)
	}

	resp, err := s.api.Post(ctx, "/user/register", req, api.WithoutAuth())
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	var data struct {
		User *domain.User `json:"user"`
	}
	if err := resp.DecodeData(&data); err != nil {
		s.logger.Debug("register response carried no user", "error", err)
	}
	return data.User, nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err)
	}

	resp, err := s.api.Post(ctx, "/user/login", req, api.WithoutAuth())
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var login domain.LoginResponse
	if err := resp.DecodeData(&login); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if login.AccessToken == "" {
		return nil, fmt.Errorf("login response has no access token")
	}

	if err := s.tokens.SetTokens(ctx, login.AccessToken, login.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	if err := s.tokens.SetUser(ctx, login.User); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	landing := "/"
	if login.User.IsAdmin() {
		landing = "/admin"
	}

	s.logger.Info("logged in", "user_id", userIDOf(login.User))
	return &LoginResult{User: login.User, Landing: landing}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return invalid(errors.New("verification token is required"))
	}

	if _, err := s.api.Get(ctx, "/user/verify-email/"+url.PathEscape(token), api.WithoutAuth()); err != nil {
		return fmt.Errorf("email verification failed: %w", err)
	}
	return nil
}

// Logout tells the API to revoke the refresh token when one is held, then
// clears local credentials whether or not that call succeeded.
func (s *AuthService) Logout(ctx context.Context) error {
	refreshToken, err := s.tokens.RefreshToken(ctx)
	if err != nil {
		s.logger.Warn("failed to read refresh token", "error", err)
	}

	if refreshToken != "" {
		if _, err := s.api.Post(ctx, "/user/logout", domain.LogoutRequest{RefreshToken: refreshToken}); err != nil {
			s.logger.Warn("server logout failed", "error", err)
		}
	}

	s.client.ClearAuthorization()
	return errors.Join(s.tokens.ClearTokens(ctx), s.tokens.ClearUser(ctx))
}

func userIDOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
