package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/httpclient"
	"kaspas-storefront/internal/tokenstore"
)

type ProfileService struct {
	api       *api.Service
	tokens    *tokenstore.Store
	validator *validator.Validate
}

func NewProfileService(apiService *api.Service, tokens *tokenstore.Store) *ProfileService {
	return &ProfileService{
		api:       apiService,
		tokens:    tokens,
		validator: validator.New(),
	}
}

func (s *ProfileService) Get(ctx context.Context) (*domain.User, error) {
	resp, err := s.api.Get(ctx, "/user/getProfile")
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.cacheUser(ctx, resp)
}

func (s *ProfileService) Update(ctx context.Context, req *domain.UpdateProfileRequest) (*domain.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err)
	}

	resp, err := s.api.Put(ctx, "/user/updateProfile", req)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.cacheUser(ctx, resp)
}

func (s *ProfileService) cacheUser(ctx context.Context, resp *httpclient.Response) (*domain.User, error) {
	var data struct {
		User *domain.User `json:"user"`
	}
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if data.User == nil {
		return nil, fmt.Errorf("profile response has no user")
	}

	if err := s.tokens.SetUser(ctx, data.User); err != nil {
		return nil, fmt.Errorf("failed to cache user: %w", err)
	}
	return data.User, nil
}
