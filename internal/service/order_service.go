package service

import (
	"context"
	"fmt"
	"net/url"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/domain"
)

type OrderQuery struct {
	Page   int
	Limit  int
	Status domain.OrderStatus
}

func (q OrderQuery) values() url.Values {
	v := pageValues(q.Page, q.Limit)
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

type OrderService struct {
	api *api.Service
}

func NewOrderService(apiService *api.Service) *OrderService {
	return &OrderService{api: apiService}
}

func (s *OrderService) Create(ctx context.Context, req *domain.CreateOrderRequest) (*domain.Order, error) {
	resp, err := s.api.Post(ctx, "/order/create", req)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	var data struct {
		Order *domain.Order `json:"order"`
	}
	if err := resp.DecodeData(&data); err != nil || data.Order == nil {
		return nil, fmt.Errorf("failed to decode order: %w", errOrMissing(err, "order"))
	}
	return data.Order, nil
}

func (s *OrderService) UserOrders(ctx context.Context, q OrderQuery) (*domain.OrderPage, error) {
	return listOrders(ctx, s.api, "/order/getUserOrders", q)
}

func listOrders(ctx context.Context, apiService *api.Service, path string, q OrderQuery) (*domain.OrderPage, error) {
	resp, err := apiService.Get(ctx, path, api.WithParams(q.values()))
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	var page domain.OrderPage
	if err := resp.DecodeData(&page); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return &page, nil
}

func errOrMissing(err error, what string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("response has no %s", what)
}
