package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/httpclient"
)

// Image is a product picture to upload.
type Image struct {
	Name    string
	Content io.Reader
}

// AdminService backs the back-office pages. The API rejects non-admin
// callers with 403.
type AdminService struct {
	api       *api.Service
	validator *validator.Validate
}

func NewAdminService(apiService *api.Service) *AdminService {
	return &AdminService{
		api:       apiService,
		validator: validator.New(),
	}
}

func (s *AdminService) Users(ctx context.Context) ([]domain.User, error) {
	resp, err := s.api.Get(ctx, "/user/getAllUsers")
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	var data struct {
		Users []domain.User `json:"users"`
	}
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return data.Users, nil
}

func (s *AdminService) CreateProduct(ctx context.Context, input *domain.ProductInput, image Image, onProgress httpclient.ProgressFunc) (*domain.Product, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, invalid(err)
	}
	if image.Content == nil {
		return nil, invalid(errors.New("product image is required"))
	}

	form := &api.Form{
		Fields: map[string]string{
			"title":       input.Title,
			"description": input.Description,
			"price":       strconv.FormatFloat(input.Price, 'f', -1, 64),
			"category":    input.Category,
			"isFeatured":  strconv.FormatBool(input.IsFeatured),
			"stock":       strconv.Itoa(input.Stock),
		},
		Files: []api.FormFile{{Field: "image", Name: image.Name, Content: image.Content}},
	}

	resp, err := s.api.Upload(ctx, "/product/create", form, onProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return decodeProduct(resp)
}

func (s *AdminService) UpdateProduct(ctx context.Context, id string, input *domain.ProductInput) (*domain.Product, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, invalid(err)
	}

	resp, err := s.api.Put(ctx, "/product/update/"+url.PathEscape(id), input)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return decodeProduct(resp)
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.api.Delete(ctx, "/product/delete/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *AdminService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	c := &domain.Category{Name: name, Description: description}
	if err := s.validator.Struct(c); err != nil {
		return nil, invalid(err)
	}

	resp, err := s.api.Post(ctx, "/category/create", c)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	var data struct {
		Category *domain.Category `json:"category"`
	}
	if err := resp.DecodeData(&data); err != nil || data.Category == nil {
		return nil, fmt.Errorf("failed to decode category: %w", errOrMissing(err, "category"))
	}
	return data.Category, nil
}

func (s *AdminService) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.api.Delete(ctx, "/category/delete/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *AdminService) Orders(ctx context.Context, q OrderQuery) (*domain.OrderPage, error) {
	return listOrders(ctx, s.api, "/order/getAllOrders", q)
}

func (s *AdminService) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, invalid(fmt.Errorf("unknown order status %q", status))
	}

	resp, err := s.api.Patch(ctx, "/order/updateStatus/"+url.PathEscape(id), map[string]domain.OrderStatus{"status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	var data struct {
		Order *domain.Order `json:"order"`
	}
	if err := resp.DecodeData(&data); err != nil || data.Order == nil {
		return nil, fmt.Errorf("failed to decode order: %w", errOrMissing(err, "order"))
	}
	return data.Order, nil
}

func (s *AdminService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	resp, err := s.api.Get(ctx, "/analytics/dashboard")
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	var d domain.Dashboard
	if err := resp.DecodeData(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard: %w", err)
	}
	return &d, nil
}

func decodeProduct(resp *httpclient.Response) (*domain.Product, error) {
	var data struct {
		Product *domain.Product `json:"product"`
	}
	if err := resp.DecodeData(&data); err != nil || data.Product == nil {
		return nil, fmt.Errorf("failed to decode product: %w", errOrMissing(err, "product"))
	}
	return data.Product, nil
}
