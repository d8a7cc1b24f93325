package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/domain"
)

// ProductQuery filters the public product listing. Zero values are left
// off the query string; a Category of "all" means no category filter.
type ProductQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
	Featured bool
}

func (q ProductQuery) values() url.Values {
	v := pageValues(q.Page, q.Limit)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" && q.Category != "all" {
		v.Set("category", q.Category)
	}
	if q.Featured {
		v.Set("isFeatured", "true")
	}
	return v
}

// Menu is everything the menu page renders: the category filter and the
// current page of products.
type Menu struct {
	Categories []domain.Category
	Products   *domain.ProductPage
}

type CatalogService struct {
	api *api.Service
}

func NewCatalogService(apiService *api.Service) *CatalogService {
	return &CatalogService{api: apiService}
}

func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	resp, err := s.api.Get(ctx, "/category/getAllCategories")
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var data struct {
		Categories []domain.Category `json:"categories"`
	}
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return data.Categories, nil
}

func (s *CatalogService) Products(ctx context.Context, q ProductQuery) (*domain.ProductPage, error) {
	resp, err := s.api.Get(ctx, "/product/getProductsForUser", api.WithParams(q.values()))
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	var page domain.ProductPage
	if err := resp.DecodeData(&page); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return &page, nil
}

// Menu loads categories and products concurrently. Either failure cancels
// the other request.
func (s *CatalogService) Menu(ctx context.Context, q ProductQuery) (*Menu, error) {
	g, ctx := errgroup.WithContext(ctx)
	menu := &Menu{}

	g.Go(func() error {
		categories, err := s.Categories(ctx)
		menu.Categories = categories
		return err
	})
	g.Go(func() error {
		products, err := s.Products(ctx, q)
		menu.Products = products
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return menu, nil
}

func pageValues(page, limit int) url.Values {
	v := make(url.Values)
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}
