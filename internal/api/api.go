package api

import (
	"context"
	"net/http"
	"net/url"

	"kaspas-storefront/internal/httpclient"
)

// Doer is the part of the HTTP client the facade forwards to.
type Doer interface {
	Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error)
}

type Option func(*httpclient.Request)

// WithParams merges query parameters into the request URL.
func WithParams(params url.Values) Option {
	return func(r *httpclient.Request) {
		if r.Params == nil {
			r.Params = make(url.Values)
		}
		for key, values := range params {
			r.Params[key] = append(r.Params[key], values...)
		}
	}
}

func WithParam(key, value string) Option {
	return func(r *httpclient.Request) {
		if r.Params == nil {
			r.Params = make(url.Values)
		}
		r.Params.Add(key, value)
	}
}

func WithHeader(key, value string) Option {
	return func(r *httpclient.Request) {
		if r.Headers == nil {
			r.Headers = make(http.Header)
		}
		r.Headers.Set(key, value)
	}
}

// WithoutAuth sends the request without credentials.
func WithoutAuth() Option {
	return func(r *httpclient.Request) {
		r.SkipAuth = true
	}
}

// WithMethod overrides the verb. Only meaningful for Upload, which defaults
// to POST.
func WithMethod(method string) Option {
	return func(r *httpclient.Request) {
		r.Method = method
	}
}

// Service exposes verb-shaped calls over the shared client. Responses and
// errors are returned exactly as the client produced them.
type Service struct {
	client Doer
}

func New(client Doer) *Service {
	return &Service{client: client}
}

func (s *Service) Get(ctx context.Context, url string, opts ...Option) (*httpclient.Response, error) {
	return s.do(ctx, http.MethodGet, url, nil, opts)
}

func (s *Service) Post(ctx context.Context, url string, data interface{}, opts ...Option) (*httpclient.Response, error) {
	return s.do(ctx, http.MethodPost, url, data, opts)
}

func (s *Service) Put(ctx context.Context, url string, data interface{}, opts ...Option) (*httpclient.Response, error) {
	return s.do(ctx, http.MethodPut, url, data, opts)
}

func (s *Service) Patch(ctx context.Context, url string, data interface{}, opts ...Option) (*httpclient.Response, error) {
	return s.do(ctx, http.MethodPatch, url, data, opts)
}

func (s *Service) Delete(ctx context.Context, url string, opts ...Option) (*httpclient.Response, error) {
	return s.do(ctx, http.MethodDelete, url, nil, opts)
}

func (s *Service) do(ctx context.Context, method, url string, data interface{}, opts []Option) (*httpclient.Response, error) {
	req := &httpclient.Request{
		Method: method,
		URL:    url,
		Data:   data,
	}
	for _, opt := range opts {
		opt(req)
	}
	// Verb helpers pin the method even if an option tried to change it.
	req.Method = method
	return s.client.Do(ctx, req)
}
