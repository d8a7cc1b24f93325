package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

const maxResponseBody = 10 << 20

// TokenStore is the credential persistence the client reads on every
// authenticated request and rewrites on refresh.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	ClearTokens(ctx context.Context) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RefreshPath is the credential refresh endpoint, called outside the
	// interceptors.
	RefreshPath string
	// SkipAuthPaths are matched as substrings of the request URL.
	SkipAuthPaths []string
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUnauthenticatedHandler registers the callback run when credentials
// cannot be recovered, typically a navigation to the login page.
func WithUnauthenticatedHandler(fn func(err error)) Option {
	return func(c *Client) {
		c.onUnauthenticated = fn
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// Client is the shared API client. It attaches bearer credentials and
// transparently refreshes them once when the API rejects a request.
type Client struct {
	baseURL       string
	refreshPath   string
	skipAuthPaths []string

	http   *http.Client
	tokens TokenStore
	gate   *refreshGate
	logger *slog.Logger

	onUnauthenticated func(err error)

	headersMu sync.RWMutex
	headers   http.Header
}

func New(cfg Config, tokens TokenStore, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/user/recreateAccessToken"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		refreshPath:   cfg.RefreshPath,
		skipAuthPaths: cfg.SkipAuthPaths,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		tokens:            tokens,
		gate:              newRefreshGate(),
		logger:            slog.Default(),
		onUnauthenticated: func(error) {},
		headers:           headers,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetDefaultHeader sets a header sent with every request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.headersMu.Lock()
	defer c.headersMu.Unlock()
	c.headers.Set(key, value)
}

// ClearAuthorization drops the default Authorization header installed by a
// refresh.
func (c *Client) ClearAuthorization() {
	c.headersMu.Lock()
	defer c.headersMu.Unlock()
	c.headers.Del("Authorization")
}

// PendingRefreshes reports how many requests are parked waiting for the
// in-flight refresh.
func (c *Client) PendingRefreshes() int {
	return c.gate.pending()
}

// Do dispatches req. API failures come back as *Error; transport failures
// and cancellations are returned unchanged.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeBody(req.Data)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := resolveURL(c.baseURL, req.URL, req.Params)
	if err != nil {
		return nil, err
	}

	cl := &call{
		req:           req,
		method:        method,
		url:           target,
		body:          body,
		contentType:   contentType,
		authenticated: !req.SkipAuth && !c.skipsAuth(req.URL),
	}

	resp, err := c.send(ctx, cl, "")
	if err != nil {
		return nil, err
	}

	return c.handleResponse(ctx, cl, resp)
}

// handleResponse is the response interceptor: it passes successes through
// and turns an authentication failure into one refresh-and-retry.
func (c *Client) handleResponse(ctx context.Context, cl *call, resp *Response) (*Response, error) {
	authFailure := resp.StatusCode == http.StatusUnauthorized || isAuthMessage(resp.Message())

	if !authFailure {
		if resp.StatusCode >= 400 {
			return nil, newError(resp)
		}
		return resp, nil
	}

	if !cl.authenticated || cl.retried {
		return nil, newError(resp)
	}
	cl.retried = true

	// A caller that gave up must not refresh on the way out.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A newer token may already be stored by a refresh that settled while
	// this request was on the wire.
	if current, _ := c.tokens.AccessToken(ctx); current != "" && current != cl.sentToken {
		return c.retry(ctx, cl, current)
	}

	token, err := c.gate.do(ctx, func() (string, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	return c.retry(ctx, cl, token)
}

func (c *Client) retry(ctx context.Context, cl *call, token string) (*Response, error) {
	resp, err := c.send(ctx, cl, token)
	if err != nil {
		return nil, err
	}
	return c.handleResponse(ctx, cl, resp)
}

// send is the request interceptor plus the dispatch. A non-empty token
// overrides the stored access token.
func (c *Client) send(ctx context.Context, cl *call, token string) (*Response, error) {
	var bodyReader io.Reader
	if cl.body != nil {
		bodyReader = bytes.NewReader(cl.body)
		if cl.req.OnUploadProgress != nil {
			bodyReader = &progressReader{r: bodyReader, total: int64(len(cl.body)), fn: cl.req.OnUploadProgress}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, cl.method, cl.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if cl.body != nil {
		httpReq.ContentLength = int64(len(cl.body))
	}

	c.headersMu.RLock()
	for key, values := range c.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	c.headersMu.RUnlock()

	if cl.contentType != "" {
		httpReq.Header.Set("Content-Type", cl.contentType)
	}
	for key, values := range cl.req.Headers {
		httpReq.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	c.authorize(ctx, cl, httpReq, token)

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("api request failed",
			"method", cl.method,
			"url", cl.req.URL,
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Info("api request",
		"method", cl.method,
		"url", cl.req.URL,
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
		"retry", cl.retried,
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		method:     cl.method,
		url:        cl.req.URL,
	}, nil
}

func (c *Client) authorize(ctx context.Context, cl *call, httpReq *http.Request, token string) {
	if !cl.authenticated {
		httpReq.Header.Del("Authorization")
		return
	}

	if token == "" {
		stored, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.logger.Debug("access token unavailable", "error", err)
		}
		token = stored
	}

	cl.sentToken = token
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) skipsAuth(target string) bool {
	for _, p := range c.skipAuthPaths {
		if p != "" && strings.Contains(target, p) {
			return true
		}
	}
	return false
}

// refresh exchanges the stored refresh token for a new pair. Any failure
// ends the session.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil || refreshToken == "" {
		if err != nil {
			c.logger.Warn("refresh token unavailable", "error", err)
		}
		c.expireSession(ctx, ErrNoRefreshToken)
		return "", ErrNoRefreshToken
	}

	accessToken, newRefreshToken, err := c.requestNewTokens(ctx, refreshToken)
	if err != nil {
		refreshErr := &RefreshError{Err: err}
		c.expireSession(ctx, refreshErr)
		return "", refreshErr
	}

	if err := c.tokens.SetTokens(ctx, accessToken, newRefreshToken); err != nil {
		c.logger.Warn("failed to persist refreshed tokens", "error", err)
	}
	c.SetDefaultHeader("Authorization", "Bearer "+accessToken)

	c.logger.Info("access token refreshed")
	return accessToken, nil
}

func (c *Client) requestNewTokens(ctx context.Context, refreshToken string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", "", err
	}

	target, err := resolveURL(c.baseURL, c.refreshPath, nil)
	if err != nil {
		return "", "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return "", "", err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return "", "", fmt.Errorf("failed to read refresh response: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		method:     http.MethodPost,
		url:        c.refreshPath,
	}
	if resp.StatusCode >= 400 {
		return "", "", newError(resp)
	}

	// Older API versions answer at the top level, newer ones in the envelope.
	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := resp.Decode(&tokens); err != nil || tokens.AccessToken == "" {
		if err := resp.DecodeData(&tokens); err != nil {
			return "", "", fmt.Errorf("invalid refresh response: %w", err)
		}
	}
	if tokens.AccessToken == "" {
		return "", "", fmt.Errorf("refresh response has no access token")
	}

	return tokens.AccessToken, tokens.RefreshToken, nil
}

func (c *Client) expireSession(ctx context.Context, reason error) {
	if err := c.tokens.ClearTokens(ctx); err != nil {
		c.logger.Warn("failed to clear tokens", "error", err)
	}
	c.ClearAuthorization()

	c.logger.Warn("session expired", "reason", reason)
	c.onUnauthenticated(reason)
}
