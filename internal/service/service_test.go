package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/apitest"
	"kaspas-storefront/internal/cart"
	"kaspas-storefront/internal/domain"
	"kaspas-storefront/internal/httpclient"
	"kaspas-storefront/internal/session"
	"kaspas-storefront/internal/storage"
	"kaspas-storefront/internal/tokenstore"
)

type harness struct {
	srv       *apitest.Server
	store     *storage.MemoryStorage
	tokens    *tokenstore.Store
	client    *httpclient.Client
	api       *api.Service
	cart      *cart.Store
	session   *session.Reader
	logger    *slog.Logger
	redirects int32
}

func newHarness(t *testing.T, opts ...apitest.Option) *harness {
	t.Helper()

	h := &harness{
		srv:    apitest.Start(t, opts...),
		store:  storage.NewMemoryStorage(),
		logger: discardLogger(),
	}
	h.tokens = tokenstore.New(h.store)
	h.session = session.NewReader(h.tokens)

	client, err := httpclient.New(httpclient.Config{
		BaseURL:       h.srv.BaseURL(),
		Timeout:       5 * time.Second,
		SkipAuthPaths: []string{"/user/login", "/user/register", "user/verify-email"},
	}, h.tokens,
		httpclient.WithLogger(h.logger),
		httpclient.WithUnauthenticatedHandler(func(error) { atomic.AddInt32(&h.redirects, 1) }),
	)
	if err != nil {
		t.Fatalf("httpclient.New() error = %v", err)
	}
	h.client = client
	h.api = api.New(client)

	c, err := cart.Open(context.Background(), h.store, h.logger)
	if err != nil {
		t.Fatalf("cart.Open() error = %v", err)
	}
	h.cart = c
	return h
}

// signIn stores a fresh session for email as a login would.
func (h *harness) signIn(t *testing.T, email string, user domain.User) {
	t.Helper()
	ctx := context.Background()

	creds, err := h.srv.IssueTokens(email)
	if err != nil {
		t.Fatalf("IssueTokens() error = %v", err)
	}
	if err := h.tokens.SetTokens(ctx, creds.AccessToken, creds.RefreshToken); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}
	if err := h.tokens.SetUser(ctx, &user); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
}

func (h *harness) accessToken(t *testing.T) string {
	t.Helper()
	token, err := h.tokens.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	return token
}

func (h *harness) redirectCount() int {
	return int(atomic.LoadInt32(&h.redirects))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
