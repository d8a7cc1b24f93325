// Package apitest runs an in-process storefront API for tests. It speaks the
// same envelope and routes as the hosted backend and lets a test steer the
// authentication edge cases the client has to survive.
package apitest

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/pkg/jwt"
)

// AuthFailureMode selects how a rejected access token is reported.
type AuthFailureMode int

const (
	// FailWithStatus answers 401 with message "Unauthorized request".
	FailWithStatus AuthFailureMode = iota
	// FailWithMessage answers 200 with success=false and message
	// "Invalid Access Token".
	FailWithMessage
)

type account struct {
	user         domain.User
	passwordHash []byte
	verifyToken  string
}

type Server struct {
	*httptest.Server

	secret    string
	accessTTL time.Duration
	logger    *slog.Logger
	validator *validator.Validate
	origins   []string

	mu            sync.Mutex
	accounts      map[string]*account
	refreshTokens map[string]string
	revoked       map[string]bool
	issued        []string
	categories    []domain.Category
	products      []domain.Product
	orders        []orderRecord
	hits          map[string]int
	mode          AuthFailureMode
	rejectRefresh bool
	hold          chan struct{}

	refreshCalls int32
	logoutCalls  int32
}

type orderRecord struct {
	userID string
	order  domain.Order
}

type Option func(*Server)

func WithAuthFailureMode(mode AuthFailureMode) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins sets the origins granted credentialed CORS access.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		secret:        uuid.NewString(),
		accessTTL:     15 * time.Minute,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		validator:     validator.New(),
		origins:       []string{"*"},
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
		hits:          make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter()
	s.routes(router.PathPrefix("/api").Subrouter())
	s.Server = httptest.NewServer(s.cors(router))
	return s
}

// Start runs a server that is closed when tb finishes.
func Start(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := New(opts...)
	tb.Cleanup(s.Close)
	return s
}

// BaseURL is the API root clients should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// AddUser registers a verified account.
func (s *Server) AddUser(firstName, lastName, email, password string, role domain.Role) domain.User {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: hash password: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := &account{
		user: domain.User{
			ID:         uuid.NewString(),
			FirstName:  firstName,
			LastName:   lastName,
			Email:      email,
			Role:       role,
			IsVerified: true,
			CreatedAt:  time.Now(),
		},
		passwordHash: hashed,
	}
	s.accounts[email] = acc
	return acc.user
}

func (s *Server) AddCategory(name string) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Category{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	s.categories = append(s.categories, c)
	return c
}

func (s *Server) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	s.products = append(s.products, p)
	return p
}

func (s *Server) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...)
}

// Orders returns every order placed, guest orders included.
func (s *Server) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, rec := range s.orders {
		out = append(out, rec.order)
	}
	return out
}

// IssueTokens mints a session for the account with email without going
// through login.
func (s *Server) IssueTokens(email string) (domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		return domain.Credentials{}, fmt.Errorf("apitest: unknown account %s", email)
	}
	return s.issueLocked(acc.user.ID)
}

func (s *Server) issueLocked(userID string) (domain.Credentials, error) {
	access, err := jwt.GenerateToken(userID, s.accessTTL, s.secret)
	if err != nil {
		return domain.Credentials{}, err
	}
	refresh, err := jwt.GenerateRefreshToken(userID, 7*24*time.Hour, s.secret)
	if err != nil {
		return domain.Credentials{}, err
	}
	s.issued = append(s.issued, access)
	s.refreshTokens[refresh] = userID
	return domain.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// RevokeAccessTokens makes every access token issued so far fail
// authentication, as if they had expired.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.issued {
		s.revoked[token] = true
	}
}

// RejectRefresh makes the refresh endpoint refuse every refresh token.
func (s *Server) RejectRefresh(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRefresh = reject
}

// HoldRefresh parks refresh calls until the returned release func is
// called.
func (s *Server) HoldRefresh() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.hold = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) RefreshCalls() int {
	return int(atomic.LoadInt32(&s.refreshCalls))
}

func (s *Server) LogoutCalls() int {
	return int(atomic.LoadInt32(&s.logoutCalls))
}

// Hits reports how many requests reached path, relative to the API root.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits["/api"+path]
}

// VerificationToken returns the pending email verification token for email.
func (s *Server) VerificationToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[email]; ok {
		return acc.verifyToken
	}
	return ""
}
