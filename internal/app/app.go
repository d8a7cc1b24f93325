package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/redis/go-redis/v9"

	"kaspas-storefront/internal/api"
	"kaspas-storefront/internal/cart"
	"kaspas-storefront/internal/config"
	"kaspas-storefront/internal/httpclient"
	"kaspas-storefront/internal/service"
	"kaspas-storefront/internal/session"
	"kaspas-storefront/internal/storage"
	"kaspas-storefront/internal/tokenstore"
)

// RedirectFunc is told where to send the user once their session cannot be
// recovered.
type RedirectFunc func(loginPath string, reason error)

type Option func(*options)

type options struct {
	logger   *slog.Logger
	storage  storage.Storage
	redirect RedirectFunc
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStorage bypasses the configured backend.
func WithStorage(s storage.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

func WithLoginRedirect(fn RedirectFunc) Option {
	return func(o *options) {
		o.redirect = fn
	}
}

// App is the storefront client assembled from configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Storage storage.Storage
	Tokens  *tokenstore.Store
	Client  *httpclient.Client
	API     *api.Service
	Cart    *cart.Store
	Session *session.Reader

	Auth     *service.AuthService
	Profile  *service.ProfileService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Checkout *service.CheckoutService
	Admin    *service.AdminService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}))
	}
	if o.redirect == nil {
		o.redirect = func(string, error) {}
	}

	a := &App{Config: cfg, Logger: o.logger}

	a.Storage = o.storage
	if a.Storage == nil {
		s, closer, err := OpenStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.Storage = s
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.Tokens = tokenstore.New(a.Storage)
	a.Session = session.NewReader(a.Tokens)

	loginPath := cfg.API.LoginPath
	client, err := httpclient.New(httpclient.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		RefreshPath:   cfg.API.RefreshPath,
		SkipAuthPaths: cfg.API.SkipAuthPaths,
	}, a.Tokens,
		httpclient.WithLogger(a.Logger),
		httpclient.WithUnauthenticatedHandler(func(reason error) {
			if err := a.Tokens.ClearUser(context.Background()); err != nil {
				a.Logger.Warn("failed to clear cached user", "error", err)
			}
			o.redirect(loginPath, reason)
		}),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	a.Client = client
	a.API = api.New(client)

	a.Cart, err = cart.Open(ctx, a.Storage, a.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Auth = service.NewAuthService(a.API, a.Tokens, a.Client, a.Logger)
	a.Profile = service.NewProfileService(a.API, a.Tokens)
	a.Catalog = service.NewCatalogService(a.API)
	a.Orders = service.NewOrderService(a.API)
	a.Checkout = service.NewCheckoutService(a.Orders, a.Cart, a.Session, a.Logger)
	a.Admin = service.NewAdminService(a.API)

	return a, nil
}

// Logout ends the session and wipes every piece of persisted local state,
// the cart included.
func (a *App) Logout(ctx context.Context) error {
	return errors.Join(a.Auth.Logout(ctx), a.Cart.Clear(ctx))
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStorage connects the configured persistence backend. The returned
// closer is nil for backends that hold no connection.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, func() error, error) {
	switch cfg.Backend {
	case config.BackendCouch:
		client, err := kivik.New("couch", cfg.Couch.URL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}
		s, err := storage.NewCouchStorage(ctx, client, cfg.Couch.Name)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return storage.NewRedisStorage(client, cfg.Redis.Prefix), client.Close, nil

	case config.BackendMemory, "":
		return storage.NewMemoryStorage(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
