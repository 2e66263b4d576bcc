package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/catalog"
	"github.com/hanko-field/storefront/internal/handlers"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/events"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/kv"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/session"
)

const readinessProbeKey = "readyz"

// Container wires storage, the catalog, sessions and optional publishers for runtime use.
type Container struct {
	Config    config.Config
	Logger    *zap.Logger
	Storage   kv.Store
	Catalog   *catalog.Catalog
	Sessions  *session.Manager
	Registry  *session.Registry
	Publisher *events.PubSubOrderPublisher
	BuildInfo handlers.BuildInfo

	catalogOpts []catalog.LoaderOption
	closers     []func() error
}

// Option customises container construction.
type Option func(*Container)

// WithStorage overrides the storage backend selected by configuration.
func WithStorage(store kv.Store) Option {
	return func(c *Container) {
		c.Storage = store
	}
}

// WithCatalogOptions forwards options to the catalog loader.
func WithCatalogOptions(opts ...catalog.LoaderOption) Option {
	return func(c *Container) {
		c.catalogOpts = append(c.catalogOpts, opts...)
	}
}

// WithBuildInfo sets the build metadata reported by health checks.
func WithBuildInfo(info handlers.BuildInfo) Option {
	return func(c *Container) {
		c.BuildInfo = info
	}
}

// NewContainer constructs the runtime dependencies. On error every resource opened so far is released.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (c *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c = &Container{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	if c.Storage == nil {
		if c.Storage, err = c.buildStorage(); err != nil {
			return c, err
		}
	}

	loaderOpts := append([]catalog.LoaderOption{catalog.WithLogger(logger.Named("catalog"))}, c.catalogOpts...)
	if c.Catalog, err = catalog.Load(ctx, cfg.Catalog.Source, loaderOpts...); err != nil {
		return c, fmt.Errorf("load catalog: %w", err)
	}

	if c.Sessions, err = c.buildSessions(); err != nil {
		return c, err
	}

	c.Registry, err = session.NewRegistry(session.RegistryDeps{
		Storage:     c.Storage,
		Logger:      logger.Named("session"),
		IdleTimeout: cfg.Session.IdleTimeout,
	})
	if err != nil {
		return c, fmt.Errorf("build session registry: %w", err)
	}

	if err = c.buildPublisher(ctx); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Container) buildStorage() (kv.Store, error) {
	cfg := c.Config.Storage
	switch cfg.Backend {
	case "", config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendFile:
		store, err := kv.NewFileStore(cfg.FileDir)
		if err != nil {
			return nil, fmt.Errorf("build file storage: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, client.Close)
		return kv.NewRedisStore(client, cfg.Redis.Prefix, cfg.Redis.TTL), nil
	case config.BackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		c.closers = append(c.closers, provider.Close)
		return kv.NewFirestoreStore(provider, cfg.Firestore.Collection), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (c *Container) buildSessions() (*session.Manager, error) {
	cfg := c.Config.Session
	hashKey := []byte(cfg.HashKey)
	if len(hashKey) == 0 {
		// Only reachable locally; sessions do not survive a restart.
		c.Logger.Warn("session hash key not configured; using an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	manager, err := session.NewManager(session.Config{
		CookieName:   cfg.CookieName,
		HashKey:      hashKey,
		BlockKey:     []byte(cfg.BlockKey),
		CookieSecure: cfg.Secure,
		Lifetime:     cfg.Lifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("build session manager: %w", err)
	}
	return manager, nil
}

func (c *Container) buildPublisher(ctx context.Context) error {
	cfg := c.Config.Events
	topicName := strings.TrimSpace(cfg.OrderTopic)
	if topicName == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	c.closers = append(c.closers, func() error {
		topic.Stop()
		return client.Close()
	})
	publisher, err := events.NewPubSubOrderPublisher(topic)
	if err != nil {
		return err
	}
	c.Publisher = publisher
	return nil
}

// Router assembles the HTTP handler with the shared middleware chain.
func (c *Container) Router() http.Handler {
	currency := c.Config.Storefront.Currency

	var checkoutOpts []handlers.CheckoutOption
	if c.Publisher != nil {
		checkoutOpts = append(checkoutOpts, handlers.WithOrderPublisher(c.Publisher))
	}

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(c.BuildInfo),
		handlers.WithReadinessCheck("storage", c.storageReady),
	)

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.InjectLoggerMiddleware(c.Logger.Named("http")),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(c.Logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithAPIMiddlewares(session.Middleware(c.Sessions, c.Registry)),
		handlers.WithProductRoutes(handlers.NewProductHandlers(c.Catalog, currency).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(c.Catalog, currency).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(currency, checkoutOpts...).Routes),
	)
}

func (c *Container) storageReady(ctx context.Context) error {
	_, err := c.Storage.Get(ctx, readinessProbeKey)
	if err == nil || errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	return err
}

// SweepIdle releases workspaces idle past the configured timeout.
func (c *Container) SweepIdle(now time.Time) int {
	if c == nil || c.Registry == nil {
		return 0
	}
	return c.Registry.Sweep(now)
}

// Close releases backend clients in reverse order of construction.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
