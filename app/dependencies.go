package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/config"
	"github.com/ai-search-guru/getcito/internal/observability"
	"github.com/ai-search-guru/getcito/middleware"
	"github.com/ai-search-guru/getcito/repositories"
	"github.com/ai-search-guru/getcito/repositories/memory"
	"github.com/ai-search-guru/getcito/repositories/postgres"
	"github.com/ai-search-guru/getcito/repositories/redis"
	"github.com/ai-search-guru/getcito/repositories/sqlite"
	"github.com/ai-search-guru/getcito/services/providers"
	"github.com/ai-search-guru/getcito/services/providers/anthropic"
	"github.com/ai-search-guru/getcito/services/providers/dataforseo"
	"github.com/ai-search-guru/getcito/services/providers/openai"
	"github.com/ai-search-guru/getcito/services/providers/perplexity"
	"github.com/ai-search-guru/getcito/services/query"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Persistence
	Store   repositories.DocumentStore
	Queries repositories.QueryRepository

	// Providers
	Registry *providers.Registry
	Manager  *providers.Manager

	// Services
	QueryService *query.Service

	// AuthMiddleware is nil when bearer auth is disabled
	AuthMiddleware *middleware.AuthMiddleware

	shutdownTracer observability.ShutdownFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize tracing first so provider clients pick up the global provider
	shutdown, err := observability.InitTracer(cfg.Observability.ServiceName, cfg.Observability.TracingEnabled, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	deps.shutdownTracer = shutdown

	if err := deps.initStore(ctx, cfg.Store); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := deps.initProviders(cfg.Providers); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.Queries = repositories.NewQueryRepository(deps.Store)
	deps.QueryService = query.NewService(deps.Manager, deps.Queries, logger)

	deps.initAuth(cfg.Auth)

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("available_providers", deps.Manager.GetAvailableProviders()))
	return deps, nil
}

// initStore opens the document store selected by the driver setting
func (d *Dependencies) initStore(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Driver {
	case config.StoreMemory, "":
		d.Store = memory.NewStore()
		d.Logger.Warn("using in-memory document store, query records are lost on restart")

	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.Store = store

	case config.StoreSQLite:
		store, err := sqlite.New(cfg.SQLite.Path, d.Logger)
		if err != nil {
			return err
		}
		d.Store = store

	case config.StoreRedis:
		store, err := redis.New(ctx, cfg.Redis, d.Logger)
		if err != nil {
			return err
		}
		d.Store = store

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	d.Logger.Info("document store initialized", zap.String("driver", cfg.Driver))
	return nil
}

// initProviders registers every adapter; adapters without credentials stay
// registered so their status is reported, but they are never dispatched
func (d *Dependencies) initProviders(cfg config.ProvidersConfig) error {
	flatRate := decimal.Zero
	if cfg.DataForSEO.FlatRate != "" {
		rate, err := decimal.NewFromString(cfg.DataForSEO.FlatRate)
		if err != nil {
			return fmt.Errorf("invalid DataForSEO flat rate %q: %w", cfg.DataForSEO.FlatRate, err)
		}
		flatRate = rate
	}

	registry, err := providers.NewRegistryBuilder().
		WithProvider(openai.NewAdapter(openai.Config{
			ProviderConfig:    providerConfig(cfg.OpenAI.ProviderSettings),
			Organization:      cfg.OpenAI.Organization,
			WebSearch:         cfg.OpenAI.WebSearch,
			SearchContextSize: cfg.OpenAI.SearchContextSize,
		}, newHTTPClient(), d.Logger.Named("openai"))).
		WithProvider(perplexity.NewAdapter(perplexity.Config{
			ProviderConfig:      providerConfig(cfg.Perplexity.ProviderSettings),
			SearchRecencyFilter: cfg.Perplexity.SearchRecencyFilter,
		}, newHTTPClient(), d.Logger.Named("perplexity"))).
		WithProvider(dataforseo.NewAdapter(dataforseo.Config{
			ProviderConfig: providerConfig(cfg.DataForSEO.ProviderSettings),
			Login:          cfg.DataForSEO.Login,
			Password:       cfg.DataForSEO.Password,
			Location:       cfg.DataForSEO.Location,
			Language:       cfg.DataForSEO.Language,
			Device:         cfg.DataForSEO.Device,
			Depth:          cfg.DataForSEO.Depth,
			FlatRate:       flatRate,
		}, newHTTPClient(), d.Logger.Named("dataforseo"))).
		WithProvider(anthropic.NewAdapter(anthropic.Config{
			ProviderConfig: providerConfig(cfg.Anthropic.ProviderSettings),
			APIVersion:     cfg.Anthropic.APIVersion,
		}, newHTTPClient(), d.Logger.Named("anthropic"))).
		Build()
	if err != nil {
		return err
	}

	for _, id := range cfg.Defaults {
		if _, ok := providers.ParseKind(id); !ok {
			d.Logger.Warn("unknown provider in default set", zap.String("provider", id))
		}
	}

	d.Registry = registry
	d.Manager = providers.NewManager(registry, cfg.Defaults, d.Logger)

	available := d.Manager.GetAvailableProviders()
	if len(available) == 0 {
		d.Logger.Warn("no AI providers configured")
	}
	for _, id := range available {
		d.Logger.Info("registered provider", zap.String("provider", id))
	}
	return nil
}

func (d *Dependencies) initAuth(cfg config.AuthConfig) {
	if !cfg.Enabled() {
		d.Logger.Warn("AUTH_JWT_SECRET not set, /query is unauthenticated")
		return
	}
	validator := middleware.NewHMACTokenValidator(cfg.JWTSecret, cfg.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token auth enabled", zap.String("issuer", cfg.Issuer))
}

// providerConfig maps shared provider settings onto the adapter config
func providerConfig(s config.ProviderSettings) providers.ProviderConfig {
	return providers.ProviderConfig{
		APIKey:       s.APIKey,
		BaseURL:      s.BaseURL,
		DefaultModel: s.Model,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
		Timeout:      s.Timeout,
		MaxRetries:   s.MaxRetries,
		RetryDelay:   s.RetryDelay,
	}
}

// newHTTPClient returns a client whose outbound calls join the caller's trace
func newHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document store: %w", err))
		} else {
			d.Logger.Info("document store closed")
		}
	}

	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
