package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/lagosbazaar/pkg/database"
	"github.com/utafrali/lagosbazaar/pkg/health"
	pkgkafka "github.com/utafrali/lagosbazaar/pkg/kafka"
	"github.com/utafrali/lagosbazaar/pkg/middleware"
	"github.com/utafrali/lagosbazaar/pkg/tracing"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/cache"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/cache/memory"
	rediscache "github.com/utafrali/lagosbazaar/services/storefront/internal/cache/redis"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/catalog"
	pgcatalog "github.com/utafrali/lagosbazaar/services/storefront/internal/catalog/postgres"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/config"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/event"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/gateway"
	handler "github.com/utafrali/lagosbazaar/services/storefront/internal/handler/http"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/session"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	publisher      pkgkafka.Publisher
	registry       *session.Registry
	limiter        *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize tracing.
	shutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	cat, err := a.loadCatalog(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	heroCache, err := a.buildCache(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Kafka producer, or a publisher that drops events when no brokers are set.
	if cfg.EventsEnabled() {
		a.publisher = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		a.publisher = pkgkafka.NoopPublisher{Logger: logger}
		logger.Info("no kafka brokers configured, storefront events are dropped")
	}

	// Build the dependency graph.
	events := event.NewProducer(a.publisher, logger)
	gw := gateway.New(gateway.Config{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
		Timeout:    cfg.AIRequestTimeout,
	}, logger)
	if !gw.Enabled() {
		logger.Warn("GEMINI_API_KEY not set, AI content and hero generation are disabled")
	}

	hero := session.NewHeroLoader(heroCache, gw, session.HeroConfig{
		Prompt:      cfg.HeroPrompt,
		FallbackURL: cfg.HeroFallbackURL,
		Timeout:     cfg.AIRequestTimeout,
		Wait:        cfg.HeroWaitTimeout,
	}, logger)

	a.registry = session.NewRegistry(func(id string) *session.Controller {
		return session.NewController(id, session.Deps{
			Catalog:   cat,
			Content:   gw,
			Events:    events,
			Logger:    logger,
			AITimeout: cfg.AIRequestTimeout,
		})
	}, heroCache, cfg.SessionTTL, cfg.SessionMax, logger)

	a.limiter = middleware.NewRateLimiter(cfg.AIRateLimitRPS, cfg.AIRateLimitBurst, 10*time.Minute, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	if a.pool != nil {
		healthHandler.Register("postgres", a.pool.Ping)
	}
	if a.rdb != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		})
	}
	if p, ok := a.publisher.(*pkgkafka.Producer); ok {
		healthHandler.RegisterOptional("kafka", p.Ping)
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(
		handler.NewStorefrontHandler(cat, a.registry, hero, logger),
		healthHandler,
		handler.RouterConfig{
			CORS:           corsCfg,
			PprofCIDRs:     cfg.PprofAllowedCIDRs,
			AILimiter:      a.limiter,
			RequestTimeout: cfg.HTTPRequestTimeout,
		},
		logger,
	)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// loadCatalog builds the catalog from the embedded document or PostgreSQL.
func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.cfg.CatalogSource != config.CatalogPostgres {
		cat, err := catalog.LoadEmbedded()
		if err != nil {
			return nil, fmt.Errorf("load embedded catalog: %w", err)
		}
		a.logger.Info("catalog loaded",
			slog.String("source", config.CatalogEmbedded),
			slog.Int("products", len(cat.Products())),
		)
		return cat, nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = a.cfg.PostgresHost
	pgCfg.Port = a.cfg.PostgresPort
	pgCfg.User = a.cfg.PostgresUser
	pgCfg.Password = a.cfg.PostgresPass
	pgCfg.DBName = a.cfg.PostgresDB
	pgCfg.SSLMode = a.cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool

	if err := pgcatalog.Migrate(ctx, pool, a.logger); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	if a.cfg.CatalogSeed {
		doc, err := catalog.EmbeddedDocument()
		if err != nil {
			return nil, fmt.Errorf("read seed catalog: %w", err)
		}
		if err := pgcatalog.Seed(ctx, pool, doc); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		a.logger.Info("catalog seeded", slog.Int("products", len(doc.Products)))
	}

	cat, err := pgcatalog.NewSource(pool).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog from postgres: %w", err)
	}
	a.logger.Info("catalog loaded",
		slog.String("source", config.CatalogPostgres),
		slog.Int("products", len(cat.Products())),
	)
	return cat, nil
}

// buildCache returns the hero image cache for the configured backend.
func (a *App) buildCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.CacheBackend != config.CacheRedis {
		return memory.New(a.cfg.SessionTTL), nil
	}

	redisCfg := database.DefaultRedisConfig()
	redisCfg.Addr = a.cfg.RedisAddr
	redisCfg.Password = a.cfg.RedisPass
	redisCfg.DB = a.cfg.RedisDB

	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	return rediscache.New(rdb, a.cfg.SessionTTL), nil
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Waits for in-flight AI requests, which may still publish events.
	a.registry.Close()
	a.limiter.Close()

	if err := a.publisher.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	a.closeResources()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases the database connections opened during startup.
func (a *App) closeResources() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
