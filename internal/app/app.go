package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	generationhttp "github.com/vidgen/studio/internal/adapter/inbound/http/generation"
	"github.com/vidgen/studio/internal/adapter/outbound/filestore"
	"github.com/vidgen/studio/internal/adapter/outbound/genapi"
	redisadapter "github.com/vidgen/studio/internal/adapter/outbound/redis"
	s3adapter "github.com/vidgen/studio/internal/adapter/outbound/s3"
	"github.com/vidgen/studio/internal/domain/generation"
	"github.com/vidgen/studio/internal/infra/events"
	"github.com/vidgen/studio/internal/infra/httpclient"
	"github.com/vidgen/studio/internal/module/browser"
	"github.com/vidgen/studio/internal/module/shell"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/shared/cache"
	"github.com/vidgen/studio/internal/shared/config"
	"github.com/vidgen/studio/internal/shared/logger"
	"github.com/vidgen/studio/internal/utils/metrics"
	"github.com/vidgen/studio/internal/utils/middleware"
)

const readinessTimeout = 5 * time.Second

// App represents the application.
type App struct {
	config    *config.Config
	redis     redis.UniversalClient
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	eventBus *events.Bus

	generator   *genapi.Client
	states      *redisadapter.GenerationStateAdapter
	store       *filestore.Store
	domain      *generation.Domain
	shell       *shell.Shell
	rateLimiter outbound.RateLimiterPort
	handler     *generationhttp.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}
	log := logger.New(logCfg)

	// Domain modules and adapters log through zap
	zapLog, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		registry:  prometheus.NewRegistry(),
		eventBus:  events.NewBus(zapLog.Named("events")),
	}

	if cfg.Metrics.Enabled {
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.metrics = metrics.New(cfg.Metrics.Namespace, app.registry)
	}

	ctx := context.Background()

	// Redis is optional; without it state and rate limits stay in process
	if cfg.Redis.Address != "" {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			zapLog.Warn("Redis unavailable, keeping state in memory", zap.Error(err))
		} else {
			app.redis = client
		}
	}

	if err := app.initModules(ctx); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.registerEventHandlers()
	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

func (a *App) initModules(ctx context.Context) error {
	cfg := a.config

	a.generator = genapi.NewClient(
		httpclient.New(cfg.HTTPClient),
		cfg.Generation,
		cfg.Breaker,
		a.zapLogger.Named("genapi"),
	)

	store, err := filestore.NewStore(cfg.Generation.OutputDir, a.zapLogger.Named("filestore"))
	if err != nil {
		return fmt.Errorf("init video store: %w", err)
	}
	a.store = store

	sharer, err := s3adapter.NewShareStore(ctx, cfg.Storage, store, a.zapLogger.Named("share"))
	if err != nil {
		return fmt.Errorf("init share store: %w", err)
	}

	a.domain = generation.NewDomain(
		a.generator,
		store,
		a.eventBus,
		&generation.Config{APIKey: cfg.Generation.APIKey, Model: cfg.Generation.Model},
		a.zapLogger.Named("generation"),
	)
	if !a.domain.Configured() {
		a.zapLogger.Warn("No generation API key configured; submissions will fail until one is set")
	}

	var states outbound.LifecycleStateStorePort
	if a.redis != nil {
		a.states = redisadapter.NewGenerationStateAdapter(a.redis, cfg.Redis.StateTTL)
		a.rateLimiter = redisadapter.NewRateLimiter(a.redis)
		states = a.states
	}
	a.shell = shell.NewShell(a.domain, states, a.zapLogger.Named("shell"))

	a.handler = generationhttp.NewHandler(
		a.shell,
		store,
		sharer,
		browser.NewModule(browser.Config{URL: cfg.Browser.URL, Title: cfg.Browser.Title}),
		a.metrics,
		generationhttp.Config{
			PublicURL:      cfg.Server.PublicURL,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
		a.zapLogger.Named("http"),
	)

	a.zapLogger.Info("Modules initialized",
		zap.String("output_dir", store.Dir()),
		zap.Bool("share_enabled", sharer.Enabled()),
		zap.Bool("redis", a.redis != nil),
	)
	return nil
}

// registerEventHandlers registers all domain event handlers.
func (a *App) registerEventHandlers() {
	if a.metrics != nil {
		a.eventBus.Register(generation.NewEventHandler(a.metrics, a.zapLogger))
	}
}

func (a *App) setupRouter() *gin.Engine {
	// Set Gin mode based on environment
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Session())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if a.metrics != nil {
		r.Use(middleware.Metrics(a.metrics))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", a.readiness)
	if a.config.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	return r
}

func (a *App) registerRoutes() {
	limit := middleware.RateLimitBySession(
		a.rateLimiter,
		a.config.RateLimit.Limit,
		a.config.RateLimit.Window,
	)
	a.handler.RegisterRoutes(a.router.Group("/api/v1"), limit)
}

// readiness reports whether submissions can succeed right now. It only
// inspects local state; the provider is never called.
func (a *App) readiness(c *gin.Context) {
	checks := gin.H{}
	ready := true

	switch {
	case !a.domain.Configured() || !a.generator.Configured():
		checks["generation_api"] = "not configured"
		ready = false
	case a.generator.BreakerState() == gobreaker.StateOpen:
		checks["generation_api"] = "circuit open"
		ready = false
	default:
		checks["generation_api"] = "ok"
	}

	if a.states != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := a.states.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop cancels in-flight generations and releases resources.
func (a *App) Stop() {
	if a.shell != nil {
		a.shell.Stop()
	}

	// Sync zap logger
	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}

	// Close Redis connection
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
