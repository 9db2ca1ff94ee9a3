package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staypro/agenthub/internal/api"
	"github.com/staypro/agenthub/internal/auth"
	"github.com/staypro/agenthub/internal/autopilot"
	"github.com/staypro/agenthub/internal/cache"
	"github.com/staypro/agenthub/internal/classifier"
	"github.com/staypro/agenthub/internal/database"
	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/internal/handlers"
	"github.com/staypro/agenthub/internal/logging"
	"github.com/staypro/agenthub/internal/memory"
	"github.com/staypro/agenthub/internal/messagebus"
	"github.com/staypro/agenthub/internal/metrics"
	"github.com/staypro/agenthub/internal/provider"
	"github.com/staypro/agenthub/internal/scheduler"
	"github.com/staypro/agenthub/pkg/config"
)

// Server wires the hub together: storage, providers, dispatcher, autopilot,
// scheduler and the HTTP API.
type Server struct {
	config *config.Config
	logger *logging.Manager

	db        *database.Database
	redis     *redis.Client
	cache     cache.Store
	bus       messagebus.MessageBus
	scheduler *scheduler.Scheduler
	watcher   *config.Watcher
	engine    *autopilot.Engine
	auth      *auth.Manager

	httpServer *http.Server
}

// New builds a fully wired server from configuration. configPath may be
// empty; when set, autopilot tuning is hot-reloaded from it.
func New(cfg *config.Config, configPath string) (*Server, error) {
	db, err := database.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := logging.NewManager(db.SQL())
	m := metrics.NewMetrics()

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
	}

	cacheStore, err := s.buildCache()
	if err != nil {
		db.Close()
		return nil, err
	}

	providers := provider.NewRegistry()
	for _, tier := range cfg.Providers.Tiers {
		protocol := provider.WithCache(
			provider.NewOpenAIProvider(tier.Endpoint, tier.APIKey, cfg.Providers.RequestTimeout),
			cacheStore, cfg.Cache.DefaultTTL, m,
		)
		if err := providers.Register(tier.Name, tier.Model, protocol); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to register provider %s: %w", tier.Name, err)
		}
	}

	s.bus = s.buildBus()

	var mailer handlers.Mailer = handlers.NoopMailer{}
	if cfg.Mailer.WebhookURL != "" {
		mailer = handlers.NewWebhookMailer(cfg.Mailer.WebhookURL)
	}

	memProvider := memory.New(db, s.redis)

	deps := &handlers.Deps{
		Store:  db,
		Memory: memProvider,
		LLM:    providers,
		Mailer: mailer,
		Logger: logger,
	}

	registry, err := dispatch.NewRegistry(handlers.All(deps)...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build intent registry: %w", err)
	}
	dispatcher := dispatch.New(db, registry, logger, m, s.bus)

	s.engine = autopilot.New(db, dispatcher, logger, m, cfg.Autopilot)
	deps.Dispatcher = dispatcher
	deps.Autopilot = s.engine

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			logger.Warn("server", "Config hot reload unavailable", map[string]any{"error": err.Error()})
		} else {
			watcher.OnAutopilotChange(s.engine.SetConfig)
			s.watcher = watcher
		}
	}

	if cfg.Security.EnableAuth {
		s.auth = auth.NewManager(cfg.Security.JWTSecret, db)
	}

	s.scheduler = scheduler.New(db, dispatcher, logger)

	intentClassifier := classifier.New(providers, db, logger, m)
	apiServer := api.NewServer(cfg, db, dispatcher, intentClassifier, memProvider, s.auth, logger, m)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func (s *Server) buildCache() (cache.Store, error) {
	if !s.config.Cache.Enabled {
		return nil, nil
	}
	if s.config.Cache.Backend == "redis" {
		if s.config.Redis.URL == "" {
			return nil, fmt.Errorf("cache backend is redis but redis.url is empty")
		}
		store, err := cache.NewRedisStore(s.config.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.cache = store
		return store, nil
	}
	s.cache = cache.NewMemoryStore(s.config.Cache.MaxSize)
	return s.cache, nil
}

// buildBus connects to NATS when configured. A failed connection degrades
// to the no-op bus; lifecycle publishing is an observability side channel,
// not a dispatch dependency.
func (s *Server) buildBus() messagebus.MessageBus {
	if s.config.NATS.URL == "" {
		return messagebus.NoopBus{}
	}
	bus, err := messagebus.NewNatsBus(messagebus.Config{
		URL:        s.config.NATS.URL,
		StreamName: s.config.NATS.StreamName,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		s.logger.Warn("server", "NATS unavailable, lifecycle publishing disabled", map[string]any{
			"url":   s.config.NATS.URL,
			"error": err.Error(),
		})
		return messagebus.NoopBus{}
	}
	return bus
}

// Auth exposes the auth manager for bootstrap user creation. Nil when
// authentication is disabled.
func (s *Server) Auth() *auth.Manager {
	return s.auth
}

// Start runs the background jobs and serves HTTP until the listener fails
// or Shutdown is called.
func (s *Server) Start() error {
	if s.config.Scheduler.Enabled {
		err := s.scheduler.Start(s.config.Scheduler.EventScanSpec, s.config.Scheduler.DailyTasksSpec)
		if err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	s.logger.Info("server", "HTTP API listening", map[string]any{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server and releases every resource. Safe to call after
// a failed Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Scheduler.Enabled {
		s.scheduler.Stop()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}

	err := s.httpServer.Shutdown(ctx)

	if s.bus != nil {
		s.bus.Close()
	}
	switch store := s.cache.(type) {
	case *cache.MemoryStore:
		store.Close()
	case *cache.RedisStore:
		store.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if dbErr := s.db.Close(); err == nil {
		err = dbErr
	}
	return err
}
