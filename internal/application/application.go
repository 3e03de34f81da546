package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/config"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/database"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/handler"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/presence"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/repository"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/roomprovider"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/router"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/service"
	"github.com/vybekart-ssh/Vybekart-Backend/pkg/constants"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg *config.Config
	srv *http.Server
	db  *gorm.DB
	rdb *redis.Client // nil with the memory presence backend
	hub *service.StreamHub
	log *zap.Logger
}

// NewLogger builds the service logger: development config in development, production otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zc.Level = lvl
	}
	return zc.Build()
}

// NewRedis creates a client from REDIS_URL, or from host/port/password/db when it is not set.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}

// NewAPI creates the API application: validates config, runs migrations, opens DB and Redis, builds router.
func NewAPI(cfg *config.Config, logger *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL(), logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	checks := map[string]handler.Pinger{"database": sqlDB.PingContext}

	var (
		rdb   *redis.Client
		store presence.SetStore
	)
	switch cfg.PresenceBackend {
	case "redis":
		rdb, err = NewRedis(cfg)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		store = presence.NewRedisStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		logger.Warn("presence kept in memory: viewer counts are per instance")
		store = presence.NewMemoryStore()
	}

	hub := service.NewStreamHub(presence.NewTracker(store), service.HubOptions{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		MaxMessageSize:  cfg.WSMaxMessageSize,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, logger)

	sessions := repository.NewSessionRepository(db)
	if cfg.PinRequireOwner {
		hub.SetPinAuthorizer(service.NewOwnerOnlyPins(sessions))
	}

	rooms := roomprovider.NewClient(roomprovider.Options{
		URL:             cfg.LiveKit.URL,
		APIKey:          cfg.LiveKit.APIKey,
		APISecret:       cfg.LiveKit.APISecret,
		TokenTTL:        cfg.LiveKit.TokenTTL,
		EmptyTimeout:    cfg.LiveKit.RoomEmptyTimeout,
		MaxParticipants: cfg.LiveKit.RoomMaxParticipants,
		SignalPort:      cfg.LiveKit.SignalPort,
		MediaPort:       cfg.LiveKit.MediaPort,
	}, logger)
	if !rooms.Configured() {
		logger.Warn("LiveKit is not configured: session creation and tokens will fail until LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET are set")
	}

	sessionSvc := service.NewSessionService(
		sessions,
		repository.NewCatalogRepository(db),
		rooms,
		hub,
		&service.WSConfig{BaseURL: cfg.WSBaseURL},
		logger,
	)

	r := router.New(
		handler.NewSessionHandler(sessionSvc, logger),
		handler.NewStreamWSHandler(hub, logger),
		handler.NewHealthHandler(checks),
		handler.NewIPRateLimiter(cfg.ViewerTokenRatePerMin, cfg.ViewerTokenBurst),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, rdb: rdb, hub: hub, log: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		zap.String("addr", a.srv.Addr),
		zap.String("health", base+constants.PathHealth),
		zap.String("streams", base+constants.PathStreams),
		zap.String("gateway", "ws://"+host+":"+a.cfg.HTTPPort+constants.PathGateway))

	// App context for presence and relay calls (shutdown propagation)
	a.hub.SetContext(ctx)
	if a.cfg.GatewayRelay {
		relay := service.NewRedisRelay(a.rdb, a.log)
		if err := relay.Start(ctx, a.hub.DeliverLocal); err != nil {
			return fmt.Errorf("gateway relay: %w", err)
		}
		a.hub.SetRelay(relay)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.close()
		return fmt.Errorf("http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.srv.Shutdown(shutdownCtx)
	a.close()
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("HTTP server stopped")
	return nil
}

// close releases gateway peers first so their presence entries leave Redis before the client closes.
func (a *API) close() {
	a.hub.Close()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
