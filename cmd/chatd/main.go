package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	httpAdapter "github.com/gatherly/event-chat/internal/adapters/primary/http"
	mw "github.com/gatherly/event-chat/internal/adapters/primary/http/middleware"
	"github.com/gatherly/event-chat/internal/adapters/primary/websocket"
	"github.com/gatherly/event-chat/internal/adapters/secondary/entitlement"
	"github.com/gatherly/event-chat/internal/adapters/secondary/kafka"
	"github.com/gatherly/event-chat/internal/adapters/secondary/memory"
	"github.com/gatherly/event-chat/internal/adapters/secondary/postgres"
	redisAdapter "github.com/gatherly/event-chat/internal/adapters/secondary/redis"
	"github.com/gatherly/event-chat/internal/auth"
	"github.com/gatherly/event-chat/internal/config"
	"github.com/gatherly/event-chat/internal/core/ports"
	"github.com/gatherly/event-chat/internal/core/services"
	"github.com/gatherly/event-chat/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx := context.Background()
	healthChecks := make(map[string]httpAdapter.HealthChecker)

	// 3. Message store: Postgres when configured, in-memory otherwise
	var messageStore ports.MessageStore
	if cfg.Database.URL != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			logger.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}

		poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
		poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		logger.Info("database connection established")

		repo := postgres.NewMessageRepository(pool)
		messageStore = repo
		healthChecks["database"] = repo
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory message store")
		messageStore = memory.NewMessageStore()
	}

	// 4. Presence store: Redis when configured, in-memory otherwise
	var presenceStore ports.PresenceStore
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "error", err)
			os.Exit(1)
		}
		logger.Info("redis connection established")

		store := redisAdapter.NewPresenceStore(redisClient)
		presenceStore = store
		healthChecks["redis"] = store
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory presence store")
		presenceStore = memory.NewPresenceStore()
	}

	// 5. Firehose: Kafka when brokers are configured
	var firehose ports.Firehose
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaFirehose := kafka.NewFirehose(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaFirehose.Close(); err != nil {
				logger.Warn("firehose close failed", "error", err)
			}
		}()
		firehose = kafkaFirehose
		logger.Info("kafka firehose enabled", "topic", cfg.Kafka.Topic)
	} else {
		logger.Warn("KAFKA_BROKERS not set, firehose disabled")
		firehose = kafka.NopFirehose{}
	}

	// 6. Entitlement checker: ticketing platform when configured
	var entitlements ports.EntitlementChecker
	if cfg.Entitlement.ServiceURL != "" {
		entitlements = entitlement.NewHTTPChecker(cfg.Entitlement.ServiceURL, logger)
	} else {
		logger.Warn("ENTITLEMENT_SERVICE_URL not set, admitting every join")
		entitlements = entitlement.AllowAll{}
	}

	// 7. Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	sendThrottle := mw.NewRateLimitByKey(cfg.Chat.SendRPS, cfg.Chat.SendBurst)

	var roomService ports.RoomService
	hub := websocket.NewHub(nil, sendThrottle, logger)
	roomService = services.NewRoomService(
		messageStore, presenceStore, entitlements, firehose, hub,
		cfg.Chat.HistoryLimit, logger,
	)
	hub.SetService(roomService)
	go hub.Run()

	// 8. Rate Limiter for the REST surface
	var generalRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 9. Handlers (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	roomHandler := httpAdapter.NewRoomHandler(roomService, errorHandler, logger)
	tokenHandler := httpAdapter.NewTokenHandler(tokenManager, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(healthChecks, hub, cfg.App.Version)

	// 10. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Apply general rate limiting if enabled
	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Dev-only token minting
		if cfg.IsDevelopment() {
			r.Post("/auth/dev-token", tokenHandler.HandleDevToken)
		}

		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/rooms", roomHandler.RegisterRoutes)
		})
	})

	// 11. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
