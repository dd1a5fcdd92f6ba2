package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting fintrack server")

	components := cli.InitComponents(context.Background(), logger, cfg)
	defer components.Close()

	if !cfg.AdminConfigured() {
		logger.Warn("Admin credentials not configured; admin endpoints will reject every request")
	}

	// Verified bearer tokens
	tokens := cache.NewLRUCache[string](1024, 5*time.Minute)
	caches := cache.NewManager(logger)
	caches.Register(tokens)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	clientIP := security.NewClientIP()
	for _, cidr := range cfg.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			logger.Error("Invalid trusted proxy", log.FieldError, err, "cidr", cidr)
			os.Exit(1)
		}
	}

	deps := apphttp.Deps{
		Auth: apphttp.NewAuthenticator(apphttp.AuthConfig{
			AdminUsernameHash: cfg.AdminUsernameHash,
			AdminPasswordHash: cfg.AdminPasswordHash,
			JWTSecret:         cfg.SupabaseJWTSecret,
		}, components.Data, tokens),
		Reports:  components.Reports,
		Batch:    components.Orchestrator,
		Storage:  components.Storage,
		Users:    components.Fetcher,
		Limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		ClientIP: clientIP,
		Logger:   logger,
	}

	// AMQP is optional; without it automated runs execute inline.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, asynchronous runs disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			deps.Publisher = amqpClient
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.Port, "backend", cfg.DataBackend, "format", cfg.ReportFormat)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
