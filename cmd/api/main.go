package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/walletcore/internal/infra/postgres"
	infraRedis "github.com/kislikjeka/walletcore/internal/infra/redis"
	"github.com/kislikjeka/walletcore/internal/report"
	"github.com/kislikjeka/walletcore/internal/transport/httpapi"
	"github.com/kislikjeka/walletcore/internal/transport/httpapi/handler"
	"github.com/kislikjeka/walletcore/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/config"
	"github.com/kislikjeka/walletcore/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithFormat(cfg.Env, cfg.LogFormat, os.Stdout)
	log.Info("Starting wallet API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize repository
	walletRepo := postgres.NewWalletRepository(db.Pool)

	// Initialize the optional account cache. The service runs without Redis;
	// account reads then go straight to the database.
	var accounts wallet.AccountGetter
	var cachePinger handler.Pinger
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, continuing without account cache", "error", err)
		} else {
			cache := infraRedis.NewAccountCache(redisClient, walletRepo, log)
			accounts = cache
			cachePinger = cache
			log.Info("Redis account cache enabled")
		}
	}

	// Initialize services
	transferTimeout := time.Duration(cfg.TransferTimeoutSeconds) * time.Second
	walletSvc := wallet.NewServiceWithTimeout(walletRepo, accounts, log, transferTimeout)
	reportSvc := report.NewService(walletRepo, accounts)

	// Initialize HTTP handlers
	accountHandler := handler.NewAccountHandler(walletSvc)
	transferHandler := handler.NewTransferHandler(walletSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	healthHandler := handler.NewHealthHandler(db, cachePinger)

	// The admin surface stays unmounted unless a token secret is configured.
	var adminHandler *handler.AdminHandler
	var adminAuth func(http.Handler) http.Handler
	if cfg.AdminJWTSecret != "" {
		tokenSvc := middleware.NewTokenService(cfg.AdminJWTSecret)
		adminHandler = handler.NewAdminHandler(walletSvc)
		adminAuth = middleware.AdminAuth(tokenSvc)
		log.Info("Admin routes enabled")
	} else {
		log.Warn("ADMIN_JWT_SECRET not configured, admin routes disabled")
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:          log,
		AllowedOrigins:  splitOrigins(cfg.AllowedOrigins),
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		AccountHandler:  accountHandler,
		TransferHandler: transferHandler,
		ReportHandler:   reportHandler,
		AdminHandler:    adminHandler,
		HealthHandler:   healthHandler,
		AdminAuth:       adminAuth,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
