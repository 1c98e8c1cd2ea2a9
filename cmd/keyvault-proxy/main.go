// Package main provides the entry point for the key vault proxy server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/costwatch/keyvault-proxy/internal/admin"
	"github.com/costwatch/keyvault-proxy/internal/config"
	"github.com/costwatch/keyvault-proxy/internal/ledger"
	"github.com/costwatch/keyvault-proxy/internal/logging"
	"github.com/costwatch/keyvault-proxy/internal/metrics"
	"github.com/costwatch/keyvault-proxy/internal/middleware"
	"github.com/costwatch/keyvault-proxy/internal/provider"
	"github.com/costwatch/keyvault-proxy/internal/proxy"
	"github.com/costwatch/keyvault-proxy/internal/ratelimit"
	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

const version = "0.1.0"

const maxRequestBody = 5 << 20 // 5 MiB

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set environment variables directly
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, logLevel := logging.Setup(cfg.LogLevel)
	logger.Info("key vault proxy starting", "version", version, "addr", cfg.ListenAddr, "state_backend", cfg.StateBackend)

	// Storage
	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	store := storage.NewSQLiteStorage(db)

	// Crypto
	masterKey, err := storage.DeriveMasterKey(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("derive master key: %w", err)
	}

	// State backends: shared counters through Redis, process memory otherwise
	var ledgerBackend ledger.Backend
	var rateBackend ratelimit.Backend
	if cfg.StateBackend == config.BackendRedis {
		lb, err := ledger.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("ledger redis backend: %w", err)
		}
		rb, err := ratelimit.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("rate limit redis backend: %w", err)
		}
		ledgerBackend, rateBackend = lb, rb
	} else {
		ledgerBackend = ledger.NewMemoryBackend()
		rateBackend = ratelimit.NewMemoryBackend()
	}

	// Services
	credentials, err := vault.NewCredentialStore(store, masterKey, logger)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	registry := vault.NewProxyKeyRegistry(store, logger)
	budgetLedger := ledger.NewLedger(ledgerBackend, &ledger.LogNotifier{Logger: logger}, logger)
	defer budgetLedger.Close()
	limiter := ratelimit.NewLimiter(rateBackend)

	adapters, err := provider.NewRegistry(provider.Options{BedrockRegion: cfg.BedrockRegion})
	if err != nil {
		return fmt.Errorf("provider registry: %w", err)
	}

	pipeline := proxy.NewPipeline(registry, credentials, limiter, budgetLedger, adapters, logger)
	proxyHandler := proxy.NewHandler(pipeline, logger)
	adminHandler := admin.NewHandler(credentials, registry, budgetLedger, store, cfg.AdminToken, logLevel, logger)

	// Metrics on a separate listener
	reg := prometheus.NewRegistry()
	if err := metrics.Init(reg); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsListenAddr,
		Handler: metrics.Handler(reg),
	}
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Main router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.HTTPLogging(logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))

	adminHandler.Routes(r)
	proxyHandler.Routes(r)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}

	logger.Info("stopped")
	return nil
}
