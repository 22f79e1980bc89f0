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

	"github.com/duckchat/duckchat/internal/agent"
	"github.com/duckchat/duckchat/internal/api"
	"github.com/duckchat/duckchat/internal/config"
	"github.com/duckchat/duckchat/internal/llm"
	"github.com/duckchat/duckchat/internal/observability"
	"github.com/duckchat/duckchat/internal/schema"
	"github.com/duckchat/duckchat/internal/store/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("duckchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := duckdb.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.Database.Path), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	backend, err := llm.NewOpenAIClient(llm.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize chat backend", slog.Any("error", err))
		os.Exit(1)
	}

	schemaCache := schema.NewCache(db, cfg.Database.Table, logger)
	orchestrator := &agent.Orchestrator{
		Schema:      schemaCache,
		LLM:         backend,
		Store:       db,
		Logger:      logger,
		Table:       cfg.Database.Table,
		Temperature: cfg.AI.Temperature,
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger: logger,
		Runner: orchestrator,
		Schema: schemaCache,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseConfig(cfg),
			api.CheckAIConfig(cfg),
			db.Ping,
		),
		DependencyTimeout: time.Second,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("table", cfg.Database.Table))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
