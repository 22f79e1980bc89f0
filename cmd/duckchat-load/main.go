package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/duckchat/duckchat/internal/config"
	"github.com/duckchat/duckchat/internal/etl"
	"github.com/duckchat/duckchat/internal/observability"
	"github.com/duckchat/duckchat/internal/schema"
	"github.com/duckchat/duckchat/internal/storage"
	s3store "github.com/duckchat/duckchat/internal/storage/s3"
	"github.com/duckchat/duckchat/internal/store/duckdb"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("duckchat-load", flag.ExitOnError)
	source := fs.String("source", "", "CSV source: local path or s3://bucket/key")
	dbPath := fs.String("db", "", "database file path (default from DUCKCHAT_DB_PATH)")
	table := fs.String("table", "", "cleaned table name (default from DUCKCHAT_DB_TABLE)")
	publish := fs.Bool("publish", false, "upload the built database file to the dataset bucket")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadFromEnv("duckchat-load")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if *source == "" {
		fmt.Fprintln(os.Stderr, "usage: duckchat-load -source <path-or-s3-uri> [-db path] [-table name] [-publish]")
		return 2
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.Path
	}
	if *table == "" {
		*table = cfg.Database.Table
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory", slog.String("dir", dir), slog.Any("error", err))
			return 1
		}
	}

	db, err := duckdb.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", *dbPath), slog.Any("error", err))
		return 1
	}
	defer func() { _ = db.Close() }()

	var objects storage.ObjectStore
	if storage.IsS3URI(*source) || *publish {
		bucket := cfg.Dataset.Bucket
		if storage.IsS3URI(*source) {
			sourceBucket, _, err := storage.ParseS3URI(*source)
			if err != nil {
				logger.Error("invalid s3 source", slog.String("source", *source), slog.Any("error", err))
				return 1
			}
			bucket = sourceBucket
		}
		objects, err = s3store.New(s3store.Config{
			Endpoint:        cfg.Dataset.Endpoint,
			Region:          cfg.Dataset.Region,
			Bucket:          bucket,
			AccessKeyID:     cfg.Dataset.AccessKeyID,
			SecretAccessKey: cfg.Dataset.SecretAccessKey,
			UseSSL:          cfg.Dataset.UseSSL,
			Prefix:          cfg.Dataset.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			return 1
		}
	}

	loader := &etl.Loader{
		DB:      db,
		Objects: objects,
		Schema:  schema.NewCache(db, *table, logger),
		Logger:  logger,
		Table:   *table,
	}

	summary, err := loader.Load(ctx, *source)
	if err != nil {
		logger.Error("dataset load failed", slog.String("source", *source), slog.Any("error", err))
		return 1
	}
	logger.Info("dataset ready",
		slog.String("table", summary.Table),
		slog.Int64("rows", summary.RowCount),
		slog.Int("columns", summary.ColumnCount),
		slog.Duration("duration", summary.Duration),
	)

	if *publish {
		// Close flushes the WAL so the uploaded file is self-contained.
		_ = db.Close()
		if err := publishArtifact(ctx, objects, *dbPath, *table); err != nil {
			logger.Error("artifact publish failed", slog.Any("error", err))
			return 1
		}
		logger.Info("artifact published", slog.String("table", *table))
	}
	return 0
}

func publishArtifact(ctx context.Context, objects storage.ObjectStore, dbPath, table string) error {
	key, err := storage.BuildArtifactKey(table, time.Now())
	if err != nil {
		return err
	}
	f, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat database file: %w", err)
	}
	if _, err := objects.Put(ctx, key, f, info.Size(), "application/octet-stream"); err != nil {
		return fmt.Errorf("upload artifact %q: %w", key, err)
	}
	return nil
}
