package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	memoryadapter "github.com/ericfisherdev/zotoksheets/internal/adapter/driven/memory"
	redisadapter "github.com/ericfisherdev/zotoksheets/internal/adapter/driven/redis"
	sqliteadapter "github.com/ericfisherdev/zotoksheets/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/zotok"
	"github.com/ericfisherdev/zotoksheets/internal/adapter/driving/cli"
	httphandler "github.com/ericfisherdev/zotoksheets/internal/adapter/driving/http"
	"github.com/ericfisherdev/zotoksheets/internal/application"
	"github.com/ericfisherdev/zotoksheets/internal/config"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, cli.ErrFailed) {
			slog.Error("fatal error", "error", err)
		}
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment alone is enough.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	m := metrics.New("zotoksheets")
	ctx := context.Background()

	var (
		svc     *application.Service
		closers []func() error
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Error("error closing resource", "error", err)
			}
		}
	}()

	buildCore := func() (driving.Core, error) {
		if svc != nil {
			return svc, nil
		}
		store, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if closeStore != nil {
			closers = append(closers, closeStore)
		}

		catalog, err := config.LoadCatalog(cfg.EndpointsFile)
		if err != nil {
			return nil, err
		}

		api := zotok.NewClient(cfg.BaseURL, zotok.Options{
			Timeout:   cfg.RequestTimeout,
			HTTPCache: cfg.HTTPCache,
		}, m, logger)

		retry := application.RetryPolicy{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay}
		svc, err = application.Wire(store, api, catalog, application.Options{
			Cache: application.CacheTTLs{
				Credentials: cfg.CredentialCacheTTL,
				TokenStatus: cfg.TokenStatusTTL,
				Validation:  cfg.ValidationTTL,
			},
			Token: application.TokenConfig{Duration: cfg.TokenDuration, Buffer: cfg.TokenBuffer},
			Fetch: application.FetchConfig{
				PageSize:         cfg.PageSize,
				MaxPages:         cfg.MaxPages,
				BatchSize:        cfg.BatchSize,
				MemoryLimit:      cfg.MemoryLimit,
				MaxExecutionTime: cfg.MaxExecutionTime,
				PageDelay:        cfg.PageDelay,
				Retry:            retry,
			},
			UploadRetry:        retry,
			ValidationEndpoint: cfg.ValidationEndpoint,
			Production:         cfg.IsProduction(),
			AllowProdMutations: cfg.AllowProdMutations,
		}, m, logger)
		if err != nil {
			return nil, err
		}

		logger.Info("core ready",
			"environment", cfg.Environment,
			"base_url", cfg.BaseURL,
			"store", cfg.Store,
			"document_id", cfg.DocumentID,
			"endpoints", len(catalog),
		)
		return svc, nil
	}

	root := cli.NewRootCommand(cli.App{
		Core: buildCore,
		Handler: func(core driving.Core) http.Handler {
			return httphandler.NewServeMux(httphandler.NewHandler(core, logger), m, logger)
		},
		Sweep: func() int {
			if svc == nil {
				return 0
			}
			return svc.SweepCache()
		},
		ListenAddr:    cfg.ListenAddr,
		SweepInterval: time.Minute,
		Version:       version,
		Logger:        logger,
	})
	return root.ExecuteContext(ctx)
}

// openStore opens the configured key/value backend. The returned close
// function may be nil.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.KeyValueStore, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; credentials are lost on exit")
		return memoryadapter.NewStore(), nil, nil

	case config.StoreRedis:
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", "document_id", cfg.DocumentID)
		return redisadapter.NewStore(client, cfg.DocumentID), client.Close, nil

	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store, err := sqliteadapter.NewKVStore(db, cfg.DocumentID, cfg.SecretKey)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("database opened",
			"path", cfg.DBPath,
			"schema_version", schemaVersion,
			"encrypted", len(cfg.SecretKey) > 0,
		)
		return store, db.Close, nil
	}
}
