package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/config"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	logpkg "github.com/kailas-cloud/promptdex/internal/logger"
	chiTransport "github.com/kailas-cloud/promptdex/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/promptdex/internal/transport/mcp"
	"github.com/kailas-cloud/promptdex/internal/version"
)

// loadDotEnv loads the dotenv file when present. Variables already set win.
func loadDotEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env-file")
	if path == "" {
		return ctx, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ctx, nil
	}
	if err := godotenv.Load(path); err != nil {
		return ctx, fmt.Errorf("load %s: %w", path, err)
	}
	return ctx, nil
}

// bootstrap loads config and builds the logger.
func bootstrap(cmd *cli.Command) (config.Config, *zap.Logger, error) {
	env := cmd.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	opts := logpkg.Options{
		Level:  cfg.Logging.Level,
		Fields: []zap.Field{zap.String("service", "promptdex"), zap.String("env", env)},
	}
	if cfg.Logging.File != "" {
		opts.Output = []string{cfg.Logging.File}
	}
	logger, err := logpkg.NewLogger(env, opts)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting promptdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := chiTransport.NewServer(a.search, a.suggest, a.catalog, a.batch, a.health, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	principal := access.Principal{
		UserID:      cmd.String("user-id"),
		WorkspaceID: cmd.String("workspace-id"),
	}
	logger.Info("Starting MCP server", zap.Bool("anonymous", principal.IsAnonymous()))

	srv := mcpTransport.NewServer(a.search, a.suggest, principal, logger)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}

func backfillAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if w := cmd.Int("workers"); w > 0 {
		cfg.Backfill.Workers = w
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.backfillService(cmd.Bool("dry-run")).Run(ctx)
	_, _ = fmt.Fprintf(cmd.Root().Writer, "scanned=%d missing=%d embedded=%d failed=%d\n",
		stats.Scanned, stats.Missing, stats.Embedded, stats.Failed)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("backfill: %d items failed to embed", stats.Failed)
	}
	return nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	be, err := openBackend(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	if err := be.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("Schema is up to date", zap.String("driver", cfg.Database.Driver))
	return nil
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	if _, err := fmt.Fprintf(cmd.Root().Writer, "promptdex %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.Date); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}
