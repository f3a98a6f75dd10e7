package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/screenmark/internal/config"
	"github.com/rpggio/screenmark/internal/device"
	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/mcp"
	"github.com/rpggio/screenmark/internal/repository"
	"github.com/rpggio/screenmark/internal/sqlite"
	"github.com/rpggio/screenmark/internal/telemetry"
	"github.com/rpggio/screenmark/internal/transport"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries JSON-RPC in stdio mode.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("SCREENMARK_LOG_PATH"); logPath != "" {
		fileWriter, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr, logger)
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("tracer shutdown", "error", err)
			}
		}()
	}

	if err := ensureDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	apiKeys := sqlite.NewAPIKeyRepository(db)
	if err := bootstrapAPIKey(context.Background(), apiKeys, logger); err != nil {
		logger.Error("failed to register bootstrap api key", "error", err)
		os.Exit(1)
	}

	recordingSvc := recording.NewService(sqlite.NewRecordingRepository(db), sqlite.NewSearchRepository(db), logger)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)

	reported := device.NewReported(logger)
	registry := coordinator.NewRegistry(coordinator.Config{
		Detector:           reported,
		Source:             reported,
		Locator:            &device.StaticLocator{},
		Store:              recordingSvc,
		Activities:         activitySvc,
		Logger:             logger,
		PermissionTimeout:  cfg.Capture.PermissionTimeout,
		GeolocationTimeout: cfg.Capture.GeolocationTimeout,
		PersistTimeout:     cfg.Capture.PersistTimeout,
	})
	defer registry.Close()

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Coordinators: registry,
			Recordings:   recordingSvc,
			Activity:     activitySvc,
		},
		Resolver:           apiKeys,
		AuthEnabled:        cfg.Auth.Enabled,
		TransportMode:      cfg.Transport.Mode,
		DefaultToleranceMs: cfg.Capture.DefaultToleranceMs,
		Logger:             logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Transport.Mode == "stdio" {
		err = runStdio(ctx, logger, mcpServer)
	} else {
		auth := transport.AnonymousMiddleware(coordinator.AnonymousUser)
		if cfg.Auth.Enabled {
			auth = transport.AuthMiddleware(apiKeys)
		}
		router := transport.NewServer(transport.Config{
			MCP: sdkmcp.NewStreamableHTTPHandler(
				func(*http.Request) *sdkmcp.Server { return mcpServer },
				&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
			),
			Recordings:         recordingSvc,
			Auth:               auth,
			DefaultToleranceMs: cfg.Capture.DefaultToleranceMs,
			Logger:             logger,
		})
		err = runHTTP(ctx, logger, router, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	}
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runStdio(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")
	// Run returns when stdin closes or ctx is canceled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, handler http.Handler, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

// bootstrapAPIKey registers SCREENMARK_BOOTSTRAP_KEY for
// SCREENMARK_BOOTSTRAP_USER so a fresh database can be used over HTTP.
func bootstrapAPIKey(ctx context.Context, keys *sqlite.APIKeyRepository, logger *slog.Logger) error {
	key := os.Getenv("SCREENMARK_BOOTSTRAP_KEY")
	if key == "" {
		return nil
	}
	userID := os.Getenv("SCREENMARK_BOOTSTRAP_USER")
	if userID == "" {
		userID = coordinator.AnonymousUser
	}
	err := keys.Create(ctx, userID, key, "bootstrap")
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("registered bootstrap api key", "user_id", userID)
	return nil
}

func ensureDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
