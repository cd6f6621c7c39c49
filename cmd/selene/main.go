// Selene - terminal companion for the oracle astrology backend
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/selene-app/selene/internal/chart"
	"github.com/selene-app/selene/internal/companion"
	"github.com/selene-app/selene/internal/config"
	"github.com/selene-app/selene/internal/events"
	"github.com/selene-app/selene/internal/history"
	"github.com/selene-app/selene/internal/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The terminal owns stdout, so logs go to a file when configured
	// and are discarded otherwise.
	logSink := io.Discard
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Error("Failed to open log file", "path", cfg.LogPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		logSink = f
	}
	logger := slog.New(slog.NewJSONHandler(logSink, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting selene", "api_url", cfg.APIBaseURL, "db_path", cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}
	repo, err := history.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close history store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	state := chart.NewStore()
	bus := events.NewBus()
	client := companion.NewClient(cfg, state, bus)

	// The heartbeat goroutine lives for the whole program run. It only
	// sends pings while the socket is open.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.RunHeartbeat(ctx)

	if err := client.Connect(ctx); err != nil {
		// A failed first connect is not fatal; the UI shows the status
		// and reconnects keep trying in the background.
		slog.Warn("Initial connect failed", "error", err)
	}

	p := ui.NewProgram(client, repo, state, bus)
	if _, err := p.Run(); err != nil {
		slog.Error("UI terminated with error", "error", err)
		client.Disconnect()
		os.Exit(1)
	}

	client.Disconnect()
	slog.Info("Selene shut down")
}
