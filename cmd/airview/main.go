package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/airview/airview/internal/config"
	"github.com/airview/airview/internal/gateway"
	"github.com/airview/airview/internal/metrics"
	"github.com/airview/airview/internal/oidc"
	"github.com/airview/airview/internal/server"
	"github.com/airview/airview/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	dataDir := cfg.DataDir
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		// Fallback for local development if the data dir doesn't exist
		dataDir = "."
	}

	var store session.Store
	switch cfg.StoreType {
	case config.StorePostgres:
		store, err = session.NewPostgresStore(context.Background(), cfg.DBConnectionString)
		if err != nil {
			logger.Error("Failed to initialize postgres session store", "error", err)
			os.Exit(1)
		}
		logger.Info("Using PostgreSQL session store")
	case config.StoreMemory:
		store = session.NewMemoryStore()
		logger.Info("Using in-memory session store")
	default:
		dbPath := filepath.Join(dataDir, "airview.db")
		store, err = session.NewSQLiteStore(dbPath)
		if err != nil {
			logger.Error("Failed to initialize sqlite session store", "error", err)
			os.Exit(1)
		}
		logger.Info("Using SQLite session store", "path", dbPath)
	}
	defer store.Close()

	idp := oidc.NewClient(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL, cfg.OIDCScopes)
	sessions := session.NewManager(store, idp, cfg.TokenSafetyMargin, logger)

	gw, err := gateway.New(cfg.BackendAPIURL, cfg.BackendTimeout, cfg.AuthEnabled, logger)
	if err != nil {
		logger.Error("Failed to initialize backend gateway", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	sessions.SetObserver(m)

	srv := server.New(cfg, gw, sessions, idp, m, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", srv.Routes())

	logger.Info("Starting dashboard server", "addr", cfg.ListenAddr, "auth_enabled", cfg.AuthEnabled, "backend", cfg.BackendAPIURL)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(level string) slog.Level {
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
