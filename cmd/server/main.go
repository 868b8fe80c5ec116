package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dorthy/internal/config"
	"dorthy/internal/content"
	"dorthy/internal/db"
	"dorthy/internal/prefs"
	"dorthy/internal/shell"
	"dorthy/internal/widget"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(cfg)
	if err != nil {
		slog.Error("failed to open preference storage", "backend", cfg.PreferencesBackend, "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	store := prefs.New(ctx, prefs.Options{
		Storage:    storage,
		StorageKey: cfg.ThemeStorageKey,
		Signal:     prefs.StaticSignal(cfg.PrefersDark),
		Logger:     logger,
	})
	slog.Info("preferences loaded", "backend", cfg.PreferencesBackend, "scheme", store.Scheme())

	source := content.NewStaticSource(content.Default())
	if cfg.ContentPath != "" {
		source, err = content.NewFileSource(cfg.ContentPath, logger)
		if err != nil {
			slog.Error("failed to load content table", "path", cfg.ContentPath, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := source.Watch(ctx); err != nil {
				slog.Warn("content watcher stopped", "error", err)
			}
		}()
	}

	serverCfg := shell.Config{
		Addr:            ":" + cfg.Port,
		AllowedHosts:    cfg.AllowedHosts,
		CORSOrigins:     cfg.CORSOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.ProxiesBackend() {
		serverCfg.BackendURL = cfg.BackendURL
		serverCfg.ProxyPath = cfg.APIURL
	}

	server, err := shell.New(serverCfg, shell.Deps{
		Prefs:   store,
		Content: source,
		Widget: widget.Settings{
			APIURL:    cfg.APIURL,
			DomainKey: cfg.DomainKey,
		},
		Ready: &shell.ReadyRef{},
	}, logger)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.DevMode {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func openStorage(cfg config.Config) (prefs.Storage, func(), error) {
	switch cfg.PreferencesBackend {
	case config.BackendMemory:
		return prefs.NewMemoryStorage(), func() {}, nil
	case config.BackendFile:
		storage, err := prefs.NewFileStorage(cfg.PreferencesFile)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {}, nil
	case config.BackendSQLite:
		sqlite, err := db.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return prefs.NewSQLiteStorage(sqlite), func() { _ = sqlite.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown preferences backend %q", cfg.PreferencesBackend)
	}
}
