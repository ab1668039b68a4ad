package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/authflow"
	"github.com/vibevideos/client/internal/config"
	"github.com/vibevideos/client/internal/events"
	"github.com/vibevideos/client/internal/library"
	"github.com/vibevideos/client/internal/session"
	"github.com/vibevideos/client/internal/upload"
)

// dependencies wires the client components together with their
// cross-component signals.
type dependencies struct {
	client   *api.Client
	bus      *events.Bus
	sessions *session.Store
	flow     *authflow.Flow
	library  *library.SyncClient
	uploads  *upload.Pipeline
}

func buildDependencies(cfg config.Config, logger *slog.Logger) (*dependencies, error) {
	sessionPath, err := expandHome(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	client := api.New(api.Config{
		BaseURL:           cfg.ServerURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})

	bus := events.NewBus()
	sessions := session.NewStore(session.NewFileStorage(sessionPath), logger)
	if err := sessions.Initialize(); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	flow := authflow.New(client, sessions, logger)
	lib := library.NewSyncClient(client, sessions, bus, logger)
	uploads := upload.NewPipeline(client, sessions, bus, logger)

	// A rejected token tears the session down everywhere: the store is
	// cleared and the auth flow falls back to signup.
	if err := bus.Subscribe(events.TopicSessionExpired, func() {
		if err := sessions.Clear(); err != nil {
			logger.Error("failed to clear expired session", "error", err)
		}
		flow.Reset()
	}); err != nil {
		return nil, fmt.Errorf("wire session teardown: %w", err)
	}

	// A finished upload refreshes the library.
	if err := bus.Subscribe(events.TopicVideoUploaded, func() {
		if err := lib.Refresh(context.Background()); err != nil {
			logger.Warn("post-upload refresh failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("wire upload refresh: %w", err)
	}

	return &dependencies{
		client:   client,
		bus:      bus,
		sessions: sessions,
		flow:     flow,
		library:  lib,
		uploads:  uploads,
	}, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
