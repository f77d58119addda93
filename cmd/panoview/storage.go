package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/database"
	"github.com/lookaround-map/viewer/internal/logging"
	"github.com/lookaround-map/viewer/internal/provider"
	"github.com/lookaround-map/viewer/internal/storage"
)

// pendingCounter is implemented by backends with a write-behind queue.
type pendingCounter interface {
	Pending() int
}

// openSource connects the panorama metadata cache and wraps the provider
// client with it. The returned close func releases both.
func openSource(ctx context.Context, logger *slog.Logger, logs *logging.SlogManager) (*provider.CachedSource, storage.Backend, func(), error) {
	storageCfg := config.GetStorageConfig()
	providerCfg := config.GetProviderConfig()

	var dbm *database.Manager
	if storageCfg.Type == "sqlite" || storageCfg.Type == "postgres" {
		dbm = database.NewManager(logs.Zerolog("database"))
	}

	backend, err := storage.NewBackend(storageCfg, providerCfg.BaseURL, dbm, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	logger.Info("Storage backend initialized", "type", storageCfg.Type)

	client := provider.New(providerCfg.BaseURL, providerCfg.Timeout, logger)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Info("Panorama provider is offline, serving cached metadata", "url", client.BaseURL(), "error", err)
	} else {
		logger.Info("Panorama provider is online", "url", client.BaseURL())
	}
	source, err := provider.NewCachedSource(client, backend, providerCfg.CacheMaxCost, storageCfg.Radius, logger)
	if err != nil {
		_ = backend.Close()
		return nil, nil, nil, err
	}

	closeFn := func() {
		source.Close()
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
		if dbm != nil {
			if err := dbm.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}
	}
	return source, backend, closeFn, nil
}
