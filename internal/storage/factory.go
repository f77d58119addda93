// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/database"
	gormstorage "github.com/lookaround-map/viewer/internal/storage/gorm"
	"github.com/lookaround-map/viewer/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration. The sqlite and
// postgres types connect through dbm and record providerURL in the cache.
// Postgres falls back to an in-memory SQLite database that is dumped to
// cfg.SqlitePath on close.
func NewBackend(cfg config.StorageConfig, providerURL string, dbm *database.Manager, log *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.New(), nil
	case "sqlite", "postgres":
		if dbm == nil {
			return nil, fmt.Errorf("%s storage needs a database manager", cfg.Type)
		}
		var err error
		if cfg.Type == "sqlite" {
			err = dbm.ConnectSqlite(cfg.SqlitePath)
		} else {
			dbm.SqliteFilePath = cfg.SqlitePath
			err = dbm.Connect()
		}
		if err != nil {
			return nil, err
		}
		if err := dbm.Setup(providerURL); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:            dbm.DB,
			Logger:        log,
			WriteInterval: cfg.WriteInterval,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
