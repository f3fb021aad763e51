// Package adapter constructs the configured persistence backend. The choice
// is made exactly once at startup; callers receive a storage.Store and never
// learn (or re-resolve) which implementation sits behind it.
package adapter

import (
	"fmt"
	"io"

	"github.com/TallerLink/TallerLink/internal/common/config"
	"github.com/TallerLink/TallerLink/internal/common/db"
	"github.com/TallerLink/TallerLink/internal/common/logger"
	"github.com/TallerLink/TallerLink/internal/storage"
	"github.com/TallerLink/TallerLink/internal/storage/local"
	"github.com/TallerLink/TallerLink/internal/storage/remote"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Abrir builds the backend selected by cfg.Storage.Modo. The two backends
// hold disjoint data; switching the flag does not migrate anything.
func Abrir(cfg *config.Config, log logger.Logger) (storage.Store, io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("cfg is nil")
	}

	switch cfg.Storage.Modo {
	case config.ModoLocal:
		store, err := local.Abrir(cfg.Storage.RutaLocal, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		if log != nil {
			log.Infof("storage backend: local (%s)", cfg.Storage.RutaLocal)
		}
		return store, store, nil

	case config.ModoRemoto:
		gormDB, err := db.NewMySQL(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Database,
			cfg.Database.MaxIdle,
			cfg.Database.MaxOpen,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init mysql: %w", err)
		}
		store, err := remote.Abrir(gormDB, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open remote store: %w", err)
		}
		if log != nil {
			log.Infof("storage backend: remoto (%s:%d/%s)",
				cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
		}
		return store, nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("storage.modo inválido: %q", cfg.Storage.Modo)
	}
}
