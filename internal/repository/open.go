package repository

import (
	"context"
	"fmt"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
)

// Open returns the user store selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (user.Store, error) {
	switch cfg.Driver {
	case config.StorageFile, "":
		return NewFileStore(cfg.Path)
	case config.StorageSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.StoragePostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
