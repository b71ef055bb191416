package store

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/infra"
)

// New builds the unopened store selected by cfg.StoreDriver.
func New(cfg *infra.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		return NewPostgres(cfg.PoolConfig(), logger), nil
	case infra.StoreDriverSQLite:
		return NewSQLite(cfg.SQLitePath, logger), nil
	case infra.StoreDriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.StoreDriver)
	}
}
