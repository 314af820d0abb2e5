package storage

import (
	"context"
	"errors"
	"strings"

	"bossbot/internal/boss"
	logx "bossbot/pkg/logx"
)

// Store is the persistence API used by the boss store and command layer.
// It satisfies boss.Persister.
type Store interface {
	LoadRecords(ctx context.Context) (map[string]*boss.Record, error)
	SaveRecords(ctx context.Context, recs map[string]*boss.Record) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
