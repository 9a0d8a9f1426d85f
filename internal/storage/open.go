package storage

import (
	"fmt"
	"strings"

	"standupbot/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	case "memory", "mem":
		log.Warn("memory storage: rooms and entries are lost on restart")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}
