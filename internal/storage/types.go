package storage

import (
	"context"
	"errors"
	"time"

	"standupbot/internal/standup"
)

var ErrClosed = errors.New("storage closed")

// ErrTimeRange is returned for timestamps a driver cannot represent.
var ErrTimeRange = errors.New("timestamp out of range")

// Config configures storage.
//
// Driver values: "sqlite" (default), "file", "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ChatID        int64     `json:"chat_id"`
	ThreadID      int       `json:"thread_id,omitempty"`
	Action        string    `json:"action"`
	Target        string    `json:"target,omitempty"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	TookMS        int64     `json:"took_ms"`
	Meta          string    `json:"meta,omitempty"`
}

// Store is the persistence API used by the bot.
type Store interface {
	standup.RoomStore
	standup.EntryStore

	AppendAudit(ctx context.Context, e AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}
