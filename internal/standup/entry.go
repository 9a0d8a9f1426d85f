package standup

import (
	"context"
	"slices"
	"time"
)

// Entry is one accepted standup post and the roles it granted.
type Entry struct {
	ID        string
	ChannelID int64
	UserID    int64
	RoleIDs   []int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ActiveAt reports whether the entry still blocks new posts at t.
func (e Entry) ActiveAt(t time.Time) bool { return e.ExpiresAt.After(t) }

// ExpiredAt reports whether the sweeper should collect the entry at t.
func (e Entry) ExpiredAt(t time.Time) bool { return !e.ExpiresAt.After(t) }

func (e Entry) clone() Entry {
	e.RoleIDs = slices.Clone(e.RoleIDs)
	return e
}

// EntryStore persists entries.
//
// MostRecentFor returns the entry with the greatest CreatedAt for the pair,
// or ok=false when there is none. ExpiredBefore returns entries whose
// ExpiresAt is at or before t. DeleteEntry returns ErrNotFound for an unknown id.
type EntryStore interface {
	CreateEntry(ctx context.Context, e Entry) error
	MostRecentFor(ctx context.Context, userID, channelID int64) (e Entry, ok bool, err error)
	ExpiredBefore(ctx context.Context, t time.Time) ([]Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	CountFor(ctx context.Context, userID, channelID int64) (int, error)
}

// Message is an inbound chat message as seen by the engine.
type Message struct {
	ID        int
	ChannelID int64
	ThreadID  int
	UserID    int64
	Text      string
	At        time.Time
}
