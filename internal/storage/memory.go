package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"standupbot/internal/standup"
)

const memAuditCap = 1000

type memStore struct {
	mu     sync.Mutex
	st     *state
	dedup  map[string]int64
	audit  []AuditEntry
	closed bool
}

// NewMemory returns a process-local Store.
func NewMemory() Store {
	return &memStore{st: newState(), dedup: map[string]int64{}}
}

func (s *memStore) do(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.st)
}

func (s *memStore) InsertRoom(_ context.Context, r standup.Room) error {
	return wrapErr("insert room", s.do(func(st *state) error { return st.insertRoom(r) }))
}

func (s *memStore) GetRoom(_ context.Context, id int64) (out standup.Room, err error) {
	err = s.do(func(st *state) error {
		out, err = st.getRoom(id)
		return err
	})
	return out, wrapErr("get room", err)
}

func (s *memStore) UpdateRoom(_ context.Context, r standup.Room) error {
	return wrapErr("update room", s.do(func(st *state) error { return st.updateRoom(r) }))
}

func (s *memStore) DeleteRoom(_ context.Context, id int64) error {
	return wrapErr("delete room", s.do(func(st *state) error { return st.deleteRoom(id) }))
}

func (s *memStore) ListRooms(context.Context) (out []standup.Room, err error) {
	err = s.do(func(st *state) error {
		out = st.listRooms()
		return nil
	})
	return out, wrapErr("list rooms", err)
}

func (s *memStore) CreateEntry(_ context.Context, e standup.Entry) error {
	return wrapErr("create entry", s.do(func(st *state) error { return st.createEntry(e) }))
}

func (s *memStore) MostRecentFor(_ context.Context, userID, channelID int64) (out standup.Entry, ok bool, err error) {
	err = s.do(func(st *state) error {
		out, ok = st.mostRecentFor(userID, channelID)
		return nil
	})
	return out, ok, wrapErr("most recent entry", err)
}

func (s *memStore) ExpiredBefore(_ context.Context, t time.Time) (out []standup.Entry, err error) {
	err = s.do(func(st *state) error {
		out = st.expiredBefore(t)
		return nil
	})
	return out, wrapErr("expired entries", err)
}

func (s *memStore) DeleteEntry(_ context.Context, id string) error {
	return wrapErr("delete entry", s.do(func(st *state) error { return st.deleteEntry(id) }))
}

func (s *memStore) CountFor(_ context.Context, userID, channelID int64) (n int, err error) {
	err = s.do(func(st *state) error {
		n = st.countFor(userID, channelID)
		return nil
	})
	return n, wrapErr("count entries", err)
}

func (s *memStore) AppendAudit(_ context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return s.do(func(*state) error {
		s.audit = append(s.audit, e)
		if over := len(s.audit) - memAuditCap; over > 0 {
			s.audit = slices.Delete(s.audit, 0, over)
		}
		return nil
	})
}

func (s *memStore) RecentAudit(_ context.Context, limit int) (out []AuditEntry, err error) {
	err = s.do(func(*state) error {
		out = lastAudit(s.audit, limit)
		return nil
	})
	return out, err
}

// lastAudit returns up to limit entries of list, newest first.
func lastAudit(list []AuditEntry, limit int) []AuditEntry {
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := slices.Clone(list[len(list)-limit:])
	slices.Reverse(out)
	return out
}

func (s *memStore) PutDedup(_ context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.do(func(*state) error {
		s.dedup[key] = until.UnixMilli()
		return nil
	})
}

func (s *memStore) GetDedup(_ context.Context, key string) (until time.Time, ok bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	err = s.do(func(*state) error {
		var ms int64
		if ms, ok = s.dedup[key]; ok {
			until = time.UnixMilli(ms)
		}
		return nil
	})
	return until, ok, err
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// wrapErr adds context while keeping the standup sentinels matchable.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
