package storage

import (
	"cmp"
	"slices"
	"time"

	"standupbot/internal/standup"
)

// state is the in-memory model shared by the memory and file drivers.
// It is not safe for concurrent use; callers hold their own lock.
type state struct {
	rooms   map[int64]standup.Room
	entries map[string]standup.Entry
}

// stateFile is the on-disk form of state.
type stateFile struct {
	Rooms   []roomRecord  `json:"rooms"`
	Entries []entryRecord `json:"entries"`
}

type roomRecord struct {
	ChannelID  int64     `json:"channel_id"`
	RoleIDs    []int64   `json:"role_ids"`
	CooldownMS int64     `json:"cooldown_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type entryRecord struct {
	ID        string    `json:"id"`
	ChannelID int64     `json:"channel_id"`
	UserID    int64     `json:"user_id"`
	RoleIDs   []int64   `json:"role_ids"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newState() *state {
	return &state{rooms: map[int64]standup.Room{}, entries: map[string]standup.Entry{}}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.rooms {
		out.rooms[k] = cloneRoom(v)
	}
	for k, v := range s.entries {
		out.entries[k] = cloneEntry(v)
	}
	return out
}

func cloneRoom(r standup.Room) standup.Room {
	r.RoleIDs = slices.Clone(r.RoleIDs)
	if r.RoleIDs == nil {
		r.RoleIDs = []int64{}
	}
	return r
}

func cloneEntry(e standup.Entry) standup.Entry {
	e.RoleIDs = slices.Clone(e.RoleIDs)
	if e.RoleIDs == nil {
		e.RoleIDs = []int64{}
	}
	return e
}

func (s *state) insertRoom(r standup.Room) error {
	if _, ok := s.rooms[r.ChannelID]; ok {
		return standup.ErrAlreadyExists
	}
	s.rooms[r.ChannelID] = cloneRoom(r)
	return nil
}

func (s *state) getRoom(id int64) (standup.Room, error) {
	r, ok := s.rooms[id]
	if !ok {
		return standup.Room{}, standup.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (s *state) updateRoom(r standup.Room) error {
	if _, ok := s.rooms[r.ChannelID]; !ok {
		return standup.ErrNotFound
	}
	s.rooms[r.ChannelID] = cloneRoom(r)
	return nil
}

func (s *state) deleteRoom(id int64) error {
	if _, ok := s.rooms[id]; !ok {
		return standup.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *state) listRooms() []standup.Room {
	out := make([]standup.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, cloneRoom(r))
	}
	slices.SortFunc(out, func(a, b standup.Room) int { return cmp.Compare(a.ChannelID, b.ChannelID) })
	return out
}

func (s *state) createEntry(e standup.Entry) error {
	if _, ok := s.entries[e.ID]; ok {
		return standup.ErrAlreadyExists
	}
	s.entries[e.ID] = cloneEntry(e)
	return nil
}

func (s *state) mostRecentFor(userID, channelID int64) (standup.Entry, bool) {
	var (
		best  standup.Entry
		found bool
	)
	for _, e := range s.entries {
		if e.UserID != userID || e.ChannelID != channelID {
			continue
		}
		if !found || e.CreatedAt.After(best.CreatedAt) {
			best, found = e, true
		}
	}
	if !found {
		return standup.Entry{}, false
	}
	return cloneEntry(best), true
}

func (s *state) expiredBefore(t time.Time) []standup.Entry {
	var out []standup.Entry
	for _, e := range s.entries {
		if e.ExpiredAt(t) {
			out = append(out, cloneEntry(e))
		}
	}
	slices.SortFunc(out, compareExpiry)
	return out
}

func compareExpiry(a, b standup.Entry) int {
	if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *state) deleteEntry(id string) error {
	if _, ok := s.entries[id]; !ok {
		return standup.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *state) countFor(userID, channelID int64) int {
	n := 0
	for _, e := range s.entries {
		if e.UserID == userID && e.ChannelID == channelID {
			n++
		}
	}
	return n
}

func (s *state) toFile() stateFile {
	f := stateFile{Rooms: []roomRecord{}, Entries: []entryRecord{}}
	for _, r := range s.listRooms() {
		f.Rooms = append(f.Rooms, roomRecord{
			ChannelID:  r.ChannelID,
			RoleIDs:    r.RoleIDs,
			CooldownMS: r.Cooldown.Milliseconds(),
			CreatedAt:  r.CreatedAt,
		})
	}
	entries := make([]standup.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, compareExpiry)
	for _, e := range entries {
		f.Entries = append(f.Entries, entryRecord{
			ID:        e.ID,
			ChannelID: e.ChannelID,
			UserID:    e.UserID,
			RoleIDs:   slices.Clone(e.RoleIDs),
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	return f
}

func (s *state) fromFile(f stateFile) {
	for _, r := range f.Rooms {
		s.rooms[r.ChannelID] = cloneRoom(standup.Room{
			ChannelID: r.ChannelID,
			RoleIDs:   r.RoleIDs,
			Cooldown:  time.Duration(r.CooldownMS) * time.Millisecond,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, e := range f.Entries {
		s.entries[e.ID] = cloneEntry(standup.Entry{
			ID:        e.ID,
			ChannelID: e.ChannelID,
			UserID:    e.UserID,
			RoleIDs:   e.RoleIDs,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
}

func pruneExpiredDedup(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}
