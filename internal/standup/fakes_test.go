package standup

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// fakeStore is an in-memory RoomStore and EntryStore.
type fakeStore struct {
	mu      sync.Mutex
	rooms   map[int64]Room
	entries map[string]Entry

	failList   error
	failDelete map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: map[int64]Room{}, entries: map[string]Entry{}, failDelete: map[string]error{}}
}

func (s *fakeStore) InsertRoom(_ context.Context, r Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ChannelID]; ok {
		return ErrAlreadyExists
	}
	s.rooms[r.ChannelID] = r.clone()
	return nil
}

func (s *fakeStore) GetRoom(_ context.Context, id int64) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return r.clone(), nil
}

func (s *fakeStore) UpdateRoom(_ context.Context, r Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ChannelID]; !ok {
		return ErrNotFound
	}
	s.rooms[r.ChannelID] = r.clone()
	return nil
}

func (s *fakeStore) DeleteRoom(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *fakeStore) ListRooms(context.Context) ([]Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.clone())
	}
	slices.SortFunc(out, func(a, b Room) int { return cmp.Compare(a.ChannelID, b.ChannelID) })
	return out, nil
}

func (s *fakeStore) CreateEntry(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrAlreadyExists
	}
	s.entries[e.ID] = e.clone()
	return nil
}

func (s *fakeStore) MostRecentFor(_ context.Context, userID, channelID int64) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  Entry
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
	return best.clone(), found, nil
}

func (s *fakeStore) ExpiredBefore(_ context.Context, t time.Time) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.ExpiredAt(t) {
			out = append(out, e.clone())
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return out, nil
}

func (s *fakeStore) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failDelete[id]; err != nil {
		return err
	}
	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *fakeStore) CountFor(_ context.Context, userID, channelID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.UserID == userID && e.ChannelID == channelID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// recorder is an Effector that records applied intents.
type recorder struct {
	mu      sync.Mutex
	applied []Intent
	fail    map[IntentKind]error
	block   chan struct{}
}

func (r *recorder) Apply(ctx context.Context, in Intent) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, in)
	return r.fail[in.Kind]
}

func (r *recorder) kinds() []IntentKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]IntentKind, 0, len(r.applied))
	for _, in := range r.applied {
		out = append(out, in.Kind)
	}
	return out
}

func (r *recorder) only(kind IntentKind) []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Intent
	for _, in := range r.applied {
		if in.Kind == kind {
			out = append(out, in)
		}
	}
	return out
}

// manualClock is a settable clock.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func seqIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}
}

var errBoom = errors.New("boom")

const validStandup = "Yesterday I: x\nToday I will: y\nPotential hard problems: z"
