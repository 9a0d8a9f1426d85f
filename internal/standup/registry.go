package standup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Registry is the set of governed rooms.
//
// Reads are served from an in-memory snapshot filled by Load; every mutation
// writes through to the RoomStore first and updates the snapshot only once the
// store accepted it.
type Registry struct {
	store RoomStore
	now   func() time.Time

	mu              sync.RWMutex
	rooms           map[int64]Room
	loaded          bool
	defaultCooldown time.Duration
}

type RegistryOption func(*Registry)

// WithRegistryClock sets the clock used for Room.CreatedAt.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDefaultCooldown sets the cooldown of newly registered rooms.
func WithDefaultCooldown(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if ValidCooldown(d) {
			r.defaultCooldown = d
		}
	}
}

func NewRegistry(store RoomStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:           store,
		now:             time.Now,
		rooms:           map[int64]Room{},
		defaultCooldown: DefaultCooldown,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load replaces the snapshot with the rooms currently in the store.
func (r *Registry) Load(ctx context.Context) error {
	list, err := r.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	m := make(map[int64]Room, len(list))
	for _, room := range list {
		m[room.ChannelID] = room.clone()
	}
	r.mu.Lock()
	r.rooms = m
	r.loaded = true
	r.mu.Unlock()
	return nil
}

// SetDefaultCooldown changes the cooldown for rooms registered from now on.
// Existing rooms keep theirs.
func (r *Registry) SetDefaultCooldown(d time.Duration) {
	if !ValidCooldown(d) {
		return
	}
	r.mu.Lock()
	r.defaultCooldown = d
	r.mu.Unlock()
}

func (r *Registry) Register(ctx context.Context, channelID int64, roles []int64) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[channelID]; ok {
		return Room{}, fmt.Errorf("room %d: %w", channelID, ErrAlreadyExists)
	}
	room := Room{
		ChannelID: channelID,
		RoleIDs:   NormalizeRoles(roles),
		Cooldown:  r.defaultCooldown,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.InsertRoom(ctx, room); err != nil {
		return Room{}, fmt.Errorf("room %d: %w", channelID, err)
	}
	r.rooms[channelID] = room
	return room.clone(), nil
}

// Lookup returns the room for channelID. Before Load it falls back to the store.
func (r *Registry) Lookup(ctx context.Context, channelID int64) (Room, bool, error) {
	r.mu.RLock()
	room, ok := r.rooms[channelID]
	loaded := r.loaded
	r.mu.RUnlock()
	if ok {
		return room.clone(), true, nil
	}
	if loaded {
		return Room{}, false, nil
	}

	room, err := r.store.GetRoom(ctx, channelID)
	if errors.Is(err, ErrNotFound) {
		return Room{}, false, nil
	}
	if err != nil {
		return Room{}, false, fmt.Errorf("lookup room %d: %w", channelID, err)
	}
	return room, true, nil
}

func (r *Registry) UpdateRoles(ctx context.Context, channelID int64, roles []int64) (Room, error) {
	return r.update(ctx, channelID, func(room *Room) { room.RoleIDs = NormalizeRoles(roles) })
}

func (r *Registry) UpdateCooldown(ctx context.Context, channelID int64, d time.Duration) (Room, error) {
	if !ValidCooldown(d) {
		return Room{}, ErrInvalidCooldown
	}
	return r.update(ctx, channelID, func(room *Room) { room.Cooldown = d })
}

func (r *Registry) update(ctx context.Context, channelID int64, mutate func(*Room)) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.current(ctx, channelID)
	if err != nil {
		return Room{}, err
	}
	mutate(&room)
	if err := r.store.UpdateRoom(ctx, room); err != nil {
		return Room{}, fmt.Errorf("room %d: %w", channelID, err)
	}
	r.rooms[channelID] = room
	return room.clone(), nil
}

// current returns a private copy of the room. Caller holds r.mu.
func (r *Registry) current(ctx context.Context, channelID int64) (Room, error) {
	if room, ok := r.rooms[channelID]; ok {
		return room.clone(), nil
	}
	if r.loaded {
		return Room{}, fmt.Errorf("room %d: %w", channelID, ErrNotFound)
	}
	room, err := r.store.GetRoom(ctx, channelID)
	if err != nil {
		return Room{}, fmt.Errorf("room %d: %w", channelID, err)
	}
	return room, nil
}

// Remove deletes the room. Entries already granted in it are left alone and
// expire normally.
func (r *Registry) Remove(ctx context.Context, channelID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteRoom(ctx, channelID); err != nil {
		return fmt.Errorf("room %d: %w", channelID, err)
	}
	delete(r.rooms, channelID)
	return nil
}

// List returns all rooms ordered by ChannelID.
func (r *Registry) List(ctx context.Context) ([]Room, error) {
	r.mu.RLock()
	loaded := r.loaded
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.clone())
	}
	r.mu.RUnlock()

	if !loaded {
		list, err := r.store.ListRooms(ctx)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		out = list
	}
	slices.SortFunc(out, func(a, b Room) int {
		switch {
		case a.ChannelID < b.ChannelID:
			return -1
		case a.ChannelID > b.ChannelID:
			return 1
		}
		return 0
	})
	return out, nil
}
