package standup

import (
	"context"
	"slices"
	"time"
)

// DefaultCooldown applies to rooms created without an explicit cooldown.
const DefaultCooldown = 24 * time.Hour

// MaxCooldown bounds room cooldowns so expiry times stay well inside the
// range every store can represent.
const MaxCooldown = 10 * 365 * 24 * time.Hour

// ValidCooldown reports whether d can be used as a room cooldown.
func ValidCooldown(d time.Duration) bool { return d > 0 && d <= MaxCooldown }

// Room is a chat under standup governance.
type Room struct {
	ChannelID int64
	RoleIDs   []int64
	Cooldown  time.Duration
	CreatedAt time.Time
}

func (r Room) clone() Room {
	r.RoleIDs = slices.Clone(r.RoleIDs)
	return r
}

// RoomStore persists rooms.
//
// InsertRoom returns ErrAlreadyExists for a duplicate channel; GetRoom,
// UpdateRoom and DeleteRoom return ErrNotFound for an unknown one. ListRooms
// orders by ChannelID ascending.
type RoomStore interface {
	InsertRoom(ctx context.Context, r Room) error
	GetRoom(ctx context.Context, channelID int64) (Room, error)
	UpdateRoom(ctx context.Context, r Room) error
	DeleteRoom(ctx context.Context, channelID int64) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// NormalizeRoles returns a sorted copy of ids without duplicates.
func NormalizeRoles(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int64{}
	}
	return out
}
