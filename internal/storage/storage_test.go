package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standupbot/internal/standup"
	"standupbot/pkg/logx"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type driverCase struct {
	name string
	open func(t *testing.T, dir string) Store
}

func drivers() []driverCase {
	return []driverCase{
		{"memory", func(t *testing.T, _ string) Store { return NewMemory() }},
		{"file", func(t *testing.T, dir string) Store {
			st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
			require.NoError(t, err)
			return st
		}},
		{"sqlite", func(t *testing.T, dir string) Store {
			st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
			require.NoError(t, err)
			return st
		}},
	}
}

func eachDriver(t *testing.T, fn func(t *testing.T, st Store)) {
	for _, d := range drivers() {
		t.Run(d.name, func(t *testing.T) {
			st := d.open(t, t.TempDir())
			t.Cleanup(func() { _ = st.Close() })
			fn(t, st)
		})
	}
}

func TestRooms(t *testing.T) {
	eachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		room := standup.Room{ChannelID: 42, RoleIDs: []int64{7, 9}, Cooldown: 24 * time.Hour, CreatedAt: base}

		require.NoError(t, st.InsertRoom(ctx, room))
		assert.ErrorIs(t, st.InsertRoom(ctx, room), standup.ErrAlreadyExists)

		got, err := st.GetRoom(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, room, got)

		_, err = st.GetRoom(ctx, 1)
		assert.ErrorIs(t, err, standup.ErrNotFound)

		room.RoleIDs = []int64{}
		room.Cooldown = time.Hour
		require.NoError(t, st.UpdateRoom(ctx, room))
		got, err = st.GetRoom(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, room, got)
		assert.ErrorIs(t, st.UpdateRoom(ctx, standup.Room{ChannelID: 1}), standup.ErrNotFound)

		require.NoError(t, st.InsertRoom(ctx, standup.Room{ChannelID: -100, Cooldown: time.Minute, CreatedAt: base}))
		list, err := st.ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int64(-100), list[0].ChannelID)
		assert.Equal(t, int64(42), list[1].ChannelID)

		require.NoError(t, st.DeleteRoom(ctx, 42))
		assert.ErrorIs(t, st.DeleteRoom(ctx, 42), standup.ErrNotFound)
	})
}

func TestEntries(t *testing.T) {
	eachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		mk := func(id string, user int64, created time.Time) standup.Entry {
			return standup.Entry{
				ID: id, ChannelID: 42, UserID: user, RoleIDs: []int64{7},
				CreatedAt: created, ExpiresAt: created.Add(time.Hour),
			}
		}

		_, ok, err := st.MostRecentFor(ctx, 1, 42)
		require.NoError(t, err)
		assert.False(t, ok)

		old := mk("a", 1, base)
		newer := mk("b", 1, base.Add(2*time.Hour))
		other := mk("c", 2, base.Add(30*time.Minute))
		for _, e := range []standup.Entry{old, newer, other} {
			require.NoError(t, st.CreateEntry(ctx, e))
		}
		assert.ErrorIs(t, st.CreateEntry(ctx, old), standup.ErrAlreadyExists)

		got, ok, err := st.MostRecentFor(ctx, 1, 42)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, newer, got)

		n, err := st.CountFor(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// Expiry is inclusive.
		expired, err := st.ExpiredBefore(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, old, expired[0])

		expired, err = st.ExpiredBefore(ctx, base.Add(90*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, "a", expired[0].ID)
		assert.Equal(t, "c", expired[1].ID)

		require.NoError(t, st.DeleteEntry(ctx, "a"))
		assert.ErrorIs(t, st.DeleteEntry(ctx, "a"), standup.ErrNotFound)
		n, err = st.CountFor(ctx, 1, 42)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestAuditAndDedup(t *testing.T) {
	eachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		for i, action := range []string{"rooms.add", "rooms.remove"} {
			require.NoError(t, st.AppendAudit(ctx, AuditEntry{
				At: base.Add(time.Duration(i) * time.Second), ActorID: 5, ChatID: 1,
				Action: action, Target: "42", OK: true,
			}))
		}
		recent, err := st.RecentAudit(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "rooms.remove", recent[0].Action)
		assert.True(t, recent[0].OK)

		_, ok, err := st.GetDedup(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
		require.NoError(t, st.PutDedup(ctx, "k", until))
		got, ok, err := st.GetDedup(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, until.Equal(got))
	})
}

func TestPersistentDriversSurviveReopen(t *testing.T) {
	for _, d := range drivers() {
		if d.name == "memory" {
			continue
		}
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			st := d.open(t, dir)
			require.NoError(t, st.InsertRoom(ctx, standup.Room{ChannelID: 42, RoleIDs: []int64{7}, Cooldown: time.Hour, CreatedAt: base}))
			require.NoError(t, st.CreateEntry(ctx, standup.Entry{
				ID: "a", ChannelID: 42, UserID: 1, RoleIDs: []int64{7},
				CreatedAt: base, ExpiresAt: base.Add(time.Hour),
			}))
			require.NoError(t, st.PutDedup(ctx, "k", time.Now().Add(time.Hour)))
			require.NoError(t, st.Close())

			st = d.open(t, dir)
			defer st.Close()
			room, err := st.GetRoom(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, time.Hour, room.Cooldown)
			e, ok, err := st.MostRecentFor(ctx, 1, 42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, base.Add(time.Hour), e.ExpiresAt)
			_, ok, err = st.GetDedup(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestLongestCooldownRoundTrips(t *testing.T) {
	eachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		e := standup.Entry{
			ID: "long", ChannelID: 42, UserID: 1, RoleIDs: []int64{7},
			CreatedAt: base, ExpiresAt: base.Add(standup.MaxCooldown),
		}
		require.NoError(t, st.CreateEntry(ctx, e))

		got, ok, err := st.MostRecentFor(ctx, 1, 42)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, e.ExpiresAt, got.ExpiresAt)
		assert.True(t, got.ActiveAt(base.Add(time.Hour)))

		expired, err := st.ExpiredBefore(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, expired)

		// Cutoffs past 2262 must not wrap around.
		expired, err = st.ExpiredBefore(ctx, time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, expired, 1)
	})
}

func TestSQLiteRejectsUnrepresentableTimes(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	e := standup.Entry{
		ID: "far", ChannelID: 42, UserID: 1,
		CreatedAt: base, ExpiresAt: time.Date(2311, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.ErrorIs(t, st.CreateEntry(ctx, e), ErrTimeRange)

	_, ok, err := st.MostRecentFor(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosedStore(t *testing.T) {
	for _, d := range drivers() {
		if d.name == "sqlite" {
			continue
		}
		t.Run(d.name, func(t *testing.T) {
			st := d.open(t, t.TempDir())
			require.NoError(t, st.Close())
			assert.ErrorIs(t, st.InsertRoom(context.Background(), standup.Room{ChannelID: 1}), ErrClosed)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)
}
