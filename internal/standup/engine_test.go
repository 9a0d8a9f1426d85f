package standup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standupbot/internal/eventbus"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	store   *fakeStore
	reg     *Registry
	eff     *recorder
	clock   *manualClock
	engine  *Engine
	sweeper *Sweeper
	bus     eventbus.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		eff:   &recorder{fail: map[IntentKind]error{}},
		clock: &manualClock{t: t0},
		bus:   eventbus.New(),
	}
	h.reg = NewRegistry(h.store, WithRegistryClock(h.clock.Now))
	require.NoError(t, h.reg.Load(context.Background()))
	h.engine = NewEngine(h.reg, h.store, h.eff,
		WithClock(h.clock.Now),
		WithIDGenerator(seqIDs()),
		WithBus(h.bus),
	)
	h.sweeper = NewSweeper(h.store, h.eff, WithSweepClock(h.clock.Now), WithSweepBus(h.bus))
	h.sweeper.MarkReady()
	return h
}

func (h *harness) room(t *testing.T, channel int64, roles []int64, cooldown time.Duration) {
	t.Helper()
	_, err := h.reg.Register(context.Background(), channel, roles)
	require.NoError(t, err)
	_, err = h.reg.UpdateCooldown(context.Background(), channel, cooldown)
	require.NoError(t, err)
}

func (h *harness) post(t *testing.T, channel, user int64, text string, at time.Time) Decision {
	t.Helper()
	d, err := h.engine.HandleMessage(context.Background(), Message{ID: 1, ChannelID: channel, UserID: user, Text: text, At: at})
	require.NoError(t, err)
	return d
}

func TestStandupLifecycleScenarios(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, 42, []int64{7}, 24*time.Hour)
	const user = int64(1001)

	// A: valid post creates an entry and grants the room's roles.
	d := h.post(t, 42, user, validStandup, t0)
	require.Equal(t, OutcomeAccepted, d.Outcome)
	require.NotNil(t, d.Entry)
	assert.Equal(t, t0.Add(24*time.Hour), d.Entry.ExpiresAt)
	grants := h.eff.only(IntentGrantRoles)
	require.Len(t, grants, 1)
	assert.Equal(t, []int64{7}, grants[0].RoleIDs)
	assert.Equal(t, user, grants[0].UserID)

	// B: second post within the cooldown is rejected.
	d = h.post(t, 42, user, validStandup, t0.Add(time.Hour))
	assert.Equal(t, OutcomeCooldown, d.Outcome)
	assert.Nil(t, d.Entry)
	n, err := h.store.CountFor(ctx, user, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, h.eff.only(IntentGrantRoles), 1)

	// C: sweep after expiry revokes and deletes.
	h.clock.Set(t0.Add(24*time.Hour + time.Minute))
	rep, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Expired)
	assert.Equal(t, 1, rep.Deleted)
	revokes := h.eff.only(IntentRevokeRoles)
	require.Len(t, revokes, 1)
	assert.Equal(t, []int64{7}, revokes[0].RoleIDs)
	assert.Equal(t, 0, h.store.entryCount())

	// D: malformed post creates nothing and touches no roles.
	before := len(h.eff.only(IntentGrantRoles)) + len(h.eff.only(IntentRevokeRoles))
	d = h.post(t, 42, 2002, "hello", h.clock.Now())
	assert.Equal(t, OutcomeMalformed, d.Outcome)
	assert.Equal(t, 0, h.store.entryCount())
	assert.Equal(t, before, len(h.eff.only(IntentGrantRoles))+len(h.eff.only(IntentRevokeRoles)))
}

func TestRejectionDeletesAndSendsHelp(t *testing.T) {
	h := newHarness(t)
	h.room(t, 42, []int64{7}, time.Hour)

	h.post(t, 42, 1, validStandup, t0)
	h.eff.applied = nil

	for _, tc := range []struct {
		text string
		want Outcome
	}{
		{validStandup, OutcomeCooldown},
		{"hello", OutcomeCooldown},
	} {
		d := h.post(t, 42, 1, tc.text, t0.Add(time.Minute))
		assert.Equal(t, tc.want, d.Outcome)
	}
	assert.Equal(t, []IntentKind{
		IntentDeleteMessage, IntentSendHelp,
		IntentDeleteMessage, IntentSendHelp,
	}, h.eff.kinds())

	d := h.post(t, 42, 2, "hello", t0)
	assert.Equal(t, OutcomeMalformed, d.Outcome)
	assert.Equal(t, []IntentKind{IntentDeleteMessage, IntentSendHelp}, kindsOf(d.Intents))
}

func TestUnknownChannelIgnored(t *testing.T) {
	h := newHarness(t)
	d := h.post(t, 99, 1, validStandup, t0)
	assert.Equal(t, OutcomeIgnored, d.Outcome)
	assert.Empty(t, h.eff.kinds())
	assert.Equal(t, 0, h.store.entryCount())
}

func TestCooldownBoundary(t *testing.T) {
	h := newHarness(t)
	h.room(t, 42, []int64{7}, time.Hour)
	require.Equal(t, OutcomeAccepted, h.post(t, 42, 1, validStandup, t0).Outcome)

	assert.Equal(t, OutcomeCooldown, h.post(t, 42, 1, validStandup, t0.Add(time.Hour-time.Nanosecond)).Outcome)
	// The entry expires exactly at t0+1h and no longer blocks.
	assert.Equal(t, OutcomeAccepted, h.post(t, 42, 1, validStandup, t0.Add(time.Hour)).Outcome)

	n, err := h.store.CountFor(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCooldownIsPerUserAndChannel(t *testing.T) {
	h := newHarness(t)
	h.room(t, 42, []int64{7}, time.Hour)
	h.room(t, 43, []int64{8}, time.Hour)

	assert.Equal(t, OutcomeAccepted, h.post(t, 42, 1, validStandup, t0).Outcome)
	assert.Equal(t, OutcomeAccepted, h.post(t, 42, 2, validStandup, t0).Outcome)
	assert.Equal(t, OutcomeAccepted, h.post(t, 43, 1, validStandup, t0).Outcome)
	assert.Equal(t, OutcomeCooldown, h.post(t, 43, 1, validStandup, t0.Add(time.Minute)).Outcome)
}

func TestEntrySnapshotSurvivesRoomChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.room(t, 42, []int64{7}, 2*time.Hour)

	d := h.post(t, 42, 1, validStandup, t0)
	require.NotNil(t, d.Entry)

	_, err := h.reg.UpdateRoles(ctx, 42, []int64{8, 9})
	require.NoError(t, err)
	_, err = h.reg.UpdateCooldown(ctx, 42, time.Minute)
	require.NoError(t, err)

	stored, ok, err := h.store.MostRecentFor(ctx, 1, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{7}, stored.RoleIDs)
	assert.Equal(t, t0.Add(2*time.Hour), stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.After(stored.CreatedAt))

	// Removing the room leaves the entry to expire normally.
	require.NoError(t, h.reg.Remove(ctx, 42))
	h.clock.Set(t0.Add(2 * time.Hour))
	rep, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	revokes := h.eff.only(IntentRevokeRoles)
	require.Len(t, revokes, 1)
	assert.Equal(t, []int64{7}, revokes[0].RoleIDs)
}

func TestEffectFailureDoesNotBlockPersistence(t *testing.T) {
	h := newHarness(t)
	h.room(t, 42, []int64{7}, time.Hour)
	h.eff.fail[IntentGrantRoles] = errBoom

	d := h.post(t, 42, 1, validStandup, t0)
	assert.Equal(t, OutcomeAccepted, d.Outcome)
	assert.Equal(t, 1, h.store.entryCount())
}

func TestMessageWithoutTimestampUsesClock(t *testing.T) {
	h := newHarness(t)
	h.room(t, 42, nil, time.Hour)
	d, err := h.engine.HandleMessage(context.Background(), Message{ChannelID: 42, UserID: 1, Text: validStandup})
	require.NoError(t, err)
	require.NotNil(t, d.Entry)
	assert.Equal(t, t0, d.Entry.CreatedAt)
}

func TestEnginePublishesEvents(t *testing.T) {
	h := newHarness(t)
	ch, unsub := h.bus.Subscribe(8)
	defer unsub()
	h.room(t, 42, []int64{7}, time.Hour)

	h.post(t, 42, 1, validStandup, t0)
	h.post(t, 42, 1, "nope", t0.Add(time.Second))

	ev := <-ch
	assert.Equal(t, EventEntryCreated, ev.Type)
	assert.Equal(t, "entry-1", ev.Data.(EntryEvent).EntryID)
	ev = <-ch
	assert.Equal(t, EventEntryRejected, ev.Type)
	assert.Equal(t, OutcomeCooldown.String(), ev.Data.(EntryEvent).Outcome)
}

func TestDecideIsPure(t *testing.T) {
	room := &Room{ChannelID: 42, RoleIDs: []int64{7}, Cooldown: time.Hour}
	msg := Message{ID: 5, ChannelID: 42, UserID: 1, Text: validStandup, At: t0}

	a := Decide(room, nil, msg, func() string { return "x" })
	b := Decide(room, nil, msg, func() string { return "x" })
	assert.Equal(t, a, b)
	assert.Equal(t, []int64{7}, room.RoleIDs)

	// The entry's role snapshot does not alias the room.
	a.Entry.RoleIDs[0] = 1
	assert.Equal(t, []int64{7}, room.RoleIDs)

	zero := Decide(&Room{ChannelID: 42}, nil, msg, func() string { return "y" })
	require.NotNil(t, zero.Entry)
	assert.Equal(t, t0.Add(DefaultCooldown), zero.Entry.ExpiresAt)

	huge := Decide(&Room{ChannelID: 42, Cooldown: 1 << 62}, nil, msg, func() string { return "z" })
	require.NotNil(t, huge.Entry)
	assert.Equal(t, t0.Add(MaxCooldown), huge.Entry.ExpiresAt)
	assert.True(t, huge.Entry.ExpiresAt.After(huge.Entry.CreatedAt))
}

func kindsOf(in []Intent) []IntentKind {
	out := make([]IntentKind, 0, len(in))
	for _, i := range in {
		out = append(out, i.Kind)
	}
	return out
}
