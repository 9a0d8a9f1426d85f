package standup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"standupbot/internal/eventbus"
	"standupbot/pkg/logx"
)

const (
	EventEntryCreated  = "standup.entry.created"
	EventEntryRejected = "standup.entry.rejected"
	EventEntryExpired  = "standup.entry.expired"
)

// EntryEvent is the payload of the standup.entry.* events.
type EntryEvent struct {
	EntryID   string    `json:"entry_id,omitempty"`
	ChannelID int64     `json:"channel_id"`
	UserID    int64     `json:"user_id"`
	Outcome   string    `json:"outcome,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// RoomLookup is the part of Registry the engine reads.
type RoomLookup interface {
	Lookup(ctx context.Context, channelID int64) (Room, bool, error)
}

const DefaultEffectTimeout = 15 * time.Second

// Engine runs inbound messages through Decide, stores accepted entries and
// applies the resulting intents.
//
// HandleMessage is expected to be called from a single goroutine in message
// arrival order; the cooldown check and the entry write are not atomic
// across concurrent callers for the same user and channel.
type Engine struct {
	rooms   RoomLookup
	entries EntryStore
	effects Effector

	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time
	newID func() string

	effectTimeout atomic.Int64
}

type EngineOption func(*Engine)

func WithLogger(l logx.Logger) EngineOption { return func(e *Engine) { e.log = l } }
func WithBus(b eventbus.Bus) EngineOption   { return func(e *Engine) { e.bus = b } }

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(f func() string) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.newID = f
		}
	}
}

func WithEffectTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.SetEffectTimeout(d) }
}

func NewEngine(rooms RoomLookup, entries EntryStore, effects Effector, opts ...EngineOption) *Engine {
	e := &Engine{
		rooms:   rooms,
		entries: entries,
		effects: effects,
		log:     logx.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	e.effectTimeout.Store(int64(DefaultEffectTimeout))
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetEffectTimeout bounds each grant, revoke, delete or DM call.
func (e *Engine) SetEffectTimeout(d time.Duration) {
	if d > 0 {
		e.effectTimeout.Store(int64(d))
	}
}

// HandleMessage processes one inbound message. Store failures are returned;
// failed side effects are only logged.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) (Decision, error) {
	if msg.At.IsZero() {
		msg.At = e.now()
	}

	room, ok, err := e.rooms.Lookup(ctx, msg.ChannelID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Outcome: OutcomeIgnored}, nil
	}

	var latest *Entry
	if prev, found, err := e.entries.MostRecentFor(ctx, msg.UserID, msg.ChannelID); err != nil {
		return Decision{}, fmt.Errorf("most recent entry: %w", err)
	} else if found {
		latest = &prev
	}

	d := Decide(&room, latest, msg, e.newID)
	log := e.log.With(
		logx.Int64("channel_id", msg.ChannelID),
		logx.Int64("user_id", msg.UserID),
		logx.String("outcome", d.Outcome.String()),
	)

	if d.Entry != nil {
		if err := e.entries.CreateEntry(ctx, d.Entry.clone()); err != nil {
			return Decision{}, fmt.Errorf("create entry: %w", err)
		}
		log.Info("standup accepted",
			logx.String("entry_id", d.Entry.ID),
			logx.Time("expires_at", d.Entry.ExpiresAt),
			logx.Int64s("roles", d.Entry.RoleIDs),
		)
		e.publish(EventEntryCreated, EntryEvent{
			EntryID:   d.Entry.ID,
			ChannelID: d.Entry.ChannelID,
			UserID:    d.Entry.UserID,
			Outcome:   d.Outcome.String(),
			ExpiresAt: d.Entry.ExpiresAt,
		})
	} else {
		log.Debug("standup rejected", logx.Int("message_id", msg.ID))
		e.publish(EventEntryRejected, EntryEvent{
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			Outcome:   d.Outcome.String(),
		})
	}

	for _, in := range d.Intents {
		if err := e.apply(ctx, in); err != nil {
			log.Warn("standup effect failed", logx.String("intent", in.Kind.String()), logx.Err(err))
		}
	}
	return d, nil
}

func (e *Engine) apply(ctx context.Context, in Intent) error {
	if e.effects == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(e.effectTimeout.Load()))
	defer cancel()
	return e.effects.Apply(cctx, in)
}

func (e *Engine) publish(typ string, data EntryEvent) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: e.now(), Data: data})
}
