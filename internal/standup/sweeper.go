package standup

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"standupbot/internal/eventbus"
	"standupbot/pkg/logx"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Skipped      bool
	Expired      int
	Revoked      int
	RevokeFailed int
	Deleted      int
	DeleteFailed int
	Duration     time.Duration
}

// Sweeper revokes and removes expired entries.
//
// Sweeps run only after MarkReady. Concurrent Sweep calls are serialized.
type Sweeper struct {
	entries EntryStore
	effects Effector
	log     logx.Logger
	bus     eventbus.Bus
	now     func() time.Time

	effectTimeout atomic.Int64

	ready     chan struct{}
	readyOnce sync.Once
	mu        sync.Mutex
	last      atomic.Pointer[SweepReport]
}

type SweeperOption func(*Sweeper)

func WithSweepLogger(l logx.Logger) SweeperOption { return func(s *Sweeper) { s.log = l } }
func WithSweepBus(b eventbus.Bus) SweeperOption   { return func(s *Sweeper) { s.bus = b } }

func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSweepEffectTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.SetEffectTimeout(d) }
}

func NewSweeper(entries EntryStore, effects Effector, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		entries: entries,
		effects: effects,
		log:     logx.Nop(),
		now:     time.Now,
		ready:   make(chan struct{}),
	}
	s.effectTimeout.Store(int64(DefaultEffectTimeout))
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sweeper) SetEffectTimeout(d time.Duration) {
	if d > 0 {
		s.effectTimeout.Store(int64(d))
	}
}

// MarkReady allows sweeps to run. Safe to call more than once.
func (s *Sweeper) MarkReady() { s.readyOnce.Do(func() { close(s.ready) }) }

// Ready is closed once MarkReady was called.
func (s *Sweeper) Ready() <-chan struct{} { return s.ready }

func (s *Sweeper) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Last returns the report of the most recent completed sweep.
func (s *Sweeper) Last() (SweepReport, bool) {
	if r := s.last.Load(); r != nil {
		return *r, true
	}
	return SweepReport{}, false
}

// Sweep collects every entry expired at the current time: for each one the
// roles are revoked, then the entry is deleted. A failed revoke still deletes
// the entry. Once the batch is fetched, cancelling ctx does not interrupt it.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	if !s.isReady() {
		return SweepReport{Skipped: true}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	expired, err := s.entries.ExpiredBefore(ctx, start)
	if err != nil {
		return SweepReport{}, fmt.Errorf("expired entries: %w", err)
	}
	rep := SweepReport{Expired: len(expired)}
	if len(expired) == 0 {
		s.last.Store(&rep)
		return rep, nil
	}

	batch := context.WithoutCancel(ctx)
	for _, entry := range expired {
		log := s.log.With(
			logx.String("entry_id", entry.ID),
			logx.Int64("channel_id", entry.ChannelID),
			logx.Int64("user_id", entry.UserID),
		)
		if err := s.call(batch, func(c context.Context) error { return s.revoke(c, entry) }); err != nil {
			rep.RevokeFailed++
			log.Warn("revoke failed", logx.Int64s("roles", entry.RoleIDs), logx.Err(err))
		} else {
			rep.Revoked++
		}
		if err := s.call(batch, func(c context.Context) error { return s.entries.DeleteEntry(c, entry.ID) }); err != nil {
			rep.DeleteFailed++
			log.Warn("delete expired entry failed", logx.Err(err))
			continue
		}
		rep.Deleted++
		log.Debug("entry expired", logx.Duration("overdue", sinceOrZero(start, entry.ExpiresAt)))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: EventEntryExpired, Time: s.now(), Data: EntryEvent{
				EntryID:   entry.ID,
				ChannelID: entry.ChannelID,
				UserID:    entry.UserID,
				ExpiresAt: entry.ExpiresAt,
			}})
		}
	}
	rep.Duration = s.now().Sub(start)
	s.last.Store(&rep)

	s.log.Info("sweep done",
		logx.Int("expired", rep.Expired),
		logx.Int("revoke_failed", rep.RevokeFailed),
		logx.Int("delete_failed", rep.DeleteFailed),
		logx.Duration("took", rep.Duration),
	)
	return rep, nil
}

func (s *Sweeper) revoke(ctx context.Context, e Entry) error {
	if s.effects == nil {
		return nil
	}
	return s.effects.Apply(ctx, revokeIntent(e))
}

// call runs fn under the effect timeout. A panic is reported as an error so
// the rest of the batch still runs.
func (s *Sweeper) call(ctx context.Context, fn func(context.Context) error) (err error) {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(s.effectTimeout.Load()))
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("sweep step panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return fn(cctx)
}
