package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standupbot/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 1m", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", duration: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "EVERY: 01:00", kind: SpecInterval, source: "hhmm", duration: time.Hour},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			if tt.kind == SpecInterval {
				assert.Equal(t, tt.duration, got.Every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "00:00", "01:75", "-5m", "cron:"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.AddCron("", "@every 1m", 0, noop))
	assert.Error(t, s.AddCron("x", "not cron", 0, noop))
	assert.Error(t, s.AddInterval("x", 0, 0, noop))
	assert.Error(t, s.AddSchedule("x", "whatever", 0, noop))
	assert.Error(t, s.AddCron("x", "@every 1m", 0, nil))
	assert.Empty(t, s.Snapshot().Schedules)
}

func TestUpsertAndRemove(t *testing.T) {
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddSchedule("sweep", "1m", time.Second, noop))
	require.NoError(t, s.AddSchedule("sweep", "2m", time.Second, noop))
	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "@every 2m0s", snap.Schedules[0].Spec)
	assert.False(t, snap.Running)

	assert.True(t, s.Remove("sweep"))
	assert.False(t, s.Remove("sweep"))
}

func TestJobsRunWithoutOverlap(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.AddInterval("slow", time.Second, 0, func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return errors.New("done")
	}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	// Further triggers while the first run is blocked are skipped.
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.GreaterOrEqual(t, snap.Schedules[0].Runs, uint64(1))
	assert.GreaterOrEqual(t, snap.Schedules[0].Failures, uint64(1))
	assert.Equal(t, "done", snap.Schedules[0].LastErr)
}

func TestJobTimeoutIsApplied(t *testing.T) {
	s := New(Config{}, logx.Nop())
	got := make(chan bool, 1)
	require.NoError(t, s.AddInterval("t", time.Second, 50*time.Millisecond, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		select {
		case got <- ok:
		default:
		}
		return nil
	}))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case ok := <-got:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
