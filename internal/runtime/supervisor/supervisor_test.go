package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRecordsFirstErrorAndCancels(t *testing.T) {
	sup := NewSupervisor(context.Background(), WithCancelOnError(true))
	sup.Go("failing", func(ctx context.Context) error { return errors.New("boom") })
	sup.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: boom")
	assert.EqualValues(t, 2, sup.Counters().Started)
	assert.EqualValues(t, 0, sup.Counters().Active)
}

func TestGoRecoversPanic(t *testing.T) {
	sup := NewSupervisor(context.Background())
	sup.Go0("panicky", func(ctx context.Context) { panic("oops") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in panicky")
	assert.EqualValues(t, 1, sup.Counters().Panics)
}

func TestGoRestartRetriesUntilClean(t *testing.T) {
	sup := NewSupervisor(context.Background())
	var runs atomic.Int32
	sup.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Wait(ctx))
	assert.EqualValues(t, 3, runs.Load())
	assert.EqualValues(t, 2, sup.Counters().Restarts)
}

func TestStopCancelsContext(t *testing.T) {
	sup := NewSupervisor(context.Background())
	sup.Go0("loop", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(ctx))
}
