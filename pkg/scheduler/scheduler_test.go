package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/scheduler"
)

func TestScheduler_Interval(t *testing.T) {
	var calls atomic.Int32
	s := scheduler.New(10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	h := s.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	h.Stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no runs after Stop")
	assert.False(t, s.Stats().Active)
}

func TestScheduler_TriggerOnly(t *testing.T) {
	var calls atomic.Int32
	s := scheduler.New(0, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	h := s.Start(context.Background())
	defer h.Stop()

	h.Trigger()
	require.Eventually(t, func() bool { return s.Stats().Runs == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_SkipsWhileInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32

	s := scheduler.New(0, func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})
	h := s.Start(context.Background())

	h.Trigger()
	<-started

	h.Trigger()
	require.Eventually(t, func() bool { return s.Stats().Skips == 1 }, time.Second, 5*time.Millisecond)
	h.Trigger()
	require.Eventually(t, func() bool { return s.Stats().Skips == 2 }, time.Second, 5*time.Millisecond)

	close(release)
	h.Stop()
	assert.Equal(t, int32(1), calls.Load(), "overlapping triggers must not start a second run")
}

func TestScheduler_ErrorsAreReportedNotSurfaced(t *testing.T) {
	boom := errors.New("remote unreachable")
	var handled atomic.Int32
	var fail atomic.Bool
	fail.Store(true)

	s := scheduler.New(0, func(ctx context.Context) error {
		if fail.Load() {
			return boom
		}
		return core.ErrBusy
	}, scheduler.WithErrorHandler(func(err error) {
		if errors.Is(err, boom) {
			handled.Add(1)
		}
	}))
	h := s.Start(context.Background())
	defer h.Stop()

	h.Trigger()
	require.Eventually(t, func() bool { return handled.Load() == 1 }, time.Second, 5*time.Millisecond)
	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, boom.Error(), stats.LastError)

	t.Run("Busy Coordinator Counts As Skip", func(t *testing.T) {
		fail.Store(false)
		h.Trigger()
		require.Eventually(t, func() bool { return s.Stats().Skips == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(1), s.Stats().Failures)
	})
}

func TestScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := scheduler.New(time.Hour, func(ctx context.Context) error { return nil })
	h := s.Start(ctx)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
