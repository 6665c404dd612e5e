package leader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"manuell_oppgave_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWatcher(clock *manualClock) *Watcher {
	w := NewWatcher(nil, time.Second, 10*time.Second, logger.Discard())
	w.now = clock.now
	return w
}

func TestLeadershipIsDebounced(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	w := newTestWatcher(clock)
	var started int32
	fn := func(ctx context.Context) error {
		atomic.AddInt32(&started, 1)
		<-ctx.Done()
		return nil
	}

	ctx := context.Background()
	w.observe(ctx, true, fn)
	assert.Equal(t, Follower, w.State())

	clock.advance(5 * time.Second)
	w.observe(ctx, true, fn)
	assert.Equal(t, Follower, w.State())

	clock.advance(5 * time.Second)
	w.observe(ctx, true, fn)
	assert.Equal(t, Leader, w.State())

	w.observe(ctx, false, fn)
	assert.Equal(t, Follower, w.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&started))
}

func TestFlappingResetsDebounce(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	w := newTestWatcher(clock)
	fn := func(ctx context.Context) error { <-ctx.Done(); return nil }
	ctx := context.Background()

	w.observe(ctx, true, fn)
	clock.advance(8 * time.Second)
	w.observe(ctx, false, fn)
	clock.advance(1 * time.Second)
	w.observe(ctx, true, fn)
	clock.advance(8 * time.Second)
	w.observe(ctx, true, fn)

	assert.Equal(t, Follower, w.State())
}

func TestLosingLeadershipCancelsWork(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	w := newTestWatcher(clock)
	w.debounce = 0
	stopped := make(chan struct{})
	fn := func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}

	w.observe(context.Background(), true, fn)
	require.Equal(t, Leader, w.State())

	w.observe(context.Background(), false, fn)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("leader work was not cancelled")
	}
}

func TestRunReturnsLeaderWorkFailure(t *testing.T) {
	w := NewWatcher(Static(true), 10*time.Millisecond, 0, logger.Discard())
	boom := errors.New("status consumer: fatal")
	fn := func(context.Context) error { return boom }

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), fn) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
		assert.Equal(t, Follower, w.State())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher kept running after leader work failed")
	}
}

func TestRunIgnoresErrorsAfterLeadershipEnds(t *testing.T) {
	w := NewWatcher(Static(true), 10*time.Millisecond, 0, logger.Discard())
	fn := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, fn) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
