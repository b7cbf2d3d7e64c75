package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/assembly-tracker/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingLoader struct {
	calls atomic.Int32
	fn    func(call int32, member string) (any, error)
}

func (l *countingLoader) Load(ctx context.Context, member string) (any, error) {
	n := l.calls.Add(1)
	return l.fn(n, member)
}

func newTestScheduler(clock Clock) *Scheduler {
	return &Scheduler{
		Cache:          cache.NewMemory(100, time.Hour),
		Policy:         DailyHourPolicy{Hour: 4},
		Clock:          clock,
		DefaultMember:  "곽상언",
		RefreshTimeout: time.Minute,
	}
}

func day(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("preload did not finish")
	}
}

func TestPreloadThenGetServesCache(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		return "bills for " + member, nil
	}}
	s.Register("bills", loader.Load)

	waitDone(t, s.Preload(context.Background()))

	value, ready, err := s.Get(context.Background(), "bills", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "bills for 곽상언", value)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, day(10, 9), s.Cache.LastRefresh("bills"))
}

func TestGetUnknownDataset(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: day(10, 9)})
	_, _, err := s.Get(context.Background(), "missing", "x")
	assert.Error(t, err)
}

func TestGetWhileLoadingReturnsNotReady(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: day(10, 9)})
	release := make(chan struct{})
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		<-release
		return "votes", nil
	}}
	s.Register("votes", loader.Load)

	done := s.Preload(context.Background())

	for i := 0; i < 5; i++ {
		_, ready, err := s.Get(context.Background(), "votes", "곽상언")
		require.NoError(t, err)
		assert.False(t, ready)
	}
	assert.Equal(t, "loading", s.Status()[0].State)

	close(release)
	waitDone(t, done)

	value, ready, err := s.Get(context.Background(), "votes", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "votes", value)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestFailedPreloadRetriesOnRead(t *testing.T) {
	s := newTestScheduler(&fakeClock{now: day(10, 9)})
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		if n == 1 {
			return nil, errors.New("api down")
		}
		return "bills", nil
	}}
	s.Register("bills", loader.Load)

	waitDone(t, s.Preload(context.Background()))
	assert.Equal(t, "not_loaded", s.Status()[0].State)
	assert.True(t, s.Cache.LastRefresh("bills").IsZero())

	_, ready, err := s.Get(context.Background(), "bills", "곽상언")
	require.NoError(t, err)
	assert.False(t, ready)

	assert.Eventually(t, func() bool {
		_, ready, _ := s.Get(context.Background(), "bills", "곽상언")
		return ready
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestStaleDataServedOutsideRefreshHour(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		return n, nil
	}}
	s.Register("bills", loader.Load)
	waitDone(t, s.Preload(context.Background()))

	clock.Set(day(11, 10))
	value, ready, err := s.Get(context.Background(), "bills", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, int32(1), value)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, "stale", s.Status()[0].State)
}

func TestRefreshAtRefreshHourRunsInReader(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		return n, nil
	}}
	s.Register("bills", loader.Load)
	waitDone(t, s.Preload(context.Background()))

	clock.Set(day(11, 4))
	value, ready, err := s.Get(context.Background(), "bills", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, int32(2), value)
	assert.Equal(t, day(11, 4), s.Cache.LastRefresh("bills"))

	// Same day, same hour: no second refresh.
	value, _, _ = s.Get(context.Background(), "bills", "곽상언")
	assert.Equal(t, int32(2), value)
	assert.Equal(t, int32(2), loader.calls.Load())
	assert.Equal(t, "fresh", s.Status()[0].State)
}

func TestFailedRefreshKeepsPreviousValue(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		if n > 1 {
			return nil, errors.New("portal login failed")
		}
		return "first", nil
	}}
	s.Register("bills", loader.Load)
	waitDone(t, s.Preload(context.Background()))

	clock.Set(day(11, 4))
	value, ready, err := s.Get(context.Background(), "bills", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "first", value)
	assert.Equal(t, day(10, 9), s.Cache.LastRefresh("bills"))
}

func TestConcurrentReaderGetsStaleDuringRefresh(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		return n, nil
	}}
	s.Register("bills", loader.Load)
	waitDone(t, s.Preload(context.Background()))

	clock.Set(day(11, 4))
	ds, err := s.dataset("bills")
	require.NoError(t, err)
	ds.gate.Lock()

	value, ready, err := s.Get(context.Background(), "bills", "곽상언")
	ds.gate.Unlock()

	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, int32(1), value)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestRefreshSurvivesCancelledRequest(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	var sawCancelled atomic.Bool
	s.Register("bills", func(ctx context.Context, member string) (any, error) {
		if ctx.Err() != nil {
			sawCancelled.Store(true)
		}
		return "ok", nil
	})
	waitDone(t, s.Preload(context.Background()))

	clock.Set(day(11, 4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ready, err := s.Get(ctx, "bills", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.False(t, sawCancelled.Load())
	assert.Equal(t, day(11, 4), s.Cache.LastRefresh("bills"))
}

func TestForceRefresh(t *testing.T) {
	clock := &fakeClock{now: day(10, 9)}
	s := newTestScheduler(clock)
	loader := &countingLoader{fn: func(n int32, member string) (any, error) {
		return member, nil
	}}
	s.Register("votes", loader.Load)

	value, err := s.ForceRefresh(context.Background(), "votes", "김의원")
	require.NoError(t, err)
	assert.Equal(t, "김의원", value)

	got, ready, err := s.Get(context.Background(), "votes", "곽상언")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "김의원", got)

	_, err = s.ForceRefresh(context.Background(), "nope", "x")
	assert.Error(t, err)
}

func TestRunPeriodic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		RunPeriodic(ctx, "SummaryRetry", 5*time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("first run fails")
			}
			return nil
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}
