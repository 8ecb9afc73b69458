package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedLoader returns boards titled by call number, or errors when failing is set.
type scriptedLoader struct {
	calls   atomic.Int32
	failing atomic.Bool
	err     error
}

func (l *scriptedLoader) Load(ctx context.Context) (*domain.NormalizedProjectData, error) {
	n := l.calls.Add(1)
	if l.failing.Load() {
		return nil, l.err
	}
	return board(n), nil
}

func board(n int32) *domain.NormalizedProjectData {
	return &domain.NormalizedProjectData{
		Project:     domain.Project{ID: "PVT_1", Title: "Roadmap"},
		Items:       []domain.ProjectItem{{ID: "item_1", Title: "Ship it"}},
		Columns:     domain.Columns{{Name: domain.AllItemsColumn, Items: []domain.ProjectItem{{ID: "item_1"}}}},
		LastUpdated: time.Date(2024, 6, 1, 12, 0, 0, int(n), time.UTC),
	}
}

func newTestCache(loader Loader, clock *fakeClock, opts ...CacheOption) *Cache {
	opts = append([]CacheOption{WithClock(clock.Now)}, opts...)
	return NewCache(loader, opts...)
}

func TestCache_EmptyFetchesOnFirstRead(t *testing.T) {
	loader := &scriptedLoader{}
	c := newTestCache(loader, newFakeClock())
	assert.Equal(t, StateEmpty, c.Status().State)

	data, err := c.GetBoard(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, "Roadmap", data.Project.Title)
	assert.EqualValues(t, 1, loader.calls.Load())
	assert.Equal(t, StateFresh, c.Status().State)
}

func TestCache_FreshReadsDoNoIO(t *testing.T) {
	loader := &scriptedLoader{}
	clock := newFakeClock()
	c := newTestCache(loader, clock)

	first, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	clock.Advance(47 * time.Hour)
	second, err := c.GetBoard(context.Background(), false)

	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestCache_TTLExpiryRefreshes(t *testing.T) {
	loader := &scriptedLoader{}
	clock := newFakeClock()
	c := newTestCache(loader, clock)

	first, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	clock.Advance(DefaultTTL)
	second, err := c.GetBoard(context.Background(), false)

	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, loader.calls.Load())
	assert.Equal(t, 2, c.Status().Refreshes)
}

func TestCache_ForcedRefresh(t *testing.T) {
	loader := &scriptedLoader{}
	c := newTestCache(loader, newFakeClock())

	_, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	_, err = c.GetBoard(context.Background(), true)

	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_ServesStaleOnFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	loader := &scriptedLoader{err: &domain.UpstreamError{StatusCode: 502, Message: "bad gateway"}}
	clock := newFakeClock()
	c := newTestCache(loader, clock, WithLogger(zap.New(core)))

	good, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)

	loader.failing.Store(true)
	clock.Advance(DefaultTTL + time.Minute)
	got, err := c.GetBoard(context.Background(), false)

	require.NoError(t, err)
	assert.Same(t, good, got, "previous board is served unchanged")
	status := c.Status()
	assert.Equal(t, StateStale, status.State)
	assert.Contains(t, status.LastError, "bad gateway")
	assert.Equal(t, 1, logs.FilterMessage("board refresh failed").Len())
}

func TestCache_ForcedRefreshFailureKeepsFreshBoard(t *testing.T) {
	loader := &scriptedLoader{err: errors.New("boom")}
	c := newTestCache(loader, newFakeClock())

	good, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	loader.failing.Store(true)

	got, err := c.GetBoard(context.Background(), true)

	require.NoError(t, err)
	assert.Same(t, good, got)
	assert.Equal(t, StateFresh, c.Status().State, "board is still within its TTL")
	assert.Equal(t, "boom", c.Status().LastError)
}

func TestCache_FirstFailurePropagates(t *testing.T) {
	cfgErr := &domain.ConfigurationError{Reason: "no token", Hint: domain.TokenHint}
	loader := &scriptedLoader{err: cfgErr}
	loader.failing.Store(true)
	c := newTestCache(loader, newFakeClock())

	data, err := c.GetBoard(context.Background(), false)

	assert.Nil(t, data)
	var got *domain.ConfigurationError
	require.ErrorAs(t, err, &got)
	assert.Same(t, cfgErr, got)
	assert.Equal(t, StateEmpty, c.Status().State)

	// An empty slot retries on every read
	_, _ = c.GetBoard(context.Background(), false)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_RetryBackoffAfterFailure(t *testing.T) {
	loader := &scriptedLoader{err: errors.New("upstream down")}
	clock := newFakeClock()
	c := newTestCache(loader, clock, WithRetryBackoff(5*time.Minute))

	_, err := c.GetBoard(context.Background(), false)
	require.NoError(t, err)

	loader.failing.Store(true)
	clock.Advance(DefaultTTL)
	_, err = c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())

	clock.Advance(time.Minute)
	_, err = c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load(), "within backoff, stale board served without I/O")

	_, err = c.GetBoard(context.Background(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, loader.calls.Load(), "forced refresh ignores backoff")

	loader.failing.Store(false)
	clock.Advance(5 * time.Minute)
	_, err = c.GetBoard(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, loader.calls.Load())
	assert.Equal(t, StateFresh, c.Status().State)
	assert.Empty(t, c.Status().LastError)
}

func TestCache_CoalescesConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context) (*domain.NormalizedProjectData, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return board(1), nil
	})
	c := newTestCache(loader, newFakeClock())

	const readers = 10
	results := make([]*domain.NormalizedProjectData, readers)
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func(i int) {
			defer wg.Done()
			data, err := c.GetBoard(context.Background(), false)
			assert.NoError(t, err)
			results[i] = data
		}(i)
	}

	<-started
	assert.Equal(t, StateRefreshing, c.Status().State)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCache_CallerContextCanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	loader := LoaderFunc(func(ctx context.Context) (*domain.NormalizedProjectData, error) {
		<-release
		return board(1), nil
	})
	c := newTestCache(loader, newFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	data, err := c.GetBoard(ctx, false)

	assert.Nil(t, data)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_RefreshTimeout(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context) (*domain.NormalizedProjectData, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := newTestCache(loader, newFakeClock(), WithRefreshTimeout(20*time.Millisecond))

	data, err := c.GetBoard(context.Background(), false)

	assert.Nil(t, data)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateEmpty, c.Status().State)
}

func TestCache_NilBoardIsAnError(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context) (*domain.NormalizedProjectData, error) {
		return nil, nil
	})
	c := newTestCache(loader, newFakeClock())

	_, err := c.GetBoard(context.Background(), false)

	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "fresh", StateFresh.String())
	assert.Equal(t, "stale", StateStale.String())
	assert.Equal(t, "State(9)", State(9).String())
}
