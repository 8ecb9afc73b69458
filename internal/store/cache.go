package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache defaults.
const (
	DefaultTTL            = 48 * time.Hour
	DefaultRefreshTimeout = 60 * time.Second
	DefaultRetryBackoff   = 5 * time.Minute
)

// flightKey names the single in-flight refresh shared by all readers.
const flightKey = "board"

// State is the lifecycle state of the cache slot.
type State int

const (
	// StateEmpty holds no board; the next read fetches.
	StateEmpty State = iota
	// StateRefreshing has a pipeline run in flight.
	StateRefreshing
	// StateFresh holds a board younger than the TTL.
	StateFresh
	// StateStale holds a board past its TTL whose refresh is pending or failed.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateRefreshing:
		return "refreshing"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Loader runs the fetch -> normalize -> group pipeline.
type Loader interface {
	Load(ctx context.Context) (*domain.NormalizedProjectData, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*domain.NormalizedProjectData, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (*domain.NormalizedProjectData, error) {
	return f(ctx)
}

// Status is a point-in-time snapshot of the cache for diagnostics.
type Status struct {
	State       State     `json:"state"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Refreshes   int       `json:"refreshes"`
}

// Cache is a read-through cache over a single board slot.
//
// Reads return the cached board without I/O until the TTL expires. An empty
// slot, an expired board or a forced read runs the loader; concurrent reads
// share one in-flight run. When a run fails and a board is held, that board
// keeps being served and the failure is only recorded and logged.
type Cache struct {
	loader         Loader
	ttl            time.Duration
	refreshTimeout time.Duration
	retryBackoff   time.Duration
	clock          func() time.Time
	logger         *zap.Logger

	group singleflight.Group

	mu          sync.Mutex
	state       State
	data        *domain.NormalizedProjectData
	fetchedAt   time.Time
	generation  int // successful refreshes
	lastAttempt time.Time
	lastErr     error
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long a fetched board is served without refreshing.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithRefreshTimeout bounds one whole pipeline run.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithRetryBackoff sets how long TTL-driven refreshes pause after a failure
// while a stale board is available. Zero disables the pause.
func WithRetryBackoff(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d >= 0 {
			c.retryBackoff = d
		}
	}
}

// WithClock allows tests to control time.
func WithClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates an empty cache in front of loader.
func NewCache(loader Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		loader:         loader,
		ttl:            DefaultTTL,
		refreshTimeout: DefaultRefreshTimeout,
		retryBackoff:   DefaultRetryBackoff,
		clock:          time.Now,
		logger:         zap.NewNop(),
		state:          StateEmpty,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetBoard returns the cached board, refreshing it first when the slot is
// empty, the TTL has expired or forceRefresh is set.
//
// A failed refresh returns the previously cached board with a nil error. With
// nothing cached, the loader's error is returned unchanged. If ctx ends while
// waiting, the caller stops waiting but the shared refresh keeps running under
// its own timeout.
func (c *Cache) GetBoard(ctx context.Context, forceRefresh bool) (*domain.NormalizedProjectData, error) {
	c.mu.Lock()
	refresh := c.shouldRefresh(c.clock(), forceRefresh)
	data := c.data
	generation := c.generation
	c.mu.Unlock()

	if !refresh {
		return data, nil
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.run(ctx, generation)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.serveStale(res.Err)
		}
		return res.Val.(*domain.NormalizedProjectData), nil
	case <-ctx.Done():
		return c.serveStale(ctx.Err())
	}
}

// Status returns a snapshot of the cache state.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:       c.state,
		LastAttempt: c.lastAttempt,
		Refreshes:   c.generation,
	}
	if c.data != nil {
		s.LastUpdated = c.fetchedAt
		s.ExpiresAt = c.fetchedAt.Add(c.ttl)
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// shouldRefresh applies the state transitions for a read. Caller holds mu.
func (c *Cache) shouldRefresh(now time.Time, force bool) bool {
	switch c.state {
	case StateEmpty:
		return true
	case StateRefreshing:
		// Join the in-flight run only if this read would have refreshed anyway
		return force || c.data == nil || c.expired(now)
	case StateFresh:
		if c.expired(now) {
			c.state = StateStale
			return true
		}
		return force
	case StateStale:
		return force || !c.backingOff(now)
	}
	return true
}

func (c *Cache) expired(now time.Time) bool {
	return !now.Before(c.fetchedAt.Add(c.ttl))
}

func (c *Cache) backingOff(now time.Time) bool {
	return c.lastErr != nil && now.Before(c.lastAttempt.Add(c.retryBackoff))
}

// run executes one pipeline run on behalf of every waiting reader.
func (c *Cache) run(ctx context.Context, seenGeneration int) (*domain.NormalizedProjectData, error) {
	c.mu.Lock()
	if c.generation != seenGeneration && c.data != nil {
		// Another run completed between this reader's decision and now
		data := c.data
		c.mu.Unlock()
		return data, nil
	}
	previous := c.state
	c.state = StateRefreshing
	c.lastAttempt = c.clock()
	c.mu.Unlock()

	c.logger.Info("refreshing board", zap.Stringer("from", previous))
	start := time.Now()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()
	data, err := c.loader.Load(runCtx)
	if err == nil && data == nil {
		err = fmt.Errorf("loader returned no board")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastErr = err
		switch {
		case c.data == nil:
			c.state = StateEmpty
		case c.expired(c.clock()):
			c.state = StateStale
		default:
			c.state = StateFresh
		}
		c.logger.Warn("board refresh failed",
			zap.Error(err),
			zap.Bool("servingStale", c.data != nil),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil, err
	}

	c.data = data
	c.fetchedAt = c.clock()
	c.generation++
	c.lastErr = nil
	c.state = StateFresh
	c.logger.Info("board refreshed",
		zap.Int("items", len(data.Items)),
		zap.Int("columns", len(data.Columns)),
		zap.Bool("truncated", data.Truncated),
		zap.Duration("elapsed", time.Since(start)),
	)
	return data, nil
}

// serveStale returns the cached board in place of err when one exists.
func (c *Cache) serveStale(err error) (*domain.NormalizedProjectData, error) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()

	if data == nil {
		return nil, err
	}
	c.logger.Debug("serving stale board", zap.Error(err))
	return data, nil
}
