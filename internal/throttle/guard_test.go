package throttle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
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

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newGuard(clock *fakeClock, opts ...Option) *Guard {
	return New(zerolog.Nop(), append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestIntervalBlocksUntilElapsed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newGuard(clock)
	g.ConfigureOperation("p2p.index", Config{Interval: time.Second, Enabled: true})

	require.True(t, g.CanExecute("p2p.index").Allowed)
	g.RecordExecution("p2p.index")

	clock.Advance(999 * time.Millisecond)
	d := g.CanExecute("p2p.index")
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonInterval, d.Reason)
	assert.Greater(t, d.Remaining, time.Duration(0))
	assert.LessOrEqual(t, d.Remaining, time.Second)

	clock.Advance(time.Millisecond)
	assert.True(t, g.CanExecute("p2p.index").Allowed)
}

func TestWindowLimitsExecutions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newGuard(clock)
	g.ConfigureOperation("alerts", Config{MaxExecutionsPerWindow: 3, WindowSize: 5 * time.Second, Enabled: true})

	for i := 0; i < 3; i++ {
		require.True(t, g.CanExecute("alerts").Allowed, "execution %d", i)
		g.RecordExecution("alerts")
		clock.Advance(time.Second)
	}

	d := g.CanExecute("alerts")
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonWindow, d.Reason)
	assert.Equal(t, 2*time.Second, d.Remaining)

	clock.Advance(2*time.Second + time.Millisecond)
	assert.True(t, g.CanExecute("alerts").Allowed)
}

func TestDisabledAlwaysAllows(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := newGuard(clock)
	g.ConfigureOperation("free", Config{Interval: time.Hour, Enabled: false})

	g.RecordExecution("free")
	assert.True(t, g.CanExecute("free").Allowed)
	assert.Zero(t, g.RemainingTime("free"))
}

func TestUnknownKeyUsesDefault(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := newGuard(clock, WithDefault(Config{Interval: 2 * time.Second, Enabled: true}))

	g.RecordExecution("whatever")
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, g.RemainingTime("whatever"))
}

func TestClearResetsHistory(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := newGuard(clock)

	g.RecordExecution("a")
	g.RecordExecution("b")
	require.False(t, g.CanExecute("a").Allowed)

	g.Clear("a")
	assert.True(t, g.CanExecute("a").Allowed)
	assert.False(t, g.CanExecute("b").Allowed)

	g.ClearAll()
	assert.True(t, g.CanExecute("b").Allowed)
}

func TestRunReturnsBlockedError(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var observed []string
	g := newGuard(clock, WithObserver(func(key string, _ Reason) { observed = append(observed, key) }))

	calls := 0
	fn := func() error { calls++; return nil }

	require.NoError(t, g.Run("login", fn))
	err := g.Run("login", fn)

	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "login", blocked.Key)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"login"}, observed)
}

func TestConcurrentCallersDoNotRace(t *testing.T) {
	g := New(zerolog.Nop(), WithDefault(Config{MaxExecutionsPerWindow: 1000, WindowSize: time.Minute, Enabled: true}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if g.CanExecute("shared").Allowed {
					g.RecordExecution("shared")
				}
				_ = g.RemainingTime("other")
			}
		}()
	}
	wg.Wait()
}
