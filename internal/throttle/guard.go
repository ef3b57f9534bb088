// Package throttle limits how often named operations may run within a process.
package throttle

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval applies to operations without explicit configuration.
const DefaultInterval = time.Second

// Config tunes one operation key.
type Config struct {
	Interval               time.Duration `mapstructure:"interval"`
	MaxExecutionsPerWindow int           `mapstructure:"max_per_window"`
	WindowSize             time.Duration `mapstructure:"window"`
	Enabled                bool          `mapstructure:"enabled"`
}

// DefaultConfig is used for unknown keys.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Enabled: true}
}

// Reason explains why an operation was blocked.
type Reason string

const (
	ReasonInterval Reason = "interval"
	ReasonWindow   Reason = "window"
)

// Decision is the outcome of CanExecute.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
	Reason    Reason
}

// BlockedError is returned by Run when the guard refuses an operation.
type BlockedError struct {
	Key       string
	Remaining time.Duration
	Reason    Reason
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("operation %s throttled (%s), retry in %s", e.Key, e.Reason, e.Remaining.Round(time.Millisecond))
}

// Observer is notified about blocked operations.
type Observer func(key string, reason Reason)

// Guard keeps per-key execution history. One mutex covers every key, so a
// check and its record are never interleaved with another key's mutation.
type Guard struct {
	mu       sync.Mutex
	configs  map[string]Config
	last     map[string]time.Time
	history  map[string][]time.Time
	fallback Config
	now      func() time.Time
	observer Observer
	logger   zerolog.Logger
}

// Option customises a Guard.
type Option func(*Guard)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithDefault overrides the config applied to unknown keys.
func WithDefault(cfg Config) Option {
	return func(g *Guard) { g.fallback = cfg }
}

// WithObserver registers a callback for blocked decisions.
func WithObserver(obs Observer) Option {
	return func(g *Guard) { g.observer = obs }
}

// New constructs a Guard.
func New(logger zerolog.Logger, opts ...Option) *Guard {
	g := &Guard{
		configs:  make(map[string]Config),
		last:     make(map[string]time.Time),
		history:  make(map[string][]time.Time),
		fallback: DefaultConfig(),
		now:      time.Now,
		logger:   logger.With().Str("component", "throttle").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ConfigureOperation sets the config for key.
func (g *Guard) ConfigureOperation(key string, cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.configs[key] = cfg
}

// CanExecute reports whether key may run now. It does not record anything.
func (g *Guard) CanExecute(key string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.decide(key, g.now())
	if !d.Allowed {
		g.logger.Debug().Str("operation", key).Str("reason", string(d.Reason)).Dur("remaining", d.Remaining).Msg("operation throttled")
		if g.observer != nil {
			g.observer(key, d.Reason)
		}
	}
	return d
}

// RecordExecution stores an execution of key at the current time.
func (g *Guard) RecordExecution(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(key, g.now())
}

// Run checks key, records the execution and then calls fn outside the lock.
func (g *Guard) Run(key string, fn func() error) error {
	g.mu.Lock()
	now := g.now()
	d := g.decide(key, now)
	if d.Allowed {
		g.record(key, now)
	}
	g.mu.Unlock()

	if !d.Allowed {
		if g.observer != nil {
			g.observer(key, d.Reason)
		}
		return &BlockedError{Key: key, Remaining: d.Remaining, Reason: d.Reason}
	}
	return fn()
}

// RemainingTime returns how long until key is allowed, zero when allowed.
func (g *Guard) RemainingTime(key string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decide(key, g.now()).Remaining
}

// Clear forgets history for key. Configuration is kept.
func (g *Guard) Clear(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, key)
	delete(g.history, key)
}

// ClearAll forgets history for every key.
func (g *Guard) ClearAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = make(map[string]time.Time)
	g.history = make(map[string][]time.Time)
}

func (g *Guard) config(key string) Config {
	if cfg, ok := g.configs[key]; ok {
		return cfg
	}
	return g.fallback
}

// decide must be called with g.mu held.
func (g *Guard) decide(key string, now time.Time) Decision {
	cfg := g.config(key)
	if !cfg.Enabled {
		return Decision{Allowed: true}
	}

	if last, ok := g.last[key]; ok && cfg.Interval > 0 {
		elapsed := now.Sub(last)
		if elapsed < cfg.Interval {
			return Decision{Remaining: cfg.Interval - elapsed, Reason: ReasonInterval}
		}
	}

	if cfg.MaxExecutionsPerWindow > 0 && cfg.WindowSize > 0 {
		window := g.trim(key, now, cfg.WindowSize)
		if len(window) >= cfg.MaxExecutionsPerWindow {
			oldest := window[0]
			return Decision{Remaining: cfg.WindowSize - now.Sub(oldest), Reason: ReasonWindow}
		}
	}

	return Decision{Allowed: true}
}

// record must be called with g.mu held.
func (g *Guard) record(key string, now time.Time) {
	g.last[key] = now
	cfg := g.config(key)
	if cfg.MaxExecutionsPerWindow > 0 && cfg.WindowSize > 0 {
		g.history[key] = append(g.history[key], now)
		g.trim(key, now, cfg.WindowSize)
	}
}

// trim drops timestamps older than the window and returns the remainder.
func (g *Guard) trim(key string, now time.Time, window time.Duration) []time.Time {
	entries := g.history[key]
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(entries) && !entries[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		entries = append(entries[:0:0], entries[idx:]...)
		g.history[key] = entries
	}
	return entries
}
