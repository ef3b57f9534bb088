package scheduler

import "time"

// Backoff is an exponential retry policy: Initial * 2^attempt, capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	// MaxAttempts bounds total runs per trigger. Zero means unbounded.
	MaxAttempts int
}

// DefaultBackoff mirrors the platform default of 30s doubling up to 5h.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 30 * time.Second, Max: 5 * time.Hour}
}

// Delay returns the wait before retry number attempt (zero based).
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultBackoff().Initial
	}
	limit := b.Max
	if limit <= 0 {
		limit = DefaultBackoff().Max
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := initial
	for i := 0; i < attempt; i++ {
		if delay >= limit/2 {
			return limit
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

func (b Backoff) allows(runs int) bool {
	return b.MaxAttempts <= 0 || runs < b.MaxAttempts
}
