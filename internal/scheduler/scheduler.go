// Package scheduler runs named background jobs on a fixed cadence with
// retry backoff and run constraints.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// MinPeriodicInterval is the floor applied to periodic jobs.
const MinPeriodicInterval = 15 * time.Minute

// Outcome is what a job reports back after one run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeNothingToDo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeNothingToDo:
		return "nothing_to_do"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Job is one unit of background work.
type Job func(ctx context.Context) Outcome

// Constraints gate whether a run may start.
type Constraints struct {
	RequiresNetwork       bool
	RequiresBatteryNotLow bool
}

// WorkScheduler registers named jobs. Scheduling an existing name replaces
// the previous registration.
type WorkScheduler interface {
	SchedulePeriodic(name string, interval time.Duration, constraints Constraints, backoff Backoff, job Job) error
	ScheduleOneOff(name string, constraints Constraints, backoff Backoff, job Job) error
	Cancel(name string) bool
}

// RunObserver is notified after every job run.
type RunObserver func(name string, outcome Outcome, elapsed time.Duration)

// Options tune scheduler behaviour.
type Options struct {
	Conditions Conditions
	Observer   RunObserver
	// MinInterval overrides MinPeriodicInterval, used by tests.
	MinInterval time.Duration
}

type registration struct {
	entry    cron.EntryID
	interval time.Duration
	periodic bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// CronScheduler implements WorkScheduler on top of robfig/cron.
type CronScheduler struct {
	opts   Options
	cron   *cron.Cron
	logger zerolog.Logger
	after  func(time.Duration) <-chan time.Time

	root    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	entries map[string]registration
	wg      sync.WaitGroup
}

var _ WorkScheduler = (*CronScheduler)(nil)

// New constructs a CronScheduler. Call Start to begin firing periodic jobs.
func New(opts Options, logger zerolog.Logger) *CronScheduler {
	if opts.Conditions == nil {
		opts.Conditions = AlwaysMet{}
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = MinPeriodicInterval
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	root, stop := context.WithCancel(context.Background())
	return &CronScheduler{
		opts:    opts,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger:  logger,
		after:   time.After,
		root:    root,
		stop:    stop,
		entries: make(map[string]registration),
	}
}

// Start begins firing periodic jobs.
func (s *CronScheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts the cron loop, cancels in-flight runs and waits for them.
func (s *CronScheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// SchedulePeriodic registers job to run every interval, never more often
// than the configured floor.
func (s *CronScheduler) SchedulePeriodic(name string, interval time.Duration, constraints Constraints, backoff Backoff, job Job) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if interval < s.opts.MinInterval {
		s.logger.Debug().Str("job", name).Dur("requested", interval).Dur("floor", s.opts.MinInterval).Msg("raising interval to floor")
		interval = s.opts.MinInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ctx context.Context
	var cancel context.CancelFunc
	if prev, ok := s.entries[name]; ok && prev.periodic {
		// a run in flight keeps its context, so its pending retry survives
		// the job rescheduling itself
		s.cron.Remove(prev.entry)
		delete(s.entries, name)
		ctx, cancel = prev.ctx, prev.cancel
	} else {
		s.removeLocked(name)
		ctx, cancel = context.WithCancel(s.root)
	}

	entry, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.execute(ctx, name, constraints, backoff, job)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.entries[name] = registration{entry: entry, interval: interval, periodic: true, ctx: ctx, cancel: cancel}
	s.logger.Info().Str("job", name).Dur("interval", interval).Msg("periodic job scheduled")
	return nil
}

// ScheduleOneOff runs job once, immediately, retrying per backoff.
func (s *CronScheduler) ScheduleOneOff(name string, constraints Constraints, backoff Backoff, job Job) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}

	s.mu.Lock()
	s.removeLocked(name)
	ctx, cancel := context.WithCancel(s.root)
	s.entries[name] = registration{ctx: ctx, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.execute(ctx, name, constraints, backoff, job)

		s.mu.Lock()
		if reg, ok := s.entries[name]; ok && !reg.periodic && ctx.Err() == nil {
			delete(s.entries, name)
		}
		s.mu.Unlock()
		cancel()
	}()
	return nil
}

// Cancel removes the named job and stops any pending retry.
func (s *CronScheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

// Interval reports the effective interval of a periodic job.
func (s *CronScheduler) Interval(name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.entries[name]
	if !ok || !reg.periodic {
		return 0, false
	}
	return reg.interval, true
}

// Scheduled lists registered job names.
func (s *CronScheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *CronScheduler) removeLocked(name string) bool {
	reg, ok := s.entries[name]
	if !ok {
		return false
	}
	if reg.periodic {
		s.cron.Remove(reg.entry)
	}
	reg.cancel()
	delete(s.entries, name)
	return true
}

func (s *CronScheduler) execute(ctx context.Context, name string, constraints Constraints, backoff Backoff, job Job) {
	log := s.logger.With().Str("job", name).Logger()
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if reason, ok := s.satisfied(ctx, constraints); !ok {
			log.Info().Str("reason", reason).Msg("constraints not met; run deferred")
			return
		}

		start := time.Now()
		outcome := runJob(ctx, job, log)
		elapsed := time.Since(start)
		if s.opts.Observer != nil {
			s.opts.Observer(name, outcome, elapsed)
		}
		log.Info().Stringer("outcome", outcome).Int("attempt", attempt+1).Dur("elapsed", elapsed).Msg("job finished")

		if outcome != OutcomeRetry {
			return
		}
		if !backoff.allows(attempt + 1) {
			log.Warn().Int("attempts", attempt+1).Msg("retry budget exhausted")
			return
		}

		delay := backoff.Delay(attempt)
		log.Debug().Dur("delay", delay).Msg("retrying after backoff")
		select {
		case <-ctx.Done():
			return
		case <-s.after(delay):
		}
	}
}

func (s *CronScheduler) satisfied(ctx context.Context, c Constraints) (string, bool) {
	if c.RequiresNetwork && !s.opts.Conditions.NetworkAvailable(ctx) {
		return "network unavailable", false
	}
	if c.RequiresBatteryNotLow && !s.opts.Conditions.BatteryNotLow(ctx) {
		return "battery low", false
	}
	return "", true
}

func runJob(ctx context.Context, job Job, log zerolog.Logger) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			outcome = OutcomeRetry
		}
	}()
	return job(ctx)
}
