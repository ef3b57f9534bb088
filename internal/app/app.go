package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/alerting"
	"p2p-exchange-client/internal/api"
	"p2p-exchange-client/internal/config"
	"p2p-exchange-client/internal/metrics"
	"p2p-exchange-client/internal/migration"
	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/repository"
	"p2p-exchange-client/internal/scheduler"
	"p2p-exchange-client/internal/service"
	"p2p-exchange-client/internal/storage"
	"p2p-exchange-client/internal/throttle"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// Components holds every store and repository opened for one command.
type Components struct {
	Store     *storage.Store
	Prefs     *prefs.Store
	API       *api.Client
	Guard     *throttle.Guard
	Metrics   *metrics.Metrics
	Sessions  *repository.SessionRepository
	Settings  *repository.SettingsRepository
	Offers    *repository.OfferRepository
	Templates *repository.TemplateRepository
	Alerts    *repository.AlertRepository
	Migration *migration.Coordinator
}

func (a *App) open(ctx context.Context) (*Components, func(), error) {
	db, err := storage.Open(ctx, a.Config.Database, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(db, a.Logger)

	p, err := prefs.Open(prefs.Options{
		Path:        a.Config.Preferences.Path,
		Passphrase:  a.Config.Preferences.Passphrase,
		OpenTimeout: a.Config.Preferences.OpenTimeout,
	}, a.Logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	m := metrics.New()
	guard := throttle.New(a.Logger, throttle.WithDefault(a.Config.GuardConfig()), throttle.WithObserver(m.ObserveThrottle))
	for key, cfg := range a.Config.Throttle.Operations {
		guard.ConfigureOperation(key, cfg)
	}

	client := api.NewClient(api.Options{
		BaseURL:           a.Config.API.BaseURL,
		Timeout:           a.Config.API.Timeout,
		UserAgent:         a.Config.API.UserAgent,
		RequestsPerSecond: a.Config.API.RequestsPerSecond,
		Burst:             a.Config.API.Burst,
		Observer:          m.ObserveRequest,
	}, a.Logger)

	sessions := repository.NewSessionRepository(p, store.Sessions, store.Users, client, a.Logger)
	c := &Components{
		Store:     store,
		Prefs:     p,
		API:       client,
		Guard:     guard,
		Metrics:   m,
		Sessions:  sessions,
		Settings:  repository.NewSettingsRepository(store.Settings, p, a.Logger),
		Offers:    repository.NewOfferRepository(store.Offers, store.Templates, p, client, sessions, guard, repository.OfferOptions{MaxPages: a.Config.API.MaxPages, PerPage: a.Config.API.PerPage}, a.Logger),
		Templates: repository.NewTemplateRepository(store.Templates),
		Alerts:    repository.NewAlertRepository(store.Alerts),
		Migration: migration.New(store.Sessions, store.Users, p, a.Logger),
	}

	if res, ran := c.Migration.MigrateIfNeeded(ctx); ran && res.Kind == migration.KindError {
		a.Logger.Warn().Err(res.Err).Msg("startup session migration failed")
	}

	closer := func() {
		if err := p.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close preferences")
		}
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close database")
		}
	}
	return c, closer, nil
}

// withComponents opens the stores, runs fn and closes them again.
func (a *App) withComponents(ctx context.Context, fn func(*Components) error) error {
	c, closer, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closer()
	return fn(c)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) notificationChannel(c *Components) *alerting.SettingsChannel {
	return alerting.NewSettingsChannel(c.Settings, a.Config.Alerting.ChannelConfigured(), a.Logger)
}

func (a *App) newAlertService(c *Components) *service.AlertService {
	return service.New(service.Options{
		PerPage:  a.Config.API.PerPage,
		Recorder: c.Metrics,
	}, c.Store.Alerts, c.Sessions, c.API, c.Guard, a.notificationChannel(c), a.newNotifier(), a.Logger)
}

func (a *App) constraints() scheduler.Constraints {
	return scheduler.Constraints{
		RequiresNetwork:       a.Config.Alerts.RequireNetwork,
		RequiresBatteryNotLow: true,
	}
}

func (a *App) backoff() scheduler.Backoff {
	return scheduler.Backoff{Initial: a.Config.Alerts.BackoffInitial, Max: a.Config.Alerts.BackoffMax}
}

// Run executes the long-running alert worker until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, closer, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if !a.Config.Alerts.Enabled {
		return errors.New("alerts.enabled is false; nothing to run")
	}

	conditions, err := scheduler.NewHostConditions(a.Config.API.BaseURL, a.Config.API.Timeout)
	if err != nil {
		return fmt.Errorf("network probe: %w", err)
	}
	sched := scheduler.New(scheduler.Options{Conditions: conditions, Observer: c.Metrics.ObserveJob}, a.Logger)
	worker := &alertWorker{
		app:      a,
		sched:    sched,
		alerts:   c.Alerts,
		svc:      a.newAlertService(c),
		offers:   c.Store.Offers,
		metrics:  c.Metrics,
		fallback: a.Config.Alerts.Interval,
	}
	if err := worker.reschedule(ctx); err != nil {
		return err
	}
	if err := sched.ScheduleOneOff(service.JobName+"_now", a.constraints(), a.backoff(), worker.job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	a.Logger.Info().Msg("starting alert worker")
	if a.Config.Metrics.Enabled {
		err = c.Metrics.Serve(ctx, a.Config.Metrics.Listen, a.Logger)
	} else {
		<-ctx.Done()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("alert worker terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert worker stopped")
	return nil
}

// alertWorker keeps the periodic registration in step with the shortest
// active alert interval.
type alertWorker struct {
	app      *App
	sched    scheduler.WorkScheduler
	alerts   *repository.AlertRepository
	svc      *service.AlertService
	offers   *storage.OfferCache
	metrics  *metrics.Metrics
	fallback time.Duration

	mu      sync.Mutex
	current time.Duration
}

func (w *alertWorker) job(ctx context.Context) scheduler.Outcome {
	outcome := w.svc.Check(ctx)
	if mine, market, err := w.offers.CountOffers(ctx); err == nil {
		w.metrics.SetCachedOffers(mine, market)
	}
	if err := w.reschedule(ctx); err != nil {
		w.app.Logger.Warn().Err(err).Msg("reschedule alert job")
	}
	return outcome
}

func (w *alertWorker) reschedule(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	interval, ok, err := w.alerts.ScheduleInterval(ctx)
	if err != nil {
		return err
	}
	if !ok {
		interval = w.fallback
	}
	if interval == w.current {
		return nil
	}
	if err := w.sched.SchedulePeriodic(service.JobName, interval, w.app.constraints(), w.app.backoff(), w.job); err != nil {
		return err
	}
	w.current = interval
	return nil
}

// ExportOptions hold parameters for exporting cached offers.
type ExportOptions struct {
	Mine      bool
	Coin      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Mine   bool
	Search string
	Limit  int
}

// SyncOptions configure an offer refresh.
type SyncOptions struct {
	Mine        bool
	Marketplace bool
	Filter      model.OfferFilter
	MaxAge      time.Duration
}
