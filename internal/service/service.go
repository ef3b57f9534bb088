package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/alerting"
	"p2p-exchange-client/internal/api"
	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/scheduler"
	"p2p-exchange-client/internal/throttle"
)

// JobName is the unique name of the periodic alert job.
const JobName = "offer_alerts"

// CheckKeyPrefix prefixes the per-alert throttle key.
const CheckKeyPrefix = "alerts.check."

// AlertSource is the slice of the alert store the job needs.
type AlertSource interface {
	ListActive(ctx context.Context) ([]model.Alert, error)
	MarkChecked(ctx context.Context, id int64, at time.Time) error
	MarkTriggered(ctx context.Context, id int64, at time.Time) error
}

// TokenSource yields the current access token, "" when logged out.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Recorder receives per-alert counters.
type Recorder interface {
	AlertChecked(result string)
	AlertMatched(n int)
	NotificationSent(result string)
}

type nopRecorder struct{}

func (nopRecorder) AlertChecked(string)     {}
func (nopRecorder) AlertMatched(int)        {}
func (nopRecorder) NotificationSent(string) {}

// Options tune the alert service.
type Options struct {
	PerPage  int
	Recorder Recorder
}

// AlertService evaluates active alerts against live offers.
type AlertService struct {
	alerts   AlertSource
	tokens   TokenSource
	fetcher  api.OfferFetcher
	guard    *throttle.Guard
	channel  alerting.ChannelState
	notifier alerting.Notifier
	recorder Recorder
	perPage  int
	now      func() time.Time
	logger   zerolog.Logger
}

// New constructs the alert service.
func New(opts Options, alerts AlertSource, tokens TokenSource, fetcher api.OfferFetcher, guard *throttle.Guard, channel alerting.ChannelState, notifier alerting.Notifier, logger zerolog.Logger) *AlertService {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AlertService{
		alerts:   alerts,
		tokens:   tokens,
		fetcher:  fetcher,
		guard:    guard,
		channel:  channel,
		notifier: notifier,
		recorder: recorder,
		perPage:  opts.PerPage,
		now:      time.Now,
		logger:   logger.With().Str("component", "alert_service").Logger(),
	}
}

// Job adapts Check to the scheduler.
func (s *AlertService) Job() scheduler.Job {
	return s.Check
}

// Check runs one evaluation pass over every active alert. Per-alert
// failures are logged and do not stop the pass.
func (s *AlertService) Check(ctx context.Context) (outcome scheduler.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("alert check panicked")
			outcome = scheduler.OutcomeRetry
		}
	}()

	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("load active alerts")
		return scheduler.OutcomeRetry
	}
	if len(alerts) == 0 {
		s.logger.Debug().Msg("no active alerts")
		return scheduler.OutcomeNothingToDo
	}

	token := s.tokens.AccessToken(ctx)
	if token == "" {
		s.logger.Info().Int("alerts", len(alerts)).Msg("no usable session; skipping alert check")
		return scheduler.OutcomeNothingToDo
	}

	matched := 0
	for _, alert := range alerts {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("alert check cancelled")
			return scheduler.OutcomeRetry
		}
		n, err := s.checkAlert(ctx, token, alert)
		if err != nil {
			s.logger.Warn().Err(err).Int64("alert_id", alert.ID).Str("alert", alert.Name).Msg("alert evaluation failed")
			continue
		}
		matched += n
	}

	s.logger.Info().Int("alerts", len(alerts)).Int("matches", matched).Msg("alert check finished")
	return scheduler.OutcomeSuccess
}

// Evaluate fetches offers for alert and returns the matches without
// notifying or touching timestamps.
func (s *AlertService) Evaluate(ctx context.Context, alert model.Alert) ([]model.Offer, error) {
	page, err := s.fetch(ctx, s.tokens.AccessToken(ctx), alert)
	if err != nil {
		return nil, err
	}
	return alerting.Matches(alert, page.Data), nil
}

func (s *AlertService) checkAlert(ctx context.Context, token string, alert model.Alert) (int, error) {
	page, err := s.fetch(ctx, token, alert)

	var blocked *throttle.BlockedError
	switch {
	case errors.As(err, &blocked):
		s.recorder.AlertChecked("throttled")
		s.logger.Debug().Int64("alert_id", alert.ID).Dur("remaining", blocked.Remaining).Msg("alert check throttled")
		return 0, nil
	case ctx.Err() != nil:
		// the fetch did not resolve; leave timestamps untouched
		s.recorder.AlertChecked("error")
		return 0, ctx.Err()
	case err != nil:
		s.recorder.AlertChecked("error")
		s.markChecked(ctx, alert)
		return 0, err
	}

	matches := alerting.Matches(alert, page.Data)
	for _, offer := range matches {
		s.deliver(ctx, alert, offer)
	}
	s.markChecked(ctx, alert)
	s.recorder.AlertChecked("ok")
	s.recorder.AlertMatched(len(matches))
	return len(matches), nil
}

func (s *AlertService) fetch(ctx context.Context, token string, alert model.Alert) (model.Page, error) {
	filter := alert.Filter()
	filter.PerPage = s.perPage

	var page model.Page
	err := s.guard.Run(fmt.Sprintf("%s%d", CheckKeyPrefix, alert.ID), func() error {
		var err error
		page, err = s.fetcher.ListOffers(ctx, token, filter)
		return err
	})
	if err != nil {
		return model.Page{}, err
	}
	return page, nil
}

func (s *AlertService) deliver(ctx context.Context, alert model.Alert, offer model.Offer) {
	now := s.now().UTC()
	if s.channel.Enabled(ctx) {
		if err := s.notifier.Notify(ctx, alerting.NewNotification(alert, offer, now)); err != nil {
			s.recorder.NotificationSent("failed")
			s.logger.Error().Err(err).Int64("alert_id", alert.ID).Str("offer", offer.UUID).Msg("failed to dispatch alert")
		} else {
			s.recorder.NotificationSent("sent")
		}
	} else {
		s.recorder.NotificationSent("suppressed")
		s.logger.Debug().Int64("alert_id", alert.ID).Msg("notification channel disabled; delivery skipped")
	}

	if err := s.alerts.MarkTriggered(ctx, alert.ID, now); err != nil {
		s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to record trigger time")
	}
}

func (s *AlertService) markChecked(ctx context.Context, alert model.Alert) {
	if err := s.alerts.MarkChecked(ctx, alert.ID, s.now().UTC()); err != nil {
		s.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to record check time")
	}
}
