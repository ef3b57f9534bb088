package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/model"
)

// ChannelState reports whether notifications can currently be delivered.
type ChannelState interface {
	Enabled(ctx context.Context) bool
}

// SettingsSource reads the persisted settings row.
type SettingsSource interface {
	Settings(ctx context.Context) (model.Settings, error)
}

// SettingsChannel is enabled when the user allows notifications and a
// delivery channel is configured.
type SettingsChannel struct {
	settings   SettingsSource
	configured bool
	logger     zerolog.Logger
}

// NewSettingsChannel constructs a channel state backed by settings.
func NewSettingsChannel(settings SettingsSource, configured bool, logger zerolog.Logger) *SettingsChannel {
	return &SettingsChannel{
		settings:   settings,
		configured: configured,
		logger:     logger.With().Str("component", "alert_channel").Logger(),
	}
}

// Enabled never fails; an unreadable settings row counts as disabled.
func (c *SettingsChannel) Enabled(ctx context.Context) bool {
	if !c.configured {
		return false
	}
	s, err := c.settings.Settings(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("read notification settings")
		return false
	}
	return s.NotificationsEnabled
}

var _ ChannelState = (*SettingsChannel)(nil)
