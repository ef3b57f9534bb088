package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"p2p-exchange-client/internal/model"
)

type settingsFunc func(ctx context.Context) (model.Settings, error)

func (f settingsFunc) Settings(ctx context.Context) (model.Settings, error) { return f(ctx) }

func TestSettingsChannel(t *testing.T) {
	on := settingsFunc(func(context.Context) (model.Settings, error) { return model.DefaultSettings(time.Now()), nil })
	off := settingsFunc(func(context.Context) (model.Settings, error) {
		s := model.DefaultSettings(time.Now())
		s.NotificationsEnabled = false
		return s, nil
	})
	broken := settingsFunc(func(context.Context) (model.Settings, error) { return model.Settings{}, errors.New("disk") })

	ctx := context.Background()
	assert.True(t, NewSettingsChannel(on, true, zerolog.Nop()).Enabled(ctx))
	assert.False(t, NewSettingsChannel(on, false, zerolog.Nop()).Enabled(ctx))
	assert.False(t, NewSettingsChannel(off, true, zerolog.Nop()).Enabled(ctx))
	assert.False(t, NewSettingsChannel(broken, true, zerolog.Nop()).Enabled(ctx))
}
