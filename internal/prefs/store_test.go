package prefs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T, passphrase string) *Store {
	t.Helper()
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "prefs.db"), Passphrase: passphrase}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putRaw(t *testing.T, s *Store, key, value string) {
	t.Helper()
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	}))
}

func TestSaveAndClearSession(t *testing.T) {
	s := openTestStore(t, "")
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.SaveSession(7, "u-7", "alice", "access", "refresh"))

	snap, err := s.Session()
	require.NoError(t, err)
	assert.True(t, snap.IsLoggedIn)
	assert.Equal(t, int64(7), snap.UserID)
	assert.Equal(t, "u-7", snap.UUID)
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, "access", snap.AccessToken)
	assert.Equal(t, "refresh", snap.RefreshToken)
	assert.Equal(t, "Bearer", snap.TokenType)
	assert.True(t, fixed.Equal(snap.CreatedAt))

	later := fixed.Add(time.Hour)
	s.now = func() time.Time { return later }
	require.NoError(t, s.ClearSession())

	snap, err = s.Session()
	require.NoError(t, err)
	assert.False(t, snap.IsLoggedIn)
	assert.Empty(t, snap.UUID)
	assert.Empty(t, snap.AccessToken)
	assert.True(t, later.Equal(snap.UpdatedAt))
}

func TestSecondSaveReplacesFirst(t *testing.T) {
	s := openTestStore(t, "")
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, s.SaveSessionWithMeta(SessionInput{UserID: 1, UUID: "a", AccessToken: "t1", ExpiresAt: &expires}))
	require.NoError(t, s.SaveSession(2, "b", "bob", "t2", ""))

	snap, err := s.Session()
	require.NoError(t, err)
	assert.Equal(t, "b", snap.UUID)
	assert.Equal(t, "t2", snap.AccessToken)
	assert.Nil(t, snap.ExpiresAt)
}

func TestTokensAreSealedWithPassphrase(t *testing.T) {
	s := openTestStore(t, "correct horse")
	require.NoError(t, s.SaveSession(1, "u", "n", "secret-token", "r"))

	var raw []byte
	require.NoError(t, s.db.View(func(tx *bolt.Tx) error {
		raw = append([]byte(nil), tx.Bucket(bucketName).Get([]byte(keySessionAccessToken))...)
		return nil
	}))
	assert.NotContains(t, string(raw), "secret-token")

	snap, err := s.Session()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", snap.AccessToken)
}

func TestCorruptSessionDegradesToEmpty(t *testing.T) {
	s := openTestStore(t, "")
	require.NoError(t, s.SaveSession(1, "u", "n", "tok", "r"))
	putRaw(t, s, keySessionLoggedIn, "maybe")

	snap, err := s.Session()
	require.NoError(t, err)
	assert.Equal(t, SessionSnapshot{}, snap)
}

func TestSettingsDefaultsAndUpdates(t *testing.T) {
	s := openTestStore(t, "")

	snap, err := s.Settings()
	require.NoError(t, err)
	assert.False(t, snap.Initialized)
	assert.Equal(t, "system", snap.Theme)
	assert.True(t, snap.NotificationsEnabled)

	require.NoError(t, s.UpdateTheme("dark"))
	require.NoError(t, s.UpdateNotificationsEnabled(false))

	snap, err = s.Settings()
	require.NoError(t, err)
	assert.True(t, snap.Initialized)
	assert.Equal(t, "dark", snap.Theme)
	assert.False(t, snap.NotificationsEnabled)
	assert.Equal(t, "en", snap.Language)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestAppPreferencesRoundTrip(t *testing.T) {
	s := openTestStore(t, "")

	app, err := s.App()
	require.NoError(t, err)
	assert.True(t, app.FirstLaunch)
	assert.Equal(t, "both", app.OfferTypeFilter)

	require.NoError(t, s.SetFirstLaunchCompleted())
	require.NoError(t, s.UpdateSelectedCoins([]string{"BTC", "USDT"}))
	require.NoError(t, s.UpdateOfferTypeFilter("sell"))
	require.NoError(t, s.UpdateAppVersion("1.2.3"))
	synced := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpdateLastSync(synced))

	app, err = s.App()
	require.NoError(t, err)
	assert.False(t, app.FirstLaunch)
	assert.Equal(t, []string{"BTC", "USDT"}, app.SelectedCoins)
	assert.Equal(t, "sell", app.OfferTypeFilter)
	assert.Equal(t, "1.2.3", app.AppVersion)
	require.NotNil(t, app.LastSync)
	assert.True(t, synced.Equal(*app.LastSync))
	assert.NotNil(t, app.FiltersLastUsed)

	putRaw(t, s, keyFiltersCoins, "{not json")
	app, err = s.App()
	require.NoError(t, err)
	assert.Equal(t, defaultAppPreferences(), app)
}

func TestSessionStreamPublishesOnWrite(t *testing.T) {
	s := openTestStore(t, "")
	ch, cancel := s.SessionStream()
	defer cancel()

	initial := <-ch
	assert.False(t, initial.IsLoggedIn)

	require.NoError(t, s.SaveSession(3, "u-3", "carol", "tok", ""))

	select {
	case snap := <-ch:
		assert.Equal(t, "u-3", snap.UUID)
		assert.True(t, snap.IsLoggedIn)
	case <-time.After(time.Second):
		t.Fatal("expected a session snapshot after save")
	}
}
