package prefs

import (
	"time"

	"p2p-exchange-client/internal/model"
)

const (
	keyAppFirstLaunch     = "app.first_launch"
	keyAppLastSync        = "app.last_sync"
	keyAppVersion         = "app.version"
	keyFiltersOfferType   = "filters.offer_type"
	keyFiltersCoins       = "filters.selected_coins"
	keyFiltersLastUsed    = "filters.last_used"
	keySessionMigrated    = "app.session_migrated"
	defaultOfferTypeValue = string(model.OfferTypeBoth)
)

// AppPreferences is the app and filters namespaces.
type AppPreferences struct {
	FirstLaunch     bool
	LastSync        *time.Time
	AppVersion      string
	OfferTypeFilter string
	SelectedCoins   []string
	FiltersLastUsed *time.Time
	// SessionMigrated is set once the legacy session has been migrated or
	// rolled back; the startup migration does not run again after that.
	SessionMigrated bool
}

func defaultAppPreferences() AppPreferences {
	return AppPreferences{FirstLaunch: true, OfferTypeFilter: defaultOfferTypeValue}
}

// App reads the app-level preferences.
func (s *Store) App() (AppPreferences, error) {
	snap := defaultAppPreferences()
	err := s.view(func(r *reader) error {
		var err error
		if snap.FirstLaunch, err = r.flag(keyAppFirstLaunch, true); err != nil {
			return err
		}
		if snap.LastSync, err = r.timestamp(keyAppLastSync); err != nil {
			return err
		}
		snap.AppVersion = r.str(keyAppVersion)
		if v := r.str(keyFiltersOfferType); v != "" {
			snap.OfferTypeFilter = v
		}
		if err := r.decode(keyFiltersCoins, &snap.SelectedCoins); err != nil {
			return err
		}
		if snap.SessionMigrated, err = r.flag(keySessionMigrated, false); err != nil {
			return err
		}
		snap.FiltersLastUsed, err = r.timestamp(keyFiltersLastUsed)
		return err
	})
	return degrade(s, "app", snap, err, defaultAppPreferences())
}

// AppStream observes app-level preferences.
func (s *Store) AppStream() (<-chan AppPreferences, func()) {
	return s.app.Subscribe()
}

// SetFirstLaunchCompleted clears the first-launch flag.
func (s *Store) SetFirstLaunchCompleted() error {
	return s.update(func(w *writer) error { return w.putBool(keyAppFirstLaunch, false) }, nsApp)
}

// UpdateLastSync records the last successful offer sync.
func (s *Store) UpdateLastSync(at time.Time) error {
	return s.update(func(w *writer) error { return w.putTime(keyAppLastSync, at) }, nsApp)
}

// UpdateAppVersion stores the running build version.
func (s *Store) UpdateAppVersion(version string) error {
	return s.update(func(w *writer) error { return w.putString(keyAppVersion, version) }, nsApp)
}

// UpdateOfferTypeFilter stores the selected offer type filter.
func (s *Store) UpdateOfferTypeFilter(offerType string) error {
	now := s.now()
	return s.update(func(w *writer) error {
		if err := w.putString(keyFiltersOfferType, offerType); err != nil {
			return err
		}
		return w.putTime(keyFiltersLastUsed, now)
	}, nsApp)
}

// UpdateSelectedCoins stores the coin filter as JSON text.
func (s *Store) UpdateSelectedCoins(coins []string) error {
	if coins == nil {
		coins = []string{}
	}
	now := s.now()
	return s.update(func(w *writer) error {
		if err := w.putJSON(keyFiltersCoins, coins); err != nil {
			return err
		}
		return w.putTime(keyFiltersLastUsed, now)
	}, nsApp)
}

// UpdateFiltersLastUsed touches the filters timestamp.
func (s *Store) UpdateFiltersLastUsed(at time.Time) error {
	return s.update(func(w *writer) error { return w.putTime(keyFiltersLastUsed, at) }, nsApp)
}

// SetSessionMigrated records whether the legacy session migration is settled.
func (s *Store) SetSessionMigrated(done bool) error {
	return s.update(func(w *writer) error { return w.putBool(keySessionMigrated, done) }, nsApp)
}
