// Package prefs is the durable key-value store for session, settings and
// app-level flags. Keys are namespaced (session.*, settings.*, app.*,
// filters.*) inside a single bbolt bucket.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"p2p-exchange-client/internal/stream"
)

var (
	bucketName = []byte("preferences")
	metaBucket = []byte("meta")
	saltKey    = []byte("salt")

	errCorrupt = errors.New("prefs: corrupt value")
)

// Options tune the preference store.
type Options struct {
	Path        string
	Passphrase  string
	OpenTimeout time.Duration
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Store is a bbolt-backed preference store with reactive snapshots.
type Store struct {
	db     *bolt.DB
	sealer Sealer
	now    func() time.Time
	logger zerolog.Logger

	sessions *stream.Stream[SessionSnapshot]
	settings *stream.Stream[SettingsSnapshot]
	app      *stream.Stream[AppPreferences]
}

// Open opens or creates the preference file.
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("preferences path is required")
	}
	if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create preferences directory: %w", err)
		}
	}

	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	db, err := bolt.Open(opts.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	var salt []byte
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if existing := meta.Get(saltKey); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		salt, err = newSalt()
		if err != nil {
			return err
		}
		return meta.Put(saltKey, salt)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init preferences: %w", err)
	}

	var sealer Sealer = plainSealer{}
	if opts.Passphrase != "" {
		box, err := NewSecretBox(opts.Passphrase, salt)
		if err != nil {
			db.Close()
			return nil, err
		}
		sealer = box
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		db:       db,
		sealer:   sealer,
		now:      now,
		logger:   logger.With().Str("component", "prefs").Logger(),
		sessions: stream.New[SessionSnapshot](),
		settings: stream.New[SettingsSnapshot](),
		app:      stream.New[AppPreferences](),
	}
	s.publish(nsSession, nsSettings, nsApp)
	return s, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	s.sessions.Close()
	s.settings.Close()
	s.app.Close()
	return s.db.Close()
}

type namespace int

const (
	nsSession namespace = iota
	nsSettings
	nsApp
)

// update runs fn in a single write transaction and republishes the touched
// namespaces afterwards.
func (s *Store) update(fn func(w *writer) error, touched ...namespace) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return fn(&writer{bucket: tx.Bucket(bucketName), sealer: s.sealer})
	})
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	s.publish(touched...)
	return nil
}

func (s *Store) view(fn func(r *reader) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&reader{bucket: tx.Bucket(bucketName), sealer: s.sealer})
	})
}

func (s *Store) publish(touched ...namespace) {
	for _, ns := range touched {
		switch ns {
		case nsSession:
			if snap, err := s.Session(); err == nil {
				s.sessions.Publish(snap)
			} else {
				s.logger.Error().Err(err).Msg("failed to publish session snapshot")
			}
		case nsSettings:
			if snap, err := s.Settings(); err == nil {
				s.settings.Publish(snap)
			} else {
				s.logger.Error().Err(err).Msg("failed to publish settings snapshot")
			}
		case nsApp:
			if snap, err := s.App(); err == nil {
				s.app.Publish(snap)
			} else {
				s.logger.Error().Err(err).Msg("failed to publish app snapshot")
			}
		}
	}
}

// degrade turns corruption into the zero snapshot; other errors propagate.
func degrade[T any](s *Store, what string, snap T, err error, fallback T) (T, error) {
	if err == nil {
		return snap, nil
	}
	if errors.Is(err, errCorrupt) {
		s.logger.Warn().Err(err).Str("namespace", what).Msg("corrupt preferences, using defaults")
		return fallback, nil
	}
	return fallback, fmt.Errorf("read %s preferences: %w", what, err)
}
