package prefs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

type writer struct {
	bucket *bolt.Bucket
	sealer Sealer
}

func (w *writer) putString(key, value string) error {
	return w.bucket.Put([]byte(key), []byte(value))
}

func (w *writer) putSecret(key, value string) error {
	sealed, err := w.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return w.bucket.Put([]byte(key), sealed)
}

func (w *writer) putBool(key string, value bool) error {
	return w.putString(key, strconv.FormatBool(value))
}

func (w *writer) putInt(key string, value int64) error {
	return w.putString(key, strconv.FormatInt(value, 10))
}

func (w *writer) putTime(key string, value time.Time) error {
	return w.putString(key, value.UTC().Format(time.RFC3339Nano))
}

func (w *writer) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return w.bucket.Put([]byte(key), raw)
}

func (w *writer) delete(keys ...string) error {
	for _, key := range keys {
		if err := w.bucket.Delete([]byte(key)); err != nil {
			return err
		}
	}
	return nil
}

type reader struct {
	bucket *bolt.Bucket
	sealer Sealer
}

func (r *reader) has(key string) bool {
	return r.bucket.Get([]byte(key)) != nil
}

func (r *reader) str(key string) string {
	return string(r.bucket.Get([]byte(key)))
}

func (r *reader) secret(key string) (string, error) {
	raw := r.bucket.Get([]byte(key))
	if raw == nil {
		return "", nil
	}
	plain, err := r.sealer.Open(append([]byte(nil), raw...))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errCorrupt, key, err)
	}
	return string(plain), nil
}

func (r *reader) flag(key string, fallback bool) (bool, error) {
	raw := r.bucket.Get([]byte(key))
	if raw == nil {
		return fallback, nil
	}
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return fallback, fmt.Errorf("%w: %s", errCorrupt, key)
	}
	return v, nil
}

func (r *reader) integer(key string) (int64, error) {
	raw := r.bucket.Get([]byte(key))
	if raw == nil {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errCorrupt, key)
	}
	return v, nil
}

func (r *reader) timestamp(key string) (*time.Time, error) {
	raw := r.bucket.Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	v, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errCorrupt, key)
	}
	return &v, nil
}

func (r *reader) decode(key string, dst any) error {
	raw := r.bucket.Get([]byte(key))
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s", errCorrupt, key)
	}
	return nil
}

func orZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
