// Package dismissal tracks acknowledged warning gates. Keys are bucketed to
// two-hour windows so a dismissed warning stays quiet for the rest of the
// bucket and re-surfaces in the next one, without persisting exact timestamps.
package dismissal

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Keys older than this are dropped on any cleanup pass.
const retention = 30 * 24 * time.Hour

const bucketLayout = "2006-01-02T15"

// Store is the persisted slot behind the tracker. One slot holds one
// tenant's ordered list of dismissal keys.
type Store interface {
	Load(ctx context.Context, slot string) ([]string, error)
	Save(ctx context.Context, slot string, keys []string) error
}

// BucketKey floors an instant to its two-hour UTC boundary and formats it as
// a stable string. Any instant inside a bucket yields the same key.
func BucketKey(now time.Time) string {
	t := now.UTC().Truncate(time.Hour)
	t = t.Add(-time.Duration(t.Hour()%2) * time.Hour)
	return t.Format(bucketLayout)
}

// Key builds a dismissal key: reason, optional timing, then the time bucket.
func Key(reason, timing string, now time.Time) string {
	parts := []string{reason}
	if timing != "" {
		parts = append(parts, timing)
	}
	parts = append(parts, BucketKey(now))
	return strings.Join(parts, "_")
}

// Tracker is the read/write surface over one Store. Storage failures are
// treated as "nothing dismissed": warnings re-show instead of crashing.
type Tracker struct {
	store Store
	log   zerolog.Logger
	mu    sync.Mutex
}

func NewTracker(store Store, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: log.With().Str("component", "dismissal").Logger()}
}

// IsDismissed reports membership of a key in the slot's persisted set.
func (t *Tracker) IsDismissed(ctx context.Context, slot, key string) bool {
	keys, err := t.store.Load(ctx, slot)
	if err != nil {
		t.log.Warn().Err(err).Str("slot", slot).Msg("dismissal load failed, treating as empty")
		return false
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Dismiss inserts a key idempotently. Rapid duplicate calls for the same key
// collapse to a single insert.
func (t *Tracker) Dismiss(ctx context.Context, slot, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, err := t.store.Load(ctx, slot)
	if err != nil {
		t.log.Warn().Err(err).Str("slot", slot).Msg("dismissal load failed, starting fresh")
		keys = nil
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	keys = append(keys, key)
	if err := t.store.Save(ctx, slot, keys); err != nil {
		t.log.Warn().Err(err).Str("slot", slot).Msg("dismissal save failed")
	}
}

// Cleanup drops every key whose embedded bucket is older than the retention
// horizon. Keys that don't parse count as stale. Idempotent.
func (t *Tracker) Cleanup(ctx context.Context, slot string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, err := t.store.Load(ctx, slot)
	if err != nil || len(keys) == 0 {
		return
	}

	cutoff := now.Add(-retention)
	kept := keys[:0]
	removed := 0
	for _, k := range keys {
		if bucketTime, ok := parseBucket(k); ok && bucketTime.After(cutoff) {
			kept = append(kept, k)
		} else {
			removed++
		}
	}
	if removed == 0 {
		return
	}
	if err := t.store.Save(ctx, slot, kept); err != nil {
		t.log.Warn().Err(err).Str("slot", slot).Msg("dismissal cleanup save failed")
	}
}

// parseBucket extracts the bucket timestamp from a key. The bucket is always
// the segment after the last underscore and contains none itself.
func parseBucket(key string) (time.Time, bool) {
	idx := strings.LastIndex(key, "_")
	if idx < 0 || idx == len(key)-1 {
		return time.Time{}, false
	}
	t, err := time.Parse(bucketLayout, key[idx+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
