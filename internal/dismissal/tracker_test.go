package dismissal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackerNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newTestTracker() (*Tracker, *MemoryStore) {
	store := NewMemoryStore()
	return NewTracker(store, zerolog.Nop()), store
}

func TestBucketKeyStableWithinWindow(t *testing.T) {
	// 15:30 falls in the 14:00-16:00 bucket.
	assert.Equal(t, "2026-03-10T14", BucketKey(trackerNow))
	assert.Equal(t, BucketKey(trackerNow), BucketKey(trackerNow.Add(29*time.Minute)))

	// 16:00 starts the next bucket.
	assert.Equal(t, "2026-03-10T16", BucketKey(trackerNow.Add(30*time.Minute)))
}

func TestBucketKeyNormalizesToUTC(t *testing.T) {
	local := trackerNow.In(time.FixedZone("CET", 3600))
	assert.Equal(t, BucketKey(trackerNow), BucketKey(local))
}

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "trial_expiring_days_3_2026-03-10T14", Key("trial_expiring", "days_3", trackerNow))
	assert.Equal(t, "past_due_2026-03-10T14", Key("past_due", "", trackerNow))
}

func TestDismissAndIsDismissed(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()
	key := Key("trial_expiring", "days_3", trackerNow)

	assert.False(t, tracker.IsDismissed(ctx, "user:1", key))
	tracker.Dismiss(ctx, "user:1", key)
	assert.True(t, tracker.IsDismissed(ctx, "user:1", key))

	// Other slots are unaffected.
	assert.False(t, tracker.IsDismissed(ctx, "user:2", key))

	// The next bucket re-shows.
	nextBucket := Key("trial_expiring", "days_3", trackerNow.Add(2*time.Hour))
	assert.False(t, tracker.IsDismissed(ctx, "user:1", nextBucket))
}

func TestDismissIsIdempotent(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()
	key := Key("past_due", "", trackerNow)

	tracker.Dismiss(ctx, "user:1", key)
	tracker.Dismiss(ctx, "user:1", key)
	tracker.Dismiss(ctx, "user:1", key)

	keys, err := store.Load(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestCleanupDropsOldAndMalformedKeys(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	fresh := Key("trial_expiring", "days_3", trackerNow)
	stale := Key("trial_expiring", "days_3", trackerNow.Add(-31*24*time.Hour))
	require.NoError(t, store.Save(ctx, "user:1", []string{fresh, stale, "garbage", "also_not-a-bucket"}))

	tracker.Cleanup(ctx, "user:1", trackerNow)

	keys, err := store.Load(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, keys)

	// Second pass removes nothing and keeps the slot intact.
	tracker.Cleanup(ctx, "user:1", trackerNow)
	keys, err = store.Load(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, keys)
}

// failStore always errors, standing in for a Redis outage.
type failStore struct{}

func (failStore) Load(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}
func (failStore) Save(context.Context, string, []string) error {
	return errors.New("connection refused")
}

func TestStorageFailureFailsOpen(t *testing.T) {
	tracker := NewTracker(failStore{}, zerolog.Nop())
	ctx := context.Background()
	key := Key("past_due", "", trackerNow)

	// Nothing reads as dismissed, nothing panics.
	assert.False(t, tracker.IsDismissed(ctx, "user:1", key))
	tracker.Dismiss(ctx, "user:1", key)
	tracker.Cleanup(ctx, "user:1", trackerNow)
	assert.False(t, tracker.IsDismissed(ctx, "user:1", key))
}
