package gatekeeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gympro-app/internal/domain/gate"
)

// countingFetch is a FetchFunc that counts calls and can block.
type countingFetch struct {
	mu    sync.Mutex
	calls int
	cfg   *gate.Config
	block chan struct{}
	seen  chan struct{}
}

func (f *countingFetch) fetch(context.Context) (*gate.Config, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.seen != nil {
		f.seen <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, nil
}

func (f *countingFetch) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestControllerFetchesOnStart(t *testing.T) {
	warning := &gate.Config{Show: true, Type: gate.TypeWarning, Reason: gate.ReasonPastDue}
	f := &countingFetch{cfg: warning}

	var changes []*gate.Config
	var mu sync.Mutex
	ctrl := NewController(f.fetch, func(cfg *gate.Config) {
		mu.Lock()
		changes = append(changes, cfg)
		mu.Unlock()
	}, nil, zerolog.Nop())

	ctrl.Start(context.Background())
	defer ctrl.Stop()

	require.Eventually(t, func() bool { return f.count() >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, warning, ctrl.Current())
}

func TestControllerRefocusTriggersFetch(t *testing.T) {
	f := &countingFetch{}
	ctrl := NewController(f.fetch, nil, nil, zerolog.Nop())
	ctrl.Start(context.Background())
	defer ctrl.Stop()

	require.Eventually(t, func() bool { return f.count() >= 1 }, time.Second, time.Millisecond)

	ctrl.Refocus()
	require.Eventually(t, func() bool { return f.count() >= 2 }, time.Second, time.Millisecond)
}

func TestControllerDropsRefocusWhileFetchOutstanding(t *testing.T) {
	f := &countingFetch{block: make(chan struct{}), seen: make(chan struct{})}
	ctrl := NewController(f.fetch, nil, nil, zerolog.Nop())
	ctrl.Start(context.Background())

	// Wait for the startup fetch to begin, then pile on refocus requests
	// while it is still blocked.
	<-f.seen
	ctrl.Refocus()
	ctrl.Refocus()
	ctrl.Refocus()

	close(f.block)

	// The pile collapses into at most one queued fetch.
	<-f.seen
	assert.Equal(t, 2, f.count())

	ctrl.Stop()
}

func TestControllerStopTerminates(t *testing.T) {
	f := &countingFetch{}
	ctrl := NewController(f.fetch, nil, nil, zerolog.Nop())
	ctrl.Start(context.Background())

	require.Eventually(t, func() bool { return f.count() >= 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		ctrl.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	// No fetches after Stop.
	n := f.count()
	ctrl.Refocus()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, f.count())
}

func TestControllerStopWithoutStartIsNoop(t *testing.T) {
	ctrl := NewController(func(context.Context) (*gate.Config, error) { return nil, nil }, nil, nil, zerolog.Nop())
	ctrl.Stop()
}

func TestIdentityHelper(t *testing.T) {
	assert.Equal(t, "", identity(nil))

	hidden := &gate.Config{Show: false, Type: gate.TypeWarning, Reason: gate.ReasonPastDue}
	assert.Equal(t, "", identity(hidden))

	shown := &gate.Config{Show: true, Type: gate.TypeWarning, Reason: gate.ReasonPastDue, Timing: gate.TimingExpired}
	assert.Equal(t, "warning/past_due/expired", identity(shown))
}

func TestDismissalSlot(t *testing.T) {
	assert.Equal(t, "user:42", DismissalSlot(42))
}
