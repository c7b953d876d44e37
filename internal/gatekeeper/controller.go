// Package gatekeeper keeps a client session's access gate current: it polls
// the gate state on an interval, refreshes on demand when the session regains
// focus, and drives a per-minute countdown while a deadline is showing.
package gatekeeper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gympro-app/internal/domain/gate"
)

const (
	refreshInterval   = 5 * time.Minute
	countdownInterval = 60 * time.Second
)

// FetchFunc returns the current gate state for the session's user.
type FetchFunc func(ctx context.Context) (*gate.Config, error)

// Controller owns the polling loop for one session. Callbacks fire from the
// loop goroutine; they must not block.
type Controller struct {
	fetch    FetchFunc
	onChange func(*gate.Config)
	onTick   func(remaining time.Duration)
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	current  *gate.Config
	inFlight bool

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(fetch FetchFunc, onChange func(*gate.Config), onTick func(time.Duration), log zerolog.Logger) *Controller {
	return &Controller{
		fetch:    fetch,
		onChange: onChange,
		onTick:   onTick,
		log:      log.With().Str("component", "gatekeeper").Logger(),
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// Start fetches once immediately, then polls every refreshInterval until Stop
// or context cancellation.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop tears down the refresh loop and any running countdown.
func (c *Controller) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Refocus requests an immediate refresh, e.g. when the session regains focus
// after being idle. If a fetch is already outstanding the request is dropped
// rather than queued.
func (c *Controller) Refocus() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Current returns the last fetched gate state.
func (c *Controller) Current() *gate.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	// The countdown ticker only runs while the current gate wants one. A nil
	// channel blocks forever in select, which is how it stays off.
	var countdown *time.Ticker
	var countdownC <-chan time.Time
	stopCountdown := func() {
		if countdown != nil {
			countdown.Stop()
			countdown = nil
			countdownC = nil
		}
	}
	defer stopCountdown()

	c.refresh(ctx, &countdown, &countdownC)

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			c.refresh(ctx, &countdown, &countdownC)
		case <-c.kick:
			c.refresh(ctx, &countdown, &countdownC)
		case <-countdownC:
			c.tick()
		}
	}
}

// refresh runs one fetch. At most one is outstanding at a time; concurrent
// triggers are dropped, not queued.
func (c *Controller) refresh(ctx context.Context, countdown **time.Ticker, countdownC *<-chan time.Time) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	cfg, err := c.fetch(ctx)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		// Keep showing the last known state rather than flapping.
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("gate refresh failed, keeping previous state")
		return
	}
	prev := c.current
	c.current = cfg
	c.mu.Unlock()

	if identity(prev) != identity(cfg) {
		// Restart the countdown on any gate transition so the first tick of
		// the new gate lands a full interval from now.
		if *countdown != nil {
			(*countdown).Stop()
			*countdown = nil
			*countdownC = nil
		}
		if c.onChange != nil {
			c.onChange(cfg)
		}
	}

	wantCountdown := cfg != nil && cfg.Show && cfg.ShowCountdown
	if wantCountdown && *countdown == nil {
		*countdown = time.NewTicker(countdownInterval)
		*countdownC = (*countdown).C
	} else if !wantCountdown && *countdown != nil {
		(*countdown).Stop()
		*countdown = nil
		*countdownC = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	cfg := c.current
	c.mu.Unlock()
	if cfg == nil || c.onTick == nil {
		return
	}
	c.onTick(gate.Remaining(cfg, c.now()))
}

func identity(c *gate.Config) string {
	if c == nil || !c.Show {
		return ""
	}
	return c.Identity()
}
