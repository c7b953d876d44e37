package gatekeeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gympro-app/internal/dismissal"
	"gympro-app/internal/domain/gate"
	"gympro-app/internal/domain/subscriptions"
)

// Service evaluates the access gate for a user: it loads the subscription,
// wires in the user's dismissals, and persists the soft-grace window the
// first time an expiry is observed.
type Service struct {
	db      *gorm.DB
	tracker *dismissal.Tracker
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, tracker *dismissal.Tracker, log zerolog.Logger) *Service {
	return &Service{
		db:      db,
		tracker: tracker,
		log:     log.With().Str("component", "gate").Logger(),
		now:     time.Now,
	}
}

// Evaluate returns the gate decision and the subscription it was derived
// from. A missing subscription row means full access (nil, nil, nil).
func (s *Service) Evaluate(ctx context.Context, userID uint) (*gate.Config, *subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	err := s.db.WithContext(ctx).Preload("Plan").Preload("PendingPlan").
		Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	now := s.now()
	cfg := gate.Evaluate(&sub, s.reader(ctx, userID), now)

	// First sighting of an expired state starts the soft-grace clock; persist
	// it so the window survives restarts and is shared across sessions.
	if cfg != nil && cfg.SoftGraceExpiresAt != nil && sub.SoftGraceExpiresAt == nil {
		started := now
		updates := map[string]interface{}{
			"soft_grace_started_at": started,
			"soft_grace_expires_at": *cfg.SoftGraceExpiresAt,
		}
		if err := s.db.WithContext(ctx).Model(&sub).Updates(updates).Error; err != nil {
			s.log.Warn().Err(err).Uint("user", userID).Msg("soft grace persist failed")
		} else {
			sub.SoftGraceStartedAt = &started
			sub.SoftGraceExpiresAt = cfg.SoftGraceExpiresAt
		}
	}

	return cfg, &sub, nil
}

// Dismiss records a dismissal for the user's currently showing warning.
// Blockers cannot be dismissed.
func (s *Service) Dismiss(ctx context.Context, userID uint, reason gate.Reason, timing gate.Timing) error {
	cfg, _, err := s.Evaluate(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now()
	key, err := dismissalKey(cfg, reason, timing, now)
	if err != nil {
		return err
	}
	slot := DismissalSlot(userID)
	s.tracker.Dismiss(ctx, slot, key)
	// Opportunistic prune; the periodic sweep catches idle users.
	s.tracker.Cleanup(ctx, slot, now)
	return nil
}

var (
	ErrNotDismissible = errors.New("current gate cannot be dismissed")
	ErrGateMismatch   = errors.New("dismissal does not match the showing gate")
)

// dismissalKey derives the key from the evaluated gate, never from the
// request: only the warning that is actually showing can be dismissed, so a
// client cannot pre-dismiss a future timing. The request's reason/timing are
// accepted only as a staleness check.
func dismissalKey(cfg *gate.Config, reason gate.Reason, timing gate.Timing, now time.Time) (string, error) {
	if cfg == nil || !cfg.CanDismiss {
		return "", ErrNotDismissible
	}
	if reason != "" && reason != cfg.Reason {
		return "", ErrGateMismatch
	}
	if timing != "" && timing != cfg.Timing {
		return "", ErrGateMismatch
	}
	return dismissal.Key(string(cfg.Reason), string(cfg.Timing), now), nil
}

// FetchFor adapts the service into a controller fetch function for one user.
func (s *Service) FetchFor(userID uint) FetchFunc {
	return func(ctx context.Context) (*gate.Config, error) {
		cfg, _, err := s.Evaluate(ctx, userID)
		return cfg, err
	}
}

// reader adapts the tracker to the classifier's read interface for one user.
func (s *Service) reader(ctx context.Context, userID uint) gate.DismissalReader {
	return dismissalReader{ctx: ctx, tracker: s.tracker, slot: DismissalSlot(userID)}
}

type dismissalReader struct {
	ctx     context.Context
	tracker *dismissal.Tracker
	slot    string
}

func (r dismissalReader) IsDismissed(reason gate.Reason, timing gate.Timing, now time.Time) bool {
	return r.tracker.IsDismissed(r.ctx, r.slot, dismissal.Key(string(reason), string(timing), now))
}
