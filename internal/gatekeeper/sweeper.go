package gatekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gympro-app/internal/dismissal"
	"gympro-app/internal/domain/subscriptions"
)

const sweepInterval = time.Hour

// Sweeper runs the periodic housekeeping the gate depends on: flipping
// overdue subscriptions to expired, applying matured scheduled plan changes,
// and pruning stale dismissal keys.
type Sweeper struct {
	db      *gorm.DB
	tracker *dismissal.Tracker
	log     zerolog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(db *gorm.DB, tracker *dismissal.Tracker, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		db:      db,
		tracker: tracker,
		log:     log.With().Str("component", "sweeper").Logger(),
		now:     time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Sweep runs one pass of all housekeeping tasks.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	s.expireOverdue(ctx, now)
	s.applyPendingChanges(ctx, now)
	s.cleanupDismissals(ctx, now)
}

// expireOverdue flips trialing subscriptions past their trial end and active
// ones past their period end to expired. The gate classifier handles grace
// windows on top of the expired status; the sweep only records the fact.
func (s *Sweeper) expireOverdue(ctx context.Context, now time.Time) {
	res := s.db.WithContext(ctx).Model(&subscriptions.Subscription{}).
		Where("status = ? AND trial_end_date IS NOT NULL AND trial_end_date < ?", subscriptions.StatusTrialing, now).
		Update("status", subscriptions.StatusExpired)
	if res.Error != nil {
		s.log.Error().Err(res.Error).Msg("trial expiry sweep failed")
	} else if res.RowsAffected > 0 {
		s.log.Info().Int64("count", res.RowsAffected).Msg("trials expired")
	}

	// Auto-renew subscriptions are renewed by the provider; only manual and
	// cancelled ones expire on period end.
	res = s.db.WithContext(ctx).Model(&subscriptions.Subscription{}).
		Where("status = ? AND current_period_end IS NOT NULL AND current_period_end < ?", subscriptions.StatusActive, now).
		Where("auto_renew_type = ? OR cancel_at_period_end = ?", subscriptions.RenewManual, true).
		Update("status", subscriptions.StatusExpired)
	if res.Error != nil {
		s.log.Error().Err(res.Error).Msg("period expiry sweep failed")
	} else if res.RowsAffected > 0 {
		s.log.Info().Int64("count", res.RowsAffected).Msg("subscriptions expired")
	}
}

// applyPendingChanges promotes scheduled downgrades whose effective date has
// arrived: the pending plan becomes the plan, the pending fields clear.
func (s *Sweeper) applyPendingChanges(ctx context.Context, now time.Time) {
	var due []subscriptions.Subscription
	err := s.db.WithContext(ctx).
		Where("pending_plan_id IS NOT NULL AND pending_change_effective_at IS NOT NULL AND pending_change_effective_at <= ?", now).
		Find(&due).Error
	if err != nil {
		s.log.Error().Err(err).Msg("pending change sweep failed")
		return
	}

	for i := range due {
		sub := &due[i]
		updates := map[string]interface{}{
			"plan_id":                     sub.PendingPlanID,
			"pending_plan_id":             nil,
			"pending_billing_cycle":       nil,
			"pending_change_effective_at": nil,
		}
		if sub.PendingBillingCycle != nil {
			updates["billing_cycle"] = *sub.PendingBillingCycle
		}
		if err := s.db.WithContext(ctx).Model(sub).Updates(updates).Error; err != nil {
			s.log.Error().Err(err).Uint("user", sub.UserID).Msg("pending change apply failed")
			continue
		}
		s.log.Info().Uint("user", sub.UserID).Msg("scheduled plan change applied")
	}
}

// cleanupDismissals prunes dismissal keys past retention for every user that
// has a subscription row. Failures are logged and skipped; stale keys are
// harmless until the next pass.
func (s *Sweeper) cleanupDismissals(ctx context.Context, now time.Time) {
	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&subscriptions.Subscription{}).
		Pluck("user_id", &userIDs).Error; err != nil {
		s.log.Error().Err(err).Msg("dismissal cleanup sweep failed")
		return
	}
	for _, id := range userIDs {
		s.tracker.Cleanup(ctx, DismissalSlot(id), now)
	}
}

// DismissalSlot is the tracker slot for one user.
func DismissalSlot(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
