package subscriptions

import (
	"time"

	"gympro-app/internal/domain/plans"
)

// Subscription status values as reported by the billing layer.
const (
	StatusActive    = "active"
	StatusTrialing  = "trialing"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Renewal modes. Manual subscriptions (regional card rails have no stored
// mandate) must be renewed by the user each period.
const (
	RenewAuto   = "auto"
	RenewManual = "manual"
)

// Provider names of record.
const (
	ProviderChargily = "chargily"
	ProviderPaddle   = "paddle"
)

type Subscription struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;uniqueIndex:idx_subscriptions_user_id"`

	PlanID *uint
	Plan   *plans.Plan

	Status        string      `gorm:"type:varchar(20);not null;default:'active'"`
	Provider      string      `gorm:"type:varchar(20)"`
	BillingCycle  plans.Cycle `gorm:"type:varchar(20);default:'monthly'"`
	AutoRenewType string      `gorm:"type:varchar(10);not null;default:'auto'"`

	CancelAtPeriodEnd bool

	StartDate        *time.Time
	CurrentPeriodEnd *time.Time `gorm:"column:current_period_end"`
	EndDate          *time.Time

	TrialEndDate         *time.Time `gorm:"column:trial_end_date"`
	TrialConvertedToPaid bool       `gorm:"column:trial_converted_to_paid"`

	// Soft grace window, set the first time an expired state is observed.
	SoftGraceStartedAt *time.Time `gorm:"column:soft_grace_started_at"`
	SoftGraceExpiresAt *time.Time `gorm:"column:soft_grace_expires_at"`

	// Scheduled plan change (downgrades and cycle switch-downs).
	PendingPlan              *plans.Plan `gorm:"foreignKey:PendingPlanID"`
	PendingPlanID            *uint       `gorm:"column:pending_plan_id"`
	PendingBillingCycle      *plans.Cycle
	PendingChangeEffectiveAt *time.Time `gorm:"column:pending_change_effective_at"`

	ProviderSubscriptionID *string `gorm:"column:provider_subscription_id;uniqueIndex:idx_subscriptions_provider_sub_id"`
	ProviderCustomerID     *string `gorm:"column:provider_customer_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Level returns the plan level, free when no plan is attached.
func (s *Subscription) Level() plans.Level {
	if s == nil || s.Plan == nil {
		return plans.LevelFree
	}
	return s.Plan.Level
}

// IsTrialingAt reports whether the trial is running at the given instant.
func (s *Subscription) IsTrialingAt(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEndDate != nil && now.Before(*s.TrialEndDate)
}

// PeriodEndedAt reports whether the paid-through period is over.
func (s *Subscription) PeriodEndedAt(now time.Time) bool {
	return s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now)
}

// ExpiryDate picks the date the subscription runs (or ran) out:
// the trial end while trialing, otherwise the current period end.
func (s *Subscription) ExpiryDate() *time.Time {
	if s.Status == StatusTrialing && s.TrialEndDate != nil {
		return s.TrialEndDate
	}
	return s.CurrentPeriodEnd
}
