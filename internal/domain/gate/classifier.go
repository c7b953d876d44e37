package gate

import (
	"math"
	"time"

	"gympro-app/internal/domain/subscriptions"
)

// Grace windows after an expiry is first observed.
const (
	SoftGraceDuration     = 6 * time.Hour
	ReadOnlyGraceDuration = 3 * 24 * time.Hour
)

// Pre-expiry warning thresholds.
const (
	thresholdDays7  = 7
	thresholdDays3  = 3
	thresholdDays1  = 1
	thresholdHours6 = 6
)

const keyPrefix = "subscription.blocker"

// DismissalReader is the read path of the dismissal tracker. Blockers never
// consult it; warnings use it to decide Show.
type DismissalReader interface {
	IsDismissed(reason Reason, timing Timing, now time.Time) bool
}

// rule is one entry of the priority list. First non-nil result wins.
type rule struct {
	name string
	eval func(sub *subscriptions.Subscription, now time.Time) *Config
}

var rules = []rule{
	{name: "pre_expiry_warning", eval: preExpiryWarning},
	{name: "expiry_gate", eval: expiryGate},
	{name: "past_due_warning", eval: pastDueWarning},
}

// Evaluate classifies a subscription into a gate decision, or nil for full
// access. Pure over the subscription and the dismissal read path: it never
// talks to a server. Malformed input degrades to nil (fail-open) so a bad
// billing payload can't lock a tenant out.
func Evaluate(sub *subscriptions.Subscription, dismissed DismissalReader, now time.Time) *Config {
	if sub == nil || !knownStatus(sub.Status) {
		return nil
	}

	for _, r := range rules {
		cfg := r.eval(sub, now)
		if cfg == nil {
			continue
		}
		if cfg.Type == TypeWarning && dismissed != nil && dismissed.IsDismissed(cfg.Reason, cfg.Timing, now) {
			cfg.Show = false
		}
		return cfg
	}
	return nil
}

func knownStatus(status string) bool {
	switch status {
	case subscriptions.StatusActive, subscriptions.StatusTrialing, subscriptions.StatusPastDue,
		subscriptions.StatusCancelled, subscriptions.StatusExpired:
		return true
	}
	return false
}

// preExpiryWarning raises courtesy warnings at 7d / 3d / 1d / 6h before the
// subscription runs out. Manual subscriptions skip these; their renewal flow
// starts at expiry.
func preExpiryWarning(sub *subscriptions.Subscription, now time.Time) *Config {
	if sub.Status != subscriptions.StatusActive && sub.Status != subscriptions.StatusTrialing {
		return nil
	}
	if sub.AutoRenewType == subscriptions.RenewManual {
		return nil
	}
	endDate := sub.ExpiryDate()
	if endDate == nil {
		return nil
	}

	remaining := endDate.Sub(now)
	if remaining <= 0 {
		return nil
	}
	daysRemaining := ceilDays(remaining)
	hoursRemaining := ceilHours(remaining)

	var timing Timing
	switch {
	case hoursRemaining <= thresholdHours6:
		timing = TimingHours6
	case daysRemaining == thresholdDays1:
		timing = TimingDays1
	case daysRemaining == thresholdDays3:
		timing = TimingDays3
	case daysRemaining == thresholdDays7:
		timing = TimingDays7
	default:
		return nil
	}

	reason := ReasonRenewalDue
	action := ActionRenew
	switch {
	case sub.Status == subscriptions.StatusTrialing:
		reason = ReasonTrialExpiring
		action = ActionSubscribe
	case sub.CancelAtPeriodEnd:
		reason = ReasonCancelledEnding
		action = ActionReactivate
	}

	expiry := *endDate
	return &Config{
		Show:             true,
		Type:             TypeWarning,
		Reason:           reason,
		Timing:           timing,
		Severity:         severityForTiming(timing),
		TitleKey:         keyPrefix + "." + string(reason) + "." + string(timing) + ".title",
		MessageKey:       keyPrefix + "." + string(reason) + "." + string(timing) + ".message",
		PrimaryAction:    action,
		SecondaryActions: []string{"view_plans"},
		ExpiryDate:       &expiry,
		DaysRemaining:    daysRemaining,
		ShowCountdown:    true,
		CanDismiss:       true,
	}
}

// expiryGate handles every expired state: a dismissible warning while the
// soft grace runs, a hard blocker once it is over.
func expiryGate(sub *subscriptions.Subscription, now time.Time) *Config {
	reason, expiryDate := checkExpiry(sub, now)
	if reason == "" {
		return nil
	}

	graceEnd := sub.SoftGraceExpiresAt
	if graceEnd == nil {
		// First sighting of this expired state; the service layer persists
		// the window after evaluation.
		end := now.Add(SoftGraceDuration)
		graceEnd = &end
	}

	if now.Before(*graceEnd) {
		grace := *graceEnd
		return &Config{
			Show:               true,
			Type:               TypeWarning,
			Reason:             reason,
			Timing:             TimingExpired,
			Severity:           SeverityCritical,
			TitleKey:           keyPrefix + "." + string(reason) + ".warning_title",
			MessageKey:         keyPrefix + "." + string(reason) + ".warning_message",
			UrgencyMessageKey:  keyPrefix + ".urgency_message",
			PrimaryAction:      primaryActionFor(reason),
			SecondaryActions:   []string{"view_plans", "export_data"},
			ExpiryDate:         expiryDate,
			SoftGraceExpiresAt: &grace,
			HoursUntilBlock:    ceilHours(grace.Sub(now)),
			ShowCountdown:      true,
			CanDismiss:         true,
		}
	}

	return &Config{
		Show:             true,
		Type:             TypeBlocker,
		Reason:           reason,
		Timing:           TimingPostGrace,
		Severity:         SeverityBlocker,
		TitleKey:         keyPrefix + "." + string(reason) + ".blocker_title",
		MessageKey:       keyPrefix + "." + string(reason) + ".blocker_message",
		PrimaryAction:    primaryActionFor(reason),
		SecondaryActions: []string{"view_plans", "export_data"},
		ExpiryDate:       expiryDate,
		ShowCountdown:    false,
		CanDismiss:       false,
	}
}

// pastDueWarning covers a provider-reported failed renewal that has not yet
// escalated to an expiry.
func pastDueWarning(sub *subscriptions.Subscription, now time.Time) *Config {
	if sub.Status != subscriptions.StatusPastDue {
		return nil
	}
	return &Config{
		Show:             true,
		Type:             TypeWarning,
		Reason:           ReasonPastDue,
		Timing:           TimingExpired,
		Severity:         SeverityUrgent,
		TitleKey:         keyPrefix + ".past_due.warning_title",
		MessageKey:       keyPrefix + ".past_due.warning_message",
		PrimaryAction:    ActionRenew,
		SecondaryActions: []string{"view_plans"},
		ExpiryDate:       sub.CurrentPeriodEnd,
		ShowCountdown:    false,
		CanDismiss:       true,
	}
}

// checkExpiry returns the expiry reason for a subscription, or "" when it is
// still paid through.
func checkExpiry(sub *subscriptions.Subscription, now time.Time) (Reason, *time.Time) {
	if sub.Status == subscriptions.StatusTrialing && sub.TrialEndDate != nil && !now.Before(*sub.TrialEndDate) {
		return ReasonTrialExpired, sub.TrialEndDate
	}

	if sub.Status == subscriptions.StatusActive && sub.AutoRenewType == subscriptions.RenewManual && sub.PeriodEndedAt(now) {
		return ReasonManualExpired, sub.CurrentPeriodEnd
	}

	if sub.Status == subscriptions.StatusActive && sub.CancelAtPeriodEnd && sub.PeriodEndedAt(now) {
		return ReasonCancelledExpired, sub.CurrentPeriodEnd
	}

	if sub.Status == subscriptions.StatusCancelled && sub.EndDate != nil && !now.Before(*sub.EndDate) {
		return ReasonCancelledExpired, sub.EndDate
	}

	if sub.Status == subscriptions.StatusExpired {
		return ReasonManualExpired, sub.EndDate
	}

	return "", nil
}

func primaryActionFor(reason Reason) Action {
	switch reason {
	case ReasonTrialExpired, ReasonTrialExpiring:
		return ActionSubscribe
	case ReasonManualExpired, ReasonRenewalDue, ReasonPastDue:
		return ActionRenew
	case ReasonCancelledExpired, ReasonCancelledEnding:
		return ActionReactivate
	}
	return ActionSubscribe
}

func severityForTiming(timing Timing) Severity {
	switch timing {
	case TimingDays7:
		return SeverityInfo
	case TimingDays3:
		return SeverityNotice
	case TimingDays1:
		return SeverityWarning
	case TimingHours6:
		return SeverityUrgent
	case TimingExpired:
		return SeverityCritical
	}
	return SeverityBlocker
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

func ceilHours(d time.Duration) int {
	h := int(math.Ceil(d.Hours()))
	if h < 0 {
		return 0
	}
	return h
}
