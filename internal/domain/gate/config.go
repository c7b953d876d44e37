package gate

import "time"

type Type string

const (
	TypeBlocker Type = "blocker"
	TypeWarning Type = "warning"
)

type Reason string

const (
	ReasonTrialExpired     Reason = "trial_expired"
	ReasonManualExpired    Reason = "manual_expired"
	ReasonCancelledExpired Reason = "cancelled_expired"
	ReasonTrialExpiring    Reason = "trial_expiring"
	ReasonCancelledEnding  Reason = "cancelled_ending"
	ReasonRenewalDue       Reason = "manual_renewal_due"
	ReasonPastDue          Reason = "past_due"
)

// Timing discriminates the phase a gate was raised in: a pre-expiry
// threshold, the post-expiry grace window, or the hard block after it.
type Timing string

const (
	TimingDays7     Timing = "days_7"
	TimingDays3     Timing = "days_3"
	TimingDays1     Timing = "days_1"
	TimingHours6    Timing = "hours_6"
	TimingExpired   Timing = "expired"
	TimingPostGrace Timing = "post_grace"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityNotice   Severity = "notice"
	SeverityWarning  Severity = "warning"
	SeverityUrgent   Severity = "urgent"
	SeverityCritical Severity = "critical"
	SeverityBlocker  Severity = "blocker"
)

type Action string

const (
	ActionRenew      Action = "renew"
	ActionReactivate Action = "reactivate"
	ActionSubscribe  Action = "subscribe"
)

// Config is the access-gate decision for one evaluation. It is derived,
// never persisted; only the dismissal key survives between evaluations.
type Config struct {
	Show bool   `json:"show"`
	Type Type   `json:"type"`

	Reason   Reason   `json:"reason"`
	Timing   Timing   `json:"timing"`
	Severity Severity `json:"severity"`

	TitleKey          string `json:"titleKey"`
	MessageKey        string `json:"messageKey"`
	UrgencyMessageKey string `json:"urgencyMessageKey,omitempty"`

	PrimaryAction    Action   `json:"primaryAction"`
	SecondaryActions []string `json:"secondaryActions"`

	ExpiryDate         *time.Time `json:"expiryDate,omitempty"`
	SoftGraceExpiresAt *time.Time `json:"softGraceExpiresAt,omitempty"`
	HoursUntilBlock    int        `json:"hoursUntilBlock,omitempty"`
	DaysRemaining      int        `json:"daysRemaining,omitempty"`

	ShowCountdown bool `json:"showCountdown"`
	CanDismiss    bool `json:"canDismiss"`
}

// Identity is stable for "the same gate": countdown timers are reset when it
// changes, and dismissal keys are derived from its parts.
func (c *Config) Identity() string {
	if c == nil {
		return ""
	}
	return string(c.Type) + "/" + string(c.Reason) + "/" + string(c.Timing)
}
