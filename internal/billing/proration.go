package billing

import (
	"time"

	"gympro-app/internal/domain/subscriptions"
)

// UnusedValue computes the credit for the unused remainder of the current
// billing period: the paid amount scaled by the fraction of the period left.
// Used for the regional provider, which has no proration API of its own.
func UnusedValue(sub *subscriptions.Subscription, paidAmount float64, now time.Time) float64 {
	if sub == nil || sub.StartDate == nil || sub.CurrentPeriodEnd == nil || paidAmount <= 0 {
		return 0
	}
	total := sub.CurrentPeriodEnd.Sub(*sub.StartDate)
	remaining := sub.CurrentPeriodEnd.Sub(now)
	if total <= 0 || remaining <= 0 {
		return 0
	}
	if remaining > total {
		remaining = total
	}
	return paidAmount * (float64(remaining) / float64(total))
}
