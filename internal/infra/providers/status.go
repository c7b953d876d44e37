package providers

import "strings"

// NormalizeStatus maps provider-reported subscription statuses onto the
// domain status set. Used only for subscription.status.
func NormalizeStatus(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "none"
	}
	switch strings.TrimSpace(*s) {
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "cancelled", "incomplete_expired":
		return "cancelled"
	case "expired":
		return "expired"
	default:
		return strings.TrimSpace(*s)
	}
}
