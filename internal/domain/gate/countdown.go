package gate

import (
	"fmt"
	"time"
)

// Remaining returns the time left on a gate's countdown, clamped at zero:
// the soft-grace window when one is running, the expiry date otherwise. A
// zero result is display-only: the next billing-status poll, not the
// countdown, moves the gate to its next state.
func Remaining(c *Config, now time.Time) time.Duration {
	if c == nil {
		return 0
	}
	deadline := c.SoftGraceExpiresAt
	if deadline == nil {
		deadline = c.ExpiryDate
	}
	if deadline == nil {
		return 0
	}
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a countdown as whole hours and minutes, "expired"
// at or below zero.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
