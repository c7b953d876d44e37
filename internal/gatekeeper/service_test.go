package gatekeeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gympro-app/internal/dismissal"
	"gympro-app/internal/domain/gate"
)

var svcNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func showingWarning() *gate.Config {
	return &gate.Config{
		Show:       true,
		Type:       gate.TypeWarning,
		Reason:     gate.ReasonRenewalDue,
		Timing:     gate.TimingDays7,
		CanDismiss: true,
	}
}

func TestDismissalKeyUsesEvaluatedGate(t *testing.T) {
	cfg := showingWarning()

	key, err := dismissalKey(cfg, cfg.Reason, cfg.Timing, svcNow)
	require.NoError(t, err)
	assert.Equal(t, dismissal.Key(string(gate.ReasonRenewalDue), string(gate.TimingDays7), svcNow), key)

	// Omitted reason/timing fall back to what is showing.
	key, err = dismissalKey(cfg, "", "", svcNow)
	require.NoError(t, err)
	assert.Equal(t, dismissal.Key(string(gate.ReasonRenewalDue), string(gate.TimingDays7), svcNow), key)
}

func TestDismissalKeyRejectsFutureTiming(t *testing.T) {
	// days_7 is showing; dismissing days_1 ahead of time must not stick.
	cfg := showingWarning()

	_, err := dismissalKey(cfg, cfg.Reason, gate.TimingDays1, svcNow)
	assert.ErrorIs(t, err, ErrGateMismatch)

	_, err = dismissalKey(cfg, gate.ReasonTrialExpiring, cfg.Timing, svcNow)
	assert.ErrorIs(t, err, ErrGateMismatch)
}

func TestDismissalKeyRejectsBlockersAndNoGate(t *testing.T) {
	_, err := dismissalKey(nil, gate.ReasonRenewalDue, gate.TimingDays7, svcNow)
	assert.ErrorIs(t, err, ErrNotDismissible)

	blocker := &gate.Config{
		Show:   true,
		Type:   gate.TypeBlocker,
		Reason: gate.ReasonManualExpired,
		Timing: gate.TimingPostGrace,
	}
	_, err = dismissalKey(blocker, blocker.Reason, blocker.Timing, svcNow)
	assert.ErrorIs(t, err, ErrNotDismissible)
}
