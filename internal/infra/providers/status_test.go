package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Equal(t, "none", NormalizeStatus(nil))
	assert.Equal(t, "none", NormalizeStatus(s("  ")))
	assert.Equal(t, "active", NormalizeStatus(s("active")))
	assert.Equal(t, "past_due", NormalizeStatus(s("unpaid")))
	assert.Equal(t, "cancelled", NormalizeStatus(s("canceled")))
	assert.Equal(t, "cancelled", NormalizeStatus(s("incomplete_expired")))
	assert.Equal(t, "expired", NormalizeStatus(s("expired")))
	// Unknown statuses pass through trimmed for the caller to decide.
	assert.Equal(t, "paused", NormalizeStatus(s(" paused ")))
}
