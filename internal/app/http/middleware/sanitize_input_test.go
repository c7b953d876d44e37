package middleware

import (
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeValueWalksNestedInput(t *testing.T) {
	policy := bluemonday.StrictPolicy()

	in := map[string]interface{}{
		"name": "Gym <script>alert(1)</script>One",
		"tags": []interface{}{"<b>vip</b>", "regular"},
		"nested": map[string]interface{}{
			"note": "<img src=x onerror=alert(1)>hello",
		},
		"count": float64(3),
	}

	out := sanitizeValue(policy, in).(map[string]interface{})
	assert.Equal(t, "Gym One", out["name"])
	assert.Equal(t, "vip", out["tags"].([]interface{})[0])
	assert.Equal(t, "regular", out["tags"].([]interface{})[1])
	assert.Equal(t, "hello", out["nested"].(map[string]interface{})["note"])
	assert.Equal(t, float64(3), out["count"])
}
