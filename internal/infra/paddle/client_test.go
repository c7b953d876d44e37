package paddle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gympro-app/internal/billing"
)

func TestParseMinorUnits(t *testing.T) {
	assert.Equal(t, 19.99, parseMinorUnits("1999"))
	assert.Equal(t, float64(0), parseMinorUnits(""))
	assert.Equal(t, float64(0), parseMinorUnits("abc"))
}

func TestPriceIDLookup(t *testing.T) {
	c := New(Config{PriceIDs: map[string]string{"premium:monthly": "pri_123"}}, zerolog.Nop())

	id, err := c.PriceID("premium", "monthly")
	require.NoError(t, err)
	assert.Equal(t, "pri_123", id)

	_, err = c.PriceID("premium", "yearly")
	assert.Error(t, err)
}

func TestCreateRenewalCheckoutResolvesPriceByPlan(t *testing.T) {
	var gotPayload transactionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":       "txn_renew",
				"status":   "ready",
				"checkout": map[string]string{"url": "https://buy.example/txn_renew"},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:  srv.URL,
		PriceIDs: map[string]string{"premium:monthly": "pri_123"},
	}, zerolog.Nop())

	// The price is keyed by plan and cycle, not by the provider subscription
	// reference.
	session, err := c.CreateRenewalCheckout(context.Background(), billing.RenewalRequest{
		UserID:          7,
		SubscriptionRef: "sub_123",
		PlanID:          "premium",
		BillingCycle:    "monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, "txn_renew", session.TransactionID)
	assert.Equal(t, "https://buy.example/txn_renew", session.CheckoutURL)
	require.Len(t, gotPayload.Items, 1)
	assert.Equal(t, "pri_123", gotPayload.Items[0].PriceID)
	assert.Equal(t, "renewal", gotPayload.CustomData["type"])
	assert.Equal(t, "premium", gotPayload.CustomData["plan_id"])
}

func TestCreateRenewalCheckoutUnknownPlanFailsBeforeHTTP(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PriceIDs: map[string]string{"premium:monthly": "pri_123"}}, zerolog.Nop())

	_, err := c.CreateRenewalCheckout(context.Background(), billing.RenewalRequest{
		SubscriptionRef: "sub_123",
		PlanID:          "basic",
		BillingCycle:    "monthly",
	})
	assert.Error(t, err)
	assert.False(t, called)
}
