package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"gympro-app/internal/domain/subscriptions"
	"gympro-app/internal/infra/chargily"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ChargilyHandler struct {
	Client *chargily.Client
	Log    zerolog.Logger
}

func NewChargilyHandler(client *chargily.Client, log zerolog.Logger) *ChargilyHandler {
	return &ChargilyHandler{Client: client, Log: log.With().Str("webhook", "chargily").Logger()}
}

type chargilyEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string            `json:"id"`
		Amount   float64           `json:"amount"`
		Currency string            `json:"currency"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

// Handle processes checkout events. The signature check comes first; an
// unsigned or tampered payload is dropped before parsing.
func (h *ChargilyHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
		return
	}

	signature := c.GetHeader("signature")
	if signature == "" || !h.Client.VerifySignature(payload, signature) {
		h.Log.Warn().Msg("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var event chargilyEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
		return
	}

	s := settlement{
		UserID:       parseUserID(event.Data.Metadata["user_id"]),
		PlanID:       event.Data.Metadata["plan_id"],
		BillingCycle: cycleFromMeta(event.Data.Metadata),
		Kind:         event.Data.Metadata["type"],
		Provider:     subscriptions.ProviderChargily,
		CheckoutID:   event.Data.ID,
		Amount:       event.Data.Amount,
		Currency:     "DZD",
	}

	switch event.Type {
	case "checkout.paid":
		if err := recordPayment(s, "paid"); err != nil {
			h.Log.Error().Err(err).Str("checkout", s.CheckoutID).Msg("payment record failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		if err := applySettlement(s); err != nil {
			h.Log.Error().Err(err).Uint("user", s.UserID).Msg("settlement apply failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply settlement"})
			return
		}
		h.Log.Info().Uint("user", s.UserID).Str("checkout", s.CheckoutID).Msg("checkout settled")

	case "checkout.failed", "checkout.canceled":
		if err := recordPayment(s, "failed"); err != nil {
			h.Log.Error().Err(err).Str("checkout", s.CheckoutID).Msg("payment record failed")
		}

	default:
		h.Log.Debug().Str("type", event.Type).Msg("webhook event ignored")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
