package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"gympro-app/database"
	"gympro-app/internal/domain/subscriptions"
	"gympro-app/internal/infra/providers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type PaddleHandler struct {
	Secret string
	Log    zerolog.Logger
}

func NewPaddleHandler(secret string, log zerolog.Logger) *PaddleHandler {
	return &PaddleHandler{Secret: secret, Log: log.With().Str("webhook", "paddle").Logger()}
}

type paddleEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		ID             string            `json:"id"`
		Status         string            `json:"status"`
		SubscriptionID string            `json:"subscription_id"`
		CurrencyCode   string            `json:"currency_code"`
		CustomData     map[string]string `json:"custom_data"`
		Details        *struct {
			Totals struct {
				Total string `json:"total"`
			} `json:"totals"`
		} `json:"details"`
	} `json:"data"`
}

func (h *PaddleHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
		return
	}

	if !h.verifySignature(payload, c.GetHeader("Paddle-Signature")) {
		h.Log.Warn().Msg("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var event paddleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
		return
	}

	switch event.EventType {
	case "transaction.completed":
		s := settlement{
			UserID:       parseUserID(event.Data.CustomData["user_id"]),
			PlanID:       event.Data.CustomData["plan_id"],
			BillingCycle: cycleFromMeta(event.Data.CustomData),
			Kind:         event.Data.CustomData["type"],
			Provider:     subscriptions.ProviderPaddle,
			CheckoutID:   event.Data.ID,
			Transaction:  event.Data.ID,
			Currency:     event.Data.CurrencyCode,
			ProviderSub:  event.Data.SubscriptionID,
		}
		if err := recordPayment(s, "paid"); err != nil {
			h.Log.Error().Err(err).Str("transaction", s.CheckoutID).Msg("payment record failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		if err := applySettlement(s); err != nil {
			h.Log.Error().Err(err).Uint("user", s.UserID).Msg("settlement apply failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply settlement"})
			return
		}
		h.Log.Info().Uint("user", s.UserID).Str("transaction", s.CheckoutID).Msg("transaction settled")

	case "subscription.updated", "subscription.canceled", "subscription.past_due":
		h.syncStatus(c, event)
		return

	default:
		h.Log.Debug().Str("type", event.EventType).Msg("webhook event ignored")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// syncStatus mirrors provider-reported subscription status changes onto the
// local row, normalized to the domain status set.
func (h *PaddleHandler) syncStatus(c *gin.Context, event paddleEvent) {
	status := providers.NormalizeStatus(&event.Data.Status)

	var sub subscriptions.Subscription
	err := database.DB.Where("provider_subscription_id = ?", event.Data.ID).First(&sub).Error
	if err != nil {
		// Fall back to the custom data when the link was never stored.
		userID := parseUserID(event.Data.CustomData["user_id"])
		if userID == 0 {
			h.Log.Warn().Str("subscription", event.Data.ID).Msg("status event for unknown subscription")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		if err := database.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
	}

	if err := database.DB.Model(&sub).Update("status", status).Error; err != nil {
		h.Log.Error().Err(err).Uint("user", sub.UserID).Msg("status sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync status"})
		return
	}
	h.Log.Info().Uint("user", sub.UserID).Str("status", status).Msg("subscription status synced")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// verifySignature checks the "ts=...;h1=..." header: HMAC-SHA256 of
// "<ts>:<payload>" with the webhook secret.
func (h *PaddleHandler) verifySignature(payload []byte, header string) bool {
	if header == "" || h.Secret == "" {
		return false
	}
	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		if v, ok := strings.CutPrefix(part, "ts="); ok {
			ts = v
		}
		if v, ok := strings.CutPrefix(part, "h1="); ok {
			h1 = v
		}
	}
	if ts == "" || h1 == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(h1))
}
