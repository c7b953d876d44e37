package subscription

import (
	"errors"
	"net/http"
	"time"

	"gympro-app/database"
	"gympro-app/internal/billing"
	"gympro-app/internal/domain/gate"
	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"
	"gympro-app/internal/gatekeeper"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	Gate *gatekeeper.Service
	Orch *billing.Orchestrator
}

func NewHandler(gateSvc *gatekeeper.Service, orch *billing.Orchestrator) *Handler {
	return &Handler{Gate: gateSvc, Orch: orch}
}

// BlockerConfig returns the current access-gate decision for the caller.
// A null blocker means full access.
func (h *Handler) BlockerConfig(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	cfg, _, err := h.Gate.Evaluate(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate subscription state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocker": cfg})
}

// Dismiss acknowledges the currently showing warning. Blockers are not
// dismissible; dismissing an expired quote of the gate is a no-op client bug,
// answered with 400 rather than silently honored.
func (h *Handler) Dismiss(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
		Timing string `json:"timing"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid reason"})
		return
	}

	err := h.Gate.Dismiss(c.Request.Context(), userID, gate.Reason(body.Reason), gate.Timing(body.Timing))
	if err != nil {
		switch {
		case errors.Is(err, gatekeeper.ErrNotDismissible):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current state cannot be dismissed"})
		case errors.Is(err, gatekeeper.ErrGateMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": "Warning has changed, refresh the blocker state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record dismissal"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dismissed"})
}

// Reactivate undoes a scheduled cancellation while the paid period still
// runs. Once the period is over a new checkout is required instead.
func (h *Handler) Reactivate(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.Subscription
	if err := database.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found"})
		return
	}

	now := time.Now()
	if !sub.CancelAtPeriodEnd && sub.Status != subscriptions.StatusCancelled {
		c.JSON(http.StatusOK, gin.H{"message": "Nothing to reactivate"})
		return
	}
	if sub.PeriodEndedAt(now) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription already ended, start a new checkout"})
		return
	}

	updates := map[string]interface{}{
		"cancel_at_period_end":  false,
		"status":                subscriptions.StatusActive,
		"end_date":              nil,
		"soft_grace_started_at": nil,
		"soft_grace_expires_at": nil,
	}
	if err := database.DB.Model(&sub).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate subscription", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription reactivated"})
}

// Downgrade schedules a move to a cheaper plan or cycle for the end of the
// current period. Nothing is charged and nothing changes until then.
func (h *Handler) Downgrade(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body struct {
		PlanID       string `json:"plan_id"`
		BillingCycle string `json:"billing_cycle"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PlanID == "" || body.BillingCycle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_id / billing_cycle"})
		return
	}
	targetCycle := plans.Cycle(body.BillingCycle)

	var sub subscriptions.Subscription
	if err := database.DB.Preload("Plan.Prices").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No subscription to change"})
		return
	}

	var target plans.Plan
	if err := database.DB.Preload("Prices").Where("plan_id = ?", body.PlanID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Target plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return
	}

	currentPlanID := ""
	if sub.Plan != nil {
		currentPlanID = sub.Plan.PlanID
	}
	avail := plans.CheckAvailability(currentPlanID, sub.Level(), sub.BillingCycle, &target, targetCycle)
	if !avail.Available {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan not available", "reason": avail.Reason})
		return
	}

	currency := CurrencyFor(&sub)
	change := plans.ClassifyChange(
		sub.Level(), sub.BillingCycle,
		target.Level, targetCycle,
		sub.Plan.PriceFor(currency, sub.BillingCycle),
		target.PriceFor(currency, targetCycle),
	)
	if change != plans.ChangeDowngrade && change != plans.ChangeSwitchDown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a downgrade", "change_type": change})
		return
	}

	effectiveAt, err := h.Orch.DowngradeEffectiveDate(&sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute effective date"})
		return
	}

	if err := database.DB.Model(&sub).Updates(map[string]interface{}{
		"pending_plan_id":             target.ID,
		"pending_billing_cycle":       targetCycle,
		"pending_change_effective_at": effectiveAt,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store pending downgrade", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Downgrade scheduled for next billing cycle",
		"change_type":  change,
		"effective_at": effectiveAt,
	})
}

// CancelDowngrade clears a scheduled plan change before it takes effect.
func (h *Handler) CancelDowngrade(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.Subscription
	if err := database.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found"})
		return
	}

	if sub.PendingPlanID == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No pending downgrade to cancel"})
		return
	}

	if err := database.DB.Model(&sub).Updates(map[string]interface{}{
		"pending_plan_id":             nil,
		"pending_billing_cycle":       nil,
		"pending_change_effective_at": nil,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear pending downgrade", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pending downgrade cancelled"})
}

// CurrencyFor picks the currency a subscription is billed in: the regional
// provider only deals in DZD, everything else is USD.
func CurrencyFor(sub *subscriptions.Subscription) string {
	if sub != nil && sub.Provider == subscriptions.ProviderChargily {
		return "DZD"
	}
	return "USD"
}
