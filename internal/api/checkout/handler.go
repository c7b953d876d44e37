package checkout

import (
	"errors"
	"net/http"
	"time"

	"gympro-app/database"
	"gympro-app/internal/billing"
	subapi "gympro-app/internal/api/subscription"
	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	Orch *billing.Orchestrator
}

func NewHandler(orch *billing.Orchestrator) *Handler {
	return &Handler{Orch: orch}
}

// Subscribe starts a checkout for a new subscription. DZD goes to the
// regional provider, every other currency to the international one.
func (h *Handler) Subscribe(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body struct {
		PlanID       string `json:"plan_id"`
		BillingCycle string `json:"billing_cycle"`
		Currency     string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PlanID == "" || body.BillingCycle == "" || body.Currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_id / billing_cycle / currency"})
		return
	}
	cycle := plans.Cycle(body.BillingCycle)

	var target plans.Plan
	if err := database.DB.Preload("Prices").Where("plan_id = ?", body.PlanID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return
	}

	price := target.PriceFor(body.Currency, cycle)
	if price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan has no price for this currency and cycle"})
		return
	}

	// An existing subscription constrains what can be bought.
	var sub subscriptions.Subscription
	err := database.DB.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error
	if err == nil {
		currentPlanID := ""
		if sub.Plan != nil {
			currentPlanID = sub.Plan.PlanID
		}
		avail := plans.CheckAvailability(currentPlanID, sub.Level(), sub.BillingCycle, &target, cycle)
		if !avail.Available {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan not available", "reason": avail.Reason})
			return
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	session, err := h.Orch.Subscribe(c.Request.Context(), billing.CheckoutRequest{
		UserID:       userID,
		Email:        c.GetString("email"),
		PlanID:       target.PlanID,
		BillingCycle: cycle,
		Currency:     body.Currency,
		Amount:       *price,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout": session})
}

// Renewal starts a renewal checkout for a manual subscription on its
// provider of record.
func (h *Handler) Renewal(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.Subscription
	if err := database.DB.Preload("Plan.Prices").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No subscription to renew"})
		return
	}
	if sub.Plan == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription has no plan"})
		return
	}

	currency := subapi.CurrencyFor(&sub)
	price := sub.Plan.PriceFor(currency, sub.BillingCycle)
	if price == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subscription plan has no current price"})
		return
	}

	session, err := h.Orch.Renew(c.Request.Context(), &sub, billing.RenewalRequest{
		UserID:       userID,
		Email:        c.GetString("email"),
		PlanID:       sub.Plan.PlanID,
		BillingCycle: sub.BillingCycle,
		Currency:     currency,
		Amount:       *price,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create renewal checkout", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout": session})
}

// PreviewUpgrade quotes an immediate plan change without charging anything.
// The response carries the confirmation token apply must echo back.
func (h *Handler) PreviewUpgrade(c *gin.Context) {
	h.upgrade(c, false)
}

// ApplyUpgrade executes a previously previewed upgrade. Calling it without a
// live matching preview is rejected with 409.
func (h *Handler) ApplyUpgrade(c *gin.Context) {
	h.upgrade(c, true)
}

func (h *Handler) upgrade(c *gin.Context, apply bool) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body struct {
		PlanID            string `json:"plan_id"`
		BillingCycle      string `json:"billing_cycle"`
		ConfirmationToken string `json:"confirmation_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PlanID == "" || body.BillingCycle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_id / billing_cycle"})
		return
	}
	if apply && body.ConfirmationToken == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Upgrade must be previewed and confirmed first"})
		return
	}
	targetCycle := plans.Cycle(body.BillingCycle)

	var sub subscriptions.Subscription
	if err := database.DB.Preload("Plan.Prices").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No subscription to upgrade"})
		return
	}

	var target plans.Plan
	if err := database.DB.Preload("Prices").Where("plan_id = ?", body.PlanID).First(&target).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target plan not found"})
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

	currency := subapi.CurrencyFor(&sub)
	currentPrice := sub.Plan.PriceFor(currency, sub.BillingCycle)
	targetPrice := target.PriceFor(currency, targetCycle)
	change := plans.ClassifyChange(sub.Level(), sub.BillingCycle, target.Level, targetCycle, currentPrice, targetPrice)
	if change != plans.ChangeUpgrade && change != plans.ChangeSwitchUp {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not an upgrade", "change_type": change})
		return
	}
	if targetPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan has no price for this currency and cycle"})
		return
	}

	var paid float64
	if currentPrice != nil {
		paid = *currentPrice
	}
	req := billing.UpgradeRequest{
		PlanID:       target.PlanID,
		BillingCycle: targetCycle,
		Amount:       *targetPrice,
		Credit:       billing.UnusedValue(&sub, paid, time.Now()),
		Currency:     currency,
	}

	if !apply {
		outcome, err := h.Orch.PreviewUpgrade(c.Request.Context(), &sub, req)
		if err != nil {
			h.upgradeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"target_plan":        gin.H{"plan_id": target.PlanID, "name": target.Name, "level": target.Level},
			"preview":            outcome.Preview,
			"billing_cycle":      outcome.BillingCycle,
			"confirmation_token": outcome.ConfirmationToken,
			"change_type":        change,
		})
		return
	}

	result, err := h.Orch.ApplyUpgrade(c.Request.Context(), &sub, req, body.ConfirmationToken)
	if err != nil {
		h.upgradeError(c, err)
		return
	}

	if result.UpgradeApplied {
		if err := applyPlanChange(&sub, &target, targetCycle); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upgrade charged but not recorded", "details": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": result, "change_type": change})
}

func (h *Handler) upgradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrPreviewRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "Upgrade must be previewed and confirmed first"})
	case errors.Is(err, billing.ErrApplyInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "An upgrade is already in progress"})
	case errors.Is(err, billing.ErrNoSubscription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active subscription"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upgrade failed", "details": err.Error()})
	}
}

// applyPlanChange records a charged upgrade: new plan, new cycle, fresh
// period, any scheduled downgrade superseded.
func applyPlanChange(sub *subscriptions.Subscription, target *plans.Plan, cycle plans.Cycle) error {
	now := time.Now()
	updates := map[string]interface{}{
		"plan_id":                     target.ID,
		"billing_cycle":               cycle,
		"status":                      subscriptions.StatusActive,
		"start_date":                  now,
		"current_period_end":          periodEnd(now, cycle),
		"soft_grace_started_at":       nil,
		"soft_grace_expires_at":       nil,
		"pending_plan_id":             nil,
		"pending_billing_cycle":       nil,
		"pending_change_effective_at": nil,
	}
	return database.DB.Model(sub).Updates(updates).Error
}

func periodEnd(from time.Time, cycle plans.Cycle) *time.Time {
	var end time.Time
	switch cycle {
	case plans.CycleYearly:
		end = from.AddDate(1, 0, 0)
	case plans.CycleOneTime:
		return nil
	default:
		end = from.AddDate(0, 1, 0)
	}
	return &end
}

// Status polls settlement of a checkout after the redirect back.
func (h *Handler) Status(c *gin.Context) {
	checkoutID := c.Param("id")
	provider := c.Query("provider")
	if checkoutID == "" || provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing checkout id or provider"})
		return
	}

	status, err := h.Orch.CheckoutStatus(c.Request.Context(), provider, checkoutID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch checkout status", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_id": checkoutID, "status": status})
}
