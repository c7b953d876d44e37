package webhooks

import (
	"errors"
	"strconv"
	"time"

	"gympro-app/database"
	domainbilling "gympro-app/internal/domain/billing"
	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"

	"gorm.io/gorm"
)

// settlement is the provider-neutral outcome of a paid checkout, decoded
// from the metadata each provider echoes back.
type settlement struct {
	UserID       uint
	PlanID       string
	BillingCycle plans.Cycle
	Kind         string // subscription | renewal | upgrade
	Provider     string
	CheckoutID   string
	Transaction  string
	Amount       float64
	Currency     string
	ProviderSub  string
}

func cycleFromMeta(meta map[string]string) plans.Cycle {
	return plans.Cycle(meta["billing_cycle"])
}

func parseUserID(raw string) uint {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

// recordPayment writes the settlement record once; replayed webhooks hit the
// unique checkout id and are skipped.
func recordPayment(s settlement, status string) error {
	payment := domainbilling.Payment{
		UserID:     s.UserID,
		Provider:   s.Provider,
		CheckoutID: s.CheckoutID,
		Amount:     s.Amount,
		Currency:   s.Currency,
		Status:     status,
	}
	if s.Transaction != "" {
		payment.TransactionID = &s.Transaction
	}
	if s.PlanID != "" {
		var plan plans.Plan
		if err := database.DB.Where("plan_id = ?", s.PlanID).First(&plan).Error; err == nil {
			payment.PlanID = &plan.ID
		}
	}
	return database.DB.Where("checkout_id = ?", s.CheckoutID).FirstOrCreate(&payment).Error
}

// applySettlement moves the subscription row to the paid state the
// settlement describes. Renewals extend the current period; everything else
// (re)starts one on the settled plan.
func applySettlement(s settlement) error {
	if s.UserID == 0 {
		return errors.New("settlement has no user")
	}

	var sub subscriptions.Subscription
	err := database.DB.Where("user_id = ?", s.UserID).First(&sub).Error
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		return err
	}

	now := time.Now()
	cycle := s.BillingCycle
	if cycle == "" {
		cycle = sub.BillingCycle
	}

	renewType := subscriptions.RenewAuto
	if s.Provider == subscriptions.ProviderChargily {
		// No stored mandate on the regional rail.
		renewType = subscriptions.RenewManual
	}

	updates := map[string]interface{}{
		"status":                subscriptions.StatusActive,
		"provider":              s.Provider,
		"billing_cycle":         cycle,
		"auto_renew_type":       renewType,
		"cancel_at_period_end":  false,
		"current_period_end":    periodEndFrom(periodBase(&sub, s.Kind, now), cycle),
		"end_date":              nil,
		"soft_grace_started_at": nil,
		"soft_grace_expires_at": nil,
	}
	if s.Kind != "renewal" {
		if s.PlanID != "" {
			var plan plans.Plan
			if err := database.DB.Where("plan_id = ?", s.PlanID).First(&plan).Error; err != nil {
				return err
			}
			updates["plan_id"] = plan.ID
		}
		updates["start_date"] = now
		updates["trial_converted_to_paid"] = true
		updates["pending_plan_id"] = nil
		updates["pending_billing_cycle"] = nil
		updates["pending_change_effective_at"] = nil
	}
	if s.ProviderSub != "" {
		updates["provider_subscription_id"] = s.ProviderSub
	}

	if notFound {
		sub = subscriptions.Subscription{UserID: s.UserID}
		if err := database.DB.Create(&sub).Error; err != nil {
			return err
		}
	}
	return database.DB.Model(&sub).Updates(updates).Error
}

// periodBase anchors the new period: a renewal paid before expiry extends
// from the old period end, everything else starts now.
func periodBase(sub *subscriptions.Subscription, kind string, now time.Time) time.Time {
	if kind == "renewal" && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		return *sub.CurrentPeriodEnd
	}
	return now
}

func periodEndFrom(from time.Time, cycle plans.Cycle) *time.Time {
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
