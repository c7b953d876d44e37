package plans

// Plan is an app-level subscription plan (the product a gym owner buys,
// not a gym membership).
type Plan struct {
	ID     uint   `gorm:"primaryKey"`
	PlanID string `gorm:"column:plan_id;not null;uniqueIndex:idx_plans_plan_id"`
	Name   string
	Level  Level `gorm:"column:level"` // "free" | "basic" | "premium" | "enterprise"
	Order  int   `gorm:"column:display_order"`

	Prices []PlanPrice `gorm:"foreignKey:PlanRef"`
}

// PlanPrice holds one (currency, cycle) price point for a plan.
type PlanPrice struct {
	ID           uint   `gorm:"primaryKey"`
	PlanRef      uint   `gorm:"column:plan_ref;index"`
	Currency     string `gorm:"column:currency;not null"`
	BillingCycle Cycle  `gorm:"column:billing_cycle;not null"`
	Amount       float64
}

// PriceFor returns the amount for a currency/cycle pair, or nil when the plan
// has no price point for it.
func (p *Plan) PriceFor(currency string, cycle Cycle) *float64 {
	if p == nil {
		return nil
	}
	for i := range p.Prices {
		pr := &p.Prices[i]
		if pr.Currency == currency && pr.BillingCycle == cycle {
			amount := pr.Amount
			return &amount
		}
	}
	return nil
}
