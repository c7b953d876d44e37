package billing

import (
	"time"

	"gympro-app/internal/domain/plans"
)

// Payment is the settlement record written from provider webhooks and
// checkout-status polls.
type Payment struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"index"`
	PlanID        *uint
	Plan          *plans.Plan
	Provider      string `gorm:"type:varchar(20)"`
	CheckoutID    string `gorm:"uniqueIndex"`
	TransactionID *string
	Amount        float64
	Currency      string `gorm:"type:varchar(8)"`
	Status        string `gorm:"type:varchar(20)"` // pending | paid | failed | canceled
	CreatedAt     time.Time
}
