package billing

import (
	"context"
	"time"

	"gympro-app/internal/domain/plans"
)

// Provider is the unified surface over the two payment providers. The
// orchestrator depends only on this; routing picks the implementation.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreateRenewalCheckout(ctx context.Context, req RenewalRequest) (*CheckoutSession, error)
	PreviewUpgrade(ctx context.Context, req UpgradeRequest) (*Preview, error)
	ApplyUpgrade(ctx context.Context, req UpgradeRequest) (*ApplyResult, error)
	CheckoutStatus(ctx context.Context, checkoutID string) (string, error)
}

type CheckoutRequest struct {
	UserID       uint
	Email        string
	PlanID       string
	BillingCycle plans.Cycle
	Currency     string
	Amount       float64
	// Idempotency reference generated per attempt; providers echo it back
	// in webhooks so settlements can be matched.
	Reference string
}

type RenewalRequest struct {
	UserID          uint
	Email           string
	SubscriptionRef string
	// The plan being renewed. The subscription keeps it, but providers that
	// resolve prices by plan need it on the request.
	PlanID       string
	BillingCycle plans.Cycle
	Currency     string
	Amount       float64
	Reference    string
}

type UpgradeRequest struct {
	UserID          uint
	SubscriptionRef string
	PlanID          string
	BillingCycle    plans.Cycle
	// Full price of the target plan and the unused value of the current
	// period, both in Currency. The regional provider has no proration API,
	// so the caller supplies the figures; the international provider quotes
	// its own and ignores these.
	Amount   float64
	Credit   float64
	Currency string
}

// CheckoutSession is ephemeral: it exists for one checkout attempt and is
// never persisted beyond the in-flight request.
type CheckoutSession struct {
	Provider      string `json:"provider"`
	CheckoutID    string `json:"checkout_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	CheckoutURL   string `json:"checkout_url"`
}

// Preview is a proration quote for an upgrade; nothing is charged.
type Preview struct {
	Currency        string     `json:"currency"`
	ImmediateAmount float64    `json:"immediate_amount"`
	CreditApplied   float64    `json:"credit_applied"`
	NextAmount      float64    `json:"next_amount"`
	NextBillingAt   *time.Time `json:"next_billing_at,omitempty"`
}

// ApplyResult is one of two outcomes: the stored payment method was charged
// (UpgradeApplied), or it failed and the caller must re-present an
// interactive checkout with the returned session.
type ApplyResult struct {
	UpgradeApplied bool   `json:"upgrade_applied"`
	TransactionID  string `json:"transaction_id,omitempty"`
	CheckoutURL    string `json:"checkout_url,omitempty"`
}
