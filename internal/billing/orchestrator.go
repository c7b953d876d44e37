package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"
)

var (
	// ErrPreviewRequired: apply was called without a live, matching preview.
	// Contract violation, not a user-recoverable state.
	ErrPreviewRequired = errors.New("apply requires an accepted upgrade preview for the same plan and cycle")
	// ErrApplyInFlight: a second apply arrived while one was outstanding.
	ErrApplyInFlight = errors.New("an upgrade is already being applied")
	// ErrNoSubscription: the operation needs a subscription of record.
	ErrNoSubscription = errors.New("no active subscription")
)

// How long an accepted preview quote stays valid for apply.
const previewTTL = 15 * time.Minute

// The one currency the regional provider serves.
const regionalCurrency = "DZD"

type pendingPreview struct {
	token        string
	planID       string
	billingCycle plans.Cycle
	expiresAt    time.Time
}

// Orchestrator routes checkout operations to the right provider and runs the
// two-phase preview/apply flow for upgrades.
type Orchestrator struct {
	regional      Provider // chargily
	international Provider // paddle
	log           zerolog.Logger
	now           func() time.Time

	mu       sync.Mutex
	previews map[uint]pendingPreview
	applying map[uint]bool
}

func NewOrchestrator(regional, international Provider, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		regional:      regional,
		international: international,
		log:           log.With().Str("component", "checkout").Logger(),
		now:           time.Now,
		previews:      make(map[uint]pendingPreview),
		applying:      make(map[uint]bool),
	}
}

// route picks the provider for a fresh checkout. DZD goes to the regional
// provider, every other currency to the international one. Hard rule, not
// per-call configurable.
func (o *Orchestrator) route(currency string) Provider {
	if currency == regionalCurrency {
		return o.regional
	}
	return o.international
}

// providerOf returns the provider an existing subscription lives on. Upgrades
// must stay on the subscription's original provider regardless of currency.
func (o *Orchestrator) providerOf(sub *subscriptions.Subscription) Provider {
	if sub != nil && sub.Provider == subscriptions.ProviderChargily {
		return o.regional
	}
	return o.international
}

// Subscribe creates a checkout session for a new subscription.
func (o *Orchestrator) Subscribe(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}
	p := o.route(req.Currency)
	session, err := p.CreateCheckout(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("provider", p.Name()).Str("plan", req.PlanID).Msg("checkout creation failed")
		return nil, err
	}
	o.log.Info().Str("provider", p.Name()).Str("plan", req.PlanID).Str("ref", req.Reference).Msg("checkout created")
	return session, nil
}

// Renew creates a renewal checkout on the subscription's provider of record.
func (o *Orchestrator) Renew(ctx context.Context, sub *subscriptions.Subscription, req RenewalRequest) (*CheckoutSession, error) {
	if sub == nil {
		return nil, ErrNoSubscription
	}
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}
	if sub.ProviderSubscriptionID != nil {
		req.SubscriptionRef = *sub.ProviderSubscriptionID
	}
	p := o.providerOf(sub)
	session, err := p.CreateRenewalCheckout(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("provider", p.Name()).Msg("renewal checkout failed")
		return nil, err
	}
	return session, nil
}

// PreviewOutcome carries the quote plus the confirmation token apply must
// present. The token is what makes the CONFIRM step enforceable.
type PreviewOutcome struct {
	Preview           *Preview    `json:"preview"`
	BillingCycle      plans.Cycle `json:"billing_cycle"`
	ConfirmationToken string      `json:"confirmation_token"`
}

// PreviewUpgrade fetches a proration quote from the subscription's provider
// and registers a short-lived confirmation token for it.
func (o *Orchestrator) PreviewUpgrade(ctx context.Context, sub *subscriptions.Subscription, req UpgradeRequest) (*PreviewOutcome, error) {
	if sub == nil || sub.ProviderSubscriptionID == nil {
		return nil, ErrNoSubscription
	}
	req.UserID = sub.UserID
	req.SubscriptionRef = *sub.ProviderSubscriptionID

	p := o.providerOf(sub)
	preview, err := p.PreviewUpgrade(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("provider", p.Name()).Str("plan", req.PlanID).Msg("upgrade preview failed")
		return nil, err
	}

	token := uuid.NewString()
	o.mu.Lock()
	o.previews[sub.UserID] = pendingPreview{
		token:        token,
		planID:       req.PlanID,
		billingCycle: req.BillingCycle,
		expiresAt:    o.now().Add(previewTTL),
	}
	o.mu.Unlock()

	return &PreviewOutcome{Preview: preview, BillingCycle: req.BillingCycle, ConfirmationToken: token}, nil
}

// ApplyUpgrade charges the stored payment method. It refuses to run without a
// live preview token for the identical plan/cycle pair, and refuses to run
// twice concurrently for the same user: a double charge is the single most
// damaging failure mode here.
func (o *Orchestrator) ApplyUpgrade(ctx context.Context, sub *subscriptions.Subscription, req UpgradeRequest, token string) (*ApplyResult, error) {
	if sub == nil || sub.ProviderSubscriptionID == nil {
		return nil, ErrNoSubscription
	}

	o.mu.Lock()
	pending, ok := o.previews[sub.UserID]
	if !ok || pending.token != token || pending.planID != req.PlanID ||
		pending.billingCycle != req.BillingCycle || o.now().After(pending.expiresAt) {
		o.mu.Unlock()
		return nil, ErrPreviewRequired
	}
	if o.applying[sub.UserID] {
		o.mu.Unlock()
		return nil, ErrApplyInFlight
	}
	o.applying[sub.UserID] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.applying, sub.UserID)
		o.mu.Unlock()
	}()

	req.UserID = sub.UserID
	req.SubscriptionRef = *sub.ProviderSubscriptionID

	p := o.providerOf(sub)
	result, err := p.ApplyUpgrade(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("provider", p.Name()).Str("plan", req.PlanID).Msg("upgrade apply failed")
		return nil, err
	}

	// The quote is consumed either way; a payment retry goes through a fresh
	// interactive checkout, never a silent re-charge.
	o.mu.Lock()
	delete(o.previews, sub.UserID)
	o.mu.Unlock()

	if result.UpgradeApplied {
		o.log.Info().Str("provider", p.Name()).Str("plan", req.PlanID).Uint("user", sub.UserID).Msg("upgrade applied")
	} else {
		o.log.Warn().Str("provider", p.Name()).Str("plan", req.PlanID).Uint("user", sub.UserID).Msg("stored payment failed, falling back to checkout")
	}
	return result, nil
}

// DowngradeEffectiveDate returns when a scheduled change takes effect: the
// end of the current billing period. Nothing is charged now.
func (o *Orchestrator) DowngradeEffectiveDate(sub *subscriptions.Subscription) (time.Time, error) {
	if sub == nil {
		return time.Time{}, ErrNoSubscription
	}
	if sub.CurrentPeriodEnd != nil {
		return *sub.CurrentPeriodEnd, nil
	}
	return o.now(), nil
}

// CheckoutStatus polls post-redirect settlement on the right provider.
func (o *Orchestrator) CheckoutStatus(ctx context.Context, providerName, checkoutID string) (string, error) {
	p := o.international
	if providerName == subscriptions.ProviderChargily {
		p = o.regional
	}
	return p.CheckoutStatus(ctx, checkoutID)
}
