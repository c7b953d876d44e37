package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gympro-app/internal/domain/plans"
	"gympro-app/internal/domain/subscriptions"
)

var orchNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeProvider records calls and returns canned results.
type fakeProvider struct {
	name string

	mu         sync.Mutex
	checkouts  []CheckoutRequest
	renewals   []RenewalRequest
	previews   []UpgradeRequest
	applies    []UpgradeRequest
	applyErr   error
	applyBlock chan struct{}
	applied    bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	return &CheckoutSession{Provider: f.name, CheckoutID: "chk_1", CheckoutURL: "https://pay.example/chk_1"}, nil
}

func (f *fakeProvider) CreateRenewalCheckout(_ context.Context, req RenewalRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewals = append(f.renewals, req)
	return &CheckoutSession{Provider: f.name, CheckoutID: "chk_renew"}, nil
}

func (f *fakeProvider) PreviewUpgrade(_ context.Context, req UpgradeRequest) (*Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, req)
	return &Preview{Currency: req.Currency, ImmediateAmount: req.Amount - req.Credit, CreditApplied: req.Credit, NextAmount: req.Amount}, nil
}

func (f *fakeProvider) ApplyUpgrade(_ context.Context, req UpgradeRequest) (*ApplyResult, error) {
	if f.applyBlock != nil {
		<-f.applyBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies = append(f.applies, req)
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return &ApplyResult{UpgradeApplied: f.applied, TransactionID: "txn_1"}, nil
}

func (f *fakeProvider) CheckoutStatus(context.Context, string) (string, error) {
	return "paid", nil
}

func newTestOrchestrator() (*Orchestrator, *fakeProvider, *fakeProvider) {
	regional := &fakeProvider{name: subscriptions.ProviderChargily, applied: true}
	international := &fakeProvider{name: subscriptions.ProviderPaddle, applied: true}
	o := NewOrchestrator(regional, international, zerolog.Nop())
	o.now = func() time.Time { return orchNow }
	return o, regional, international
}

func paddleSub() *subscriptions.Subscription {
	ref := "sub_123"
	return &subscriptions.Subscription{
		UserID:                 7,
		Provider:               subscriptions.ProviderPaddle,
		ProviderSubscriptionID: &ref,
	}
}

func TestSubscribeRoutesByCurrency(t *testing.T) {
	o, regional, international := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.Subscribe(ctx, CheckoutRequest{UserID: 1, PlanID: "premium", Currency: "DZD"})
	require.NoError(t, err)
	_, err = o.Subscribe(ctx, CheckoutRequest{UserID: 2, PlanID: "premium", Currency: "USD"})
	require.NoError(t, err)
	_, err = o.Subscribe(ctx, CheckoutRequest{UserID: 3, PlanID: "premium", Currency: "EUR"})
	require.NoError(t, err)

	assert.Len(t, regional.checkouts, 1)
	assert.Len(t, international.checkouts, 2)
}

func TestSubscribeGeneratesReference(t *testing.T) {
	o, regional, _ := newTestOrchestrator()

	_, err := o.Subscribe(context.Background(), CheckoutRequest{UserID: 1, PlanID: "basic", Currency: "DZD"})
	require.NoError(t, err)
	assert.NotEmpty(t, regional.checkouts[0].Reference)
}

func TestRenewUsesProviderOfRecord(t *testing.T) {
	o, regional, international := newTestOrchestrator()

	// A Chargily subscription renews on Chargily even though renewal amounts
	// could be quoted in any currency.
	ref := "chargily_sub"
	sub := &subscriptions.Subscription{UserID: 5, Provider: subscriptions.ProviderChargily, ProviderSubscriptionID: &ref}
	_, err := o.Renew(context.Background(), sub, RenewalRequest{UserID: 5, Currency: "USD"})
	require.NoError(t, err)
	assert.Len(t, regional.renewals, 1)
	assert.Empty(t, international.renewals)
	assert.Equal(t, "chargily_sub", regional.renewals[0].SubscriptionRef)

	_, err = o.Renew(context.Background(), nil, RenewalRequest{})
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestApplyWithoutPreviewRejected(t *testing.T) {
	o, _, international := newTestOrchestrator()

	_, err := o.ApplyUpgrade(context.Background(), paddleSub(), UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleMonthly}, "made-up-token")
	assert.ErrorIs(t, err, ErrPreviewRequired)
	assert.Empty(t, international.applies)
}

func TestPreviewThenApply(t *testing.T) {
	o, _, international := newTestOrchestrator()
	ctx := context.Background()
	sub := paddleSub()
	req := UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleYearly, Amount: 290, Credit: 40, Currency: "USD"}

	outcome, err := o.PreviewUpgrade(ctx, sub, req)
	require.NoError(t, err)
	require.NotNil(t, outcome.Preview)
	assert.NotEmpty(t, outcome.ConfirmationToken)
	assert.Equal(t, plans.CycleYearly, outcome.BillingCycle)

	result, err := o.ApplyUpgrade(ctx, sub, req, outcome.ConfirmationToken)
	require.NoError(t, err)
	assert.True(t, result.UpgradeApplied)
	require.Len(t, international.applies, 1)
	assert.Equal(t, "sub_123", international.applies[0].SubscriptionRef)

	// The preview is consumed: the same token no longer applies.
	_, err = o.ApplyUpgrade(ctx, sub, req, outcome.ConfirmationToken)
	assert.ErrorIs(t, err, ErrPreviewRequired)
}

func TestApplyRejectsMismatchedPlanOrCycle(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	ctx := context.Background()
	sub := paddleSub()

	outcome, err := o.PreviewUpgrade(ctx, sub, UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleYearly})
	require.NoError(t, err)

	_, err = o.ApplyUpgrade(ctx, sub, UpgradeRequest{PlanID: "enterprise", BillingCycle: plans.CycleYearly}, outcome.ConfirmationToken)
	assert.ErrorIs(t, err, ErrPreviewRequired)

	_, err = o.ApplyUpgrade(ctx, sub, UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleMonthly}, outcome.ConfirmationToken)
	assert.ErrorIs(t, err, ErrPreviewRequired)
}

func TestApplyRejectsExpiredPreview(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	ctx := context.Background()
	sub := paddleSub()
	req := UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleYearly}

	outcome, err := o.PreviewUpgrade(ctx, sub, req)
	require.NoError(t, err)

	o.now = func() time.Time { return orchNow.Add(previewTTL + time.Minute) }
	_, err = o.ApplyUpgrade(ctx, sub, req, outcome.ConfirmationToken)
	assert.ErrorIs(t, err, ErrPreviewRequired)
}

func TestApplyInFlightGuard(t *testing.T) {
	o, _, international := newTestOrchestrator()
	ctx := context.Background()
	sub := paddleSub()
	req := UpgradeRequest{PlanID: "premium", BillingCycle: plans.CycleYearly}

	outcome, err := o.PreviewUpgrade(ctx, sub, req)
	require.NoError(t, err)

	international.applyBlock = make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		_, err := o.ApplyUpgrade(ctx, sub, req, outcome.ConfirmationToken)
		firstDone <- err
	}()

	// Wait until the first apply holds the in-flight mark.
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.applying[sub.UserID]
	}, time.Second, time.Millisecond)

	_, err = o.ApplyUpgrade(ctx, sub, req, outcome.ConfirmationToken)
	assert.ErrorIs(t, err, ErrApplyInFlight)

	close(international.applyBlock)
	require.NoError(t, <-firstDone)
}

func TestDowngradeEffectiveDate(t *testing.T) {
	o, _, _ := newTestOrchestrator()

	end := orchNow.AddDate(0, 0, 12)
	sub := &subscriptions.Subscription{CurrentPeriodEnd: &end}
	got, err := o.DowngradeEffectiveDate(sub)
	require.NoError(t, err)
	assert.Equal(t, end, got)

	// No period end on record falls back to "now".
	got, err = o.DowngradeEffectiveDate(&subscriptions.Subscription{})
	require.NoError(t, err)
	assert.Equal(t, orchNow, got)

	_, err = o.DowngradeEffectiveDate(nil)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestUnusedValue(t *testing.T) {
	start := orchNow.AddDate(0, 0, -15)
	end := orchNow.AddDate(0, 0, 15)
	sub := &subscriptions.Subscription{StartDate: &start, CurrentPeriodEnd: &end}

	// Half the period left -> half the paid amount back.
	assert.InDelta(t, 50, UnusedValue(sub, 100, orchNow), 0.01)

	// Expired period -> no credit.
	assert.Zero(t, UnusedValue(sub, 100, end.Add(time.Hour)))

	// Missing dates -> no credit.
	assert.Zero(t, UnusedValue(&subscriptions.Subscription{}, 100, orchNow))
	assert.Zero(t, UnusedValue(nil, 100, orchNow))
}
