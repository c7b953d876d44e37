// Package paddle is the client for the international payment provider.
// Paddle holds a stored payment mandate per subscription, so upgrades can be
// charged in place; it also quotes its own proration.
package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gympro-app/internal/billing"
	"gympro-app/internal/domain/subscriptions"
)

const (
	liveBaseURL    = "https://api.paddle.com"
	sandboxBaseURL = "https://sandbox-api.paddle.com"
)

type Client struct {
	baseURL    string
	apiKey     string
	appURL     string
	priceIDs   map[string]string // "<plan_id>:<cycle>" -> paddle price id
	httpClient *http.Client
	log        zerolog.Logger
}

type Config struct {
	BaseURL  string // overrides live/sandbox selection when set
	APIKey   string
	Sandbox  bool
	AppURL   string
	PriceIDs map[string]string
}

func New(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = liveBaseURL
		if cfg.Sandbox {
			baseURL = sandboxBaseURL
		}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		appURL:     cfg.AppURL,
		priceIDs:   cfg.PriceIDs,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("provider", "paddle").Logger(),
	}
}

func (c *Client) Name() string { return subscriptions.ProviderPaddle }

// PriceID resolves a plan/cycle pair to the configured Paddle price.
func (c *Client) PriceID(planID string, cycle string) (string, error) {
	id, ok := c.priceIDs[planID+":"+cycle]
	if !ok {
		return "", fmt.Errorf("no paddle price configured for %s/%s", planID, cycle)
	}
	return id, nil
}

type transactionItem struct {
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

type transactionPayload struct {
	Items      []transactionItem `json:"items"`
	CustomData map[string]string `json:"custom_data,omitempty"`
	Checkout   *struct {
		URL string `json:"url,omitempty"`
	} `json:"checkout,omitempty"`
}

type transactionData struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Checkout struct {
		URL string `json:"url"`
	} `json:"checkout"`
}

type transactionResponse struct {
	Data transactionData `json:"data"`
}

func (c *Client) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	priceID, err := c.PriceID(req.PlanID, string(req.BillingCycle))
	if err != nil {
		return nil, err
	}
	payload := transactionPayload{
		Items: []transactionItem{{PriceID: priceID, Quantity: 1}},
		CustomData: map[string]string{
			"user_id":       strconv.FormatUint(uint64(req.UserID), 10),
			"plan_id":       req.PlanID,
			"billing_cycle": string(req.BillingCycle),
			"reference":     req.Reference,
			"type":          "subscription",
		},
	}

	var resp transactionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/transactions", payload, &resp); err != nil {
		return nil, err
	}
	c.log.Info().Str("transaction", resp.Data.ID).Str("plan", req.PlanID).Msg("transaction created")
	return &billing.CheckoutSession{
		Provider:      c.Name(),
		TransactionID: resp.Data.ID,
		CheckoutURL:   resp.Data.Checkout.URL,
	}, nil
}

// CreateRenewalCheckout only applies to manual-renewal subscriptions; Paddle
// bills auto-renew ones itself. Same transaction shape, different marker.
func (c *Client) CreateRenewalCheckout(ctx context.Context, req billing.RenewalRequest) (*billing.CheckoutSession, error) {
	priceID, err := c.PriceID(req.PlanID, string(req.BillingCycle))
	if err != nil {
		return nil, err
	}
	payload := transactionPayload{
		Items: []transactionItem{{PriceID: priceID, Quantity: 1}},
		CustomData: map[string]string{
			"user_id":       strconv.FormatUint(uint64(req.UserID), 10),
			"plan_id":       req.PlanID,
			"billing_cycle": string(req.BillingCycle),
			"reference":     req.Reference,
			"type":          "renewal",
		},
	}

	var resp transactionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/transactions", payload, &resp); err != nil {
		return nil, err
	}
	return &billing.CheckoutSession{
		Provider:      c.Name(),
		TransactionID: resp.Data.ID,
		CheckoutURL:   resp.Data.Checkout.URL,
	}, nil
}

type updatePayload struct {
	Items            []transactionItem `json:"items"`
	ProrationBilling string            `json:"proration_billing_mode"`
}

type previewResponse struct {
	Data struct {
		ImmediateTransaction *struct {
			Details struct {
				Totals struct {
					Total        string `json:"total"`
					Credit       string `json:"credit"`
					CurrencyCode string `json:"currency_code"`
				} `json:"totals"`
			} `json:"details"`
		} `json:"immediate_transaction"`
		RecurringTransactionDetails *struct {
			Totals struct {
				Total string `json:"total"`
			} `json:"totals"`
		} `json:"recurring_transaction_details"`
		NextBilledAt *time.Time `json:"next_billed_at"`
	} `json:"data"`
}

// PreviewUpgrade asks Paddle for its proration quote. The amounts the caller
// passed are ignored; Paddle is the source of truth for its own rail.
func (c *Client) PreviewUpgrade(ctx context.Context, req billing.UpgradeRequest) (*billing.Preview, error) {
	priceID, err := c.PriceID(req.PlanID, string(req.BillingCycle))
	if err != nil {
		return nil, err
	}
	payload := updatePayload{
		Items:            []transactionItem{{PriceID: priceID, Quantity: 1}},
		ProrationBilling: "prorated_immediately",
	}

	var resp previewResponse
	path := "/subscriptions/" + req.SubscriptionRef + "/preview"
	if err := c.doJSON(ctx, http.MethodPatch, path, payload, &resp); err != nil {
		return nil, err
	}

	preview := &billing.Preview{NextBillingAt: resp.Data.NextBilledAt}
	if it := resp.Data.ImmediateTransaction; it != nil {
		preview.Currency = it.Details.Totals.CurrencyCode
		preview.ImmediateAmount = parseMinorUnits(it.Details.Totals.Total)
		preview.CreditApplied = parseMinorUnits(it.Details.Totals.Credit)
	}
	if rt := resp.Data.RecurringTransactionDetails; rt != nil {
		preview.NextAmount = parseMinorUnits(rt.Totals.Total)
	}
	return preview, nil
}

type applyResponse struct {
	Data struct {
		ImmediateTransaction *transactionData `json:"immediate_transaction"`
	} `json:"data"`
}

// ApplyUpgrade patches the subscription, charging the stored payment method.
// If the charge fails Paddle hands back a checkout URL for a retry.
func (c *Client) ApplyUpgrade(ctx context.Context, req billing.UpgradeRequest) (*billing.ApplyResult, error) {
	priceID, err := c.PriceID(req.PlanID, string(req.BillingCycle))
	if err != nil {
		return nil, err
	}
	payload := updatePayload{
		Items:            []transactionItem{{PriceID: priceID, Quantity: 1}},
		ProrationBilling: "prorated_immediately",
	}

	var resp applyResponse
	path := "/subscriptions/" + req.SubscriptionRef
	if err := c.doJSON(ctx, http.MethodPatch, path, payload, &resp); err != nil {
		return nil, err
	}

	it := resp.Data.ImmediateTransaction
	if it == nil || it.Status == "completed" || it.Status == "paid" {
		result := &billing.ApplyResult{UpgradeApplied: true}
		if it != nil {
			result.TransactionID = it.ID
		}
		return result, nil
	}
	return &billing.ApplyResult{
		UpgradeApplied: false,
		TransactionID:  it.ID,
		CheckoutURL:    it.Checkout.URL,
	}, nil
}

func (c *Client) CheckoutStatus(ctx context.Context, checkoutID string) (string, error) {
	var resp transactionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/transactions/"+checkoutID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Status, nil
}

// parseMinorUnits converts Paddle's string minor-unit amounts ("1999") to a
// major-unit float.
func parseMinorUnits(s string) float64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return float64(n) / 100
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("paddle %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
