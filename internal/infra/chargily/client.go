// Package chargily is the client for the regional (DZD) payment provider.
// Chargily's rail is interactive-only: there is no stored payment mandate,
// so upgrade charges go through a prorated checkout unless fully covered by
// credit.
package chargily

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gympro-app/internal/billing"
	"gympro-app/internal/domain/subscriptions"
)

const defaultBaseURL = "https://pay.chargily.net/api/v2"

type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	appURL        string
	httpClient    *http.Client
	log           zerolog.Logger
}

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	AppURL        string
}

func New(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		appURL:        cfg.AppURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           log.With().Str("provider", "chargily").Logger(),
	}
}

func (c *Client) Name() string { return subscriptions.ProviderChargily }

type checkoutPayload struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	SuccessURL    string            `json:"success_url"`
	FailureURL    string            `json:"failure_url"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type checkoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

func (c *Client) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	payload := checkoutPayload{
		Amount:        int64(req.Amount),
		Currency:      "dzd",
		SuccessURL:    c.appURL + "/payment/success",
		FailureURL:    c.appURL + "/payment/failure",
		PaymentMethod: "edahabia",
		Description:   fmt.Sprintf("%s - %s", req.PlanID, req.BillingCycle),
		Metadata: map[string]string{
			"user_id":       fmt.Sprint(req.UserID),
			"plan_id":       req.PlanID,
			"billing_cycle": string(req.BillingCycle),
			"reference":     req.Reference,
			"type":          "subscription",
		},
	}

	var resp checkoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "/checkouts", payload, &resp); err != nil {
		return nil, err
	}
	c.log.Info().Str("checkout", resp.ID).Str("plan", req.PlanID).Msg("checkout created")
	return &billing.CheckoutSession{
		Provider:    c.Name(),
		CheckoutID:  resp.ID,
		CheckoutURL: resp.CheckoutURL,
	}, nil
}

func (c *Client) CreateRenewalCheckout(ctx context.Context, req billing.RenewalRequest) (*billing.CheckoutSession, error) {
	payload := checkoutPayload{
		Amount:        int64(req.Amount),
		Currency:      "dzd",
		SuccessURL:    c.appURL + "/payment/success",
		FailureURL:    c.appURL + "/payment/failure",
		PaymentMethod: "edahabia",
		Description:   fmt.Sprintf("renewal - %s", req.BillingCycle),
		Metadata: map[string]string{
			"user_id":       fmt.Sprint(req.UserID),
			"billing_cycle": string(req.BillingCycle),
			"reference":     req.Reference,
			"type":          "renewal",
		},
	}

	var resp checkoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "/checkouts", payload, &resp); err != nil {
		return nil, err
	}
	return &billing.CheckoutSession{
		Provider:    c.Name(),
		CheckoutID:  resp.ID,
		CheckoutURL: resp.CheckoutURL,
	}, nil
}

// PreviewUpgrade quotes the prorated charge locally: target price minus the
// unused value of the current period, floored at zero.
func (c *Client) PreviewUpgrade(_ context.Context, req billing.UpgradeRequest) (*billing.Preview, error) {
	immediate := req.Amount - req.Credit
	if immediate < 0 {
		immediate = 0
	}
	return &billing.Preview{
		Currency:        req.Currency,
		ImmediateAmount: immediate,
		CreditApplied:   req.Credit,
		NextAmount:      req.Amount,
	}, nil
}

// ApplyUpgrade has no stored payment method to charge. A fully credited
// upgrade applies immediately; anything else falls back to an interactive
// checkout for the prorated amount.
func (c *Client) ApplyUpgrade(ctx context.Context, req billing.UpgradeRequest) (*billing.ApplyResult, error) {
	immediate := req.Amount - req.Credit
	if immediate <= 0 {
		return &billing.ApplyResult{UpgradeApplied: true}, nil
	}

	payload := checkoutPayload{
		Amount:        int64(immediate),
		Currency:      "dzd",
		SuccessURL:    c.appURL + "/payment/success",
		FailureURL:    c.appURL + "/payment/failure",
		PaymentMethod: "edahabia",
		Description:   fmt.Sprintf("upgrade to %s - %s", req.PlanID, req.BillingCycle),
		Metadata: map[string]string{
			"user_id":       fmt.Sprint(req.UserID),
			"plan_id":       req.PlanID,
			"billing_cycle": string(req.BillingCycle),
			"type":          "upgrade",
		},
	}

	var resp checkoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "/checkouts", payload, &resp); err != nil {
		return nil, err
	}
	return &billing.ApplyResult{
		UpgradeApplied: false,
		TransactionID:  resp.ID,
		CheckoutURL:    resp.CheckoutURL,
	}, nil
}

func (c *Client) CheckoutStatus(ctx context.Context, checkoutID string) (string, error) {
	var resp checkoutResponse
	if err := c.doJSON(ctx, http.MethodGet, "/checkouts/"+checkoutID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// VerifySignature checks the HMAC-SHA256 webhook signature.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
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
		return fmt.Errorf("chargily %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
