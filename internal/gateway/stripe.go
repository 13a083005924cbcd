package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// StripeGateway talks to the Stripe Checkout API.
type StripeGateway struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewStripeGateway creates a Stripe gateway client
func NewStripeGateway(baseURL, secretKey string) *StripeGateway {
	return &StripeGateway{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// stripeSession represents the subset of a Stripe Checkout Session we consume
type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) Name() Provider {
	return ProviderStripe
}

// Initialize creates a Stripe Checkout Session for the transaction
func (g *StripeGateway) Initialize(ctx context.Context, tx *model.Transaction) (*CheckoutSession, error) {
	defer prometheus.TrackGatewayCall(string(ProviderStripe), "initialize")(time.Now())

	// Stripe's API is form-encoded, amounts in the currency's minor unit
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", tx.Reference)
	form.Set("line_items[0][price_data][currency]", strings.ToLower(tx.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(tx.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Payment "+tx.Reference)
	form.Set("line_items[0][quantity]", "1")

	session, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ProviderRef: session.ID,
		PaymentURL:  session.URL,
	}, nil
}

// Verify fetches the Checkout Session and reports whether it was paid
func (g *StripeGateway) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	defer prometheus.TrackGatewayCall(string(ProviderStripe), "verify")(time.Now())

	session, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(reference), nil, "")
	if err != nil {
		return nil, err
	}

	return &VerificationResult{
		Reference: session.ID,
		Paid:      session.PaymentStatus == "paid",
		RawStatus: session.PaymentStatus,
	}, nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*stripeSession, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stripe: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr stripeError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}

	var session stripeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("stripe: decode response: %w", err)
	}
	return &session, nil
}
