package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// PaystackGateway talks to the Paystack transaction API.
type PaystackGateway struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewPaystackGateway creates a Paystack gateway client
func NewPaystackGateway(baseURL, secretKey string) *PaystackGateway {
	return &PaystackGateway{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// paystackResponse is Paystack's standard response envelope
type paystackResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
		Status           string `json:"status"`
	} `json:"data"`
}

func (g *PaystackGateway) Name() Provider {
	return ProviderPaystack
}

// Initialize creates a Paystack transaction for the given reference.
// Amounts are passed in the minor unit (kobo for NGN).
func (g *PaystackGateway) Initialize(ctx context.Context, tx *model.Transaction) (*CheckoutSession, error) {
	defer prometheus.TrackGatewayCall(string(ProviderPaystack), "initialize")(time.Now())

	payload := map[string]interface{}{
		"reference": tx.Reference,
		"amount":    tx.Amount,
		"currency":  tx.Currency,
	}

	envelope, err := g.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ProviderRef: envelope.Data.AccessCode,
		PaymentURL:  envelope.Data.AuthorizationURL,
	}, nil
}

// Verify checks a transaction's final state by our reference
func (g *PaystackGateway) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	defer prometheus.TrackGatewayCall(string(ProviderPaystack), "verify")(time.Now())

	envelope, err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	return &VerificationResult{
		Reference: envelope.Data.Reference,
		Paid:      envelope.Data.Status == "success",
		RawStatus: envelope.Data.Status,
	}, nil
}

func (g *PaystackGateway) do(ctx context.Context, method, path string, payload interface{}) (*paystackResponse, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("paystack: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope paystackResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("paystack: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Status {
		return nil, fmt.Errorf("paystack: %s (status %d)", envelope.Message, resp.StatusCode)
	}

	return &envelope, nil
}
