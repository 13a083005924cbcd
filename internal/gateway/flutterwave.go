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

// FlutterwaveGateway talks to the Flutterwave v3 payments API.
type FlutterwaveGateway struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewFlutterwaveGateway creates a Flutterwave gateway client
func NewFlutterwaveGateway(baseURL, secretKey string) *FlutterwaveGateway {
	return &FlutterwaveGateway{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// flutterwaveResponse is Flutterwave's standard response envelope
type flutterwaveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link   string `json:"link"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

func (g *FlutterwaveGateway) Name() Provider {
	return ProviderFlutterwave
}

// Initialize creates a Flutterwave payment for the given reference
func (g *FlutterwaveGateway) Initialize(ctx context.Context, tx *model.Transaction) (*CheckoutSession, error) {
	defer prometheus.TrackGatewayCall(string(ProviderFlutterwave), "initialize")(time.Now())

	payload := map[string]interface{}{
		"tx_ref":   tx.Reference,
		"amount":   tx.Amount,
		"currency": tx.Currency,
	}

	envelope, err := g.do(ctx, http.MethodPost, "/v3/payments", payload)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ProviderRef: tx.Reference,
		PaymentURL:  envelope.Data.Link,
	}, nil
}

// Verify checks a transaction's final state by our reference
func (g *FlutterwaveGateway) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	defer prometheus.TrackGatewayCall(string(ProviderFlutterwave), "verify")(time.Now())

	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	envelope, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return &VerificationResult{
		Reference: envelope.Data.TxRef,
		Paid:      envelope.Data.Status == "successful",
		RawStatus: envelope.Data.Status,
	}, nil
}

func (g *FlutterwaveGateway) do(ctx context.Context, method, path string, payload interface{}) (*flutterwaveResponse, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("flutterwave: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("flutterwave: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flutterwave: request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope flutterwaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("flutterwave: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || envelope.Status != "success" {
		return nil, fmt.Errorf("flutterwave: %s (status %d)", envelope.Message, resp.StatusCode)
	}

	return &envelope, nil
}
