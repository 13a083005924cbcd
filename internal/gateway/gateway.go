package gateway

import (
	"context"
	"errors"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

// Provider identifies a payment gateway implementation.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
)

// CurrencyNGN is the one currency where local providers take priority over
// Stripe because of better rail support and lower fees.
const CurrencyNGN = "NGN"

// declarationOrder is the configuration declaration order of providers.
// "First enabled provider" in the selection rules always means first in this
// order.
var declarationOrder = []Provider{ProviderStripe, ProviderPaystack, ProviderFlutterwave}

var (
	// ErrNoProviderEnabled is returned when selection runs with every
	// provider disabled. Like ErrUnsupportedGateway this is an operator
	// misconfiguration, not a transient condition.
	ErrNoProviderEnabled = errors.New("no payment provider is enabled")

	// ErrUnsupportedGateway is returned when the selected provider key has
	// no registered implementation. Fatal, never silently defaulted.
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")
)

// Config is an immutable snapshot of the gateway configuration. The selector
// receives it as an argument on every call; nothing in this package reads
// ambient mutable state.
type Config struct {
	StripeEnabled      bool
	PaystackEnabled    bool
	FlutterwaveEnabled bool
	// NGNPriority names the provider preferred for NGN transactions.
	// When Stripe is enabled this means preferred-among-the-enabled;
	// a disabled priority provider is skipped, never an error.
	NGNPriority Provider
}

// IsEnabled reports whether the given provider is enabled. Unknown provider
// keys are never enabled.
func (c Config) IsEnabled(p Provider) bool {
	switch p {
	case ProviderStripe:
		return c.StripeEnabled
	case ProviderPaystack:
		return c.PaystackEnabled
	case ProviderFlutterwave:
		return c.FlutterwaveEnabled
	}
	return false
}

// EnabledProviders returns the enabled providers in declaration order.
func (c Config) EnabledProviders() []Provider {
	var enabled []Provider
	for _, p := range declarationOrder {
		if c.IsEnabled(p) {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// CheckoutSession is the provider-side handle for an initialized payment.
type CheckoutSession struct {
	// ProviderRef is the provider's identifier for this checkout, stored on
	// the transaction so webhook payloads can be correlated.
	ProviderRef string
	// PaymentURL is where the payer completes the checkout.
	PaymentURL string
}

// VerificationResult reports the provider's view of a transaction.
type VerificationResult struct {
	Reference string
	Paid      bool
	RawStatus string
}

// Gateway is a payment provider client. Implementations perform outbound
// HTTP to the provider's API and must honor the passed context.
type Gateway interface {
	Name() Provider
	// Initialize creates a checkout for the transaction at the provider.
	Initialize(ctx context.Context, tx *model.Transaction) (*CheckoutSession, error)
	// Verify asks the provider for the final state of a transaction.
	Verify(ctx context.Context, reference string) (*VerificationResult, error)
}

// Registry holds the configured gateway implementations and resolves the one
// that should process a transaction in a given currency.
type Registry struct {
	cfg      Config
	gateways map[Provider]Gateway
}

// NewRegistry builds a registry from the configuration snapshot and the
// available gateway implementations.
func NewRegistry(cfg Config, gateways ...Gateway) *Registry {
	m := make(map[Provider]Gateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{cfg: cfg, gateways: m}
}

// Config returns the registry's configuration snapshot.
func (r *Registry) Config() Config {
	return r.cfg
}

// Gateway returns the implementation registered for the provider key, for
// callers that already know which provider handled a transaction.
func (r *Registry) Gateway(p Provider) (Gateway, bool) {
	g, ok := r.gateways[p]
	return g, ok
}

// Resolve selects the provider for the currency and returns its
// implementation. A selected provider without an implementation is an
// operator misconfiguration and yields ErrUnsupportedGateway.
func (r *Registry) Resolve(currency string) (Gateway, error) {
	p, err := Select(r.cfg, currency)
	if err != nil {
		return nil, err
	}
	g, ok := r.gateways[p]
	if !ok {
		return nil, ErrUnsupportedGateway
	}
	return g, nil
}
