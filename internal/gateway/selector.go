package gateway

// Select deterministically picks the provider that should process a
// transaction in the given currency. It is a pure function of the
// configuration snapshot and the currency: identical inputs always yield the
// same provider.
//
// The rules form a priority cascade, first match wins:
//
//  1. Exactly one provider enabled: use it, regardless of currency.
//  2. Stripe enabled: Stripe handles everything except NGN, where the
//     configured priority provider wins if enabled, then the first enabled
//     non-Stripe provider, then Stripe itself as the last resort.
//  3. Stripe disabled, several providers enabled: the priority provider wins
//     for NGN if enabled, otherwise the first enabled provider.
func Select(cfg Config, currency string) (Provider, error) {
	enabled := cfg.EnabledProviders()
	if len(enabled) == 0 {
		return "", ErrNoProviderEnabled
	}

	// Sole provider handles every currency unconditionally.
	if len(enabled) == 1 {
		return enabled[0], nil
	}

	if cfg.StripeEnabled {
		if currency == CurrencyNGN {
			if cfg.IsEnabled(cfg.NGNPriority) {
				return cfg.NGNPriority, nil
			}
			for _, p := range enabled {
				if p != ProviderStripe {
					return p, nil
				}
			}
			// No enabled non-Stripe provider left for NGN.
			return ProviderStripe, nil
		}
		return ProviderStripe, nil
	}

	if currency == CurrencyNGN && cfg.IsEnabled(cfg.NGNPriority) {
		return cfg.NGNPriority, nil
	}
	return enabled[0], nil
}
