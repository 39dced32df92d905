package paywall

import "time"

// ResourceConfig describes one protected resource and how it is priced.
// One Gate, one Token Store and one expected payment are derived from it.
type ResourceConfig struct {
	// Required - identity
	// Name is the stable key the resource is registered under (e.g. "jokes")
	Name string `json:"name" yaml:"name"`
	// Path is the route the resource is mounted on (e.g. "/api/jokes")
	Path string `json:"path" yaml:"path"`

	// Required - payment destination
	// Price is the amount in base units of the asset (100 = 0.0001 USDC)
	Price Price `json:"price" yaml:"price"`
	// Asset is the mint address of the token the seller accepts
	Asset string `json:"asset" yaml:"asset"`
	// Recipient is the owner address that receives the payment
	Recipient string `json:"recipient" yaml:"recipient"`
	// Network is the ledger environment (e.g. "devnet")
	Network Network `json:"network" yaml:"network"`

	// Optional - display/response customization
	// Description is shown in the 402 response and the WWW-Authenticate realm
	Description string `json:"description,omitempty" yaml:"description"`
	// FacilitatorURL is advertised in the X-Faremeter-Facilitator header
	FacilitatorURL string `json:"facilitatorUrl,omitempty" yaml:"facilitator_url"`
	// PaymentTTL sets expiresAt on descriptors; zero omits it
	PaymentTTL time.Duration `json:"paymentTtl,omitempty" yaml:"-"`
}

// Validate checks if the config has all required fields
func (c *ResourceConfig) Validate() error {
	if c.Name == "" {
		return ErrMissingName
	}
	if c.Path == "" {
		return ErrMissingPath
	}
	if c.Price.Amount == 0 {
		return ErrMissingPrice
	}
	if c.Price.Token == "" {
		return ErrMissingAssetSymbol
	}
	if c.Asset == "" {
		return ErrMissingAsset
	}
	if c.Recipient == "" {
		return ErrMissingRecipient
	}
	if c.Network == "" {
		return ErrMissingNetwork
	}
	return nil
}

// Expected returns the payment a transaction must carry to unlock the resource
func (c *ResourceConfig) Expected() ExpectedPayment {
	return ExpectedPayment{
		Asset:     c.Asset,
		Amount:    c.Price.Amount,
		Recipient: c.Recipient,
	}
}
