package paywall

import (
	"log/slog"
	"time"
)

// AddressValidator checks that a recipient or asset address is well formed
type AddressValidator func(address string) error

// Gate decides whether a request to one resource is admitted.
// It holds no state of its own beyond the injected Token Store.
type Gate struct {
	config    ResourceConfig
	store     TokenStore
	policy    TokenPolicy
	validate  AddressValidator
	paymentID func() string
	now       func() time.Time
	logger    *slog.Logger
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithTokenPolicy sets how admitted tokens are treated
func WithTokenPolicy(policy TokenPolicy) GateOption {
	return func(g *Gate) {
		g.policy = policy
	}
}

// WithAddressValidator rejects malformed recipient or asset addresses at admission time
func WithAddressValidator(v AddressValidator) GateOption {
	return func(g *Gate) {
		g.validate = v
	}
}

// WithPaymentIDGenerator overrides how descriptor ids are produced
func WithPaymentIDGenerator(fn func() string) GateOption {
	return func(g *Gate) {
		g.paymentID = fn
	}
}

// WithGateClock overrides the clock used for descriptor expiry
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// WithGateLogger sets the gate logger
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a gate for one resource backed by store
func NewGate(config ResourceConfig, store TokenStore, opts ...GateOption) *Gate {
	g := &Gate{
		config:    config,
		store:     store,
		policy:    TokenPolicySingleUse,
		paymentID: NewPaymentID,
		now:       time.Now,
		logger:    slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("resource", config.Name)
	return g
}

// Config returns the resource configuration
func (g *Gate) Config() ResourceConfig {
	return g.config
}

// Store returns the resource's token store
func (g *Gate) Store() TokenStore {
	return g.store
}

// Policy returns the active token policy
func (g *Gate) Policy() TokenPolicy {
	return g.policy
}

// Admit decides on a bare credential (scheme already stripped, may be empty).
//
// A credential present in the store is admitted; under the single-use
// policy it is consumed in the same step. Anything else yields a fresh
// payment descriptor, or Misconfigured when the resource cannot be priced.
func (g *Gate) Admit(credential string) Decision {
	if credential != "" {
		var ok bool
		if g.policy == TokenPolicyPersistent {
			ok = g.store.Contains(credential)
		} else {
			ok = g.store.Consume(credential)
		}
		if ok {
			return Decision{Kind: DecisionAllow, Token: credential}
		}
	}

	if err := g.Check(); err != nil {
		g.logger.Error("resource misconfigured", "error", err)
		return Decision{Kind: DecisionMisconfigured, Err: configError(g.config.Name, err)}
	}

	reason := ErrCodeNoCredential
	if credential != "" {
		reason = ErrCodeInvalidCredential
	}
	return Decision{
		Kind:       DecisionDeny,
		Descriptor: g.Descriptor(),
		Reason:     reason,
	}
}

// Restore gives a consumed token back after the protected handler failed.
// It is a no-op under the persistent policy.
func (g *Gate) Restore(token string) {
	if g.policy != TokenPolicySingleUse || token == "" {
		return
	}
	if err := g.store.Add(token); err != nil {
		g.logger.Warn("failed to restore token", "error", err)
	}
}

// Check validates the resource configuration, including address format
func (g *Gate) Check() error {
	if err := g.config.Validate(); err != nil {
		return err
	}
	if g.validate == nil {
		return nil
	}
	if err := g.validate(g.config.Recipient); err != nil {
		return NewPaymentError(ErrCodeConfiguration, "invalid recipient address", map[string]interface{}{
			"recipient": g.config.Recipient,
			"error":     err.Error(),
		})
	}
	if err := g.validate(g.config.Asset); err != nil {
		return NewPaymentError(ErrCodeConfiguration, "invalid asset address", map[string]interface{}{
			"asset": g.config.Asset,
			"error": err.Error(),
		})
	}
	return nil
}

// Descriptor builds a fresh payment challenge for the resource
func (g *Gate) Descriptor() *PaymentDescriptor {
	d := &PaymentDescriptor{
		Resource:       g.config.Path,
		Description:    g.config.Description,
		FacilitatorURL: g.config.FacilitatorURL,
		Price:          g.config.Price,
		PaymentID:      g.paymentID(),
		Network:        g.config.Network,
		PaymentDetails: PaymentDetails{
			Recipient: g.config.Recipient,
			SPLToken:  g.config.Asset,
		},
	}
	if g.config.PaymentTTL > 0 {
		expires := g.now().Add(g.config.PaymentTTL).UTC()
		d.ExpiresAt = &expires
	}
	return d
}
