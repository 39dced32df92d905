package paywall

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Issuer turns verified payments into access tokens. Each transaction
// reference is redeemed at most once across all resources.
type Issuer struct {
	redemptions RedemptionStore
	generate    func() (AccessToken, error)
	now         func() time.Time
	deferred    bool
	logger      *slog.Logger
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithTokenGenerator overrides token minting
func WithTokenGenerator(fn func() (AccessToken, error)) IssuerOption {
	return func(i *Issuer) {
		i.generate = fn
	}
}

// WithDeferredRegistration makes Issue mint without storing; the token only
// becomes valid once Register is called for it.
func WithDeferredRegistration() IssuerOption {
	return func(i *Issuer) {
		i.deferred = true
	}
}

// WithIssuerClock overrides the clock used to stamp redemptions
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithIssuerLogger sets the issuer logger
func WithIssuerLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// NewIssuer creates an issuer recording redemptions in store
func NewIssuer(store RedemptionStore, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		redemptions: store,
		generate:    GenerateToken,
		now:         time.Now,
		logger:      slog.Default().With("component", "issuer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueResult is a minted token and whether it was handed out before
type IssueResult struct {
	Token  AccessToken
	Reused bool
}

// Issue mints a token for gate's resource from a verified result.
//
// The reference is claimed in the redemption store before the token is
// made valid. Retrying with an already redeemed reference returns the
// same token while it is still live; otherwise ErrAlreadyRedeemed.
func (i *Issuer) Issue(ctx context.Context, gate *Gate, result VerificationResult) (IssueResult, error) {
	if !result.Verified || result.TransactionReference == "" {
		return IssueResult{}, ErrUnverifiedPayment
	}

	token, err := i.generate()
	if err != nil {
		return IssueResult{}, fmt.Errorf("failed to mint token: %w", err)
	}

	cfg := gate.Config()
	record, claimed, err := i.redemptions.Claim(ctx, Redemption{
		Reference:  result.TransactionReference,
		Resource:   cfg.Name,
		Token:      token.String(),
		Payer:      result.Payer,
		Amount:     result.MatchedAmount,
		Asset:      result.MatchedAsset,
		Registered: !i.deferred,
		CreatedAt:  i.now().UTC(),
	})
	if err != nil {
		return IssueResult{}, fmt.Errorf("failed to record redemption: %w", err)
	}

	if !claimed {
		if record.Resource == cfg.Name && (!record.Registered || gate.Store().Contains(record.Token)) {
			return IssueResult{Token: AccessToken(record.Token), Reused: true}, nil
		}
		i.logger.Info("payment already redeemed",
			"reference", result.TransactionReference,
			"resource", cfg.Name,
			"redeemed_for", record.Resource,
		)
		return IssueResult{}, ErrAlreadyRedeemed
	}

	if !i.deferred {
		if err := gate.Store().Add(token.String()); err != nil {
			return IssueResult{}, fmt.Errorf("failed to store token: %w", err)
		}
	}

	i.logger.Info("token issued",
		"resource", cfg.Name,
		"reference", result.TransactionReference,
		"payer", result.Payer,
	)
	return IssueResult{Token: token}, nil
}

// Register makes a token minted by this issuer valid for gate's resource.
// Tokens minted for another resource, never minted, or already used are
// rejected with ErrUnknownToken. Registering a live token again is a no-op.
func (i *Issuer) Register(ctx context.Context, gate *Gate, token string) error {
	if token == "" {
		return ErrUnknownToken
	}

	record, ok, err := i.redemptions.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if !ok || record.Resource != gate.Config().Name {
		return ErrUnknownToken
	}

	flipped, err := i.redemptions.MarkRegistered(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to register token: %w", err)
	}
	if !flipped {
		if gate.Store().Contains(token) {
			return nil
		}
		return ErrUnknownToken
	}
	return gate.Store().Add(token)
}
