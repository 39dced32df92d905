package paywall

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultLedgerTimeout bounds every verification round-trip
	DefaultLedgerTimeout = 10 * time.Second
	// DefaultVerificationCacheTTL is how long a positive verification is reused
	DefaultVerificationCacheTTL = 10 * time.Minute
)

// LedgerVerifier checks transaction references against a LedgerClient
type LedgerVerifier struct {
	client    LedgerClient
	mode      VerificationMode
	tolerance uint64
	timeout   time.Duration
	cache     *VerificationCache
	logger    *slog.Logger
}

// VerifierOption configures a LedgerVerifier
type VerifierOption func(*LedgerVerifier)

// WithVerificationMode selects deep or light verification
func WithVerificationMode(mode VerificationMode) VerifierOption {
	return func(v *LedgerVerifier) {
		v.mode = mode
	}
}

// WithTolerance accepts payments short of the price by at most tolerance base units
func WithTolerance(tolerance uint64) VerifierOption {
	return func(v *LedgerVerifier) {
		v.tolerance = tolerance
	}
}

// WithLedgerTimeout bounds each verification
func WithLedgerTimeout(timeout time.Duration) VerifierOption {
	return func(v *LedgerVerifier) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithVerificationCache replaces the default cache; nil disables caching
func WithVerificationCache(cache *VerificationCache) VerifierOption {
	return func(v *LedgerVerifier) {
		v.cache = cache
	}
}

// WithVerifierLogger sets the verifier logger
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *LedgerVerifier) {
		v.logger = logger
	}
}

// NewLedgerVerifier creates a verifier in deep mode with a 10s timeout
func NewLedgerVerifier(client LedgerClient, opts ...VerifierOption) *LedgerVerifier {
	v := &LedgerVerifier{
		client:  client,
		mode:    VerificationModeDeep,
		timeout: DefaultLedgerTimeout,
		cache:   NewVerificationCache(DefaultVerificationCacheTTL),
		logger:  slog.Default().With("component", "verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mode returns the active verification mode
func (v *LedgerVerifier) Mode() VerificationMode {
	return v.mode
}

// Verify checks that reference is settled and, in deep mode, that it credits
// expected.Recipient with at least expected.Amount of expected.Asset.
//
// A definite answer is returned as a result. Ledger connectivity failures
// are returned as an error with code ledger_unavailable.
func (v *LedgerVerifier) Verify(ctx context.Context, reference string, expected ExpectedPayment) (VerificationResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerificationResult{}, ErrInvalidReference
	}

	if v.cache == nil {
		return v.verify(ctx, reference, expected)
	}

	key := VerificationKey(reference, expected, v.mode)
	status, cached, done := v.cache.CheckAndMark(key)
	switch status {
	case CacheHit:
		return *cached, nil

	case CacheInFlight:
		result, err := v.cache.WaitForResult(ctx, key, done)
		if err != nil {
			return VerificationResult{}, ledgerUnavailable(reference, err)
		}
		if result != nil {
			return *result, nil
		}
		// The other check did not verify; ask the ledger ourselves.
		return v.verify(ctx, reference, expected)
	}

	result, err := v.verify(ctx, reference, expected)
	if err != nil || !result.Verified {
		v.cache.Fail(key, done)
		return result, err
	}
	v.cache.Complete(key, &result, done)
	return result, nil
}

func (v *LedgerVerifier) verify(ctx context.Context, reference string, expected ExpectedPayment) (VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	result := VerificationResult{
		TransactionReference: reference,
		Mode:                 v.mode,
	}

	status, err := v.client.GetStatus(ctx, reference)
	if err != nil {
		v.logger.Warn("ledger status query failed", "reference", reference, "error", err)
		return VerificationResult{}, ledgerUnavailable(reference, err)
	}
	result.Status = status

	switch status {
	case TxStatusConfirmed, TxStatusFinalized:
	case TxStatusPending:
		result.Reason = ErrCodePaymentPending
		return result, nil
	case TxStatusFailed:
		result.Reason = ErrCodeTransactionFailed
		return result, nil
	default:
		result.Reason = ErrCodePaymentNotFound
		return result, nil
	}

	if v.mode == VerificationModeLight {
		result.Verified = true
		return result, nil
	}

	tx, err := v.client.GetTransaction(ctx, reference)
	if err != nil {
		v.logger.Warn("ledger transaction query failed", "reference", reference, "error", err)
		return VerificationResult{}, ledgerUnavailable(reference, err)
	}
	if tx == nil {
		// Settled status but the transaction is not served yet at our commitment.
		result.Reason = ErrCodePaymentPending
		return result, nil
	}
	if tx.Failed {
		result.Reason = ErrCodeTransactionFailed
		return result, nil
	}

	credited := tx.Credited(expected.Recipient, expected.Asset)
	result.MatchedAsset = expected.Asset
	result.MatchedAmount = credited
	result.Payer = tx.Payer(expected.Asset, expected.Recipient)

	if credited == 0 || credited < minimumAccepted(expected.Amount, v.tolerance) {
		v.logger.Info("payment mismatch",
			"reference", reference,
			"expected", expected.Amount,
			"credited", credited,
			"asset", expected.Asset,
		)
		result.Reason = ErrCodePaymentMismatch
		return result, nil
	}

	result.Verified = true
	return result, nil
}

func minimumAccepted(amount, tolerance uint64) uint64 {
	if tolerance >= amount {
		return 0
	}
	return amount - tolerance
}
