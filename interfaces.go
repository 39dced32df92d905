package paywall

import "context"

// LedgerClient reads transaction state from the external ledger.
//
// GetStatus returns TxStatusNotFound (not an error) for unknown references.
// GetTransaction returns (nil, nil) for unknown references.
// Any returned error is treated as a connectivity failure.
type LedgerClient interface {
	GetStatus(ctx context.Context, reference string) (TxStatus, error)
	GetTransaction(ctx context.Context, reference string) (*TransactionRecord, error)
}

// Verifier checks a transaction reference against an expected payment.
// A non-nil error means the answer is unknown (e.g. the ledger is unreachable);
// a definite "no" is a result with Verified == false.
type Verifier interface {
	Verify(ctx context.Context, reference string, expected ExpectedPayment) (VerificationResult, error)
}

// TokenStore holds the currently valid access tokens of one resource.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Add inserts a token. Adding an existing token is a no-op.
	Add(token string) error
	// Contains reports whether the token is valid.
	Contains(token string) bool
	// Consume atomically removes the token and reports whether it was valid.
	Consume(token string) bool
	// Remove deletes the token if present.
	Remove(token string)
	// Len returns the number of valid tokens.
	Len() int
}

// RedemptionStore records which transaction references have been exchanged
// for tokens. Implementations must be safe for concurrent use.
type RedemptionStore interface {
	// Claim records r unless r.Reference is already redeemed.
	// Returns the stored record and true when r was recorded, or the
	// existing record and false when the reference was taken.
	Claim(ctx context.Context, r Redemption) (Redemption, bool, error)

	// FindByToken looks up the redemption that minted token.
	FindByToken(ctx context.Context, token string) (Redemption, bool, error)

	// MarkRegistered flags the token's redemption as registered with its
	// resource. Returns true only for the call that flipped the flag.
	MarkRegistered(ctx context.Context, token string) (bool, error)
}
