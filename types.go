package paywall

import (
	"strings"
	"time"
)

// Network identifies the ledger environment a resource is priced on (e.g. "devnet")
type Network string

// AccessToken is an opaque bearer credential minted after a verified payment
type AccessToken string

// String returns the raw token value
func (t AccessToken) String() string {
	return string(t)
}

// Price is the amount charged for one call, in base units of the asset
type Price struct {
	Amount uint64 `json:"amount" yaml:"amount"`
	Token  string `json:"token" yaml:"token"`
}

// PaymentDetails tells the client where to send the payment
type PaymentDetails struct {
	Recipient string `json:"recipient"`
	SPLToken  string `json:"splToken"`
}

// PaymentDescriptor is the challenge returned to an unpaid client.
// It is built fresh for every denial and never stored.
type PaymentDescriptor struct {
	Resource       string         `json:"-"`
	Description    string         `json:"-"`
	FacilitatorURL string         `json:"-"`
	Price          Price          `json:"price"`
	PaymentID      string         `json:"paymentId"`
	Network        Network        `json:"network"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
}

// DecisionKind enumerates the outcomes of a gate admission
type DecisionKind int

const (
	// DecisionAllow admits the request to the protected handler.
	DecisionAllow DecisionKind = iota
	// DecisionDeny requires payment; the decision carries a descriptor.
	DecisionDeny
	// DecisionMisconfigured means the resource cannot be priced.
	DecisionMisconfigured
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// Decision is the result of Gate.Admit
type Decision struct {
	Kind DecisionKind

	// Token is the admitted credential (Allow only)
	Token string

	// Descriptor is the payment challenge (Deny only)
	Descriptor *PaymentDescriptor

	// Reason is ErrCodeNoCredential or ErrCodeInvalidCredential (Deny only).
	// It is kept for logging; responses do not distinguish the two.
	Reason string

	// Err describes the configuration problem (Misconfigured only)
	Err *PaymentError
}

// Allowed reports whether the request may proceed
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// TxStatus is the finality status of a ledger transaction
type TxStatus string

const (
	TxStatusNotFound  TxStatus = "notFound"
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFinalized TxStatus = "finalized"
	TxStatusFailed    TxStatus = "failed"
)

// Settled reports whether the status counts as a completed payment
func (s TxStatus) Settled() bool {
	return s == TxStatusConfirmed || s == TxStatusFinalized
}

// BalanceChange is one token account's balance before and after a transaction
type BalanceChange struct {
	Owner string
	Mint  string
	Pre   uint64
	Post  uint64
}

// TransactionRecord is the subset of a ledger transaction the verifier inspects
type TransactionRecord struct {
	Reference      string
	Slot           uint64
	BlockTime      *time.Time
	Failed         bool
	BalanceChanges []BalanceChange
}

// Credited returns the total amount of mint received by owner across all of
// owner's token accounts touched by the transaction.
func (r *TransactionRecord) Credited(owner, mint string) uint64 {
	var total uint64
	for _, c := range r.BalanceChanges {
		if c.Owner != owner || c.Mint != mint {
			continue
		}
		if c.Post > c.Pre {
			total += c.Post - c.Pre
		}
	}
	return total
}

// Payer returns the owner whose balance of mint dropped the most, skipping
// the recipient. Empty when no debit is recorded.
func (r *TransactionRecord) Payer(mint, recipient string) string {
	var (
		payer   string
		largest uint64
	)
	for _, c := range r.BalanceChanges {
		if c.Mint != mint || c.Owner == recipient || c.Pre <= c.Post {
			continue
		}
		if debit := c.Pre - c.Post; debit > largest {
			largest = debit
			payer = c.Owner
		}
	}
	return payer
}

// ExpectedPayment is what a transaction must transfer to satisfy a resource
type ExpectedPayment struct {
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
}

// VerificationMode selects how much of a transaction the verifier checks
type VerificationMode string

const (
	// VerificationModeDeep checks finality and the recipient's balance change.
	VerificationModeDeep VerificationMode = "deep"
	// VerificationModeLight only checks finality. Best-effort demo mode:
	// it does not prove the amount, asset or recipient.
	VerificationModeLight VerificationMode = "light"
)

// ParseVerificationMode parses "deep" or "light"; empty selects deep
func ParseVerificationMode(s string) (VerificationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(VerificationModeDeep):
		return VerificationModeDeep, nil
	case string(VerificationModeLight):
		return VerificationModeLight, nil
	}
	return "", NewPaymentError(ErrCodeConfiguration, "unknown verification mode: "+s, nil)
}

// VerificationResult is the outcome of checking a transaction reference
type VerificationResult struct {
	Verified             bool             `json:"verified"`
	Reason               string           `json:"reason,omitempty"`
	TransactionReference string           `json:"transactionReference"`
	Status               TxStatus         `json:"status,omitempty"`
	MatchedAmount        uint64           `json:"matchedAmount,omitempty"`
	MatchedAsset         string           `json:"matchedAsset,omitempty"`
	Payer                string           `json:"payer,omitempty"`
	Mode                 VerificationMode `json:"mode"`
}

// TokenPolicy controls how long an access token stays valid
type TokenPolicy string

const (
	// TokenPolicySingleUse consumes the token on its first admitted request.
	TokenPolicySingleUse TokenPolicy = "single-use"
	// TokenPolicyPersistent keeps the token until restart or eviction.
	TokenPolicyPersistent TokenPolicy = "persistent"
)

// ParseTokenPolicy parses a policy name; empty selects single-use
func ParseTokenPolicy(s string) (TokenPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TokenPolicySingleUse), "single", "once":
		return TokenPolicySingleUse, nil
	case string(TokenPolicyPersistent), "reusable":
		return TokenPolicyPersistent, nil
	}
	return "", NewPaymentError(ErrCodeConfiguration, "unknown token policy: "+s, nil)
}

// Redemption records that a transaction reference was exchanged for a token
type Redemption struct {
	Reference  string
	Resource   string
	Token      string
	Payer      string
	Amount     uint64
	Asset      string
	Registered bool
	CreatedAt  time.Time
}
