package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	paywall "github.com/lalitcap23/pay-per-api"
)

// RPC is the subset of *rpc.Client the ledger client calls
type RPC interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Client implements paywall.LedgerClient over Solana JSON-RPC
type Client struct {
	rpc        RPC
	commitment rpc.CommitmentType
	logger     *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithCommitment sets the commitment used when fetching transactions
func WithCommitment(c rpc.CommitmentType) ClientOption {
	return func(cl *Client) {
		cl.commitment = c
	}
}

// WithRPC replaces the JSON-RPC client
func WithRPC(r RPC) ClientOption {
	return func(cl *Client) {
		cl.rpc = r
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a ledger client for rpcURL
func NewClient(rpcURL string, opts ...ClientOption) *Client {
	c := &Client{
		rpc:        rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
		logger:     slog.Default().With("component", "solana"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStatus maps the signature status to a paywall.TxStatus.
// A malformed reference can never be found, so it reports TxStatusNotFound.
func (c *Client) GetStatus(ctx context.Context, reference string) (paywall.TxStatus, error) {
	sig, err := solana.SignatureFromBase58(reference)
	if err != nil {
		return paywall.TxStatusNotFound, nil
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return paywall.TxStatusNotFound, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return paywall.TxStatusFailed, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return paywall.TxStatusFinalized, nil
	case rpc.ConfirmationStatusConfirmed:
		return paywall.TxStatusConfirmed, nil
	default:
		return paywall.TxStatusPending, nil
	}
}

// GetTransaction fetches the transaction's token balance changes.
// Returns (nil, nil) when the node does not know the transaction.
func (c *Client) GetTransaction(ctx context.Context, reference string) (*paywall.TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(reference)
	if err != nil {
		return nil, nil
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	if out == nil {
		return nil, nil
	}

	record := &paywall.TransactionRecord{
		Reference: reference,
		Slot:      out.Slot,
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time().UTC()
		record.BlockTime = &t
	}
	if out.Meta == nil {
		c.logger.Warn("transaction has no meta", "reference", reference)
		return record, nil
	}
	record.Failed = out.Meta.Err != nil
	record.BalanceChanges = balanceChanges(out.Meta.PreTokenBalances, out.Meta.PostTokenBalances)
	return record, nil
}

type accountKey struct {
	index uint16
	mint  solana.PublicKey
}

// balanceChanges pairs pre and post token balances by account index.
// An account missing on one side (created or closed in the transaction)
// counts as zero on that side.
func balanceChanges(pre, post []rpc.TokenBalance) []paywall.BalanceChange {
	changes := make(map[accountKey]*paywall.BalanceChange)
	var order []accountKey

	get := func(b rpc.TokenBalance) *paywall.BalanceChange {
		key := accountKey{index: b.AccountIndex, mint: b.Mint}
		if ch, ok := changes[key]; ok {
			if ch.Owner == "" && b.Owner != nil {
				ch.Owner = b.Owner.String()
			}
			return ch
		}
		ch := &paywall.BalanceChange{Mint: b.Mint.String()}
		if b.Owner != nil {
			ch.Owner = b.Owner.String()
		}
		changes[key] = ch
		order = append(order, key)
		return ch
	}

	for _, b := range pre {
		get(b).Pre = tokenAmount(b.UiTokenAmount)
	}
	for _, b := range post {
		get(b).Post = tokenAmount(b.UiTokenAmount)
	}

	result := make([]paywall.BalanceChange, 0, len(order))
	for _, key := range order {
		result = append(result, *changes[key])
	}
	return result
}

func tokenAmount(a *rpc.UiTokenAmount) uint64 {
	if a == nil {
		return 0
	}
	v, err := strconv.ParseUint(a.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

var _ paywall.LedgerClient = (*Client)(nil)
