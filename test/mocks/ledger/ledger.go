// Package ledger provides an in-memory paywall.LedgerClient for tests.
package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	paywall "github.com/lalitcap23/pay-per-api"
)

// ErrUnavailable is returned by a Fake switched offline
var ErrUnavailable = errors.New("ledger: connection refused")

// ============================================================================
// Fake Ledger
// ============================================================================

// Fake holds transactions keyed by reference
type Fake struct {
	mu       sync.Mutex
	txs      map[string]entry
	offline  bool
	delay    time.Duration
	statuses atomic.Int64
	fetches  atomic.Int64
}

type entry struct {
	status paywall.TxStatus
	record *paywall.TransactionRecord
}

// New creates an empty fake ledger
func New() *Fake {
	return &Fake{txs: make(map[string]entry)}
}

// Transfer records a settled transfer of amount of mint from payer to recipient
func (f *Fake) Transfer(reference, payer, recipient, mint string, amount uint64) {
	f.Put(reference, paywall.TxStatusFinalized, &paywall.TransactionRecord{
		Reference: reference,
		BalanceChanges: []paywall.BalanceChange{
			{Owner: payer, Mint: mint, Pre: amount * 10, Post: amount * 9},
			{Owner: recipient, Mint: mint, Pre: 0, Post: amount},
		},
	})
}

// Put stores a transaction with an explicit status
func (f *Fake) Put(reference string, status paywall.TxStatus, record *paywall.TransactionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[reference] = entry{status: status, record: record}
}

// SetStatus changes the status of a stored transaction
func (f *Fake) SetStatus(reference string, status paywall.TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.txs[reference]
	e.status = status
	f.txs[reference] = e
}

// SetOffline makes every call fail with ErrUnavailable
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// SetDelay slows every call down, honoring context cancellation
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// StatusCalls returns how many GetStatus calls were made
func (f *Fake) StatusCalls() int {
	return int(f.statuses.Load())
}

// TransactionCalls returns how many GetTransaction calls were made
func (f *Fake) TransactionCalls() int {
	return int(f.fetches.Load())
}

// GetStatus implements paywall.LedgerClient
func (f *Fake) GetStatus(ctx context.Context, reference string) (paywall.TxStatus, error) {
	f.statuses.Add(1)
	e, err := f.lookup(ctx, reference)
	if err != nil {
		return "", err
	}
	if e.status == "" {
		return paywall.TxStatusNotFound, nil
	}
	return e.status, nil
}

// GetTransaction implements paywall.LedgerClient
func (f *Fake) GetTransaction(ctx context.Context, reference string) (*paywall.TransactionRecord, error) {
	f.fetches.Add(1)
	e, err := f.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	return e.record, nil
}

func (f *Fake) lookup(ctx context.Context, reference string) (entry, error) {
	f.mu.Lock()
	delay, offline := f.delay, f.offline
	e := f.txs[reference]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return entry{}, ctx.Err()
		}
	}
	if offline {
		return entry{}, ErrUnavailable
	}
	return e, nil
}

var _ paywall.LedgerClient = (*Fake)(nil)
