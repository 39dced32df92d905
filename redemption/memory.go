// Package redemption records which ledger transactions have been exchanged
// for access tokens, so one payment unlocks at most one token.
package redemption

import (
	"context"
	"sync"

	paywall "github.com/lalitcap23/pay-per-api"
)

// Memory is an in-process RedemptionStore. Records live until restart.
//
// Suitable for single-instance deployments; use SQLite when replay
// protection must survive restarts.
type Memory struct {
	mu          sync.Mutex
	byReference map[string]*paywall.Redemption
	byToken     map[string]*paywall.Redemption
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		byReference: make(map[string]*paywall.Redemption),
		byToken:     make(map[string]*paywall.Redemption),
	}
}

// Claim records r unless its reference is already redeemed
func (m *Memory) Claim(_ context.Context, r paywall.Redemption) (paywall.Redemption, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byReference[r.Reference]; ok {
		return *existing, false, nil
	}

	rec := r
	m.byReference[r.Reference] = &rec
	m.byToken[r.Token] = &rec
	return rec, true, nil
}

// FindByToken looks up the redemption that minted token
func (m *Memory) FindByToken(_ context.Context, token string) (paywall.Redemption, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok {
		return paywall.Redemption{}, false, nil
	}
	return *rec, true, nil
}

// MarkRegistered flips the registered flag; only the first call returns true
func (m *Memory) MarkRegistered(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok || rec.Registered {
		return false, nil
	}
	rec.Registered = true
	return true, nil
}

// Len returns the number of redeemed references
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byReference)
}

var _ paywall.RedemptionStore = (*Memory)(nil)
