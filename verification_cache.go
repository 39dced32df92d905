package paywall

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// VerificationCache remembers successful verifications and collapses
// concurrent checks of the same reference into one ledger round-trip.
// Only positive results are stored; failures leave nothing behind so
// a later retry asks the ledger again.
type VerificationCache struct {
	mu       sync.Mutex
	results  map[string]*VerificationResult
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewVerificationCache keeps verified results for ttl
func NewVerificationCache(ttl time.Duration) *VerificationCache {
	return &VerificationCache{
		results:  make(map[string]*VerificationResult),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// VerificationKey identifies one (reference, expectation, mode) check.
// A reference verified against a cheaper resource must not satisfy a
// more expensive one, so the expectation is part of the key.
func VerificationKey(reference string, expected ExpectedPayment, mode VerificationMode) string {
	h := sha256.New()
	for _, part := range []string{
		reference,
		expected.Recipient,
		expected.Asset,
		strconv.FormatUint(expected.Amount, 10),
		string(mode),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CacheStatus represents the result of checking the cache.
type CacheStatus int

const (
	// CacheMiss means no cached result and no in-flight check.
	CacheMiss CacheStatus = iota
	// CacheHit means a cached result was found.
	CacheHit
	// CacheInFlight means another request is verifying this key.
	CacheInFlight
)

// CheckAndMark looks up a verified result for key. On a miss the caller
// owns the ledger check for key and must end it with Complete or Fail on
// the returned channel; callers that find a check already running get that
// channel to wait on instead. Expired results count as misses.
func (c *VerificationCache) CheckAndMark(key string) (CacheStatus, *VerificationResult, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[key]; exists {
		if c.now().Before(expiry) {
			if result, ok := c.results[key]; ok {
				return CacheHit, result, nil
			}
		}
		delete(c.results, key)
		delete(c.expiry, key)
	}

	if done, exists := c.inFlight[key]; exists {
		return CacheInFlight, nil, done
	}

	done := make(chan struct{})
	c.inFlight[key] = done
	return CacheMiss, nil, done
}

// WaitForResult blocks until the ledger check owning done ends or ctx is
// cancelled. A nil result means that check did not verify the payment and
// the waiter should ask the ledger itself.
func (c *VerificationCache) WaitForResult(ctx context.Context, key string, done chan struct{}) (*VerificationResult, error) {
	select {
	case <-done:
		return c.Get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the verified result for key, or nil once it has expired
func (c *VerificationCache) Get(key string) *VerificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, exists := c.expiry[key]
	if !exists {
		return nil
	}
	if c.now().After(expiry) {
		delete(c.results, key)
		delete(c.expiry, key)
		return nil
	}
	return c.results[key]
}

// Complete stores a verified result for the cache TTL and releases waiters.
// Unverified results must go through Fail.
func (c *VerificationCache) Complete(key string, result *VerificationResult, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[key] = result
	c.expiry[key] = c.now().Add(c.ttl)
	delete(c.inFlight, key)
	close(done)

	c.cleanupExpiredLocked()
}

// Fail ends a ledger check that did not verify. Nothing is stored, so the
// next check for the same payment goes back to the ledger.
func (c *VerificationCache) Fail(key string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, key)
	close(done)
}

// Len returns the number of cached results, expired ones included
func (c *VerificationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// cleanupExpiredLocked drops expired results; c.mu must be held
func (c *VerificationCache) cleanupExpiredLocked() {
	now := c.now()
	for key, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, key)
			delete(c.expiry, key)
		}
	}
}
