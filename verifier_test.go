package paywall_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/test/mocks/ledger"
)

var expected100 = paywall.ExpectedPayment{Asset: testMint, Amount: 100, Recipient: testRecipient}

func TestVerifier_ExactAmount(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-ok", testPayer, testRecipient, testMint, 100)
	v := paywall.NewLedgerVerifier(fake)

	result, err := v.Verify(context.Background(), "sig-ok", expected100)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "sig-ok", result.TransactionReference)
	assert.Equal(t, uint64(100), result.MatchedAmount)
	assert.Equal(t, testMint, result.MatchedAsset)
	assert.Equal(t, testPayer, result.Payer)
	assert.Equal(t, paywall.TxStatusFinalized, result.Status)
	assert.Equal(t, paywall.VerificationModeDeep, result.Mode)
}

func TestVerifier_Idempotent(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-ok", testPayer, testRecipient, testMint, 100)
	v := paywall.NewLedgerVerifier(fake, paywall.WithVerificationCache(nil))

	first, err := v.Verify(context.Background(), "sig-ok", expected100)
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), "sig-ok", expected100)
	require.NoError(t, err)

	assert.True(t, first.Verified)
	assert.Equal(t, first, second)
}

func TestVerifier_Underpaid(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-short", testPayer, testRecipient, testMint, 99)

	v := paywall.NewLedgerVerifier(fake)
	result, err := v.Verify(context.Background(), "sig-short", expected100)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, paywall.ErrCodePaymentMismatch, result.Reason)
	assert.Equal(t, uint64(99), result.MatchedAmount)
}

func TestVerifier_Tolerance(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-99", testPayer, testRecipient, testMint, 99)
	fake.Transfer("sig-98", testPayer, testRecipient, testMint, 98)

	v := paywall.NewLedgerVerifier(fake, paywall.WithTolerance(1))

	result, err := v.Verify(context.Background(), "sig-99", expected100)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	result, err = v.Verify(context.Background(), "sig-98", expected100)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, paywall.ErrCodePaymentMismatch, result.Reason)
}

func TestVerifier_WrongRecipientOrAsset(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-elsewhere", testPayer, "someone-else", testMint, 100)
	fake.Transfer("sig-other-mint", testPayer, testRecipient, "other-mint", 100)
	v := paywall.NewLedgerVerifier(fake)

	for _, ref := range []string{"sig-elsewhere", "sig-other-mint"} {
		result, err := v.Verify(context.Background(), ref, expected100)
		require.NoError(t, err)
		assert.False(t, result.Verified, ref)
		assert.Equal(t, paywall.ErrCodePaymentMismatch, result.Reason, ref)
	}
}

func TestVerifier_Statuses(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-pending", testPayer, testRecipient, testMint, 100)
	fake.SetStatus("sig-pending", paywall.TxStatusPending)
	fake.Transfer("sig-failed", testPayer, testRecipient, testMint, 100)
	fake.SetStatus("sig-failed", paywall.TxStatusFailed)
	fake.Transfer("sig-confirmed", testPayer, testRecipient, testMint, 100)
	fake.SetStatus("sig-confirmed", paywall.TxStatusConfirmed)

	tests := []struct {
		ref      string
		verified bool
		reason   string
	}{
		{"sig-unknown", false, paywall.ErrCodePaymentNotFound},
		{"sig-pending", false, paywall.ErrCodePaymentPending},
		{"sig-failed", false, paywall.ErrCodeTransactionFailed},
		{"sig-confirmed", true, ""},
	}

	v := paywall.NewLedgerVerifier(fake)
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			result, err := v.Verify(context.Background(), tt.ref, expected100)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, result.Verified)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestVerifier_FailedMetaOnSettledStatus(t *testing.T) {
	fake := ledger.New()
	fake.Put("sig-meta-err", paywall.TxStatusFinalized, &paywall.TransactionRecord{Failed: true})

	result, err := paywall.NewLedgerVerifier(fake).Verify(context.Background(), "sig-meta-err", expected100)
	require.NoError(t, err)
	assert.Equal(t, paywall.ErrCodeTransactionFailed, result.Reason)
}

func TestVerifier_SettledButNotServed(t *testing.T) {
	fake := ledger.New()
	fake.Put("sig-lagging", paywall.TxStatusConfirmed, nil)

	result, err := paywall.NewLedgerVerifier(fake).Verify(context.Background(), "sig-lagging", expected100)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, paywall.ErrCodePaymentPending, result.Reason)
}

func TestVerifier_LightMode(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-any", testPayer, "someone-else", "other-mint", 1)

	v := paywall.NewLedgerVerifier(fake, paywall.WithVerificationMode(paywall.VerificationModeLight))
	result, err := v.Verify(context.Background(), "sig-any", expected100)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, paywall.VerificationModeLight, result.Mode)
	assert.Equal(t, 0, fake.TransactionCalls(), "light mode does not fetch the transaction")
}

func TestVerifier_LedgerUnavailable(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-ok", testPayer, testRecipient, testMint, 100)
	fake.SetOffline(true)
	v := paywall.NewLedgerVerifier(fake)

	_, err := v.Verify(context.Background(), "sig-ok", expected100)
	require.Error(t, err)
	assert.ErrorIs(t, err, paywall.ErrLedgerUnavailable)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)

	// Failures are not cached: the next call succeeds once the ledger is back.
	fake.SetOffline(false)
	result, err := v.Verify(context.Background(), "sig-ok", expected100)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerifier_Timeout(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-slow", testPayer, testRecipient, testMint, 100)
	fake.SetDelay(time.Second)
	v := paywall.NewLedgerVerifier(fake, paywall.WithLedgerTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := v.Verify(context.Background(), "sig-slow", expected100)
	require.Error(t, err)
	assert.ErrorIs(t, err, paywall.ErrLedgerUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestVerifier_EmptyReference(t *testing.T) {
	v := paywall.NewLedgerVerifier(ledger.New())

	_, err := v.Verify(context.Background(), "  ", expected100)
	assert.ErrorIs(t, err, paywall.ErrInvalidReference)
}

func TestVerifier_CacheSharesRoundTrip(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-ok", testPayer, testRecipient, testMint, 100)
	fake.SetDelay(20 * time.Millisecond)
	v := paywall.NewLedgerVerifier(fake)

	var wg sync.WaitGroup
	results := make([]paywall.VerificationResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := v.Verify(context.Background(), "sig-ok", expected100)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.True(t, r.Verified)
	}
	assert.Equal(t, 1, fake.StatusCalls())
}

func TestVerifier_CacheKeyedByExpectation(t *testing.T) {
	fake := ledger.New()
	fake.Transfer("sig-100", testPayer, testRecipient, testMint, 100)
	v := paywall.NewLedgerVerifier(fake)

	result, err := v.Verify(context.Background(), "sig-100", expected100)
	require.NoError(t, err)
	require.True(t, result.Verified)

	pricier := expected100
	pricier.Amount = 200
	result, err = v.Verify(context.Background(), "sig-100", pricier)
	require.NoError(t, err)
	assert.False(t, result.Verified, "a cached cheap verification must not satisfy a pricier resource")
}
