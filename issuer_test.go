package paywall_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/redemption"
	"github.com/lalitcap23/pay-per-api/tokenstore"
)

func verified(ref string) paywall.VerificationResult {
	return paywall.VerificationResult{
		Verified:             true,
		TransactionReference: ref,
		Status:               paywall.TxStatusFinalized,
		MatchedAmount:        100,
		MatchedAsset:         testMint,
		Payer:                testPayer,
	}
}

func TestIssuer_RejectsUnverified(t *testing.T) {
	store := tokenstore.NewMemory()
	gate := paywall.NewGate(jokesConfig(), store)
	issuer := paywall.NewIssuer(redemption.NewMemory())

	_, err := issuer.Issue(context.Background(), gate, paywall.VerificationResult{
		TransactionReference: "sig1",
		Reason:               paywall.ErrCodePaymentMismatch,
	})
	assert.ErrorIs(t, err, paywall.ErrUnverifiedPayment)
	assert.Equal(t, 0, store.Len())
}

func TestIssuer_IssueAdmitsOnce(t *testing.T) {
	store := tokenstore.NewMemory()
	gate := paywall.NewGate(jokesConfig(), store)
	issuer := paywall.NewIssuer(redemption.NewMemory())

	issued, err := issuer.Issue(context.Background(), gate, verified("sig1"))
	require.NoError(t, err)
	assert.False(t, issued.Reused)
	assert.Equal(t, 1, store.Len())

	assert.True(t, gate.Admit(issued.Token.String()).Allowed())
	assert.False(t, gate.Admit(issued.Token.String()).Allowed())
}

func TestIssuer_OnePaymentOneToken(t *testing.T) {
	store := tokenstore.NewMemory()
	gate := paywall.NewGate(jokesConfig(), store)
	issuer := paywall.NewIssuer(redemption.NewMemory())
	ctx := context.Background()

	first, err := issuer.Issue(ctx, gate, verified("sig1"))
	require.NoError(t, err)

	// Retry while the token is still live hands back the same token.
	again, err := issuer.Issue(ctx, gate, verified("sig1"))
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, first.Token, again.Token)
	assert.Equal(t, 1, store.Len())

	// Once spent, the payment cannot be redeemed again.
	require.True(t, gate.Admit(first.Token.String()).Allowed())
	_, err = issuer.Issue(ctx, gate, verified("sig1"))
	assert.ErrorIs(t, err, paywall.ErrAlreadyRedeemed)
}

func TestIssuer_ReferenceCannotUnlockTwoResources(t *testing.T) {
	jokes := paywall.NewGate(jokesConfig(), tokenstore.NewMemory())
	quotes := paywall.NewGate(quotesConfig(), tokenstore.NewMemory())
	issuer := paywall.NewIssuer(redemption.NewMemory())
	ctx := context.Background()

	_, err := issuer.Issue(ctx, quotes, verified("sig1"))
	require.NoError(t, err)

	_, err = issuer.Issue(ctx, jokes, verified("sig1"))
	assert.ErrorIs(t, err, paywall.ErrAlreadyRedeemed)
	assert.Equal(t, 0, jokes.Store().Len())
}

func TestIssuer_GeneratorFailure(t *testing.T) {
	gate := paywall.NewGate(jokesConfig(), tokenstore.NewMemory())
	issuer := paywall.NewIssuer(redemption.NewMemory(), paywall.WithTokenGenerator(func() (paywall.AccessToken, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := issuer.Issue(context.Background(), gate, verified("sig1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestIssuer_DeferredRegistration(t *testing.T) {
	store := tokenstore.NewMemory()
	gate := paywall.NewGate(jokesConfig(), store)
	issuer := paywall.NewIssuer(redemption.NewMemory(), paywall.WithDeferredRegistration())
	ctx := context.Background()

	issued, err := issuer.Issue(ctx, gate, verified("sig1"))
	require.NoError(t, err)
	assert.False(t, gate.Admit(issued.Token.String()).Allowed(), "not valid before registration")

	// Retrying the verification before registering hands back the same token.
	again, err := issuer.Issue(ctx, gate, verified("sig1"))
	require.NoError(t, err)
	assert.Equal(t, issued.Token, again.Token)

	require.NoError(t, issuer.Register(ctx, gate, issued.Token.String()))
	require.NoError(t, issuer.Register(ctx, gate, issued.Token.String()), "registering a live token is a no-op")
	assert.Equal(t, 1, store.Len())

	assert.True(t, gate.Admit(issued.Token.String()).Allowed())

	// A spent token cannot be registered back into validity.
	err = issuer.Register(ctx, gate, issued.Token.String())
	assert.ErrorIs(t, err, paywall.ErrUnknownToken)
}

func TestIssuer_RegisterRejectsForeignTokens(t *testing.T) {
	jokes := paywall.NewGate(jokesConfig(), tokenstore.NewMemory())
	quotes := paywall.NewGate(quotesConfig(), tokenstore.NewMemory())
	issuer := paywall.NewIssuer(redemption.NewMemory(), paywall.WithDeferredRegistration())
	ctx := context.Background()

	forged, err := paywall.GenerateToken()
	require.NoError(t, err)
	assert.ErrorIs(t, issuer.Register(ctx, jokes, forged.String()), paywall.ErrUnknownToken)
	assert.ErrorIs(t, issuer.Register(ctx, jokes, ""), paywall.ErrUnknownToken)

	issued, err := issuer.Issue(ctx, quotes, verified("sig1"))
	require.NoError(t, err)
	assert.ErrorIs(t, issuer.Register(ctx, jokes, issued.Token.String()), paywall.ErrUnknownToken)
	assert.Equal(t, 0, jokes.Store().Len())
}
