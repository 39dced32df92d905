package paywall_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/tokenstore"
)

func TestService_FullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.service.Admit("/api/jokes", "")
	require.Equal(t, paywall.DecisionDeny, d.Kind)
	assert.Equal(t, paywall.Price{Amount: 100, Token: "USDC"}, d.Descriptor.Price)

	f.ledger.Transfer("sig-paid", testPayer, testRecipient, testMint, 100)
	resp, err := f.service.VerifyAndIssue(ctx, paywall.VerifyRequest{
		Reference: "sig-paid",
		PaymentID: d.Descriptor.PaymentID,
	})
	require.NoError(t, err)
	assert.True(t, resp.Result.Verified)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jokes", resp.Resource.Name)

	assert.True(t, f.service.Admit("jokes", resp.Token.String()).Allowed())
	assert.False(t, f.service.Admit("jokes", resp.Token.String()).Allowed())
}

func TestService_UnknownReference(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{Reference: "sig-nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, paywall.NewPaymentError(paywall.ErrCodePaymentNotFound, "", nil))
	assert.False(t, resp.Result.Verified)
	assert.Empty(t, resp.Token)
	assert.Equal(t, 0, f.jokes.Store().Len())
	assert.Equal(t, 0, f.redemptions.Len())
}

func TestService_TargetsResourceStore(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transfer("sig-quote", testPayer, testRecipient, testMint, 200)

	resp, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{
		Reference: "sig-quote",
		Resource:  "/api/quotes",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.quotes.Store().Len())
	assert.Equal(t, 0, f.jokes.Store().Len())
	assert.False(t, f.service.Admit("jokes", resp.Token.String()).Allowed(), "a quotes token does not unlock jokes")
	assert.True(t, f.service.Admit("quotes", resp.Token.String()).Allowed())
}

func TestService_JokesPaymentCannotBuyQuotes(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transfer("sig-cheap", testPayer, testRecipient, testMint, 100)

	_, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{
		Reference: "sig-cheap",
		Resource:  "quotes",
	})
	require.Error(t, err)
	assert.Equal(t, paywall.ErrCodePaymentMismatch, paywall.AsPaymentError(err).Code)
	assert.Equal(t, 0, f.quotes.Store().Len())
}

func TestService_ExpectedAmountOnlyRaises(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transfer("sig-100", testPayer, testRecipient, testMint, 100)

	_, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{
		Reference:      "sig-100",
		ExpectedAmount: 150,
	})
	require.Error(t, err)
	assert.Equal(t, paywall.ErrCodePaymentMismatch, paywall.AsPaymentError(err).Code)

	resp, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{
		Reference:      "sig-100",
		ExpectedAmount: 1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Result.Verified)
}

func TestService_UnknownResource(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{
		Reference: "sig",
		Resource:  "/api/weather",
	})
	assert.ErrorIs(t, err, paywall.ErrUnknownResource)

	d := f.service.Admit("/api/weather", "")
	assert.Equal(t, paywall.DecisionMisconfigured, d.Kind)
	assert.Equal(t, paywall.ErrCodeUnknownResource, d.Err.Code)
}

func TestService_Misconfigured(t *testing.T) {
	f := newFixture(t)
	cfg := jokesConfig()
	cfg.Name = "broken"
	cfg.Path = "/api/broken"
	cfg.Price.Amount = 0
	_, err := f.service.AddResource(cfg, tokenstore.NewMemory())
	require.NoError(t, err)

	d := f.service.Admit("broken", "")
	assert.Equal(t, paywall.DecisionMisconfigured, d.Kind)

	f.ledger.Transfer("sig", testPayer, testRecipient, testMint, 100)
	_, err = f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{Reference: "sig", Resource: "broken"})
	assert.Equal(t, paywall.ErrCodeConfiguration, paywall.AsPaymentError(err).Code)
}

func TestService_AddResourceDuplicates(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AddResource(jokesConfig(), tokenstore.NewMemory())
	assert.Error(t, err)

	cfg := jokesConfig()
	cfg.Name = "jokes2"
	_, err = f.service.AddResource(cfg, tokenstore.NewMemory())
	assert.Error(t, err, "path collision")

	_, err = f.service.AddResource(paywall.ResourceConfig{Path: "/x"}, tokenstore.NewMemory())
	assert.ErrorIs(t, err, paywall.ErrMissingName)

	assert.Len(t, f.service.Gates(), 2)
	assert.Equal(t, "/api/jokes", f.service.Gates()[0].Config().Path)
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	f.ledger.Transfer("sig", testPayer, testRecipient, testMint, 100)

	resp, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{Reference: "sig"})
	require.NoError(t, err)

	// Already valid after verification; registering again is harmless.
	require.NoError(t, f.service.Register(context.Background(), "/api/jokes", "Bearer "+resp.Token.String()))
	assert.Equal(t, 1, f.jokes.Store().Len())

	assert.ErrorIs(t, f.service.Register(context.Background(), "/api/quotes", resp.Token.String()), paywall.ErrUnknownToken)
	assert.ErrorIs(t, f.service.Register(context.Background(), "/api/nowhere", resp.Token.String()), paywall.ErrUnknownResource)
}

func TestService_PersistentPolicy(t *testing.T) {
	f := newFixture(t, paywall.WithTokenPolicy(paywall.TokenPolicyPersistent))
	f.ledger.Transfer("sig", testPayer, testRecipient, testMint, 100)

	resp, err := f.service.VerifyAndIssue(context.Background(), paywall.VerifyRequest{Reference: "sig"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, f.service.Admit("jokes", resp.Token.String()).Allowed())
	}
}
