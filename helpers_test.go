package paywall_test

import (
	"testing"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/redemption"
	"github.com/lalitcap23/pay-per-api/test/mocks/ledger"
	"github.com/lalitcap23/pay-per-api/tokenstore"
)

const (
	testMint      = "usdc-mint"
	testRecipient = "shop-wallet"
	testPayer     = "payer-wallet"
)

func jokesConfig() paywall.ResourceConfig {
	return paywall.ResourceConfig{
		Name:           "jokes",
		Path:           "/api/jokes",
		Description:    "Access to premium jokes",
		Price:          paywall.Price{Amount: 100, Token: "USDC"},
		Asset:          testMint,
		Recipient:      testRecipient,
		Network:        "devnet",
		FacilitatorURL: "https://facilitator.corbits.dev",
	}
}

func quotesConfig() paywall.ResourceConfig {
	cfg := jokesConfig()
	cfg.Name = "quotes"
	cfg.Path = "/api/quotes"
	cfg.Description = "Access to premium quotes"
	cfg.Price.Amount = 200
	return cfg
}

type fixture struct {
	ledger      *ledger.Fake
	redemptions *redemption.Memory
	service     *paywall.Service
	jokes       *paywall.Gate
	quotes      *paywall.Gate
}

func newFixture(t *testing.T, gateOpts ...paywall.GateOption) *fixture {
	t.Helper()
	return newFixtureWith(t, paywall.WithGateOptions(gateOpts...))
}

func newFixtureWith(t *testing.T, opts ...paywall.ServiceOption) *fixture {
	t.Helper()

	f := &fixture{
		ledger:      ledger.New(),
		redemptions: redemption.NewMemory(),
	}
	verifier := paywall.NewLedgerVerifier(f.ledger)
	issuer := paywall.NewIssuer(f.redemptions)
	f.service = paywall.NewService(verifier, issuer, opts...)

	var err error
	f.jokes, err = f.service.AddResource(jokesConfig(), tokenstore.NewMemory())
	if err != nil {
		t.Fatalf("AddResource(jokes): %v", err)
	}
	f.quotes, err = f.service.AddResource(quotesConfig(), tokenstore.NewMemory())
	if err != nil {
		t.Fatalf("AddResource(quotes): %v", err)
	}
	return f
}
