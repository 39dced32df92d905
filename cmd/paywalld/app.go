package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/config"
	"github.com/lalitcap23/pay-per-api/content"
	paywallhttp "github.com/lalitcap23/pay-per-api/http"
	"github.com/lalitcap23/pay-per-api/ledger/solana"
	"github.com/lalitcap23/pay-per-api/redemption"
	"github.com/lalitcap23/pay-per-api/tokenstore"
)

// app holds the wired components of one paywalld process
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	verifier *paywall.LedgerVerifier
	service  *paywall.Service
	handler  *paywallhttp.Handler
	closers  []io.Closer
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newVerifier builds the ledger verifier from config
func newVerifier(cfg *config.Config, logger *slog.Logger) (*paywall.LedgerVerifier, error) {
	mode, err := cfg.VerificationMode()
	if err != nil {
		return nil, err
	}

	client := solana.NewClient(cfg.Ledger.RPCURL,
		solana.WithCommitment(rpc.CommitmentType(cfg.Ledger.Commitment)),
		solana.WithLogger(logger.With("component", "ledger")),
	)

	opts := []paywall.VerifierOption{
		paywall.WithVerificationMode(mode),
		paywall.WithTolerance(cfg.Ledger.Tolerance),
		paywall.WithVerifierLogger(logger.With("component", "verifier")),
	}
	if cfg.Ledger.Timeout > 0 {
		opts = append(opts, paywall.WithLedgerTimeout(cfg.Ledger.Timeout))
	}
	if cfg.Ledger.CacheTTL > 0 {
		opts = append(opts, paywall.WithVerificationCache(paywall.NewVerificationCache(cfg.Ledger.CacheTTL)))
	}
	return paywall.NewLedgerVerifier(client, opts...), nil
}

func newRedemptionStore(cfg *config.Config) (paywall.RedemptionStore, io.Closer, error) {
	switch cfg.Redemption.Backend {
	case "sqlite":
		store, err := redemption.NewSQLite(cfg.Redemption.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redemption db: %w", err)
		}
		return store, store, nil
	default:
		return redemption.NewMemory(), nil, nil
	}
}

func newTokenStore(cfg *config.Config) *tokenstore.Memory {
	var opts []tokenstore.Option
	if cfg.Tokens.MaxSize > 0 {
		opts = append(opts, tokenstore.WithMaxSize(cfg.Tokens.MaxSize))
	}
	if cfg.Tokens.TTL > 0 {
		opts = append(opts, tokenstore.WithTTL(cfg.Tokens.TTL))
	}
	return tokenstore.NewMemory(opts...)
}

// contentFor returns the built-in content of the named resource
func contentFor(name string, jokes *content.Jokes) (paywallhttp.ContentFunc, bool) {
	switch name {
	case "jokes":
		return func(ctx context.Context) (interface{}, error) {
			return jokes.Get(ctx)
		}, true
	case "quotes":
		return func(context.Context) (interface{}, error) {
			return content.RandomQuote(time.Now()), nil
		}, true
	}
	return nil, false
}

// auditVerified records every verified payment before its token is minted
func auditVerified(logger *slog.Logger) paywall.AfterVerifyHook {
	return func(rc paywall.VerifyResultContext) error {
		logger.Info("payment verified",
			"resource", rc.Resource.Name,
			"reference", rc.Result.TransactionReference,
			"payer", rc.Result.Payer,
			"amount", rc.Result.MatchedAmount,
			"mode", rc.Result.Mode,
			"duration", rc.Duration,
		)
		return nil
	}
}

// auditFailure records failed verifications; it never recovers them
func auditFailure(logger *slog.Logger) paywall.OnVerifyFailureHook {
	return func(fc paywall.VerifyFailureContext) (*paywall.VerifyFailureHookResult, error) {
		logger.Info("payment rejected",
			"resource", fc.Resource.Name,
			"reference", fc.Request.Reference,
			"reason", paywall.AsPaymentError(fc.Error).Code,
			"duration", fc.Duration,
		)
		return nil, nil
	}
}

// newApp wires ledger, stores, service and handler from cfg
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.verifier = verifier

	redemptions, closer, err := newRedemptionStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	policy, err := cfg.TokenPolicy()
	if err != nil {
		return nil, err
	}

	a.service = paywall.NewService(verifier,
		paywall.NewIssuer(redemptions, paywall.WithIssuerLogger(logger.With("component", "issuer"))),
		paywall.WithServiceLogger(logger.With("component", "paywall")),
		paywall.WithAfterVerifyHook(auditVerified(logger.With("component", "audit"))),
		paywall.WithOnVerifyFailureHook(auditFailure(logger.With("component", "audit"))),
		paywall.WithGateOptions(
			paywall.WithTokenPolicy(policy),
			paywall.WithAddressValidator(solana.ValidateAddress),
			paywall.WithGateLogger(logger.With("component", "gate")),
		),
	)

	jokes := content.NewJokes()
	handlerOpts := []paywallhttp.HandlerOption{
		paywallhttp.WithBaseURL(cfg.Server.BaseURL),
		paywallhttp.WithVersion(version),
		paywallhttp.WithLogger(logger.With("component", "http")),
		paywallhttp.WithFreeContent("/api/jokes/free", func(context.Context) (interface{}, error) {
			return content.Free(time.Now()), nil
		}),
	}

	for _, rc := range cfg.Resources {
		if _, err := a.service.AddResource(rc, newTokenStore(cfg)); err != nil {
			a.Close()
			return nil, fmt.Errorf("adding resource %s: %w", rc.Name, err)
		}
		if fn, ok := contentFor(rc.Name, jokes); ok {
			handlerOpts = append(handlerOpts, paywallhttp.WithContent(rc.Name, fn))
		}
	}

	a.handler = paywallhttp.NewHandler(a.service, handlerOpts...)
	return a, nil
}
