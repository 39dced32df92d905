package paywall

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultVerifyResource is the resource a verification targets when none is named
const DefaultVerifyResource = "/api/jokes"

// Service ties the per-resource gates to one verifier and one issuer
type Service struct {
	mu       sync.RWMutex
	gates    map[string]*Gate // by name
	paths    map[string]*Gate // by path
	verifier Verifier
	issuer   *Issuer
	gateOpts []GateOption
	logger   *slog.Logger

	beforeVerifyHooks    []BeforeVerifyHook
	afterVerifyHooks     []AfterVerifyHook
	onVerifyFailureHooks []OnVerifyFailureHook
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithGateOptions applies opts to every gate the service creates
func WithGateOptions(opts ...GateOption) ServiceOption {
	return func(s *Service) {
		s.gateOpts = append(s.gateOpts, opts...)
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a service with no resources
func NewService(verifier Verifier, issuer *Issuer, opts ...ServiceOption) *Service {
	s := &Service{
		gates:    make(map[string]*Gate),
		paths:    make(map[string]*Gate),
		verifier: verifier,
		issuer:   issuer,
		logger:   slog.Default().With("component", "paywall"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddResource registers a resource with its own token store.
// Only the name and path are required here; pricing problems surface
// as Misconfigured decisions at request time.
func (s *Service) AddResource(cfg ResourceConfig, store TokenStore) (*Gate, error) {
	if cfg.Name == "" {
		return nil, ErrMissingName
	}
	if cfg.Path == "" {
		return nil, ErrMissingPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.gates[cfg.Name]; exists {
		return nil, fmt.Errorf("resource %q already registered", cfg.Name)
	}
	if _, exists := s.paths[cfg.Path]; exists {
		return nil, fmt.Errorf("path %q already registered", cfg.Path)
	}

	gate := NewGate(cfg, store, s.gateOpts...)
	s.gates[cfg.Name] = gate
	s.paths[cfg.Path] = gate

	if err := gate.Check(); err != nil {
		s.logger.Warn("resource is misconfigured and will answer 500", "resource", cfg.Name, "error", err)
	}
	return gate, nil
}

// Gate resolves a resource by name or path
func (s *Service) Gate(ref string) (*Gate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.gates[ref]; ok {
		return g, true
	}
	if g, ok := s.paths[ref]; ok {
		return g, true
	}
	if !strings.HasPrefix(ref, "/") {
		g, ok := s.paths["/"+ref]
		return g, ok
	}
	return nil, false
}

// Gates returns all gates ordered by path
func (s *Service) Gates() []*Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gates := make([]*Gate, 0, len(s.gates))
	for _, g := range s.gates {
		gates = append(gates, g)
	}
	sort.Slice(gates, func(i, j int) bool {
		return gates[i].config.Path < gates[j].config.Path
	})
	return gates
}

// Issuer returns the service issuer
func (s *Service) Issuer() *Issuer {
	return s.issuer
}

// Admit runs the named resource's gate on a bare credential
func (s *Service) Admit(resource, credential string) Decision {
	gate, ok := s.Gate(resource)
	if !ok {
		return Decision{Kind: DecisionMisconfigured, Err: NewPaymentError(ErrCodeUnknownResource, "resource not found", map[string]interface{}{
			"resource": resource,
		})}
	}
	return gate.Admit(credential)
}

// VerifyRequest asks for a payment to be verified and exchanged for a token
type VerifyRequest struct {
	Reference string
	PaymentID string
	// ExpectedAmount can only raise the resource price, never lower it
	ExpectedAmount uint64
	// Resource is a resource name or path; empty selects DefaultVerifyResource
	Resource string
}

// VerifyResponse carries the issued token and the verification behind it
type VerifyResponse struct {
	Token    AccessToken
	Reused   bool
	Result   VerificationResult
	Resource ResourceConfig
}

// VerifyAndIssue verifies a payment for a resource and, on success, mints a
// token into that resource's store in the same step. Registered verify
// hooks run around the ledger check.
//
// Failures are *PaymentError values: payment_not_found, payment_pending,
// payment_mismatch and transaction_failed carry the result; others
// (ledger_unavailable, unknown_resource, configuration_error,
// verification_aborted, payment_already_redeemed) do not.
func (s *Service) VerifyAndIssue(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	target := req.Resource
	if target == "" {
		target = DefaultVerifyResource
	}
	gate, ok := s.Gate(target)
	if !ok {
		return VerifyResponse{}, NewPaymentError(ErrCodeUnknownResource, "resource not found", map[string]interface{}{
			"resource": target,
		})
	}
	cfg := gate.Config()
	if err := gate.Check(); err != nil {
		return VerifyResponse{Resource: cfg}, configError(cfg.Name, err)
	}

	expected := cfg.Expected()
	if req.ExpectedAmount > expected.Amount {
		expected.Amount = req.ExpectedAmount
	}

	hookCtx := VerifyContext{
		Ctx:       ctx,
		Request:   req,
		Resource:  cfg,
		Expected:  expected,
		Timestamp: time.Now(),
	}
	if err := s.runBeforeVerify(hookCtx); err != nil {
		return VerifyResponse{Resource: cfg}, err
	}

	result, err := s.verifier.Verify(ctx, req.Reference, expected)
	if err == nil && !result.Verified {
		s.logger.Info("payment not verified",
			"reference", result.TransactionReference,
			"payment_id", req.PaymentID,
			"reason", result.Reason,
		)
		err = NewPaymentError(result.Reason, failureMessage(result.Reason), map[string]interface{}{
			"transactionReference": result.TransactionReference,
			"status":               string(result.Status),
		})
	}
	if err != nil {
		recovered, ok := s.runOnVerifyFailure(VerifyFailureContext{
			VerifyContext: hookCtx,
			Result:        result,
			Error:         err,
			Duration:      time.Since(hookCtx.Timestamp),
		})
		if !ok {
			return VerifyResponse{Result: result, Resource: cfg}, err
		}
		s.logger.Info("verification failure recovered by hook", "reference", recovered.TransactionReference)
		result = recovered
	}

	s.runAfterVerify(VerifyResultContext{
		VerifyContext: hookCtx,
		Result:        result,
		Duration:      time.Since(hookCtx.Timestamp),
	})
	resp := VerifyResponse{Result: result, Resource: cfg}

	issued, err := s.issuer.Issue(ctx, gate, result)
	if err != nil {
		return resp, err
	}
	resp.Token = issued.Token
	resp.Reused = issued.Reused
	return resp, nil
}

// Register makes a previously minted token valid for a resource
func (s *Service) Register(ctx context.Context, resource, token string) error {
	gate, ok := s.Gate(resource)
	if !ok {
		return ErrUnknownResource
	}
	return s.issuer.Register(ctx, gate, ParseCredential(token))
}

func failureMessage(reason string) string {
	switch reason {
	case ErrCodePaymentNotFound:
		return "transaction not found on the ledger"
	case ErrCodePaymentPending:
		return "transaction is not confirmed yet, retry shortly"
	case ErrCodePaymentMismatch:
		return "transaction does not pay the expected amount to the expected recipient"
	case ErrCodeTransactionFailed:
		return "transaction failed on the ledger"
	default:
		return "payment verification failed"
	}
}
