package paywall

import (
	"context"
	"time"
)

// ============================================================================
// Verify Hook Context Types
// ============================================================================

// VerifyContext describes a verification about to run against the ledger
type VerifyContext struct {
	Ctx       context.Context
	Request   VerifyRequest
	Resource  ResourceConfig
	Expected  ExpectedPayment
	Timestamp time.Time
}

// VerifyResultContext carries a verified payment before its token is issued
type VerifyResultContext struct {
	VerifyContext
	Result   VerificationResult
	Duration time.Duration
}

// VerifyFailureContext carries a verification that did not succeed. Error is
// a ledger transport failure or the *PaymentError describing an unverified
// result; Result is zero for the former.
type VerifyFailureContext struct {
	VerifyContext
	Result   VerificationResult
	Error    error
	Duration time.Duration
}

// ============================================================================
// Verify Hook Result Types
// ============================================================================

// BeforeHookResult aborts the verification when Abort is set
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// VerifyFailureHookResult replaces a failed verification when Recovered is
// set. Only a Verified result with a transaction reference leads to issuance.
type VerifyFailureHookResult struct {
	Recovered bool
	Result    VerificationResult
}

// ============================================================================
// Verify Hook Function Types
// ============================================================================

// BeforeVerifyHook runs before the ledger is consulted. An error or an
// Abort result stops the verification without touching the ledger.
type BeforeVerifyHook func(VerifyContext) (*BeforeHookResult, error)

// AfterVerifyHook runs after a successful verification, before a token is
// minted. Errors are logged and do not affect issuance.
type AfterVerifyHook func(VerifyResultContext) error

// OnVerifyFailureHook runs when verification fails. The first hook that
// recovers supplies the result used instead.
type OnVerifyFailureHook func(VerifyFailureContext) (*VerifyFailureHookResult, error)

// ============================================================================
// Verify Hook Registration Options
// ============================================================================

// WithBeforeVerifyHook registers a hook to run before payment verification
func WithBeforeVerifyHook(hook BeforeVerifyHook) ServiceOption {
	return func(s *Service) {
		s.beforeVerifyHooks = append(s.beforeVerifyHooks, hook)
	}
}

// WithAfterVerifyHook registers a hook to run after successful payment verification
func WithAfterVerifyHook(hook AfterVerifyHook) ServiceOption {
	return func(s *Service) {
		s.afterVerifyHooks = append(s.afterVerifyHooks, hook)
	}
}

// WithOnVerifyFailureHook registers a hook to run when payment verification fails
func WithOnVerifyFailureHook(hook OnVerifyFailureHook) ServiceOption {
	return func(s *Service) {
		s.onVerifyFailureHooks = append(s.onVerifyFailureHooks, hook)
	}
}

// ============================================================================
// Hook Execution
// ============================================================================

func (s *Service) runBeforeVerify(hookCtx VerifyContext) error {
	for _, hook := range s.beforeVerifyHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return err
		}
		if result != nil && result.Abort {
			reason := result.Reason
			if reason == "" {
				reason = "verification aborted"
			}
			return NewPaymentError(ErrCodeVerificationAborted, reason, map[string]interface{}{
				"transactionReference": hookCtx.Request.Reference,
			})
		}
	}
	return nil
}

func (s *Service) runAfterVerify(resultCtx VerifyResultContext) {
	for _, hook := range s.afterVerifyHooks {
		if err := hook(resultCtx); err != nil {
			s.logger.Warn("after-verify hook failed", "reference", resultCtx.Result.TransactionReference, "error", err)
		}
	}
}

// runOnVerifyFailure returns the first recovered result, if any
func (s *Service) runOnVerifyFailure(failureCtx VerifyFailureContext) (VerificationResult, bool) {
	for _, hook := range s.onVerifyFailureHooks {
		result, err := hook(failureCtx)
		if err != nil {
			s.logger.Warn("verify-failure hook failed", "reference", failureCtx.Request.Reference, "error", err)
			continue
		}
		if result != nil && result.Recovered && result.Result.Verified && result.Result.TransactionReference != "" {
			return result.Result, true
		}
	}
	return VerificationResult{}, false
}
