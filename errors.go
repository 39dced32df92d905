package paywall

import (
	"errors"
	"fmt"
	"net/http"
)

// PaymentError represents a paywall failure with a machine-readable code
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Is matches any PaymentError with the same code
func (e *PaymentError) Is(target error) bool {
	var t *PaymentError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the error code to a response status
func (e *PaymentError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNoCredential, ErrCodeInvalidCredential:
		return http.StatusPaymentRequired
	case ErrCodePaymentNotFound, ErrCodePaymentPending, ErrCodePaymentMismatch,
		ErrCodeTransactionFailed, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeAlreadyRedeemed:
		return http.StatusConflict
	case ErrCodeVerificationAborted:
		return http.StatusForbidden
	case ErrCodeUnknownResource, ErrCodeUnknownToken:
		return http.StatusNotFound
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeLedgerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error codes
const (
	ErrCodeNoCredential        = "no_credential"
	ErrCodeInvalidCredential   = "invalid_credential"
	ErrCodeConfiguration       = "configuration_error"
	ErrCodePaymentNotFound     = "payment_not_found"
	ErrCodePaymentPending      = "payment_pending"
	ErrCodePaymentMismatch     = "payment_mismatch"
	ErrCodeTransactionFailed   = "transaction_failed"
	ErrCodeLedgerUnavailable   = "ledger_unavailable"
	ErrCodeInvalidRequest      = "invalid_request"
	ErrCodeRequestTooLarge     = "request_too_large"
	ErrCodeVerificationAborted = "verification_aborted"
	ErrCodeAlreadyRedeemed     = "payment_already_redeemed"
	ErrCodeUnknownResource     = "unknown_resource"
	ErrCodeUnknownToken        = "unknown_token"
	ErrCodeUnverifiedPayment   = "unverified_payment"
	ErrCodeInternal            = "internal_error"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// AsPaymentError extracts a PaymentError from err, wrapping unknown errors as internal
func AsPaymentError(err error) *PaymentError {
	if err == nil {
		return nil
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	return &PaymentError{Code: ErrCodeInternal, Message: "internal error", Cause: err}
}

// Config validation errors
var (
	ErrMissingName        = NewPaymentError(ErrCodeConfiguration, "resource name is required", nil)
	ErrMissingPath        = NewPaymentError(ErrCodeConfiguration, "resource path is required", nil)
	ErrMissingPrice       = NewPaymentError(ErrCodeConfiguration, "price amount is required", nil)
	ErrMissingAssetSymbol = NewPaymentError(ErrCodeConfiguration, "price token symbol is required", nil)
	ErrMissingAsset       = NewPaymentError(ErrCodeConfiguration, "asset mint is required", nil)
	ErrMissingRecipient   = NewPaymentError(ErrCodeConfiguration, "recipient is required", nil)
	ErrMissingNetwork     = NewPaymentError(ErrCodeConfiguration, "network is required", nil)
)

// Payment processing errors
var (
	ErrUnverifiedPayment = NewPaymentError(ErrCodeUnverifiedPayment, "payment has not been verified", nil)
	ErrAlreadyRedeemed   = NewPaymentError(ErrCodeAlreadyRedeemed, "payment has already been redeemed", nil)
	ErrUnknownToken      = NewPaymentError(ErrCodeUnknownToken, "token was not issued for this resource", nil)
	ErrUnknownResource   = NewPaymentError(ErrCodeUnknownResource, "resource not found", nil)
	ErrLedgerUnavailable = NewPaymentError(ErrCodeLedgerUnavailable, "ledger unavailable", nil)
	ErrInvalidReference  = NewPaymentError(ErrCodeInvalidRequest, "transaction reference is required", nil)
)

// configError wraps a validation failure with the resource it belongs to
func configError(resource string, err error) *PaymentError {
	pe := AsPaymentError(err)
	details := map[string]interface{}{"resource": resource}
	for k, v := range pe.Details {
		details[k] = v
	}
	return &PaymentError{
		Code:    ErrCodeConfiguration,
		Message: pe.Message,
		Details: details,
		Cause:   pe.Cause,
	}
}

// ledgerUnavailable wraps a transport failure against the ledger
func ledgerUnavailable(reference string, err error) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeLedgerUnavailable,
		Message: "could not reach the ledger, try again",
		Details: map[string]interface{}{"transactionReference": reference},
		Cause:   err,
	}
}
