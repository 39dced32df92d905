package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	paywall "github.com/lalitcap23/pay-per-api"
)

// Response headers
const (
	HeaderAuthorization   = "Authorization"
	HeaderWWWAuthenticate = "WWW-Authenticate"
	HeaderAcceptPayment   = "Accept-Payment"
	HeaderFacilitator     = "X-Faremeter-Facilitator"

	AcceptPaymentSolanaPay = "solana-pay"

	defaultDescription = "Payment required to access this resource"
)

// PaymentRequiredBody is the 402 body. Field order is part of the wire format.
type PaymentRequiredBody struct {
	Error          string                 `json:"error"`
	Message        string                 `json:"message"`
	Price          paywall.Price          `json:"price"`
	PaymentID      string                 `json:"paymentId"`
	Network        paywall.Network        `json:"network"`
	PaymentDetails paywall.PaymentDetails `json:"paymentDetails"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
}

// ErrorBody is returned for every non-402 failure
type ErrorBody struct {
	Error   string                 `json:"error"`
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// VerifyFailureBody is returned when the verify endpoint does not issue a token
type VerifyFailureBody struct {
	Verified bool                   `json:"verified"`
	Error    string                 `json:"error"`
	Reason   string                 `json:"reason"`
	Status   paywall.TxStatus       `json:"status,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Usage explains how to spend an issued token
type Usage struct {
	Endpoint string `json:"endpoint"`
	Header   string `json:"header"`
	Example  string `json:"example"`
}

// VerifySuccessBody is returned when a token has been issued
type VerifySuccessBody struct {
	Verified             bool   `json:"verified"`
	Token                string `json:"token"`
	TransactionReference string `json:"transactionReference"`
	// TransactionSignature mirrors TransactionReference for older clients
	TransactionSignature string `json:"transactionSignature"`
	PaymentID            string `json:"paymentId"`
	Endpoint             string `json:"endpoint"`
	Message              string `json:"message"`
	Usage                Usage  `json:"usage"`
}

// PaymentRequired renders a 402 challenge
func PaymentRequired(d *paywall.PaymentDescriptor) *Response {
	description := d.Description
	if description == "" {
		description = defaultDescription
	}

	headers := map[string]string{
		HeaderWWWAuthenticate: fmt.Sprintf(`Payment realm="%s", charset="UTF-8"`, quoteRealm(description)),
		HeaderAcceptPayment:   AcceptPaymentSolanaPay,
	}
	if d.FacilitatorURL != "" {
		headers[HeaderFacilitator] = d.FacilitatorURL
	}

	return &Response{
		Status:  http.StatusPaymentRequired,
		Headers: headers,
		Body: PaymentRequiredBody{
			Error:          "Payment Required",
			Message:        description,
			Price:          d.Price,
			PaymentID:      d.PaymentID,
			Network:        d.Network,
			PaymentDetails: d.PaymentDetails,
			ExpiresAt:      d.ExpiresAt,
		},
	}
}

// ErrorResponse renders a PaymentError with its mapped status
func ErrorResponse(err error) *Response {
	pe := paywall.AsPaymentError(err)
	return &Response{
		Status: pe.HTTPStatus(),
		Body: ErrorBody{
			Error:   publicMessage(pe),
			Reason:  pe.Code,
			Details: pe.Details,
		},
	}
}

// publicMessage hides internal error text from clients
func publicMessage(pe *paywall.PaymentError) string {
	if pe.Code == paywall.ErrCodeInternal {
		return "Internal server error"
	}
	return pe.Message
}

func quoteRealm(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
