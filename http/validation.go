package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	paywall "github.com/lalitcap23/pay-per-api"
)

// Request body schemas
const (
	verifyRequestSchema = `{
		"type": "object",
		"properties": {
			"transactionReference": {"type": "string", "minLength": 1},
			"signature": {"type": "string", "minLength": 1},
			"paymentId": {"type": "string"},
			"expectedAmount": {"type": "integer", "minimum": 0},
			"endpoint": {"type": "string", "pattern": "^/"}
		},
		"anyOf": [
			{"required": ["transactionReference"]},
			{"required": ["signature"]}
		]
	}`

	registerRequestSchema = `{
		"type": "object",
		"properties": {
			"token": {"type": "string", "minLength": 1}
		},
		"required": ["token"]
	}`
)

var (
	verifySchema   = mustSchema(verifyRequestSchema)
	registerSchema = mustSchema(registerRequestSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// VerifyPaymentRequest is the body of POST /api/verify-payment
type VerifyPaymentRequest struct {
	TransactionReference string `json:"transactionReference"`
	Signature            string `json:"signature"`
	PaymentID            string `json:"paymentId"`
	ExpectedAmount       uint64 `json:"expectedAmount"`
	Endpoint             string `json:"endpoint"`
}

// Reference returns the transaction reference, preferring the current field name
func (r *VerifyPaymentRequest) Reference() string {
	if r.TransactionReference != "" {
		return r.TransactionReference
	}
	return r.Signature
}

// RegisterTokenRequest is the body of POST <resource>
type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// ValidateVerifyRequest validates and decodes a verify request body
func ValidateVerifyRequest(body []byte) (*VerifyPaymentRequest, error) {
	if err := validate(verifySchema, body); err != nil {
		return nil, err
	}
	var req VerifyPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return &req, nil
}

// ValidateRegisterRequest validates and decodes a register request body
func ValidateRegisterRequest(body []byte) (*RegisterTokenRequest, error) {
	if err := validate(registerSchema, body); err != nil {
		return nil, err
	}
	var req RegisterTokenRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return &req, nil
}

func validate(schema *gojsonschema.Schema, body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return invalidRequest("request body is empty")
	}
	if !json.Valid(body) {
		return invalidRequest("request body is not valid JSON")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return invalidRequest(fmt.Sprintf("schema validation failed: %v", err))
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return paywall.NewPaymentError(paywall.ErrCodeInvalidRequest, "invalid request body", map[string]interface{}{
		"errors": errs,
	})
}

func invalidRequest(msg string) *paywall.PaymentError {
	return paywall.NewPaymentError(paywall.ErrCodeInvalidRequest, msg, nil)
}
