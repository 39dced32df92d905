package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	paywall "github.com/lalitcap23/pay-per-api"
)

// ContentFunc produces the body of a resource
type ContentFunc func(ctx context.Context) (interface{}, error)

// Handler serves the paywall endpoints independently of the router
type Handler struct {
	service *paywall.Service
	content map[string]ContentFunc // protected, by resource name
	free    map[string]ContentFunc // unprotected, by path
	baseURL string
	version string
	started time.Time
	logger  *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithContent serves fn behind the named resource's gate
func WithContent(resource string, fn ContentFunc) HandlerOption {
	return func(h *Handler) {
		h.content[resource] = fn
	}
}

// WithFreeContent serves fn on path without payment
func WithFreeContent(path string, fn ContentFunc) HandlerOption {
	return func(h *Handler) {
		h.free[path] = fn
	}
}

// WithBaseURL sets the public URL used in usage hints
func WithBaseURL(url string) HandlerOption {
	return func(h *Handler) {
		h.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVersion sets the version reported by the health endpoint
func WithVersion(version string) HandlerOption {
	return func(h *Handler) {
		h.version = version
	}
}

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler over service
func NewHandler(service *paywall.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		content: make(map[string]ContentFunc),
		free:    make(map[string]ContentFunc),
		baseURL: "http://localhost:3000",
		version: "dev",
		started: time.Now(),
		logger:  slog.Default().With("component", "http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Service returns the underlying paywall service
func (h *Handler) Service() *paywall.Service {
	return h.service
}

// Route is a protected resource the routers mount
type Route struct {
	Resource string
	Path     string
	Content  ContentFunc
}

// Routes lists protected resources that have content, ordered by path
func (h *Handler) Routes() []Route {
	var routes []Route
	for _, gate := range h.service.Gates() {
		cfg := gate.Config()
		fn, ok := h.content[cfg.Name]
		if !ok {
			h.logger.Warn("resource has no content and is not mounted", "resource", cfg.Name)
			continue
		}
		routes = append(routes, Route{Resource: cfg.Name, Path: cfg.Path, Content: fn})
	}
	return routes
}

// FreeRoute is an unprotected path and its content
type FreeRoute struct {
	Path    string
	Content ContentFunc
}

// FreeRoutes lists unprotected resources, ordered by path
func (h *Handler) FreeRoutes() []FreeRoute {
	routes := make([]FreeRoute, 0, len(h.free))
	for path, fn := range h.free {
		routes = append(routes, FreeRoute{Path: path, Content: fn})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes
}

// Admit runs the resource's gate on the request's Authorization header.
// A nil response means the request may proceed.
func (h *Handler) Admit(resource string, r RequestAdapter) (paywall.Decision, *Response) {
	credential := paywall.ParseCredential(r.GetHeader(HeaderAuthorization))
	d := h.service.Admit(resource, credential)

	switch d.Kind {
	case paywall.DecisionAllow:
		h.logger.Debug("request admitted", "resource", resource, "method", r.GetMethod(), "path", r.GetPath())
		return d, nil
	case paywall.DecisionDeny:
		h.logger.Debug("payment required", "resource", resource, "method", r.GetMethod(), "path", r.GetPath(), "reason", d.Reason)
		return d, PaymentRequired(d.Descriptor)
	default:
		h.logger.Warn("request refused", "resource", resource, "method", r.GetMethod(), "path", r.GetPath(), "error", d.Err)
		return d, ErrorResponse(d.Err)
	}
}

// Restore returns a consumed token after the protected handler failed
func (h *Handler) Restore(resource, token string) {
	gate, ok := h.service.Gate(resource)
	if !ok {
		return
	}
	h.logger.Info("restoring token after handler failure", "resource", resource)
	gate.Restore(token)
}

// Content runs fn and wraps its result
func (h *Handler) Content(ctx context.Context, fn ContentFunc) *Response {
	body, err := fn(ctx)
	if err != nil {
		h.logger.Error("content handler failed", "error", err)
		return &Response{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "Internal server error", Reason: paywall.ErrCodeInternal},
		}
	}
	return &Response{Status: http.StatusOK, Body: body}
}

// Verify handles POST /api/verify-payment
func (h *Handler) Verify(ctx context.Context, body []byte) *Response {
	req, err := ValidateVerifyRequest(body)
	if err != nil {
		return verifyFailure(err, nil)
	}

	paymentID := req.PaymentID
	if paymentID == "" {
		paymentID = paywall.NewPaymentID()
	}

	h.logger.Info("verifying payment", "reference", req.Reference(), "payment_id", paymentID, "endpoint", req.Endpoint)

	resp, err := h.service.VerifyAndIssue(ctx, paywall.VerifyRequest{
		Reference:      req.Reference(),
		PaymentID:      paymentID,
		ExpectedAmount: req.ExpectedAmount,
		Resource:       req.Endpoint,
	})
	if err != nil {
		return verifyFailure(err, &resp.Result)
	}

	token := resp.Token.String()
	endpoint := resp.Resource.Path
	header := fmt.Sprintf("Authorization: Bearer %s", token)
	return &Response{
		Status: http.StatusOK,
		Body: VerifySuccessBody{
			Verified:             true,
			Token:                token,
			TransactionReference: resp.Result.TransactionReference,
			TransactionSignature: resp.Result.TransactionReference,
			PaymentID:            paymentID,
			Endpoint:             endpoint,
			Message:              fmt.Sprintf("Payment verified! Use %q header for protected requests.", header),
			Usage: Usage{
				Endpoint: endpoint,
				Header:   header,
				Example:  fmt.Sprintf(`curl -H "%s" %s%s`, header, h.baseURL, endpoint),
			},
		},
	}
}

// VerifyBody reads body and handles it as POST /api/verify-payment
func (h *Handler) VerifyBody(ctx context.Context, body io.Reader) *Response {
	b, err := ReadBody(body)
	if err != nil {
		return verifyFailure(err, nil)
	}
	return h.Verify(ctx, b)
}

func verifyFailure(err error, result *paywall.VerificationResult) *Response {
	pe := paywall.AsPaymentError(err)
	body := VerifyFailureBody{
		Verified: false,
		Error:    publicMessage(pe),
		Reason:   pe.Code,
		Details:  pe.Details,
	}
	if result != nil {
		body.Status = result.Status
	}
	return &Response{Status: pe.HTTPStatus(), Body: body}
}

// Register handles POST <resource> with {"token": ...}
func (h *Handler) Register(ctx context.Context, resource string, body []byte) *Response {
	req, err := ValidateRegisterRequest(body)
	if err != nil {
		return ErrorResponse(err)
	}
	if err := h.service.Register(ctx, resource, req.Token); err != nil {
		if !errors.Is(err, paywall.ErrUnknownToken) {
			h.logger.Error("token registration failed", "resource", resource, "error", err)
		}
		return ErrorResponse(err)
	}
	return &Response{
		Status: http.StatusOK,
		Body: map[string]interface{}{
			"success": true,
			"message": "Token registered",
		},
	}
}

// RegisterBody reads body and handles it as POST <resource>
func (h *Handler) RegisterBody(ctx context.Context, resource string, body io.Reader) *Response {
	b, err := ReadBody(body)
	if err != nil {
		return ErrorResponse(err)
	}
	return h.Register(ctx, resource, b)
}

// HealthBody is returned by GET /health
type HealthBody struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Uptime    string   `json:"uptime"`
	Resources []string `json:"resources"`
}

// Health handles GET /health
func (h *Handler) Health() *Response {
	var resources []string
	for _, gate := range h.service.Gates() {
		resources = append(resources, gate.Config().Path)
	}
	return &Response{
		Status: http.StatusOK,
		Body: HealthBody{
			Status:    "ok",
			Version:   h.version,
			Uptime:    time.Since(h.started).Round(time.Second).String(),
			Resources: resources,
		},
	}
}
