package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paywall "github.com/lalitcap23/pay-per-api"
	paywallhttp "github.com/lalitcap23/pay-per-api/http"
)

// ToolHandler is the signature for paywall tool handlers
type ToolHandler func(ctx context.Context, args map[string]interface{}, toolContext ToolContext) (ToolResult, error)

// toolRequest presents a tool call to the HTTP handler's admission path
type toolRequest struct {
	toolName string
	token    string
}

func (r toolRequest) GetHeader(name string) string {
	if name == paywallhttp.HeaderAuthorization && r.token != "" {
		return "Bearer " + r.token
	}
	return ""
}

func (r toolRequest) GetMethod() string { return "CALL" }
func (r toolRequest) GetPath() string   { return CreateToolResourceURL(r.toolName) }

// CreateToolResourceURL names a tool as a resource URL
func CreateToolResourceURL(toolName string) string {
	return "mcp://tool/" + toolName
}

// CreatePaymentWrapper gates tool handlers behind resource. The token is
// spent on admission and restored when the wrapped handler errors.
func CreatePaymentWrapper(h *paywallhttp.Handler, resource string) func(handler ToolHandler) ToolHandler {
	return func(handler ToolHandler) ToolHandler {
		return func(ctx context.Context, args map[string]interface{}, toolContext ToolContext) (ToolResult, error) {
			d, deny := h.Admit(resource, toolRequest{
				toolName: toolContext.ToolName,
				token:    ExtractToken(toolContext),
			})
			if deny != nil {
				return jsonResult(deny.Body, true)
			}

			result, err := handler(ctx, args, toolContext)
			if err != nil || result.IsError {
				h.Restore(resource, d.Token)
			}
			return result, err
		}
	}
}

// ContentTool serves fn as a tool result
func ContentTool(h *paywallhttp.Handler, fn paywallhttp.ContentFunc) ToolHandler {
	return func(ctx context.Context, _ map[string]interface{}, _ ToolContext) (ToolResult, error) {
		resp := h.Content(ctx, fn)
		return jsonResult(resp.Body, resp.Status != http.StatusOK)
	}
}

// VerifyTool exchanges a transaction reference for a token
func VerifyTool(h *paywallhttp.Handler) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}, _ ToolContext) (ToolResult, error) {
		body, err := json.Marshal(args)
		if err != nil {
			return ToolResult{}, fmt.Errorf("failed to marshal arguments: %w", err)
		}
		resp := h.Verify(ctx, body)
		return jsonResult(resp.Body, resp.Status != http.StatusOK)
	}
}

// ServerOption configures NewServer
type ServerOption func(*serverOptions)

type serverOptions struct {
	name    string
	version string
	logger  *slog.Logger
}

// WithImplementation sets the name and version the server reports
func WithImplementation(name, version string) ServerOption {
	return func(o *serverOptions) {
		o.name = name
		o.version = version
	}
}

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

const (
	paidToolSchema = `{
		"type": "object",
		"properties": {
			"token": {"type": "string", "description": "Access token from verify_payment"}
		}
	}`

	verifyToolSchema = `{
		"type": "object",
		"properties": {
			"transactionReference": {"type": "string"},
			"signature": {"type": "string"},
			"paymentId": {"type": "string"},
			"expectedAmount": {"type": "integer", "minimum": 0},
			"endpoint": {"type": "string"}
		}
	}`
)

// NewServer registers verify_payment, ping and one tool per paid tool.
// Paid tools whose resource has no content are skipped.
func NewServer(h *paywallhttp.Handler, tools []PaidTool, opts ...ServerOption) *mcpsdk.Server {
	o := &serverOptions{
		name:    "pay-per-api",
		version: "dev",
		logger:  slog.Default().With("component", "mcp"),
	}
	for _, opt := range opts {
		opt(o)
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    o.name,
		Version: o.version,
	}, nil)

	content := make(map[string]paywallhttp.ContentFunc)
	for _, route := range h.Routes() {
		content[route.Resource] = route.Content
	}

	for _, tool := range tools {
		fn, ok := content[tool.Resource]
		if !ok {
			o.logger.Warn("paid tool has no content and is not registered", "tool", tool.Name, "resource", tool.Resource)
			continue
		}
		description := tool.Description
		if gate, ok := h.Service().Gate(tool.Resource); ok {
			cfg := gate.Config()
			description = fmt.Sprintf("%s. Requires a token worth %d base units of %s.", description, cfg.Price.Amount, cfg.Price.Token)
		}

		wrapped := CreatePaymentWrapper(h, tool.Resource)(ContentTool(h, fn))
		server.AddTool(&mcpsdk.Tool{
			Name:        tool.Name,
			Description: description,
			InputSchema: json.RawMessage(paidToolSchema),
		}, toSDKHandler(wrapped))
	}

	server.AddTool(&mcpsdk.Tool{
		Name:        "verify_payment",
		Description: "Verify a ledger payment and receive an access token",
		InputSchema: json.RawMessage(verifyToolSchema),
	}, toSDKHandler(VerifyTool(h)))

	server.AddTool(&mcpsdk.Tool{
		Name:        "ping",
		Description: "A free health check tool",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, toSDKHandler(func(context.Context, map[string]interface{}, ToolContext) (ToolResult, error) {
		return textResult("pong", false), nil
	}))

	return server
}

// SSEHandler serves server over the SSE transport
func SSEHandler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, &mcpsdk.SSEOptions{})
}

// toSDKHandler adapts a ToolHandler to the SDK's raw handler signature
func toSDKHandler(handler ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := make(map[string]interface{})
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toSDKResult(textResult(fmt.Sprintf("failed to unmarshal arguments: %v", err), true)), nil
			}
		}
		meta := make(map[string]interface{})
		if req.Params.Meta != nil {
			meta = req.Params.Meta.GetMeta()
		}

		result, err := handler(ctx, args, ToolContext{
			ToolName:  req.Params.Name,
			Arguments: args,
			Meta:      meta,
		})
		if err != nil {
			pe := paywall.AsPaymentError(err)
			return toSDKResult(textResult(pe.Message, true)), nil
		}
		return toSDKResult(result), nil
	}
}

func toSDKResult(result ToolResult) *mcpsdk.CallToolResult {
	content := make([]mcpsdk.Content, len(result.Content))
	for i, item := range result.Content {
		content[i] = &mcpsdk.TextContent{Text: item.Text}
	}
	callResult := &mcpsdk.CallToolResult{
		Content: content,
		IsError: result.IsError,
	}
	if result.StructuredContent != nil {
		callResult.StructuredContent = result.StructuredContent
	}
	return callResult
}
