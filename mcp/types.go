package mcp

// Protocol constants
const (
	// TokenMetaKey is the _meta key a client may carry its bearer token in
	TokenMetaKey = "paywall/token"

	// TokenArgument is the tool argument holding the bearer token
	TokenArgument = "token"
)

// ToolContext provides context during tool execution
type ToolContext struct {
	ToolName  string
	Arguments map[string]interface{}
	Meta      map[string]interface{}
}

// ToolResult is a transport-neutral tool call result
type ToolResult struct {
	Content           []ContentItem
	IsError           bool
	StructuredContent map[string]interface{}
}

// ContentItem is one text block of a tool result
type ContentItem struct {
	Type string
	Text string
}

// PaidTool binds a tool name to a protected resource
type PaidTool struct {
	Name        string
	Description string
	Resource    string
}
