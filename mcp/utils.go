package mcp

import (
	"encoding/json"
	"fmt"

	paywall "github.com/lalitcap23/pay-per-api"
)

// ExtractToken returns the bearer token from the tool arguments, falling
// back to the _meta key. A "Bearer " prefix is accepted.
func ExtractToken(toolContext ToolContext) string {
	if v, ok := toolContext.Arguments[TokenArgument].(string); ok && v != "" {
		return paywall.ParseCredential(v)
	}
	if v, ok := toolContext.Meta[TokenMetaKey].(string); ok {
		return paywall.ParseCredential(v)
	}
	return ""
}

// jsonResult renders v as both text and structured content
func jsonResult(v interface{}, isError bool) (ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to marshal tool result: %w", err)
	}

	var structured map[string]interface{}
	if err := json.Unmarshal(data, &structured); err != nil {
		// Scalars and arrays only travel as text
		structured = nil
	}

	return ToolResult{
		Content:           []ContentItem{{Type: "text", Text: string(data)}},
		IsError:           isError,
		StructuredContent: structured,
	}, nil
}

func textResult(text string, isError bool) ToolResult {
	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: isError,
	}
}
