// Package mcp exposes paywalled resources as MCP tools.
//
// Each paid tool is bound to one resource and spends a bearer token from
// that resource's store, exactly like the HTTP middleware. The token is
// read from the "token" argument or the "paywall/token" _meta key. An
// unpaid call returns an error result whose structured content is the
// same payment challenge the HTTP 402 body carries.
//
// # Server Usage
//
//	handler := paywallhttp.NewHandler(service, paywallhttp.WithContent("jokes", jokes.Get))
//	server := mcp.NewServer(handler, []mcp.PaidTool{
//	    {Name: "get_joke", Resource: "jokes", Description: "Fetch a premium joke"},
//	})
//	mux.Handle("/mcp", mcp.SSEHandler(server))
//
// Clients obtain a token with the free verify_payment tool, then pass it
// to the paid tool.
package mcp
