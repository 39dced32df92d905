// Package http exposes the paywall over HTTP. The Handler here is
// framework-agnostic; net/http wiring lives in this package and the gin and
// echo wiring in subpackages.
package http

// RequestAdapter gives the handler read access to a framework's request
type RequestAdapter interface {
	GetHeader(name string) string
	GetMethod() string
	GetPath() string
}

// Response is a framework-agnostic reply
type Response struct {
	Status  int
	Headers map[string]string
	Body    interface{}
}
