package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	paywall "github.com/lalitcap23/pay-per-api"
)

// MaxBodyBytes caps request bodies read by the handlers
const MaxBodyBytes = 64 << 10

type requestAdapter struct {
	r *http.Request
}

func (a requestAdapter) GetHeader(name string) string { return a.r.Header.Get(name) }
func (a requestAdapter) GetMethod() string            { return a.r.Method }
func (a requestAdapter) GetPath() string              { return a.r.URL.Path }

// NewRequestAdapter wraps a net/http request
func NewRequestAdapter(r *http.Request) RequestAdapter {
	return requestAdapter{r: r}
}

// WriteResponse writes resp as JSON
func WriteResponse(w http.ResponseWriter, resp *Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// statusRecorder remembers the status the wrapped handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Middleware gates next behind the named resource. When next answers
// with a 5xx or panics the consumed token is given back.
func (h *Handler) Middleware(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, deny := h.Admit(resource, NewRequestAdapter(r))
			if deny != nil {
				WriteResponse(w, deny)
				return
			}

			defer func() {
				if rec := recover(); rec != nil {
					h.Restore(resource, d.Token)
					panic(rec)
				}
			}()

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusInternalServerError {
				h.Restore(resource, d.Token)
			}
		})
	}
}

// ContentHandler serves fn as JSON
func (h *Handler) ContentHandler(fn ContentFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, h.Content(r.Context(), fn))
	})
}

// ReadBody reads a request body of at most MaxBodyBytes.
// Oversized bodies fail with request_too_large rather than being cut short.
func ReadBody(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return nil, paywall.NewPaymentError(paywall.ErrCodeInvalidRequest, "failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(body) > MaxBodyBytes {
		return nil, paywall.NewPaymentError(paywall.ErrCodeRequestTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", MaxBodyBytes), nil)
	}
	return body, nil
}

// NewServeMux mounts every endpoint on a standard library mux
func (h *Handler) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	for _, route := range h.Routes() {
		resource := route.Resource
		mux.Handle("GET "+route.Path, h.Middleware(resource)(h.ContentHandler(route.Content)))
		mux.HandleFunc("POST "+route.Path, func(w http.ResponseWriter, r *http.Request) {
			WriteResponse(w, h.RegisterBody(r.Context(), resource, r.Body))
		})
	}
	for _, route := range h.FreeRoutes() {
		mux.Handle("GET "+route.Path, h.ContentHandler(route.Content))
	}

	mux.HandleFunc("POST /api/verify-payment", func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, h.VerifyBody(r.Context(), r.Body))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, h.Health())
	})
	return mux
}
