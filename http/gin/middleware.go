// Package gin mounts the paywall on a Gin engine.
package gin

import (
	"net/http"

	ginfw "github.com/gin-gonic/gin"

	paywallhttp "github.com/lalitcap23/pay-per-api/http"
)

// GinAdapter implements RequestAdapter for Gin
type GinAdapter struct {
	ctx *ginfw.Context
}

// NewGinAdapter creates a new Gin adapter
func NewGinAdapter(ctx *ginfw.Context) *GinAdapter {
	return &GinAdapter{ctx: ctx}
}

// GetHeader gets a request header
func (a *GinAdapter) GetHeader(name string) string {
	return a.ctx.GetHeader(name)
}

// GetMethod gets the HTTP method
func (a *GinAdapter) GetMethod() string {
	return a.ctx.Request.Method
}

// GetPath gets the request path
func (a *GinAdapter) GetPath() string {
	return a.ctx.Request.URL.Path
}

// PaymentMiddleware gates the route behind the named resource.
// A consumed token is restored when the handler answers with a 5xx
// or panics.
func PaymentMiddleware(h *paywallhttp.Handler, resource string) ginfw.HandlerFunc {
	return func(c *ginfw.Context) {
		d, deny := h.Admit(resource, NewGinAdapter(c))
		if deny != nil {
			abortWith(c, deny)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				h.Restore(resource, d.Token)
				panic(rec)
			}
		}()

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			h.Restore(resource, d.Token)
		}
	}
}

// ContentHandler serves fn as JSON
func ContentHandler(h *paywallhttp.Handler, fn paywallhttp.ContentFunc) ginfw.HandlerFunc {
	return func(c *ginfw.Context) {
		write(c, h.Content(c.Request.Context(), fn))
	}
}

// Register mounts every paywall endpoint on r
func Register(r ginfw.IRoutes, h *paywallhttp.Handler) {
	for _, route := range h.Routes() {
		resource := route.Resource
		r.GET(route.Path, PaymentMiddleware(h, resource), ContentHandler(h, route.Content))
		r.POST(route.Path, func(c *ginfw.Context) {
			write(c, h.RegisterBody(c.Request.Context(), resource, c.Request.Body))
		})
	}
	for _, route := range h.FreeRoutes() {
		r.GET(route.Path, ContentHandler(h, route.Content))
	}

	r.POST("/api/verify-payment", func(c *ginfw.Context) {
		write(c, h.VerifyBody(c.Request.Context(), c.Request.Body))
	})
	r.GET("/health", func(c *ginfw.Context) {
		write(c, h.Health())
	})
}

// NewEngine returns a release-mode engine with recovery and every endpoint mounted
func NewEngine(h *paywallhttp.Handler) *ginfw.Engine {
	ginfw.SetMode(ginfw.ReleaseMode)
	r := ginfw.New()
	r.Use(ginfw.Recovery())
	Register(r, h)
	return r
}

func write(c *ginfw.Context, resp *paywallhttp.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.JSON(resp.Status, resp.Body)
}

func abortWith(c *ginfw.Context, resp *paywallhttp.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.AbortWithStatusJSON(resp.Status, resp.Body)
}
