// Package echo mounts the paywall on an Echo server.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	paywallhttp "github.com/lalitcap23/pay-per-api/http"
)

// EchoAdapter implements RequestAdapter for Echo
type EchoAdapter struct {
	ctx echo.Context
}

// NewEchoAdapter creates a new Echo adapter
func NewEchoAdapter(ctx echo.Context) *EchoAdapter {
	return &EchoAdapter{ctx: ctx}
}

func (a *EchoAdapter) GetHeader(name string) string { return a.ctx.Request().Header.Get(name) }
func (a *EchoAdapter) GetMethod() string            { return a.ctx.Request().Method }
func (a *EchoAdapter) GetPath() string              { return a.ctx.Request().URL.Path }

// PaymentMiddleware gates the route behind the named resource
func PaymentMiddleware(h *paywallhttp.Handler, resource string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, deny := h.Admit(resource, NewEchoAdapter(c))
			if deny != nil {
				return write(c, deny)
			}

			defer func() {
				if rec := recover(); rec != nil {
					h.Restore(resource, d.Token)
					panic(rec)
				}
			}()

			err := next(c)
			if serverFault(c, err) {
				h.Restore(resource, d.Token)
			}
			return err
		}
	}
}

// serverFault reports whether the handler failed on the server side
func serverFault(c echo.Context, err error) bool {
	if err == nil {
		return c.Response().Status >= http.StatusInternalServerError
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code >= http.StatusInternalServerError
	}
	return true
}

// ContentHandler serves fn as JSON
func ContentHandler(h *paywallhttp.Handler, fn paywallhttp.ContentFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return write(c, h.Content(c.Request().Context(), fn))
	}
}

// Register mounts every paywall endpoint on e
func Register(e *echo.Echo, h *paywallhttp.Handler) {
	for _, route := range h.Routes() {
		resource := route.Resource
		e.GET(route.Path, ContentHandler(h, route.Content), PaymentMiddleware(h, resource))
		e.POST(route.Path, func(c echo.Context) error {
			return write(c, h.RegisterBody(c.Request().Context(), resource, c.Request().Body))
		})
	}
	for _, route := range h.FreeRoutes() {
		e.GET(route.Path, ContentHandler(h, route.Content))
	}

	e.POST("/api/verify-payment", func(c echo.Context) error {
		return write(c, h.VerifyBody(c.Request().Context(), c.Request().Body))
	})
	e.GET("/health", func(c echo.Context) error {
		return write(c, h.Health())
	})
}

// New returns an Echo server with panic recovery and every endpoint mounted
func New(h *paywallhttp.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	Register(e, h)
	return e
}

func write(c echo.Context, resp *paywallhttp.Response) error {
	for k, v := range resp.Headers {
		c.Response().Header().Set(k, v)
	}
	return c.JSON(resp.Status, resp.Body)
}
