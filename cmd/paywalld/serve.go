package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	ginfw "github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/config"
	paywallecho "github.com/lalitcap23/pay-per-api/http/echo"
	paywallgin "github.com/lalitcap23/pay-per-api/http/gin"
	"github.com/lalitcap23/pay-per-api/ledger/solana"
	"github.com/lalitcap23/pay-per-api/mcp"
)

const banner = `
  ┌─┐┌─┐┬ ┬   ┌─┐┌─┐┬─┐   ┌─┐┌─┐┬
  ├─┘├─┤└┬┘───├─┘├┤ ├┬┘───├─┤├─┘│
  ┴  ┴ ┴ ┴    ┴  └─┘┴└─   ┴ ┴┴  ┴
`

// paidTools maps the built-in resources to MCP tool names
var paidTools = []mcp.PaidTool{
	{Name: "get_joke", Resource: "jokes", Description: "Fetch a premium dad joke"},
	{Name: "get_quote", Resource: "quotes", Description: "Fetch a premium programming quote"},
}

func serveCmd() *cobra.Command {
	var (
		router string
		listen string
		noMCP  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the paywalled API server",
		Long: `Start the paywalled API server.

Examples:
  paywalld serve
  paywalld serve --router echo --listen :8080
  paywalld serve -c paywall.yaml --no-mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if router != "" {
				cfg.Server.Router = router
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if noMCP {
				cfg.Server.MCP = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&router, "router", "", "HTTP router: gin, echo or std")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "do not mount the MCP endpoint")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	printStartup(a)

	handler, err := newRouter(a)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting paywalld", "listen", cfg.Server.Listen, "router", cfg.Server.Router, "network", cfg.Ledger.Network)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newRouter mounts the paywall and, when enabled, the MCP endpoint
func newRouter(a *app) (http.Handler, error) {
	var sse http.Handler
	if a.cfg.Server.MCP {
		server := mcp.NewServer(a.handler, paidTools,
			mcp.WithImplementation("paywalld", version),
			mcp.WithLogger(a.logger.With("component", "mcp")),
		)
		sse = mcp.SSEHandler(server)
	}

	switch a.cfg.Server.Router {
	case "gin":
		r := paywallgin.NewEngine(a.handler)
		if sse != nil {
			r.Any("/mcp", ginfw.WrapH(sse))
		}
		return r, nil
	case "echo":
		e := paywallecho.New(a.handler)
		if sse != nil {
			e.Any("/mcp", echo.WrapHandler(sse))
		}
		return e, nil
	case "std":
		mux := a.handler.NewServeMux()
		if sse != nil {
			mux.Handle("/mcp", sse)
		}
		return mux, nil
	}
	return nil, fmt.Errorf("unknown router %q", a.cfg.Server.Router)
}

func printStartup(a *app) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	green.Print("    ▶ ")
	fmt.Printf("Listen:    %s (%s)\n", a.cfg.Server.Listen, a.cfg.Server.Router)
	green.Print("    ▶ ")
	fmt.Printf("Network:   %s via %s\n", a.cfg.Ledger.Network, a.cfg.Ledger.RPCURL)
	green.Print("    ▶ ")
	fmt.Printf("Tokens:    %s\n", a.cfg.Tokens.Policy)

	for _, gate := range a.service.Gates() {
		rc := gate.Config()
		green.Print("    ▶ ")
		fmt.Printf("GET %-14s %s %s", rc.Path, solana.FormatAmount(rc.Price.Amount, solana.DefaultDecimals), rc.Price.Token)
		if err := gate.Check(); err != nil {
			red.Printf("  [misconfigured: %s]", paywall.AsPaymentError(err).Message)
		}
		fmt.Println()
	}
	if a.cfg.Server.MCP {
		green.Print("    ▶ ")
		fmt.Println("MCP:       /mcp (SSE)")
	}

	if a.verifier.Mode() == paywall.VerificationModeLight {
		yellow.Println("\n    ! light verification: payments are accepted on finality alone,")
		yellow.Println("      amount, asset and recipient are not checked")
		a.logger.Warn("light verification mode enabled; amounts and recipients are not checked")
	}
	fmt.Println()
}
