package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	paywall "github.com/lalitcap23/pay-per-api"
	"github.com/lalitcap23/pay-per-api/config"
	"github.com/lalitcap23/pay-per-api/ledger/solana"
)

func verifyCmd() *cobra.Command {
	var (
		resource string
		amount   uint64
	)

	cmd := &cobra.Command{
		Use:   "verify <signature>",
		Short: "Check one transaction against a resource's price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signature := args[0]
			if err := solana.ValidateSignature(signature); err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := cfg.Logging.NewLogger(os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			var (
				expected paywall.ExpectedPayment
				found    bool
			)
			for _, rc := range cfg.Resources {
				if rc.Name == resource || rc.Path == resource {
					expected, found = rc.Expected(), true
					break
				}
			}
			if !found {
				return fmt.Errorf("unknown resource %q", resource)
			}
			if amount > expected.Amount {
				expected.Amount = amount
			}

			verifier, err := newVerifier(cfg, logger)
			if err != nil {
				return err
			}
			result, err := verifier.Verify(cmd.Context(), signature, expected)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Verified {
				return fmt.Errorf("payment not verified: %s", result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&resource, "resource", "r", "jokes", "resource name or path to price against")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "expected amount in base units (only raises the price)")

	return cmd
}
