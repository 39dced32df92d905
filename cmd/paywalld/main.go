// Command paywalld serves pay-per-call APIs behind a Solana USDC paywall.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lalitcap23/pay-per-api/config"
)

var version = "dev"

var (
	configPath string
	envFiles   []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "paywalld",
		Short:         "Pay-per-call API paywall settled in USDC on Solana",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFiles...)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PAYWALL_CONFIG"), "path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, ".env files to load (default .env)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
