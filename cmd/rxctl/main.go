package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version    = "dev"
	configPath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rxctl",
		Short:         "Operator tool for the referral and credit ledger service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config/config.yaml)")

	root.AddCommand(migrateCmd())
	root.AddCommand(codesCmd())
	root.AddCommand(ledgerCmd())
	root.AddCommand(tokenCmd())
	return root
}
