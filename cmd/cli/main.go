package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/iwara-dl-go/internal/domain"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "iwara-dl",
		Short: "iwara-dl - batch video downloader with resumable transfers",
		Long: `A command-line downloader that lists videos, fetches thumbnails and source files
with resumable transfers, and records every outcome in a JSON ledger.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.json (default: ./config.json, ~/.iwara-dl, /etc/iwara-dl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(loginCheckCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
