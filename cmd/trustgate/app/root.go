// Package app provides the trustgate command tree.
package app

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the trustgate CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "trustgate",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Trust-token caching gateway",
		Long: `trustgate sits in front of the document processing backend. It caches
process-pdf responses per trust token, re-validates the token before every
cache hit, rate limits clients per IP and trips a circuit breaker when the
backend fails.`,
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newInvalidateCmd())

	return root
}
