package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newServeCmd runs the HTTP trigger, the timer trigger and the admin listener.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /check-sales and run scheduled checks",
		Long: `Starts the public trigger listener (POST /check-sales?url=...), the admin
listener with health probes and Prometheus metrics, and the timer that checks
the default URL on every schedule interval. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Run(cmd.Context()); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}
