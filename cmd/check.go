package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errCheckFailed is returned when the run reports success=false so the
// process exits non-zero for cron wrappers.
var errCheckFailed = errors.New("check failed")

// newCheckCmd performs one scheduled run and prints its status report.
func newCheckCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check and print the JSON status report",
		Long: `Runs the render, classify and notify pipeline once as a scheduled run and
writes the status report to stdout. Without --url the configured default URL
is checked. Exits non-zero when the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report := appInstance.Check(cmd.Context(), url)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !report.Success {
				return fmt.Errorf("%w: %s", errCheckFailed, report.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to check (defaults to monitor.default_url)")
	return cmd
}
