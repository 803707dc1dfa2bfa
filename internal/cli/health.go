package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the coordinator is up",
		Long:  "Print connection, queue and session counts. Exits non-zero unless the server reports ok.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult
			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr()).Print(result)
			if result.Status != "ok" {
				return fmt.Errorf("server reports status %q", result.Status)
			}
			return nil
		},
	}
}
