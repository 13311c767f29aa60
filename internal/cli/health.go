package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"typeproof/internal/health"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the event store and report cache",
		Long: `Run the same checks served on /readyz. Exits 1 when the event store
is unreachable; a failing cache only degrades the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.health.Run(cmd.Context())
			if rootOpts.json() {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Status: %s\n\n", report.Status)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "COMPONENT\tSTATUS\tMESSAGE")
				for _, name := range report.Names() {
					res := report.Components[name]
					msg := res.Message
					if res.Error != "" {
						msg += ": " + res.Error
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", name, res.Status, msg)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if report.Status == health.StatusUnhealthy {
				return NewExitError(ExitFailure, "unhealthy")
			}
			return nil
		},
	}
}
