// Package cli implements typeproofctl, the operator command line for
// inspecting ledgers offline.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"typeproof/internal/verify"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "text" | "json" | "markdown"
	Database   string // overrides storage.path and forces the sqlite backend
	Verbose    bool
}

func (o *RootOptions) reportFormat() verify.ReportFormat {
	f, err := verify.ParseFormat(o.Format)
	if err != nil {
		return verify.FormatText
	}
	return f
}

func (o *RootOptions) json() bool {
	return o.reportFormat() == verify.FormatJSON
}

// NewRootCommand creates the typeproofctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "typeproofctl",
		Short: "Inspect keystroke ledgers and verify documents",
		Long: `typeproofctl ingests captured keystroke streams into a ledger, replays
them into text, and produces authenticity reports and editing timelines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := verify.ParseFormat(opts.Format); err != nil {
				return WrapExitError(ExitCommandError, "invalid --format", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default: search ./config.* then the config dir)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|markdown)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite ledger path (overrides storage settings)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging and verbose reports")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTimelineCommand(opts))
	cmd.AddCommand(NewDocumentsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))

	return cmd
}

func usageError(cmd *cobra.Command, format string, args ...any) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...)+"\n\n"+cmd.UsageString())
}
