package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"typeproof/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	MinConfidence int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <document-id> <content-file>",
		Short: "Score a document's text against its keystroke ledger",
		Long: `Run the integrity and authenticity checks for a document and print the
verification report. The content file holds the document text as stored.

Exit codes:
  0 - report produced (and confidence >= --min-confidence)
  1 - confidence below --min-confidence
  2 - command error

Examples:
  typeproofctl verify essay-42 essay.txt
  typeproofctl verify essay-42 essay.txt --format json --min-confidence 70`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.MinConfidence, "min-confidence", 0, "exit 1 when confidence is below this value (0-100)")
	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command, docID, path string) error {
	if opts.MinConfidence < 0 || opts.MinConfidence > 100 {
		return usageError(cmd, "--min-confidence must be between 0 and 100, got %d", opts.MinConfidence)
	}
	content, err := readInput(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read content", err)
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.engine.Verify(cmd.Context(), docID, string(content))
	if err != nil {
		return WrapExitError(ExitCommandError, "verify", err)
	}

	gen := verify.NewReportGenerator(opts.reportFormat()).WithVerbose(opts.Verbose)
	if err := gen.Generate(report, cmd.OutOrStdout()); err != nil {
		return WrapExitError(ExitCommandError, "render report", err)
	}

	if report.Confidence() < opts.MinConfidence {
		return NewExitError(ExitFailure,
			fmt.Sprintf("confidence %d is below %d (%s)", report.Confidence(), opts.MinConfidence, report.Status()))
	}
	return nil
}
