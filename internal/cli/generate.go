package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"typeproof/internal/synth"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		profile string
		seed    int64
		text    string
		output  string
		epoch   bool
		keyUps  bool
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "generate [text-file]",
		Short: "Generate a synthetic keystroke stream for a text",
		Long: `Simulate typing a text with one of the built-in profiles and write the
raw events as a JSON array ready for ingest. The text comes from --text,
a file argument, or stdin with "-".`,
		Example: `  typeproofctl generate essay.txt --profile slow-thoughtful -o events.json
  typeproofctl generate --text "hello world" --profile robotic | typeproofctl ingest doc -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "PROFILE\tDESCRIPTION")
				for _, name := range synth.ProfileNames() {
					p, _ := synth.Lookup(name)
					fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
				}
				return tw.Flush()
			}

			p, err := synth.Lookup(profile)
			if err != nil {
				return usageError(cmd, "%v", err)
			}
			switch {
			case text != "" && len(args) == 1:
				return usageError(cmd, "use either --text or a text file, not both")
			case len(args) == 1:
				data, err := readInput(cmd, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "read text", err)
				}
				text = string(data)
			case text == "":
				return usageError(cmd, "no text given (use --text or a file)")
			}

			opts := synth.Options{Profile: p, Seed: seed, KeyUps: keyUps}
			if epoch {
				opts.Start = time.Now()
			}
			events := synth.Generate(text, opts)

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return WrapExitError(ExitCommandError, "create output", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeJSON(w, events); err != nil {
				return WrapExitError(ExitCommandError, "write events", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d events to %s\n", len(events), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "normal", "typing profile (see --list)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&text, "text", "", "text to type")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write events to a file instead of stdout")
	cmd.Flags().BoolVar(&epoch, "epoch", false, "anchor timestamps at the current time in epoch milliseconds")
	cmd.Flags().BoolVar(&keyUps, "keyups", true, "emit a keyup after every keydown")
	cmd.Flags().BoolVar(&list, "list", false, "list available profiles")
	return cmd
}
