package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"typeproof/internal/replay"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Stats bool
}

// ReplayOutput is the JSON form of a replay.
type ReplayOutput struct {
	DocumentID string       `json:"document_id"`
	Text       string       `json:"text"`
	Stats      replay.Stats `json:"stats"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <document-id>",
		Short: "Reconstruct a document's text from its ledger",
		Long: `Replay the KeyDown events of a ledger in sequence order and print the
resulting text. With --stats, edit counts are printed after the text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print edit statistics")
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, docID string) error {
	rt, err := openRuntime(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	text, err := rt.engine.Reconstruct(cmd.Context(), docID)
	if err != nil {
		return WrapExitError(ExitCommandError, "reconstruct", err)
	}
	stats, err := rt.engine.ReplayStats(cmd.Context(), docID)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay stats", err)
	}

	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), ReplayOutput{DocumentID: docID, Text: text, Stats: stats})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, text)
	if opts.Stats {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Inserted:   %d\n", stats.Inserted)
		fmt.Fprintf(w, "Backspaces: %d\n", stats.Backspaces)
		fmt.Fprintf(w, "Deletes:    %d\n", stats.Deletes)
		fmt.Fprintf(w, "Ignored:    %d\n", stats.Ignored)
		fmt.Fprintf(w, "Characters: %d\n", stats.FinalRunes)
	}
	return nil
}
