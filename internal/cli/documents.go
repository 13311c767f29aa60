package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// DocumentOutput is the JSON form of one listed document.
type DocumentOutput struct {
	DocumentID string    `json:"document_id"`
	EventCount int       `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// BatchOutput is the JSON form of one ingestion batch.
type BatchOutput struct {
	BatchID    string    `json:"batch_id"`
	ReceivedAt time.Time `json:"received_at"`
	Submitted  int       `json:"submitted"`
	Appended   int       `json:"appended"`
}

// NewDocumentsCommand creates the documents command.
func NewDocumentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List documents with stored keystrokes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			docs, err := rt.engine.Documents(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "list documents", err)
			}

			out := make([]DocumentOutput, 0, len(docs))
			for _, d := range docs {
				out = append(out, DocumentOutput{
					DocumentID: d.DocumentID,
					EventCount: d.EventCount,
					FirstSeen:  d.FirstSeen,
					LastSeen:   d.LastSeen,
				})
			}
			if rootOpts.json() {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if len(out) == 0 {
				fmt.Fprintln(w, "No documents found.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DOCUMENT\tEVENTS\tFIRST SEEN\tLAST SEEN")
			for _, d := range out {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.DocumentID, d.EventCount,
					d.FirstSeen.Format(time.RFC3339), d.LastSeen.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <document-id>",
		Short: "Show a document's ingestion batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			batches, err := rt.engine.History(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "history", err)
			}

			out := make([]BatchOutput, 0, len(batches))
			for _, b := range batches {
				out = append(out, BatchOutput{
					BatchID:    b.ID,
					ReceivedAt: b.ReceivedAt,
					Submitted:  b.Submitted,
					Appended:   b.Appended,
				})
			}
			if rootOpts.json() {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if len(out) == 0 {
				fmt.Fprintf(w, "No batches recorded for %s.\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tRECEIVED\tSUBMITTED\tAPPENDED")
			for _, b := range out {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", b.BatchID, b.ReceivedAt.Format(time.RFC3339), b.Submitted, b.Appended)
			}
			return tw.Flush()
		},
	}
}
