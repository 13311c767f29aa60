package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"typeproof/internal/keystroke"
	"typeproof/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
}

// IngestOutput is the JSON form of an ingest result.
type IngestOutput struct {
	DocumentID       string `json:"document_id"`
	BatchID          string `json:"batch_id"`
	Appended         int    `json:"appended"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	Rejected         int    `json:"rejected"`
	Truncated        int    `json:"truncated"`
	LedgerFull       bool   `json:"ledger_full,omitempty"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "ingest [document-id] <events.json>",
		Short: "Append a batch of raw keystroke events to a ledger",
		Long: `Append a JSON array of raw keystroke events to a document's ledger.

Events already stored under the same sequence number are skipped, so
re-sending a batch is harmless. Malformed events are counted and dropped.
Without a document ID a new one is generated and printed. Use "-" to read
events from stdin.

Examples:
  typeproofctl ingest essay-42 events.json
  capture-tool | typeproofctl ingest essay-42 -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, path := uuid.NewString(), args[0]
			if len(args) == 2 {
				docID, path = args[0], args[1]
			}
			return runIngest(opts, cmd, docID, path)
		},
	}
}

func runIngest(opts *IngestOptions, cmd *cobra.Command, docID, path string) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read events", err)
	}
	raws, err := keystroke.DecodeRawEvents(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "decode events", err)
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Ingest(cmd.Context(), docID, raws)
	full := errors.Is(err, store.ErrLedgerFull)
	if err != nil && !full {
		return WrapExitError(ExitCommandError, "ingest", err)
	}

	out := IngestOutput{
		DocumentID:       docID,
		BatchID:          res.BatchID,
		Appended:         res.Appended,
		SkippedDuplicate: res.SkippedDuplicate,
		Rejected:         res.Rejected,
		Truncated:        res.Truncated,
		LedgerFull:       full,
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Document:  %s\n", out.DocumentID)
	fmt.Fprintf(w, "Batch:     %s\n", out.BatchID)
	fmt.Fprintf(w, "Appended:  %d\n", out.Appended)
	fmt.Fprintf(w, "Duplicate: %d\n", out.SkippedDuplicate)
	fmt.Fprintf(w, "Rejected:  %d\n", out.Rejected)
	if out.Truncated > 0 {
		fmt.Fprintf(w, "Truncated: %d\n", out.Truncated)
	}
	if full {
		fmt.Fprintln(w, "Ledger is full; remaining events were not stored.")
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
