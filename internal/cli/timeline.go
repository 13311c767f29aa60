package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"typeproof/internal/timeline"
	"typeproof/internal/verify"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	MaxCommits int
	NoSplit    bool
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline <document-id>",
		Short: "Segment a ledger into typing, correction and pause commits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.MaxCommits, "max-commits", -1, "keep at most this many recent commits (0 keeps all; default from config)")
	cmd.Flags().BoolVar(&opts.NoSplit, "no-split", false, "do not split oversized commits for display")
	return cmd
}

func runTimeline(opts *TimelineOptions, cmd *cobra.Command, docID string) error {
	rt, err := openRuntime(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	var override *timeline.Options
	if opts.MaxCommits >= 0 || opts.NoSplit {
		o := rt.cfg.TimelineOptions()
		if opts.MaxCommits >= 0 {
			o.MaxCommits = opts.MaxCommits
		}
		if opts.NoSplit {
			o.SplitOversized = false
		}
		override = &o
	}

	res, err := rt.engine.Timeline(cmd.Context(), docID, override)
	if err != nil {
		return WrapExitError(ExitCommandError, "timeline", err)
	}

	switch opts.reportFormat() {
	case verify.FormatJSON:
		return writeJSON(cmd.OutOrStdout(), res)
	case verify.FormatMarkdown:
		return writeTimelineMarkdown(cmd.OutOrStdout(), docID, res)
	default:
		return writeTimelineText(cmd.OutOrStdout(), docID, res)
	}
}

func commitTime(ts float64) string {
	return time.UnixMilli(int64(ts * 1000)).UTC().Format("15:04:05.000")
}

func writeTimelineText(w io.Writer, docID string, res timeline.Result) error {
	fmt.Fprintf(w, "Timeline for %s (%d commits, pause threshold %.0fms)\n\n",
		docID, len(res.Commits), res.ThresholdMs)
	if len(res.Commits) == 0 {
		fmt.Fprintln(w, "No keystrokes recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTYPE\tKEYS\tBACKSPACES\tDURATION\tINTENSITY")
	for _, c := range res.Commits {
		typ := string(c.Type)
		if c.Synthetic {
			typ += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.0fms\t%.2f\n",
			c.ID, commitTime(c.Timestamp), typ, c.KeystrokeCount, c.BackspaceCount, c.DurationMs, c.Intensity)
	}
	return tw.Flush()
}

func writeTimelineMarkdown(w io.Writer, docID string, res timeline.Result) error {
	fmt.Fprintf(w, "# Timeline: %s\n\n", docID)
	fmt.Fprintf(w, "Pause threshold: %.0fms\n\n", res.ThresholdMs)
	fmt.Fprintln(w, "| ID | Time | Type | Keys | Backspaces | Duration | Intensity |")
	fmt.Fprintln(w, "|----|------|------|------|------------|----------|-----------|")
	for _, c := range res.Commits {
		fmt.Fprintf(w, "| %s | %s | %s | %d | %d | %.0fms | %.2f |\n",
			c.ID, commitTime(c.Timestamp), c.Type, c.KeystrokeCount, c.BackspaceCount, c.DurationMs, c.Intensity)
	}
	return nil
}
