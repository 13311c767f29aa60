// typeproofctl is the operator CLI for the keystroke provenance engine.
//
//	typeproofctl ingest <doc> <events.json>     Append raw keystroke events
//	typeproofctl verify <doc> <content-file>    Print a verification report
//	typeproofctl replay <doc>                   Reconstruct the typed text
//	typeproofctl timeline <doc>                 Segment the editing timeline
//	typeproofctl documents | history <doc>      Inspect stored ledgers
//	typeproofctl config init|show|validate|watch
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"typeproof/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
