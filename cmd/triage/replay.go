package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/storage/memory"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the event log into a fresh store and report the result",
	Long: `Replay the full event log into an empty in-memory store. This is the
same reconstruction every command performs at startup; running it
explicitly surfaces skipped or unknown events in the log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := memory.New()
		report, err := pl.Replay(rootCtx, target)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(report)
		}
		fmt.Printf("Replayed %d events: %d applied, %d skipped, %d unknown\n",
			report.Total, report.Applied, report.Skipped, report.Unknown)
		count, err := target.Count(rootCtx)
		if err != nil {
			return err
		}
		fmt.Printf("Reconstructed %d issues\n", count)
		return nil
	},
}
