package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/timeparsing"
	"github.com/triagehq/triage/internal/ui"
)

var (
	eventsIssue string
	eventsSince string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the event log",
	Long: `Show the recorded events, oldest first. --since accepts RFC3339
timestamps, compact durations like -2h or -1d, and natural language
like "yesterday" or "last monday".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var events []*event.Event
		var err error
		if eventsIssue != "" {
			events, err = pl.ListEventsForIssue(rootCtx, eventsIssue)
		} else {
			events, err = pl.ListEvents(rootCtx)
		}
		if err != nil {
			return err
		}

		if eventsSince != "" {
			cutoff, err := timeparsing.Parse(eventsSince, time.Now())
			if err != nil {
				return fmt.Errorf("triage: parse --since %q: %w", eventsSince, err)
			}
			filtered := events[:0]
			for _, ev := range events {
				if !ev.Timestamp.Before(cutoff) {
					filtered = append(filtered, ev)
				}
			}
			events = filtered
		}

		if jsonOutput {
			return outputJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		useColor := ui.ShouldUseColor()
		for _, ev := range events {
			ts := ev.Timestamp.Format("2006-01-02 15:04:05")
			if useColor {
				ts = ui.RenderMuted(ts)
			}
			fmt.Printf("%s  #%-4d %-16s %s  %s\n", ts, ev.Sequence, ev.Type, ev.IssueID, ev.ID)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsIssue, "issue", "", "only events for this issue")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events at or after this time")
}
