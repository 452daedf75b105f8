package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/types"
)

type statsSummary struct {
	Issues     int            `json:"issues"`
	Events     int            `json:"events"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
	Analyzed   int            `json:"analyzed"`
	Planned    int            `json:"planned"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show issue and event counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := pl.ListIssues(rootCtx)
		if err != nil {
			return err
		}
		events, err := pl.ListEvents(rootCtx)
		if err != nil {
			return err
		}

		summary := statsSummary{
			Issues:     len(issues),
			Events:     len(events),
			ByStatus:   make(map[string]int),
			ByPriority: make(map[string]int),
		}
		for _, issue := range issues {
			summary.ByStatus[string(issue.Status)]++
			if issue.Priority != "" {
				summary.ByPriority[string(issue.Priority)]++
			}
			if issue.Confidence != nil {
				summary.Analyzed++
			}
			if issue.Plan != "" {
				summary.Planned++
			}
		}

		if jsonOutput {
			return outputJSON(summary)
		}
		fmt.Printf("Issues: %d  Events: %d\n", summary.Issues, summary.Events)
		for _, s := range []types.Status{types.StatusOpen, types.StatusInProgress, types.StatusClosed} {
			if n := summary.ByStatus[string(s)]; n > 0 {
				fmt.Printf("  %-12s %d\n", s, n)
			}
		}
		for _, p := range []types.Priority{types.PriorityHigh, types.PriorityMedium, types.PriorityLow} {
			if n := summary.ByPriority[string(p)]; n > 0 {
				fmt.Printf("  %-12s %d\n", p, n)
			}
		}
		fmt.Printf("Analyzed: %d  Planned: %d\n", summary.Analyzed, summary.Planned)
		return nil
	},
}
