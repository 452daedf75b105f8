package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/types"
)

var (
	listStatus   string
	listPriority string
	listLabel    string
	listAssignee string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := pl.ListIssues(rootCtx)
		if err != nil {
			return err
		}

		filtered := make([]*types.Issue, 0, len(issues))
		for _, issue := range issues {
			if listStatus != "" && string(issue.Status) != listStatus {
				continue
			}
			if listPriority != "" && string(issue.Priority) != listPriority {
				continue
			}
			if listLabel != "" && !slices.Contains(issue.Labels, listLabel) {
				continue
			}
			if listAssignee != "" && issue.AssignedTo != listAssignee {
				continue
			}
			filtered = append(filtered, issue)
		}

		if jsonOutput {
			return outputJSON(filtered)
		}
		if len(filtered) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		for _, issue := range filtered {
			printIssueLine(issue)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().StringVarP(&listPriority, "priority", "p", "", "filter by priority")
	listCmd.Flags().StringVarP(&listLabel, "label", "l", "", "filter by label")
	listCmd.Flags().StringVarP(&listAssignee, "assignee", "a", "", "filter by assignee")
}
