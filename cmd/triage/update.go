package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/types"
)

var (
	updateTitle       string
	updateDescription string
	updateStatus      string
	updateLabels      []string
	updatePriority    string
	updateAssignee    string
)

var updateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update fields of an issue",
	Args:  requireIssueArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		update := buildUpdate(updateLabels, updatePriority, updateAssignee, updateStatus)
		if cmd.Flags().Changed("title") {
			update.Title = &updateTitle
		}
		if cmd.Flags().Changed("description") {
			update.Description = &updateDescription
		}

		issue, err := pl.UpdateIssue(rootCtx, args[0], update)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(issue)
		}
		fmt.Printf("Updated issue %s\n", issue.ID)
		return nil
	},
}

// buildUpdate assembles an IssueUpdate from the common flag values,
// leaving untouched fields nil.
func buildUpdate(labels []string, priority, assignee, status string) *types.IssueUpdate {
	update := &types.IssueUpdate{}
	if len(labels) > 0 {
		update.Labels = labels
	}
	if priority != "" {
		p := types.Priority(priority)
		update.Priority = &p
	}
	if assignee != "" {
		update.AssignedTo = &assignee
	}
	if status != "" {
		s := types.Status(status)
		update.Status = &s
	}
	return update
}

func init() {
	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "new title")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "new description")
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "new status (open|in_progress|closed)")
	updateCmd.Flags().StringSliceVarP(&updateLabels, "label", "l", nil, "replace labels (repeatable)")
	updateCmd.Flags().StringVarP(&updatePriority, "priority", "p", "", "new priority (low|medium|high)")
	updateCmd.Flags().StringVarP(&updateAssignee, "assignee", "a", "", "new assignee")
}
