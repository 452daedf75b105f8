package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show the full detail of an issue",
	Args:  requireIssueArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := pl.GetIssue(rootCtx, args[0])
		if err != nil {
			return err
		}
		if issue == nil {
			return fmt.Errorf("issue %s not found", args[0])
		}

		if jsonOutput {
			return outputJSON(issue)
		}
		printIssue(issue)
		return nil
	},
}
