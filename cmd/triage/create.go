package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	createDescription string
	createLabels      []string
	createPriority    string
	createAssignee    string
	createInteractive bool
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new issue",
	Long: `Create a new issue. With --interactive (or no title) an editor form
collects the fields; otherwise the title comes from the argument and the
rest from flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args, " "))

		if createInteractive || title == "" {
			if err := runCreateForm(&title); err != nil {
				return err
			}
		}
		if title == "" {
			return errors.New("a title is required")
		}

		issue, err := pl.CreateIssue(rootCtx, title, createDescription, cfg.Actor)
		if err != nil {
			return err
		}

		if len(createLabels) > 0 || createPriority != "" || createAssignee != "" {
			update := buildUpdate(createLabels, createPriority, createAssignee, "")
			issue, err = pl.UpdateIssue(rootCtx, issue.ID, update)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return outputJSON(issue)
		}
		fmt.Printf("Created issue %s\n", issue.ID)
		return nil
	},
}

// runCreateForm collects issue fields through an interactive terminal form.
func runCreateForm(title *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title cannot be empty")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Lines(5).
				Value(&createDescription),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("(unset)", ""),
					huh.NewOption("low", "low"),
					huh.NewOption("medium", "medium"),
					huh.NewOption("high", "high"),
				).
				Value(&createPriority),
			huh.NewInput().
				Title("Assignee").
				Value(&createAssignee),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("triage: create form: %w", err)
	}
	*title = strings.TrimSpace(*title)
	return nil
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "issue description")
	createCmd.Flags().StringSliceVarP(&createLabels, "label", "l", nil, "labels to attach (repeatable)")
	createCmd.Flags().StringVarP(&createPriority, "priority", "p", "", "priority (low|medium|high)")
	createCmd.Flags().StringVarP(&createAssignee, "assignee", "a", "", "assignee")
	createCmd.Flags().BoolVarP(&createInteractive, "interactive", "i", false, "prompt for fields interactively")
}
