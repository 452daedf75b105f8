package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triagehq/triage/internal/types"
	"github.com/triagehq/triage/internal/ui"
)

// outputJSON marshals v with indentation to stdout.
func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("triage: marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// renderPlan renders an issue's plan as terminal markdown.
func renderPlan(issue *types.Issue) string {
	if issue.Plan == "" {
		return ""
	}
	return ui.RenderMarkdown(issue.Plan)
}

// printIssueLine renders a one-line summary of an issue for list output.
func printIssueLine(issue *types.Issue) {
	useColor := ui.ShouldUseColor()

	id := issue.ID
	status := string(issue.Status)
	if useColor {
		id = ui.RenderID(id)
		status = ui.RenderStatus(issue.Status)
	}

	line := fmt.Sprintf("%s  [%s]  %s", id, status, issue.Title)
	if issue.Priority != "" {
		p := string(issue.Priority)
		if useColor {
			p = ui.RenderPriority(issue.Priority)
		}
		line += fmt.Sprintf("  (%s)", p)
	}
	if len(issue.Labels) > 0 {
		tail := "[" + strings.Join(issue.Labels, ", ") + "]"
		if useColor {
			tail = ui.RenderMuted(tail)
		}
		line += "  " + tail
	}
	fmt.Println(line)
}

// printIssue renders the full detail view of an issue.
func printIssue(issue *types.Issue) {
	useColor := ui.ShouldUseColor()

	header := fmt.Sprintf("%s: %s", issue.ID, issue.Title)
	if useColor {
		header = ui.HeaderStyle.Render(header)
	}
	fmt.Println(header)

	status := string(issue.Status)
	if useColor {
		status = ui.RenderStatus(issue.Status)
	}
	fmt.Printf("Status:   %s\n", status)
	if issue.Priority != "" {
		p := string(issue.Priority)
		if useColor {
			p = ui.RenderPriority(issue.Priority)
		}
		fmt.Printf("Priority: %s\n", p)
	}
	if issue.Author != "" {
		fmt.Printf("Author:   %s\n", issue.Author)
	}
	if issue.AssignedTo != "" {
		fmt.Printf("Assignee: %s\n", issue.AssignedTo)
	}
	if len(issue.Labels) > 0 {
		fmt.Printf("Labels:   %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.Confidence != nil {
		fmt.Printf("Confidence: %.2f\n", *issue.Confidence)
	}
	fmt.Printf("Created:  %s\n", issue.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:  %s\n", issue.UpdatedAt.Format("2006-01-02 15:04:05"))

	if issue.Description != "" {
		fmt.Println()
		fmt.Println(issue.Description)
	}

	if issue.Plan != "" {
		fmt.Println()
		title := "Plan"
		if useColor {
			title = ui.HeaderStyle.Render(title)
		}
		fmt.Println(title)
		fmt.Println(ui.RenderMarkdown(issue.Plan))
	}

	if len(issue.Comments) > 0 {
		fmt.Println()
		title := fmt.Sprintf("Comments (%d)", len(issue.Comments))
		if useColor {
			title = ui.HeaderStyle.Render(title)
		}
		fmt.Println(title)
		for _, c := range issue.Comments {
			meta := fmt.Sprintf("#%d %s at %s", c.ID, c.Author, c.CreatedAt.Format("2006-01-02 15:04"))
			if useColor {
				meta = ui.RenderMuted(meta)
			}
			fmt.Printf("  %s\n    %s\n", meta, c.Text)
		}
	}
}
