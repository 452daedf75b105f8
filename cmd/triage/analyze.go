package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/triagehq/triage/internal/types"
)

var analyzeConcurrency int

var analyzeCmd = &cobra.Command{
	Use:   "analyze <issue-id> [issue-id...]",
	Short: "Run AI analysis on one or more issues",
	Long: `Run AI analysis on the given issues. The result (labels, assignee,
confidence, priority) is recorded as an event and merged into the issue.
Multiple issues are analyzed concurrently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, ctx := errgroup.WithContext(rootCtx)
		g.SetLimit(analyzeConcurrency)

		var mu sync.Mutex
		results := make(map[string]*types.Issue, len(args))

		for _, id := range args {
			g.Go(func() error {
				issue, err := pl.AnalyzeIssue(ctx, id)
				if err != nil {
					return fmt.Errorf("analyze %s: %w", id, err)
				}
				mu.Lock()
				results[id] = issue
				mu.Unlock()
				return nil
			})
		}
		err := g.Wait()

		if jsonOutput {
			ordered := make([]*types.Issue, 0, len(results))
			for _, id := range args {
				if issue, ok := results[id]; ok {
					ordered = append(ordered, issue)
				}
			}
			if jsonErr := outputJSON(ordered); jsonErr != nil {
				return jsonErr
			}
			return err
		}

		for _, id := range args {
			issue, ok := results[id]
			if !ok {
				continue
			}
			confidence := "n/a"
			if issue.Confidence != nil {
				confidence = fmt.Sprintf("%.2f", *issue.Confidence)
			}
			fmt.Printf("Analyzed %s: priority=%s confidence=%s labels=%v\n",
				issue.ID, issue.Priority, confidence, issue.Labels)
		}
		return err
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <issue-id>",
	Short: "Generate an AI fix plan for an issue",
	Args:  requireIssueArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := pl.PlanIssue(rootCtx, args[0])
		if err != nil {
			return err
		}
		if issue.Plan == "" {
			return errors.New("planning produced no plan")
		}

		if jsonOutput {
			return outputJSON(issue)
		}
		fmt.Printf("Plan for %s:\n\n", issue.ID)
		fmt.Println(renderPlan(issue))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 4, "max issues analyzed in parallel")
}
