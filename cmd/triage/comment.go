package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment <issue-id> <text>",
	Short: "Add a comment to an issue",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return errors.New("expected an issue ID and the comment text")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return errors.New("comment text cannot be empty")
		}

		comment, err := pl.AddComment(rootCtx, args[0], cfg.Actor, text)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(comment)
		}
		fmt.Printf("Added comment #%d to %s\n", comment.ID, args[0])
		return nil
	},
}
