// Package engine applies events to issue aggregates.
//
// Apply is the single transition table: the live pipeline and the replay
// engine both go through it, so a replayed log lands on exactly the state
// the live run produced. Events carry already-decided values (analysis
// results, plans, comment IDs); applying one never reaches outside the
// store it is given.
package engine

import (
	"context"
	"fmt"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/storage"
	"github.com/triagehq/triage/internal/types"
)

// UnknownTypeError reports an event whose type is outside the known set.
// Replay treats it as a warning, not a failure.
type UnknownTypeError struct {
	Type event.Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// Apply mutates the store according to one event. Errors are per-event:
// a conflict on create, a missing aggregate on anything else, or an unknown
// payload type. Nothing here is fatal to a batch.
func Apply(ctx context.Context, store storage.Store, ev *event.Event) error {
	switch p := ev.Payload.(type) {
	case event.CreatedPayload:
		return applyCreated(ctx, store, ev, p)
	case event.UpdatedPayload:
		return applyUpdated(ctx, store, ev, p)
	case event.AnalyzedPayload:
		return applyAnalyzed(ctx, store, ev, p)
	case event.PlannedPayload:
		return applyPlanned(ctx, store, ev, p)
	case event.CommentAddedPayload:
		return applyCommentAdded(ctx, store, ev, p)
	default:
		return &UnknownTypeError{Type: ev.Type}
	}
}

func applyCreated(ctx context.Context, store storage.Store, ev *event.Event, p event.CreatedPayload) error {
	issue := &types.Issue{
		ID:          ev.IssueID,
		Title:       p.Title,
		Description: p.Description,
		Author:      p.Author,
		Status:      types.StatusOpen,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.CreatedAt,
	}
	if err := store.Create(ctx, issue); err != nil {
		return fmt.Errorf("engine: create issue %s: %w", ev.IssueID, err)
	}
	return nil
}

func applyUpdated(ctx context.Context, store storage.Store, ev *event.Event, p event.UpdatedPayload) error {
	issue, err := store.Get(ctx, ev.IssueID)
	if err != nil {
		return fmt.Errorf("engine: update issue %s: %w", ev.IssueID, err)
	}
	issue.ApplyUpdate(&p.IssueUpdate)
	issue.UpdatedAt = p.UpdatedAt
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = ev.Timestamp
	}
	if err := store.Put(ctx, issue); err != nil {
		return fmt.Errorf("engine: update issue %s: %w", ev.IssueID, err)
	}
	return nil
}

func applyAnalyzed(ctx context.Context, store storage.Store, ev *event.Event, p event.AnalyzedPayload) error {
	issue, err := store.Get(ctx, ev.IssueID)
	if err != nil {
		return fmt.Errorf("engine: analyze issue %s: %w", ev.IssueID, err)
	}
	issue.ApplyAnalysis(&p.Analysis)
	issue.UpdatedAt = p.UpdatedAt
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = ev.Timestamp
	}
	if err := store.Put(ctx, issue); err != nil {
		return fmt.Errorf("engine: analyze issue %s: %w", ev.IssueID, err)
	}
	return nil
}

func applyPlanned(ctx context.Context, store storage.Store, ev *event.Event, p event.PlannedPayload) error {
	issue, err := store.Get(ctx, ev.IssueID)
	if err != nil {
		return fmt.Errorf("engine: plan issue %s: %w", ev.IssueID, err)
	}
	issue.Plan = p.Plan
	issue.UpdatedAt = p.UpdatedAt
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = ev.Timestamp
	}
	if err := store.Put(ctx, issue); err != nil {
		return fmt.Errorf("engine: plan issue %s: %w", ev.IssueID, err)
	}
	return nil
}

func applyCommentAdded(ctx context.Context, store storage.Store, ev *event.Event, p event.CommentAddedPayload) error {
	comment := &types.Comment{
		ID:        p.CommentID,
		IssueID:   ev.IssueID,
		Author:    p.Author,
		Text:      p.Text,
		CreatedAt: p.CreatedAt,
	}
	if _, err := store.AddComment(ctx, ev.IssueID, comment); err != nil {
		return fmt.Errorf("engine: comment on issue %s: %w", ev.IssueID, err)
	}
	return nil
}
