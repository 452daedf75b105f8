package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/eventlog"
	"github.com/triagehq/triage/internal/storage"
	"github.com/triagehq/triage/internal/storage/memory"
	"github.com/triagehq/triage/internal/types"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func createdEvent(issueID, title string, ts time.Time) *event.Event {
	return &event.Event{
		Type:      event.TypeIssueCreated,
		IssueID:   issueID,
		Timestamp: ts,
		Payload:   event.CreatedPayload{Title: title, Author: "alice", CreatedAt: ts},
	}
}

func TestApplyCreated(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	if err := Apply(ctx, store, createdEvent("tri-1", "Crash on startup", baseTime)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	issue, err := store.Get(ctx, "tri-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if issue.Title != "Crash on startup" || issue.Author != "alice" {
		t.Errorf("issue = %+v", issue)
	}
	if issue.Status != types.StatusOpen {
		t.Errorf("status = %s, want open", issue.Status)
	}
	if !issue.CreatedAt.Equal(baseTime) || !issue.UpdatedAt.Equal(baseTime) {
		t.Errorf("timestamps: created %v, updated %v", issue.CreatedAt, issue.UpdatedAt)
	}

	// Creating the same ID twice conflicts.
	err = Apply(ctx, store, createdEvent("tri-1", "duplicate", baseTime))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestApplyUpdated(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := Apply(ctx, store, createdEvent("tri-1", "old title", baseTime)); err != nil {
		t.Fatalf("create: %v", err)
	}

	newTitle := "new title"
	status := types.StatusClosed
	later := baseTime.Add(time.Hour)
	err := Apply(ctx, store, &event.Event{
		Type:      event.TypeIssueUpdated,
		IssueID:   "tri-1",
		Timestamp: later,
		Payload: event.UpdatedPayload{
			IssueUpdate: types.IssueUpdate{Title: &newTitle, Status: &status},
			UpdatedAt:   later,
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	issue, _ := store.Get(ctx, "tri-1")
	if issue.Title != "new title" || issue.Status != types.StatusClosed {
		t.Errorf("issue = %+v", issue)
	}
	if !issue.UpdatedAt.Equal(later) {
		t.Errorf("updatedAt = %v, want %v", issue.UpdatedAt, later)
	}
	if !issue.CreatedAt.Equal(baseTime) {
		t.Errorf("createdAt changed: %v", issue.CreatedAt)
	}

	// Updating a missing issue fails with ErrNotFound.
	err = Apply(ctx, store, &event.Event{
		Type:      event.TypeIssueUpdated,
		IssueID:   "tri-missing",
		Timestamp: later,
		Payload:   event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &newTitle}},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyAnalyzedAndPlanned(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := Apply(ctx, store, createdEvent("tri-1", "t", baseTime)); err != nil {
		t.Fatalf("create: %v", err)
	}

	confidence := 0.91
	later := baseTime.Add(time.Minute)
	err := Apply(ctx, store, &event.Event{
		Type:      event.TypeIssueAnalyzed,
		IssueID:   "tri-1",
		Timestamp: later,
		Payload: event.AnalyzedPayload{
			Analysis: types.Analysis{
				Labels:     []string{"bug", "backend"},
				AssignedTo: "bob",
				Confidence: &confidence,
				Priority:   types.PriorityHigh,
			},
			UpdatedAt: later,
		},
	})
	if err != nil {
		t.Fatalf("apply analyzed: %v", err)
	}

	err = Apply(ctx, store, &event.Event{
		Type:      event.TypeIssuePlanned,
		IssueID:   "tri-1",
		Timestamp: later.Add(time.Minute),
		Payload:   event.PlannedPayload{Plan: "## Steps", UpdatedAt: later.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("apply planned: %v", err)
	}

	issue, _ := store.Get(ctx, "tri-1")
	if !reflect.DeepEqual(issue.Labels, []string{"bug", "backend"}) {
		t.Errorf("labels = %v", issue.Labels)
	}
	if issue.AssignedTo != "bob" || issue.Priority != types.PriorityHigh {
		t.Errorf("issue = %+v", issue)
	}
	if issue.Confidence == nil || *issue.Confidence != 0.91 {
		t.Errorf("confidence = %v", issue.Confidence)
	}
	if issue.Plan != "## Steps" {
		t.Errorf("plan = %q", issue.Plan)
	}
}

func TestApplyCommentAdded(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := Apply(ctx, store, createdEvent("tri-1", "t", baseTime)); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i, text := range []string{"first", "second"} {
		err := Apply(ctx, store, &event.Event{
			Type:      event.TypeCommentAdded,
			IssueID:   "tri-1",
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Payload: event.CommentAddedPayload{
				CommentID: int64(i + 1),
				Author:    "carol",
				Text:      text,
				CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			},
		})
		if err != nil {
			t.Fatalf("apply comment %d: %v", i, err)
		}
	}

	issue, _ := store.Get(ctx, "tri-1")
	if len(issue.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(issue.Comments))
	}
	if issue.Comments[0].Text != "first" || issue.Comments[1].Text != "second" {
		t.Errorf("comment order: %q then %q", issue.Comments[0].Text, issue.Comments[1].Text)
	}
	if issue.Comments[0].ID != 1 || issue.Comments[1].ID != 2 {
		t.Errorf("comment IDs: %d, %d", issue.Comments[0].ID, issue.Comments[1].ID)
	}
}

func TestApplyUnknownType(t *testing.T) {
	err := Apply(context.Background(), memory.New(), &event.Event{
		Type:    "ISSUE_MIGRATED",
		IssueID: "tri-1",
		Payload: event.RawPayload{Data: json.RawMessage(`{}`)},
	})
	var ute *UnknownTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("err = %v, want UnknownTypeError", err)
	}
	if ute.Type != "ISSUE_MIGRATED" {
		t.Errorf("type = %s", ute.Type)
	}
}

func TestReplayDeterministic(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory()

	newTitle := "renamed"
	confidence := 0.8
	events := []*event.Event{
		createdEvent("tri-1", "first", baseTime),
		createdEvent("tri-2", "second", baseTime.Add(time.Second)),
		{
			Type: event.TypeIssueUpdated, IssueID: "tri-1", Timestamp: baseTime.Add(2 * time.Second),
			Payload: event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &newTitle}, UpdatedAt: baseTime.Add(2 * time.Second)},
		},
		{
			Type: event.TypeIssueAnalyzed, IssueID: "tri-2", Timestamp: baseTime.Add(3 * time.Second),
			Payload: event.AnalyzedPayload{Analysis: types.Analysis{Confidence: &confidence, Priority: types.PriorityLow}, UpdatedAt: baseTime.Add(3 * time.Second)},
		},
		{
			Type: event.TypeCommentAdded, IssueID: "tri-1", Timestamp: baseTime.Add(4 * time.Second),
			Payload: event.CommentAddedPayload{CommentID: 1, Author: "carol", Text: "hi", CreatedAt: baseTime.Add(4 * time.Second)},
		},
	}
	for _, ev := range events {
		if _, err := log.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	first := memory.New()
	report, err := Replay(ctx, log, first)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Applied != 5 || report.Skipped != 0 || report.Unknown != 0 {
		t.Fatalf("report = %+v", report)
	}

	second := memory.New()
	if _, err := Replay(ctx, log, second); err != nil {
		t.Fatalf("second replay: %v", err)
	}

	a, _ := first.List(ctx)
	b, _ := second.List(ctx)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("replays diverged:\n%+v\n%+v", a, b)
	}
}

func TestReplayOrdersByTimestampThenSequence(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory()

	// Append out of timestamp order: the update is appended first but
	// carries a later timestamp than the create.
	titleA := "from earlier event"
	titleB := "from later event"
	later := baseTime.Add(time.Hour)
	events := []*event.Event{
		{
			Type: event.TypeIssueUpdated, IssueID: "tri-1", Timestamp: later,
			Payload: event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &titleB}, UpdatedAt: later},
		},
		createdEvent("tri-1", "created", baseTime),
		// Same timestamp as the first update; sequence breaks the tie, so
		// this one wins.
		{
			Type: event.TypeIssueUpdated, IssueID: "tri-1", Timestamp: later,
			Payload: event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &titleA}, UpdatedAt: later},
		},
	}
	for _, ev := range events {
		if _, err := log.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	store := memory.New()
	report, err := Replay(ctx, log, store)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Applied != 3 {
		t.Fatalf("report = %+v", report)
	}

	issue, _ := store.Get(ctx, "tri-1")
	if issue.Title != titleA {
		t.Errorf("title = %q, want %q (sequence tie-break)", issue.Title, titleA)
	}
}

func TestReplaySkipsUnknownAndBrokenEvents(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory()

	newTitle := "renamed"
	events := []*event.Event{
		createdEvent("tri-1", "t", baseTime),
		// Unknown type: counted separately, not fatal.
		{
			Type: "ISSUE_MIGRATED", IssueID: "tri-1", Timestamp: baseTime.Add(time.Second),
			Payload: event.RawPayload{Data: json.RawMessage(`{"from":"jira"}`)},
		},
		// Update for an aggregate that was never created: skipped.
		{
			Type: event.TypeIssueUpdated, IssueID: "tri-ghost", Timestamp: baseTime.Add(2 * time.Second),
			Payload: event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &newTitle}},
		},
		// A good event after the bad ones still applies.
		{
			Type: event.TypeIssueUpdated, IssueID: "tri-1", Timestamp: baseTime.Add(3 * time.Second),
			Payload: event.UpdatedPayload{IssueUpdate: types.IssueUpdate{Title: &newTitle}, UpdatedAt: baseTime.Add(3 * time.Second)},
		},
	}
	for _, ev := range events {
		if _, err := log.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	store := memory.New()
	report, err := Replay(ctx, log, store)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Total != 4 || report.Applied != 2 || report.Skipped != 1 || report.Unknown != 1 {
		t.Errorf("report = %+v", report)
	}

	issue, _ := store.Get(ctx, "tri-1")
	if issue.Title != "renamed" {
		t.Errorf("title = %q", issue.Title)
	}
}

func TestReplayRefusesPopulatedTarget(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory()

	store := memory.New()
	if err := store.Create(ctx, &types.Issue{ID: "tri-existing", Title: "t", Status: types.StatusOpen}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := Replay(ctx, log, store); !errors.Is(err, ErrTargetNotEmpty) {
		t.Fatalf("err = %v, want ErrTargetNotEmpty", err)
	}
}

func TestReplayEmptyLog(t *testing.T) {
	report, err := Replay(context.Background(), eventlog.NewMemory(), memory.New())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Total != 0 || report.Applied != 0 {
		t.Errorf("report = %+v", report)
	}
}
