package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/eventlog"
	"github.com/triagehq/triage/internal/retry"
	"github.com/triagehq/triage/internal/storage/memory"
	"github.com/triagehq/triage/internal/types"
)

// stubClient returns canned results, optionally failing the first N calls
// with a transient error or every call with a fixed error.
type stubClient struct {
	mu        sync.Mutex
	analyses  int
	plans     int
	failFirst int
	failWith  error
}

func (c *stubClient) Analyze(ctx context.Context, issue *types.Issue) (*types.Analysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyses++
	if c.failWith != nil {
		return nil, c.failWith
	}
	if c.analyses <= c.failFirst {
		return nil, fmt.Errorf("transient failure %d", c.analyses)
	}
	confidence := 0.75
	return &types.Analysis{
		Labels:     []string{"bug"},
		AssignedTo: "bob",
		Confidence: &confidence,
		Priority:   types.PriorityHigh,
	}, nil
}

func (c *stubClient) PlanFix(ctx context.Context, issue *types.Issue) (*types.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans++
	if c.failWith != nil {
		return nil, c.failWith
	}
	return &types.Plan{Text: "## Plan\n1. fix it"}, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      5 * time.Millisecond,
	}
}

func newTestPipeline(t *testing.T, client *stubClient) (*Pipeline, *memory.Store, *eventlog.Memory) {
	t.Helper()
	store := memory.New()
	log := eventlog.NewMemory()
	p, err := New(store, log, client, fastPolicy())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, store, log
}

func TestCreateIssue(t *testing.T) {
	ctx := context.Background()
	p, _, log := newTestPipeline(t, &stubClient{})

	issue, err := p.CreateIssue(ctx, "Crash on startup", "segfault in init", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if issue.ID == "" || issue.Title != "Crash on startup" || issue.Status != types.StatusOpen {
		t.Errorf("issue = %+v", issue)
	}

	events, _ := log.All(ctx)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Type != event.TypeIssueCreated || events[0].IssueID != issue.ID {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].Sequence != 1 {
		t.Errorf("sequence = %d", events[0].Sequence)
	}
}

func TestUpdateIssueValidation(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, &stubClient{})

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := p.UpdateIssue(ctx, issue.ID, &types.IssueUpdate{}); err == nil {
		t.Error("empty update should fail")
	}
	bad := types.Status("deleted")
	if _, err := p.UpdateIssue(ctx, issue.ID, &types.IssueUpdate{Status: &bad}); err == nil {
		t.Error("invalid status should fail")
	}
	badP := types.Priority("urgent")
	if _, err := p.UpdateIssue(ctx, issue.ID, &types.IssueUpdate{Priority: &badP}); err == nil {
		t.Error("invalid priority should fail")
	}

	status := types.StatusInProgress
	updated, err := p.UpdateIssue(ctx, issue.ID, &types.IssueUpdate{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != types.StatusInProgress {
		t.Errorf("status = %s", updated.Status)
	}
}

func TestAddCommentAssignsOrderedIDs(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, &stubClient{})

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var ids []int64
	for _, text := range []string{"first", "second", "third"} {
		c, err := p.AddComment(ctx, issue.ID, "carol", text)
		if err != nil {
			t.Fatalf("comment: %v", err)
		}
		ids = append(ids, c.ID)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Errorf("comment IDs = %v", ids)
	}

	if _, err := p.AddComment(ctx, "tri-missing", "carol", "hi"); err == nil {
		t.Error("comment on missing issue should fail")
	}
}

func TestAnalyzeIssueRetriesThroughTransients(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{failFirst: 2}
	p, _, log := newTestPipeline(t, client)

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	analyzed, err := p.AnalyzeIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if client.analyses != 3 {
		t.Errorf("attempts = %d, want 3", client.analyses)
	}
	if analyzed.Priority != types.PriorityHigh || analyzed.AssignedTo != "bob" {
		t.Errorf("issue = %+v", analyzed)
	}

	events, _ := log.ByIssue(ctx, issue.ID)
	// One create event plus exactly one analyzed event: retries never
	// multiply events.
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[1].Type != event.TypeIssueAnalyzed {
		t.Errorf("event type = %s", events[1].Type)
	}
}

func TestAnalyzeIssueExhaustionEmitsNoEvent(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{failFirst: 100}
	p, store, log := newTestPipeline(t, client)

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := p.AnalyzeIssue(ctx, issue.ID); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if client.analyses != 4 {
		t.Errorf("attempts = %d, want 4 (maxRetries+1)", client.analyses)
	}

	events, _ := log.ByIssue(ctx, issue.ID)
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 (create only)", len(events))
	}
	got, _ := store.Get(ctx, issue.ID)
	if got.Confidence != nil || got.Priority != "" {
		t.Errorf("failed analysis mutated issue: %+v", got)
	}
}

func TestAnalyzeIssuePermanentErrorFailsFast(t *testing.T) {
	ctx := context.Background()
	// A client-side API error (bad request) is not transient: it must fail
	// on the first attempt instead of burning the whole backoff schedule.
	apiErr := &anthropic.Error{StatusCode: 400}
	client := &stubClient{failWith: apiErr}
	p, _, log := newTestPipeline(t, client)

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := p.AnalyzeIssue(ctx, issue.ID); err == nil {
		t.Fatal("expected error")
	}
	if client.analyses != 1 {
		t.Errorf("attempts = %d, want 1 (permanent error)", client.analyses)
	}

	if _, err := p.PlanIssue(ctx, issue.ID); err == nil {
		t.Fatal("expected error")
	}
	if client.plans != 1 {
		t.Errorf("plan attempts = %d, want 1 (permanent error)", client.plans)
	}

	events, _ := log.ByIssue(ctx, issue.ID)
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 (create only)", len(events))
	}
}

func TestAnalyzeWithoutClient(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log := eventlog.NewMemory()
	p, err := New(store, log, nil, fastPolicy())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := p.AnalyzeIssue(ctx, issue.ID); err == nil {
		t.Error("analyze without client should fail")
	}
	if _, err := p.PlanIssue(ctx, issue.ID); err == nil {
		t.Error("plan without client should fail")
	}
}

func TestGetIssueMissingIsNil(t *testing.T) {
	p, _, _ := newTestPipeline(t, &stubClient{})
	issue, err := p.GetIssue(context.Background(), "tri-missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if issue != nil {
		t.Errorf("issue = %+v, want nil", issue)
	}
}

func TestLiveReplayEquivalence(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, &stubClient{})

	// Drive a representative command sequence through the pipeline.
	a, err := p.CreateIssue(ctx, "first issue", "desc", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := p.CreateIssue(ctx, "second issue", "", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	status := types.StatusInProgress
	if _, err := p.UpdateIssue(ctx, a.ID, &types.IssueUpdate{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := p.AnalyzeIssue(ctx, a.ID); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := p.PlanIssue(ctx, a.ID); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := p.AddComment(ctx, a.ID, "carol", "looking"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := p.AddComment(ctx, b.ID, "carol", "dup of first?"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	// Replaying the log into a fresh store must land on exactly the live
	// state, comment IDs included.
	rebuilt := memory.New()
	report, err := p.Replay(ctx, rebuilt)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Skipped != 0 || report.Unknown != 0 {
		t.Fatalf("report = %+v", report)
	}

	live, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	replayed, err := rebuilt.List(ctx)
	if err != nil {
		t.Fatalf("list replayed: %v", err)
	}
	if !reflect.DeepEqual(live, replayed) {
		t.Errorf("live and replayed state diverged:\nlive: %+v\nreplay: %+v", live, replayed)
	}
}

func TestReplayRefusesLiveStore(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, &stubClient{})

	if _, err := p.CreateIssue(ctx, "t", "", "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := p.Replay(ctx, store); err == nil {
		t.Fatal("replay into populated store should fail")
	}
}

func TestConcurrentCommentsOnOneIssue(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, &stubClient{})

	issue, err := p.CreateIssue(ctx, "t", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.AddComment(ctx, issue.ID, "bot", fmt.Sprintf("comment %d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("comment: %v", err)
	}

	got, _ := store.Get(ctx, issue.ID)
	if len(got.Comments) != n {
		t.Fatalf("comments = %d, want %d", len(got.Comments), n)
	}
	seen := make(map[int64]bool, n)
	for _, c := range got.Comments {
		if seen[c.ID] {
			t.Errorf("duplicate comment ID %d", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestNewValidation(t *testing.T) {
	log := eventlog.NewMemory()
	store := memory.New()

	if _, err := New(nil, log, nil, fastPolicy()); err == nil {
		t.Error("nil store should fail")
	}
	if _, err := New(store, nil, nil, fastPolicy()); err == nil {
		t.Error("nil event log should fail")
	}
	if _, err := New(store, log, nil, retry.Policy{MaxRetries: -1, InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: time.Second}); err == nil {
		t.Error("invalid policy should fail")
	}
}
