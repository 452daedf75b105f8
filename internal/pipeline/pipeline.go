// Package pipeline orchestrates commands into store mutations and events.
//
// Each command (a) executes any external work, (b) mutates the live issue
// store, and (c) appends one event carrying the already-computed result to
// the log. That ordering is the boundary between doing and logging.
// Commands on the same issue ID are serialized through a per-issue lock;
// distinct issues proceed concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/triagehq/triage/internal/analysis"
	"github.com/triagehq/triage/internal/engine"
	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/eventlog"
	"github.com/triagehq/triage/internal/idgen"
	"github.com/triagehq/triage/internal/retry"
	"github.com/triagehq/triage/internal/storage"
	"github.com/triagehq/triage/internal/types"
)

// maxIDNonces bounds the collision-retry loop when generating issue IDs.
const maxIDNonces = 10

// Pipeline executes commands against the live store and records them in the
// event log. All dependencies are injected at construction.
type Pipeline struct {
	store  storage.Store
	evlog  eventlog.Log
	client analysis.Client
	policy retry.Policy
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a pipeline. The analysis client may be nil when the hosting
// process never issues analyze/plan commands (e.g. replay-only tooling).
func New(store storage.Store, evlog eventlog.Log, client analysis.Client, policy retry.Policy) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("pipeline: nil store")
	}
	if evlog == nil {
		return nil, fmt.Errorf("pipeline: nil event log")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		store:  store,
		evlog:  evlog,
		client: client,
		policy: policy,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// lock returns the mutex serializing commands for one issue ID.
// Locks are never discarded; the issue space of a single process is small.
func (p *Pipeline) lock(issueID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[issueID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[issueID] = l
	}
	return l
}

// CreateIssue creates a new issue and records the ISSUE_CREATED event.
func (p *Pipeline) CreateIssue(ctx context.Context, title, description, author string) (*types.Issue, error) {
	now := p.now()

	var lastErr error
	for nonce := 0; nonce < maxIDNonces; nonce++ {
		id := idgen.IssueID(title, author, now, nonce)
		l := p.lock(id)
		l.Lock()

		ev := &event.Event{
			Type:      event.TypeIssueCreated,
			IssueID:   id,
			Timestamp: now,
			Payload: event.CreatedPayload{
				Title:       title,
				Description: description,
				Author:      author,
				CreatedAt:   now,
			},
		}
		err := engine.Apply(ctx, p.store, ev)
		if err != nil {
			l.Unlock()
			if errors.Is(err, storage.ErrAlreadyExists) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if _, err := p.evlog.Append(ctx, ev); err != nil {
			l.Unlock()
			return nil, fmt.Errorf("pipeline: record create for %s: %w", id, err)
		}
		issue, err := p.store.Get(ctx, id)
		l.Unlock()
		return issue, err
	}
	return nil, fmt.Errorf("pipeline: create issue: id collision persisted: %w", lastErr)
}

// UpdateIssue merges the update into an existing issue and records the
// ISSUE_UPDATED event.
func (p *Pipeline) UpdateIssue(ctx context.Context, id string, update *types.IssueUpdate) (*types.Issue, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("pipeline: update issue %s: no fields to update", id)
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("pipeline: update issue %s: invalid status %q", id, *update.Status)
	}
	if update.Priority != nil && !update.Priority.IsValid() {
		return nil, fmt.Errorf("pipeline: update issue %s: invalid priority %q", id, *update.Priority)
	}

	l := p.lock(id)
	l.Lock()
	defer l.Unlock()

	now := p.now()
	ev := &event.Event{
		Type:      event.TypeIssueUpdated,
		IssueID:   id,
		Timestamp: now,
		Payload: event.UpdatedPayload{
			IssueUpdate: *update,
			UpdatedAt:   now,
		},
	}
	if err := engine.Apply(ctx, p.store, ev); err != nil {
		return nil, err
	}
	if _, err := p.evlog.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("pipeline: record update for %s: %w", id, err)
	}
	return p.store.Get(ctx, id)
}

// AddComment appends a comment to an existing issue and records the
// COMMENT_ADDED event. Commenting on a missing issue fails loudly.
func (p *Pipeline) AddComment(ctx context.Context, id, author, text string) (*types.Comment, error) {
	if text == "" {
		return nil, fmt.Errorf("pipeline: comment on issue %s: empty text", id)
	}

	l := p.lock(id)
	l.Lock()
	defer l.Unlock()

	now := p.now()
	comment, err := p.store.AddComment(ctx, id, &types.Comment{
		Author:    author,
		Text:      text,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: comment on issue %s: %w", id, err)
	}

	ev := &event.Event{
		Type:      event.TypeCommentAdded,
		IssueID:   id,
		Timestamp: now,
		Payload: event.CommentAddedPayload{
			CommentID: comment.ID,
			Author:    author,
			Text:      text,
			CreatedAt: now,
		},
	}
	if _, err := p.evlog.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("pipeline: record comment for %s: %w", id, err)
	}
	return comment, nil
}

// AnalyzeIssue runs the retry-wrapped external analysis call, merges the
// result into the live issue and records the ISSUE_ANALYZED event carrying
// the decided values.
func (p *Pipeline) AnalyzeIssue(ctx context.Context, id string) (*types.Issue, error) {
	if p.client == nil {
		return nil, fmt.Errorf("pipeline: analyze issue %s: no analysis client configured", id)
	}

	l := p.lock(id)
	l.Lock()
	defer l.Unlock()

	issue, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline: analyze issue %s: %w", id, err)
	}

	result, err := retry.Do(ctx, p.policy, "analyze", id, func(ctx context.Context) (*types.Analysis, error) {
		a, err := p.client.Analyze(ctx, issue)
		if err != nil && !analysis.IsRetryable(err) {
			return nil, retry.Permanent(err)
		}
		return a, err
	})
	if err != nil {
		return nil, err
	}

	now := p.now()
	ev := &event.Event{
		Type:      event.TypeIssueAnalyzed,
		IssueID:   id,
		Timestamp: now,
		Payload: event.AnalyzedPayload{
			Analysis:  *result,
			UpdatedAt: now,
		},
	}
	if err := engine.Apply(ctx, p.store, ev); err != nil {
		return nil, err
	}
	if _, err := p.evlog.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("pipeline: record analysis for %s: %w", id, err)
	}
	return p.store.Get(ctx, id)
}

// PlanIssue runs the retry-wrapped external planning call, stores the plan
// on the live issue and records the ISSUE_PLANNED event.
func (p *Pipeline) PlanIssue(ctx context.Context, id string) (*types.Issue, error) {
	if p.client == nil {
		return nil, fmt.Errorf("pipeline: plan issue %s: no analysis client configured", id)
	}

	l := p.lock(id)
	l.Lock()
	defer l.Unlock()

	issue, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline: plan issue %s: %w", id, err)
	}

	result, err := retry.Do(ctx, p.policy, "plan", id, func(ctx context.Context) (*types.Plan, error) {
		plan, err := p.client.PlanFix(ctx, issue)
		if err != nil && !analysis.IsRetryable(err) {
			return nil, retry.Permanent(err)
		}
		return plan, err
	})
	if err != nil {
		return nil, err
	}

	now := p.now()
	ev := &event.Event{
		Type:      event.TypeIssuePlanned,
		IssueID:   id,
		Timestamp: now,
		Payload: event.PlannedPayload{
			Plan:      result.Text,
			UpdatedAt: now,
		},
	}
	if err := engine.Apply(ctx, p.store, ev); err != nil {
		return nil, err
	}
	if _, err := p.evlog.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("pipeline: record plan for %s: %w", id, err)
	}
	return p.store.Get(ctx, id)
}

// GetIssue returns the issue, or nil (no error) when it does not exist.
// Plain lookups on unknown IDs are non-fatal by contract.
func (p *Pipeline) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := p.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return issue, err
}

// ListIssues returns all issues in stable order.
func (p *Pipeline) ListIssues(ctx context.Context) ([]*types.Issue, error) {
	return p.store.List(ctx)
}

// ListEvents returns the full event log in append order.
func (p *Pipeline) ListEvents(ctx context.Context) ([]*event.Event, error) {
	return p.evlog.All(ctx)
}

// ListEventsForIssue returns the events for one issue in append order.
func (p *Pipeline) ListEventsForIssue(ctx context.Context, id string) ([]*event.Event, error) {
	return p.evlog.ByIssue(ctx, id)
}

// Replay reconstructs all aggregates from the event log into target, which
// must be a fresh (empty) store.
func (p *Pipeline) Replay(ctx context.Context, target storage.Store) (*engine.Report, error) {
	return engine.Replay(ctx, p.evlog, target)
}
