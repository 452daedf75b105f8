// Package memory implements an in-process issue store.
//
// All state lives in a mutex-guarded map; values are deep-copied on the way
// in and out so callers never share memory with the store. Durability is
// out of scope here; the event log is the system of record and a fresh
// store can always be rebuilt from it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/triagehq/triage/internal/storage"
	"github.com/triagehq/triage/internal/types"
)

// Store is a mutex-guarded map keyed by issue ID.
type Store struct {
	mu            sync.RWMutex
	issues        map[string]*types.Issue
	nextCommentID int64
}

// New creates an empty in-memory issue store.
func New() *Store {
	return &Store{issues: make(map[string]*types.Issue)}
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, id string) (*types.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("memory: get issue %s: %w", id, storage.ErrNotFound)
	}
	return issue.Clone(), nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, issue *types.Issue) error {
	if issue == nil || issue.ID == "" {
		return fmt.Errorf("memory: put issue: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issues[issue.ID] = issue.Clone()
	return nil
}

// Create implements storage.Store.
func (s *Store) Create(ctx context.Context, issue *types.Issue) error {
	if issue == nil || issue.ID == "" {
		return fmt.Errorf("memory: create issue: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[issue.ID]; ok {
		return fmt.Errorf("memory: create issue %s: %w", issue.ID, storage.ErrAlreadyExists)
	}
	s.issues[issue.ID] = issue.Clone()
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return fmt.Errorf("memory: delete issue %s: %w", id, storage.ErrNotFound)
	}
	delete(s.issues, id)
	return nil
}

// List implements storage.Store. Output order is stable: CreatedAt
// ascending, ID as tie-breaker.
func (s *Store) List(ctx context.Context) ([]*types.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		out = append(out, issue.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddComment implements storage.Store. A zero comment ID is replaced with
// the next store-assigned ID; a nonzero ID is honored so that replay can
// reproduce the exact comment IDs the live run recorded.
func (s *Store) AddComment(ctx context.Context, issueID string, c *types.Comment) (*types.Comment, error) {
	if c == nil {
		return nil, fmt.Errorf("memory: add comment to issue %s: nil comment", issueID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return nil, fmt.Errorf("memory: add comment to issue %s: %w", issueID, storage.ErrNotFound)
	}

	stored := *c
	stored.IssueID = issueID
	if stored.ID == 0 {
		s.nextCommentID++
		stored.ID = s.nextCommentID
	} else if stored.ID > s.nextCommentID {
		s.nextCommentID = stored.ID
	}
	issue.Comments = append(issue.Comments, &stored)

	out := stored
	return &out, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues), nil
}
