// Package storage provides shared types for issue storage.
//
// The concrete in-memory implementation lives in the memory sub-package.
// This package holds the interface and sentinel errors referenced by both
// the implementation and its consumers (pipeline, engine, cmd/triage).
package storage

import (
	"context"
	"errors"

	"github.com/triagehq/triage/internal/types"
)

// ErrNotFound is returned when a requested issue does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating an issue whose ID is taken.
var ErrAlreadyExists = errors.New("already exists")

// Store is the issue persistence port. Consumers depend on this interface
// rather than on the concrete type so that a fresh replay target can be
// substituted for the live store.
type Store interface {
	// Get returns a copy of the issue, or ErrNotFound.
	Get(ctx context.Context, id string) (*types.Issue, error)
	// Put stores a copy of the issue, inserting or replacing.
	Put(ctx context.Context, issue *types.Issue) error
	// Create stores the issue only if its ID is free; ErrAlreadyExists otherwise.
	Create(ctx context.Context, issue *types.Issue) error
	// Delete removes the issue, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List returns copies of all issues in stable order (CreatedAt, then ID).
	List(ctx context.Context) ([]*types.Issue, error)
	// AddComment appends a comment to an existing issue and returns the
	// stored comment with its assigned ID. ErrNotFound if the issue is missing.
	AddComment(ctx context.Context, issueID string, c *types.Comment) (*types.Comment, error)
	// Count reports how many issues the store holds.
	Count(ctx context.Context) (int, error)
}
