// Package types defines core data structures for the triage service.
package types

import (
	"fmt"
	"time"
)

// Issue is the current-state projection of one tracked issue. It is the
// aggregate that events fold into: every field below either comes from the
// creating event or from a later event for the same ID.
type Issue struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Confidence  *float64   `json:"confidence,omitempty"` // 0.0–1.0, set by analysis
	Priority    Priority   `json:"priority,omitempty"`
	Plan        string     `json:"plan,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Comments    []*Comment `json:"comments,omitempty"`
}

// Comment represents a comment on an issue.
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Status represents the current state of an issue.
type Status string

// Issue status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Priority represents analysis-assigned urgency.
type Priority string

// Priority constants
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid checks if the priority value is valid. The empty string is valid:
// priority is optional until analysis assigns one.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, "":
		return true
	}
	return false
}

// Validate checks if the issue has valid field values.
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(i.Title))
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", i.Status)
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", i.Priority)
	}
	if i.Confidence != nil && (*i.Confidence < 0 || *i.Confidence > 1) {
		return fmt.Errorf("confidence must be between 0 and 1 (got %g)", *i.Confidence)
	}
	return nil
}

// SetDefaults applies default values for fields omitted at creation:
// Status defaults to open.
func (i *Issue) SetDefaults() {
	if i.Status == "" {
		i.Status = StatusOpen
	}
}

// Clone returns a deep copy of the issue. Stores hand out clones so callers
// can never mutate shared state.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	out := *i
	if i.Labels != nil {
		out.Labels = make([]string, len(i.Labels))
		copy(out.Labels, i.Labels)
	}
	if i.Confidence != nil {
		c := *i.Confidence
		out.Confidence = &c
	}
	if i.Comments != nil {
		out.Comments = make([]*Comment, len(i.Comments))
		for n, c := range i.Comments {
			cc := *c
			out.Comments[n] = &cc
		}
	}
	return &out
}

// IssueUpdate carries the optional fields of an update command. Nil fields
// are left untouched on merge.
type IssueUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u *IssueUpdate) IsEmpty() bool {
	return u == nil || (u.Title == nil && u.Description == nil && u.Status == nil &&
		u.AssignedTo == nil && u.Labels == nil && u.Priority == nil)
}

// ApplyUpdate merges the non-nil fields of an update into the issue.
// UpdatedAt is the caller's responsibility: live commands stamp now, replay
// stamps the event timestamp.
func (i *Issue) ApplyUpdate(u *IssueUpdate) {
	if u == nil {
		return
	}
	if u.Title != nil {
		i.Title = *u.Title
	}
	if u.Description != nil {
		i.Description = *u.Description
	}
	if u.Status != nil {
		i.Status = *u.Status
	}
	if u.AssignedTo != nil {
		i.AssignedTo = *u.AssignedTo
	}
	if u.Labels != nil {
		i.Labels = make([]string, len(u.Labels))
		copy(i.Labels, u.Labels)
	}
	if u.Priority != nil {
		i.Priority = *u.Priority
	}
}

// Analysis is the structured result of an AI analysis call. The values are
// decided once, at call time; events carry them verbatim so replay never
// re-invokes the analyzer.
type Analysis struct {
	Labels     []string `json:"labels,omitempty"`
	AssignedTo string   `json:"assigned_to,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Priority   Priority `json:"priority,omitempty"`
}

// ApplyAnalysis merges analysis results into the issue.
func (i *Issue) ApplyAnalysis(a *Analysis) {
	if a == nil {
		return
	}
	if a.Labels != nil {
		i.Labels = make([]string, len(a.Labels))
		copy(i.Labels, a.Labels)
	}
	if a.AssignedTo != "" {
		i.AssignedTo = a.AssignedTo
	}
	if a.Confidence != nil {
		c := *a.Confidence
		i.Confidence = &c
	}
	if a.Priority != "" {
		i.Priority = a.Priority
	}
}

// Plan is the structured result of an AI planning call.
type Plan struct {
	Text string `json:"text"`
}
