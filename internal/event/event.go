// Package event defines the immutable domain events of the triage service.
//
// Events are the system of record: every state change to an issue is
// captured as exactly one event, and the full aggregate state can be
// rebuilt from the event stream alone. Analysis and planning events carry
// the already-decided results, never a reference to the call that produced
// them, which is what keeps replay deterministic and side-effect free.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/triagehq/triage/internal/types"
)

// Type identifies what happened to an issue.
type Type string

// Event type constants. This is a closed set: the replay engine warns and
// skips anything outside it rather than failing.
const (
	TypeIssueCreated  Type = "ISSUE_CREATED"
	TypeIssueUpdated  Type = "ISSUE_UPDATED"
	TypeIssueAnalyzed Type = "ISSUE_ANALYZED"
	TypeIssuePlanned  Type = "ISSUE_PLANNED"
	TypeCommentAdded  Type = "COMMENT_ADDED"
)

// IsValid checks if the event type is one of the known constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeIssueCreated, TypeIssueUpdated, TypeIssueAnalyzed, TypeIssuePlanned, TypeCommentAdded:
		return true
	}
	return false
}

// Event is a single immutable record in the log.
//
// ID and Timestamp are filled by the log at append time when absent;
// Sequence is always assigned by the log (strictly increasing, starting at
// 1, global across all issues) and is the deterministic tie-breaker when
// timestamps collide.
type Event struct {
	ID        string
	Type      Type
	IssueID   string
	Payload   Payload
	Timestamp time.Time
	Sequence  int64
}

// Payload is the type-specific data of an event. It is a sealed union:
// exactly one concrete payload type exists per event type, so the replay
// dispatch can match exhaustively instead of poking at loose maps.
type Payload interface {
	payload()
}

// CreatedPayload carries data for ISSUE_CREATED events.
type CreatedPayload struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdatedPayload carries data for ISSUE_UPDATED events. Absent fields are
// no-ops on merge.
type UpdatedPayload struct {
	types.IssueUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

// AnalyzedPayload carries data for ISSUE_ANALYZED events. The analysis
// values were decided by the external client at command time; replay only
// re-applies them.
type AnalyzedPayload struct {
	types.Analysis
	UpdatedAt time.Time `json:"updated_at"`
}

// PlannedPayload carries data for ISSUE_PLANNED events.
type PlannedPayload struct {
	Plan      string    `json:"plan"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentAddedPayload carries data for COMMENT_ADDED events.
type CommentAddedPayload struct {
	CommentID int64     `json:"comment_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// RawPayload holds the undecoded data of an event whose type is not in the
// known set. Keeping it around (instead of failing the decode) lets replay
// log a warning and move on.
type RawPayload struct {
	Data json.RawMessage
}

func (CreatedPayload) payload()      {}
func (UpdatedPayload) payload()      {}
func (AnalyzedPayload) payload()     {}
func (PlannedPayload) payload()      {}
func (CommentAddedPayload) payload() {}
func (RawPayload) payload()          {}

// wireEvent is the storage/wire shape of an event.
type wireEvent struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	IssueID   string          `json:"issueId"`
	Sequence  int64           `json:"sequence,omitempty"`
}

// MarshalJSON encodes the event in its wire shape, with the payload under
// the type-discriminated "data" key.
func (e *Event) MarshalJSON() ([]byte, error) {
	var data json.RawMessage
	switch p := e.Payload.(type) {
	case RawPayload:
		data = p.Data
	case nil:
		data = json.RawMessage("null")
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("event: marshal %s payload: %w", e.Type, err)
		}
		data = b
	}
	return json.Marshal(wireEvent{
		ID:        e.ID,
		Type:      e.Type,
		Data:      data,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		IssueID:   e.IssueID,
		Sequence:  e.Sequence,
	})
}

// UnmarshalJSON decodes the wire shape, selecting the concrete payload type
// from the "type" field. Unknown types decode into a RawPayload.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("event: decode envelope: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("event: decode timestamp %q: %w", w.Timestamp, err)
	}
	p, err := decodePayload(w.Type, w.Data)
	if err != nil {
		return err
	}
	*e = Event{
		ID:        w.ID,
		Type:      w.Type,
		IssueID:   w.IssueID,
		Payload:   p,
		Timestamp: ts,
		Sequence:  w.Sequence,
	}
	return nil
}

func decodePayload(t Type, data json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case TypeIssueCreated:
		p = &CreatedPayload{}
	case TypeIssueUpdated:
		p = &UpdatedPayload{}
	case TypeIssueAnalyzed:
		p = &AnalyzedPayload{}
	case TypeIssuePlanned:
		p = &PlannedPayload{}
	case TypeCommentAdded:
		p = &CommentAddedPayload{}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return RawPayload{Data: raw}, nil
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("event: decode %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

// deref converts the pointer used for unmarshaling back to the value form
// the union works with.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *CreatedPayload:
		return *v
	case *UpdatedPayload:
		return *v
	case *AnalyzedPayload:
		return *v
	case *PlannedPayload:
		return *v
	case *CommentAddedPayload:
		return *v
	}
	return p
}

// Clone returns a deep copy of the event. The log stores and hands out
// clones so appended events can never be mutated through aliases.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Payload = clonePayload(e.Payload)
	return &out
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case UpdatedPayload:
		out := v
		if v.Title != nil {
			s := *v.Title
			out.Title = &s
		}
		if v.Description != nil {
			s := *v.Description
			out.Description = &s
		}
		if v.Status != nil {
			s := *v.Status
			out.Status = &s
		}
		if v.AssignedTo != nil {
			s := *v.AssignedTo
			out.AssignedTo = &s
		}
		if v.Labels != nil {
			out.Labels = make([]string, len(v.Labels))
			copy(out.Labels, v.Labels)
		}
		if v.Priority != nil {
			p := *v.Priority
			out.Priority = &p
		}
		return out
	case AnalyzedPayload:
		out := v
		if v.Labels != nil {
			out.Labels = make([]string, len(v.Labels))
			copy(out.Labels, v.Labels)
		}
		if v.Confidence != nil {
			c := *v.Confidence
			out.Confidence = &c
		}
		return out
	case RawPayload:
		out := RawPayload{Data: make(json.RawMessage, len(v.Data))}
		copy(out.Data, v.Data)
		return out
	}
	// Created, Planned and CommentAdded payloads are flat values.
	return p
}
