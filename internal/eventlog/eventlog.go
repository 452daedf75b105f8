// Package eventlog provides the append-only event log.
//
// The log is the single source of truth for reconstruction: events are
// never mutated or removed once appended, and every query returns a
// copy-on-read snapshot so in-flight appends cannot bleed into an
// iteration that already started.
package eventlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/idgen"
)

// ErrNilEvent is returned when Append is called with a nil event.
var ErrNilEvent = errors.New("eventlog: nil event")

// Log is the interface satisfied by *Memory.
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations can be substituted.
type Log interface {
	// Append stores the event, filling in a generated ID and the current
	// timestamp when absent, and assigning the next sequence number.
	// It returns the stored copy.
	Append(ctx context.Context, ev *event.Event) (*event.Event, error)
	// All returns every event in append order (ascending sequence).
	All(ctx context.Context) ([]*event.Event, error)
	// ByIssue returns the events for one issue, preserving append order.
	ByIssue(ctx context.Context, issueID string) ([]*event.Event, error)
	// Len reports how many events the log holds.
	Len(ctx context.Context) (int, error)
}

// Memory is an in-process, mutex-guarded implementation of Log.
type Memory struct {
	mu     sync.RWMutex
	events []*event.Event
	seq    int64
	now    func() time.Time
}

// NewMemory creates an empty in-memory event log.
func NewMemory() *Memory {
	m := &Memory{}
	m.init()
	return m
}

func (m *Memory) init() {
	m.now = time.Now
}

// restore inserts an already-stored event as-is, preserving its ID,
// timestamp and sequence. Used when loading a persisted log.
func (m *Memory) restore(ev *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := ev.Clone()
	m.events = append(m.events, stored)
	if stored.Sequence > m.seq {
		m.seq = stored.Sequence
	}
}

// Append implements Log. The stored event is a private copy; the caller's
// event is not retained or mutated.
func (m *Memory) Append(ctx context.Context, ev *event.Event) (*event.Event, error) {
	if ev == nil {
		return nil, ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := ev.Clone()
	m.seq++
	stored.Sequence = m.seq
	if stored.Timestamp.IsZero() {
		stored.Timestamp = m.now()
	}
	if stored.ID == "" {
		stored.ID = idgen.EventID(stored.IssueID, string(stored.Type), stored.Timestamp, stored.Sequence)
	}
	m.events = append(m.events, stored)

	return stored.Clone(), nil
}

// All implements Log. The snapshot reflects only events appended before the
// call; later appends never show up in the returned slice.
func (m *Memory) All(ctx context.Context) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*event.Event, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Clone()
	}
	return out, nil
}

// ByIssue implements Log.
func (m *Memory) ByIssue(ctx context.Context, issueID string) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*event.Event
	for _, ev := range m.events {
		if ev.IssueID == issueID {
			out = append(out, ev.Clone())
		}
	}
	return out, nil
}

// Len implements Log.
func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}
