package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/triagehq/triage/internal/event"
	"github.com/triagehq/triage/internal/eventlog"
	"github.com/triagehq/triage/internal/storage"
)

// ErrTargetNotEmpty is returned when Replay is pointed at a store that
// already holds issues. Replay reconstructs into a fresh store only; it
// never overlays onto existing state.
var ErrTargetNotEmpty = errors.New("engine: replay target store is not empty")

// Report summarizes one replay run.
type Report struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Unknown int `json:"unknown"`
}

// Replay rebuilds aggregate state from the event log into target.
//
// Events are replayed in (timestamp, sequence) order: timestamp is the
// producer's ordering key, sequence breaks ties deterministically when
// timestamp resolution is coarse. Per-event failures are logged and
// skipped: one bad or out-of-order event never aborts reconstruction of
// the rest of the log. Unknown event types are warnings, not errors.
func Replay(ctx context.Context, evlog eventlog.Log, target storage.Store) (*Report, error) {
	count, err := target.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: replay: inspect target: %w", err)
	}
	if count > 0 {
		return nil, ErrTargetNotEmpty
	}

	events, err := evlog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: replay: read log: %w", err)
	}
	sortForReplay(events)

	report := &Report{Total: len(events)}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("engine: replay cancelled: %w", err)
		}
		err := Apply(ctx, target, ev)
		switch {
		case err == nil:
			report.Applied++
		case isUnknownType(err):
			log.Printf("engine: replay: skipping event %s: unknown type %q", ev.ID, ev.Type)
			report.Unknown++
		default:
			log.Printf("engine: replay: skipping event %s (%s): %v", ev.ID, ev.Type, err)
			report.Skipped++
		}
	}
	return report, nil
}

// sortForReplay orders events by (timestamp, sequence) ascending.
func sortForReplay(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Sequence < events[j].Sequence
	})
}

func isUnknownType(err error) bool {
	var ute *UnknownTypeError
	return errors.As(err, &ute)
}
