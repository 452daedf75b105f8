package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/triagehq/triage/internal/event"
)

// File is a Log backed by a JSONL file: one event per line in the wire
// shape, loaded whole at open and written through on every append.
//
// This is not crash-safe storage: no fsync policy, no locking across
// processes. The file is an export of the in-memory log that happens to
// survive restarts; the reconstruction contract still comes from replaying
// it.
type File struct {
	Memory
	path string

	// mu serializes sequence assignment with the file write so lines land
	// in sequence order even under concurrent appends.
	mu sync.Mutex
	f  *os.File
}

// OpenFile loads the event log at path, creating it when absent. Existing
// events keep their stored IDs, timestamps and sequences; the next append
// continues from the highest sequence seen.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}

	log := &File{path: path, f: f}
	log.Memory.init()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			f.Close()
			return nil, fmt.Errorf("eventlog: %s line %d: %w", path, line, err)
		}
		log.Memory.restore(&ev)
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("eventlog: scan %s: %w", path, err)
	}
	return log, nil
}

// Append implements Log, writing the stored event through to the file.
func (l *File) Append(ctx context.Context, ev *event.Event) (*event.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.Memory.Append(ctx, ev)
	if err != nil {
		return nil, err
	}
	line, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("eventlog: encode event %s: %w", stored.ID, err)
	}
	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("eventlog: write %s: %w", l.path, err)
	}
	return stored, nil
}

// Close releases the underlying file.
func (l *File) Close() error {
	return l.f.Close()
}
