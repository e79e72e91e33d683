// internal/journal/memory.go
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal provides an in-memory implementation of Journal.
type MemoryJournal struct {
	mu      sync.RWMutex
	nextID  int64
	streams map[uuid.UUID][]Entry
}

// NewMemoryJournal constructs an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		nextID:  1,
		streams: make(map[uuid.UUID][]Entry),
	}
}

// Append adds one event to the loan's stream.
func (j *MemoryJournal) Append(_ context.Context, loanID uuid.UUID, eventType string, data json.RawMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	stream := j.streams[loanID]
	entry := Entry{
		ID:        j.nextID,
		LoanID:    loanID,
		EventType: eventType,
		EventData: append(json.RawMessage(nil), data...),
		Sequence:  len(stream) + 1,
		CreatedAt: time.Now().UTC(),
	}
	j.nextID++
	j.streams[loanID] = append(stream, entry)
	return nil
}

// ByLoan returns the loan's events in append order.
func (j *MemoryJournal) ByLoan(_ context.Context, loanID uuid.UUID) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stream := j.streams[loanID]
	result := make([]Entry, len(stream))
	copy(result, stream)
	return result, nil
}
