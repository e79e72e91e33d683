// internal/journal/journal.go

// Package journal records an append-only audit trail of lending events.
// The loan ledger stays authoritative for current state; the journal only
// answers "what happened to this loan, and in what order".
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSequenceConflict is returned when two appends race for the same slot
// in a loan's event stream.
var ErrSequenceConflict = errors.New("sequence conflict: concurrent append")

// Entry is one recorded lending event.
type Entry struct {
	ID        int64           `json:"id"`
	LoanID    uuid.UUID       `json:"loan_id"`
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	Sequence  int             `json:"sequence"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal appends and reads lending events per loan.
type Journal interface {
	Append(ctx context.Context, loanID uuid.UUID, eventType string, data json.RawMessage) error
	ByLoan(ctx context.Context, loanID uuid.UUID) ([]Entry, error)
}
