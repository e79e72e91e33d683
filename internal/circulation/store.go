// internal/circulation/store.go
package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Store persists loan records. Lookups return (nil, nil) when no matching
// record exists; callers translate that into their own not-found handling.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Loan, error)
	List(ctx context.Context) ([]*Loan, error)
	Save(ctx context.Context, loan *Loan) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*Loan, error)
}
