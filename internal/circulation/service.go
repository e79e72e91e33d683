// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the lending engine. Each operation is
// atomic with respect to the stock invariants: it either completes fully or
// leaves counters and loan records as they were.
type Service interface {
	Borrow(ctx context.Context, itemID, memberID uuid.UUID) (*Loan, error)
	Return(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	Amend(ctx context.Context, loanID, newItemID, newMemberID uuid.UUID) (*Loan, error)
	Cancel(ctx context.Context, loanID uuid.UUID) error
	GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
}
