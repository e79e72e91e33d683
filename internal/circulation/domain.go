// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Loan links one catalog item to one member for a lending window.
// ReturnDate is set exactly when Returned is true.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	ItemID     uuid.UUID  `json:"item_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	LoanDate   time.Time  `json:"loan_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Returned   bool       `json:"returned"`
}

// Journal event types recorded by the lending engine.
const (
	EventLoanBorrowed  = "LoanBorrowed"
	EventLoanReturned  = "LoanReturned"
	EventLoanAmended   = "LoanAmended"
	EventLoanCancelled = "LoanCancelled"
)

// LoanBorrowedEvent is recorded when a borrow succeeds.
type LoanBorrowedEvent struct {
	LoanID   uuid.UUID `json:"loan_id"`
	ItemID   uuid.UUID `json:"item_id"`
	MemberID uuid.UUID `json:"member_id"`
	LoanDate time.Time `json:"loan_date"`
}

// LoanReturnedEvent is recorded when a loan is closed.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	ItemID     uuid.UUID `json:"item_id"`
	ReturnDate time.Time `json:"return_date"`
}

// LoanAmendedEvent is recorded when a loan is re-pointed at a new item or member.
type LoanAmendedEvent struct {
	LoanID   uuid.UUID `json:"loan_id"`
	ItemID   uuid.UUID `json:"item_id"`
	MemberID uuid.UUID `json:"member_id"`
}

// LoanCancelledEvent is recorded when an active loan is deleted.
type LoanCancelledEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
	ItemID uuid.UUID `json:"item_id"`
}
