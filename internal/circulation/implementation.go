// internal/circulation/implementation.go
package circulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendledger/internal/catalog"
	"lendledger/internal/journal"
	"lendledger/internal/membership"
)

// service implements the Service interface. It is the only component that
// mutates available-copy counters, and it only does so while holding the
// lock of every item involved in the operation.
type service struct {
	catalog catalog.Store
	members membership.Store
	ledger  Store
	journal journal.Journal
	locks   *catalog.ItemLocks
	tracer  trace.Tracer
}

// lockRetryLimit caps how often an operation re-reads a loan whose item
// keeps changing under concurrent amends before giving up.
const lockRetryLimit = 16

// NewService creates a new lending engine instance. The locks must be the
// instance shared with the catalog service. The journal may be nil;
// lending then proceeds without an audit trail.
func NewService(catalogStore catalog.Store, memberStore membership.Store, ledgerStore Store, jnl journal.Journal, locks *catalog.ItemLocks) Service {
	return &service{
		catalog: catalogStore,
		members: memberStore,
		ledger:  ledgerStore,
		journal: jnl,
		locks:   locks,
		tracer:  otel.Tracer("lendledger/circulation"),
	}
}

// Borrow lends one copy of an item to a member.
func (s *service) Borrow(ctx context.Context, itemID, memberID uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.String("item.id", itemID.String()),
			attribute.String("member.id", memberID.String()),
		),
	)
	defer span.End()

	unlock := s.locks.Lock(itemID)
	defer unlock()

	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, &NotFoundError{Entity: EntityItem, ID: itemID}
	}

	member, err := s.members.Get(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return nil, &NotFoundError{Entity: EntityMember, ID: memberID}
	}

	if !CanBorrow(item) {
		return nil, &ConflictError{
			Rule:   RuleOutOfStock,
			Detail: fmt.Sprintf("no copies of %q available", item.Title),
		}
	}

	active, err := s.ledger.FindActiveByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("find active loan: %w", err)
	}
	if active != nil {
		return nil, &ConflictError{
			Rule:   RuleAlreadyLent,
			Detail: fmt.Sprintf("item %s is already lent out", itemID),
		}
	}

	item.Available--
	if err := s.catalog.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	loan := &Loan{
		ID:       uuid.New(),
		ItemID:   itemID,
		MemberID: memberID,
		LoanDate: time.Now().UTC(),
	}
	if err := s.ledger.Save(ctx, loan); err != nil {
		// Put the copy back before surfacing the failure.
		item.Available++
		if compErr := s.catalog.Save(ctx, item); compErr != nil {
			log.Printf("circulation: failed to restore availability of item %s: %v", itemID, compErr)
		}
		return nil, fmt.Errorf("save loan: %w", err)
	}

	s.record(ctx, loan.ID, EventLoanBorrowed, LoanBorrowedEvent{
		LoanID:   loan.ID,
		ItemID:   itemID,
		MemberID: memberID,
		LoanDate: loan.LoanDate,
	})
	return loan, nil
}

// Return closes an active loan and frees the copy it held.
func (s *service) Return(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	loan, unlock, err := s.lockLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !IsMutable(loan) {
		return nil, &ConflictError{
			Rule:   RuleAlreadyReturned,
			Detail: fmt.Sprintf("loan %s has already been returned", loanID),
		}
	}

	item, err := s.catalog.Get(ctx, loan.ItemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, &NotFoundError{Entity: EntityItem, ID: loan.ItemID}
	}

	item.Available++
	if err := s.catalog.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	now := time.Now().UTC()
	loan.Returned = true
	loan.ReturnDate = &now
	if err := s.ledger.Save(ctx, loan); err != nil {
		item.Available--
		if compErr := s.catalog.Save(ctx, item); compErr != nil {
			log.Printf("circulation: failed to restore availability of item %s: %v", loan.ItemID, compErr)
		}
		return nil, fmt.Errorf("save loan: %w", err)
	}

	s.record(ctx, loan.ID, EventLoanReturned, LoanReturnedEvent{
		LoanID:     loan.ID,
		ItemID:     loan.ItemID,
		ReturnDate: now,
	})
	return loan, nil
}

// Amend re-points an active loan at a new item and member.
func (s *service) Amend(ctx context.Context, loanID, newItemID, newMemberID uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.amend",
		trace.WithAttributes(
			attribute.String("loan.id", loanID.String()),
			attribute.String("item.id", newItemID.String()),
			attribute.String("member.id", newMemberID.String()),
		),
	)
	defer span.End()

	// The exclusion scope must cover the loan's current item and the new
	// one. The current item is only known from an unlocked read, so the
	// loan is re-read under the locks and the acquisition retried if a
	// concurrent amend moved it in between.
	for attempt := 0; attempt < lockRetryLimit; attempt++ {
		loan, err := s.ledger.Get(ctx, loanID)
		if err != nil {
			return nil, fmt.Errorf("get loan: %w", err)
		}
		if loan == nil {
			return nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
		}

		unlock := s.locks.Lock(loan.ItemID, newItemID)
		current, err := s.ledger.Get(ctx, loanID)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("get loan: %w", err)
		}
		if current == nil {
			unlock()
			return nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
		}
		if current.ItemID != loan.ItemID {
			unlock()
			continue
		}

		amended, err := s.amendLocked(ctx, current, newItemID, newMemberID)
		unlock()
		return amended, err
	}
	return nil, fmt.Errorf("amend loan %s: gave up after %d attempts under concurrent amendments", loanID, lockRetryLimit)
}

// amendLocked runs with the locks of both the loan's current item and the
// target item held.
func (s *service) amendLocked(ctx context.Context, loan *Loan, newItemID, newMemberID uuid.UUID) (*Loan, error) {
	if !IsMutable(loan) {
		return nil, &ConflictError{
			Rule:   RuleAlreadyReturned,
			Detail: "returned loans cannot be amended",
		}
	}

	newItem, err := s.catalog.Get(ctx, newItemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if newItem == nil {
		return nil, &NotFoundError{Entity: EntityItem, ID: newItemID}
	}

	newMember, err := s.members.Get(ctx, newMemberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if newMember == nil {
		return nil, &NotFoundError{Entity: EntityMember, ID: newMemberID}
	}

	if loan.ItemID != newItemID {
		oldItem, err := s.catalog.Get(ctx, loan.ItemID)
		if err != nil {
			return nil, fmt.Errorf("get item: %w", err)
		}
		if oldItem == nil {
			return nil, &NotFoundError{Entity: EntityItem, ID: loan.ItemID}
		}

		// Release the old copy before checking the new item, so that
		// moving a loan onto the old item's own title only fails when
		// no other copy is truly free.
		oldItem.Available++
		if err := s.catalog.Save(ctx, oldItem); err != nil {
			return nil, fmt.Errorf("release item: %w", err)
		}

		undoRelease := func() {
			oldItem.Available--
			if compErr := s.catalog.Save(ctx, oldItem); compErr != nil {
				log.Printf("circulation: failed to re-hold item %s after amend failure: %v", oldItem.ID, compErr)
			}
		}

		if !CanBorrow(newItem) {
			undoRelease()
			return nil, &ConflictError{
				Rule:   RuleOutOfStock,
				Detail: fmt.Sprintf("no copies of %q available", newItem.Title),
			}
		}

		active, err := s.ledger.FindActiveByItem(ctx, newItemID)
		if err != nil {
			undoRelease()
			return nil, fmt.Errorf("find active loan: %w", err)
		}
		if active != nil {
			undoRelease()
			return nil, &ConflictError{
				Rule:   RuleAlreadyLent,
				Detail: fmt.Sprintf("item %s is already lent out", newItemID),
			}
		}

		newItem.Available--
		if err := s.catalog.Save(ctx, newItem); err != nil {
			undoRelease()
			return nil, fmt.Errorf("save item: %w", err)
		}

		loan.ItemID = newItemID
		loan.MemberID = newMemberID
		if err := s.ledger.Save(ctx, loan); err != nil {
			newItem.Available++
			if compErr := s.catalog.Save(ctx, newItem); compErr != nil {
				log.Printf("circulation: failed to restore availability of item %s: %v", newItem.ID, compErr)
			}
			undoRelease()
			return nil, fmt.Errorf("save loan: %w", err)
		}
	} else {
		loan.MemberID = newMemberID
		if err := s.ledger.Save(ctx, loan); err != nil {
			return nil, fmt.Errorf("save loan: %w", err)
		}
	}

	s.record(ctx, loan.ID, EventLoanAmended, LoanAmendedEvent{
		LoanID:   loan.ID,
		ItemID:   loan.ItemID,
		MemberID: loan.MemberID,
	})
	return loan, nil
}

// Cancel deletes an active loan and frees the copy it held.
func (s *service) Cancel(ctx context.Context, loanID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "circulation.cancel",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	loan, unlock, err := s.lockLoan(ctx, loanID)
	if err != nil {
		return err
	}
	defer unlock()

	if !IsMutable(loan) {
		return &ConflictError{
			Rule:   RuleAlreadyReturned,
			Detail: "returned loans cannot be cancelled",
		}
	}

	item, err := s.catalog.Get(ctx, loan.ItemID)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return &NotFoundError{Entity: EntityItem, ID: loan.ItemID}
	}

	item.Available++
	if err := s.catalog.Save(ctx, item); err != nil {
		return fmt.Errorf("save item: %w", err)
	}

	if err := s.ledger.Delete(ctx, loan.ID); err != nil {
		item.Available--
		if compErr := s.catalog.Save(ctx, item); compErr != nil {
			log.Printf("circulation: failed to restore availability of item %s: %v", loan.ItemID, compErr)
		}
		return fmt.Errorf("delete loan: %w", err)
	}

	s.record(ctx, loan.ID, EventLoanCancelled, LoanCancelledEvent{
		LoanID: loan.ID,
		ItemID: loan.ItemID,
	})
	return nil
}

// GetLoan retrieves a single loan record.
func (s *service) GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.ledger.Get(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
	}
	return loan, nil
}

// ListLoans returns every loan record.
func (s *service) ListLoans(ctx context.Context) ([]*Loan, error) {
	loans, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// lockLoan acquires the exclusion scope for the loan's current item and
// returns the loan as read under that scope. Amend can re-point a loan at
// another item, so the read is repeated, up to lockRetryLimit times, until
// the held lock matches the loan's item.
func (s *service) lockLoan(ctx context.Context, loanID uuid.UUID) (*Loan, func(), error) {
	for attempt := 0; attempt < lockRetryLimit; attempt++ {
		loan, err := s.ledger.Get(ctx, loanID)
		if err != nil {
			return nil, nil, fmt.Errorf("get loan: %w", err)
		}
		if loan == nil {
			return nil, nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
		}

		unlock := s.locks.Lock(loan.ItemID)
		current, err := s.ledger.Get(ctx, loanID)
		if err != nil {
			unlock()
			return nil, nil, fmt.Errorf("get loan: %w", err)
		}
		if current == nil {
			unlock()
			return nil, nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
		}
		if current.ItemID == loan.ItemID {
			return current, unlock, nil
		}
		unlock()
	}
	return nil, nil, fmt.Errorf("lock loan %s: gave up after %d attempts under concurrent amendments", loanID, lockRetryLimit)
}

// record appends an event to the journal. The ledger, not the journal, is
// authoritative, so journal failures are logged and never fail the lending
// operation itself.
func (s *service) record(ctx context.Context, loanID uuid.UUID, eventType string, data interface{}) {
	if s.journal == nil {
		return
	}

	payload, err := json.Marshal(data)
	if err == nil {
		err = s.journal.Append(ctx, loanID, eventType, payload)
	}
	if err != nil {
		log.Printf("circulation: failed to record %s for loan %s: %v", eventType, loanID, err)
	}
}
