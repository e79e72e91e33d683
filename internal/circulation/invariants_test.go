// internal/circulation/invariants_test.go
package circulation

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"lendledger/internal/catalog"
	"lendledger/internal/membership"
)

// TestRandomOperationSequencesPreserveInvariants drives the engine with
// random borrow/return/amend/cancel sequences and checks the stock
// invariants after every step: availability stays within [0, total],
// matches total minus active loans, and no item carries more than one
// active loan.
func TestRandomOperationSequencesPreserveInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		items := catalog.NewMemoryStore()
		members := membership.NewMemoryStore()
		ledger := NewMemoryStore()
		engine := NewService(items, members, ledger, nil, catalog.NewItemLocks())

		itemCount := rapid.IntRange(1, 4).Draw(t, "itemCount")
		itemIDs := make([]uuid.UUID, itemCount)
		for i := range itemIDs {
			total := rapid.IntRange(0, 3).Draw(t, "totalCopies")
			item := &catalog.Item{
				ID:          uuid.New(),
				ISBN:        fmt.Sprintf("isbn-%d", i),
				Title:       fmt.Sprintf("Title %d", i),
				Author:      "Author",
				TotalCopies: total,
				Available:   total,
			}
			if err := items.Save(ctx, item); err != nil {
				t.Fatalf("save item: %v", err)
			}
			itemIDs[i] = item.ID
		}

		memberCount := rapid.IntRange(1, 3).Draw(t, "memberCount")
		memberIDs := make([]uuid.UUID, memberCount)
		for i := range memberIDs {
			member := &membership.Member{
				ID:    uuid.New(),
				Name:  fmt.Sprintf("Member %d", i),
				Email: fmt.Sprintf("member%d@example.com", i),
				Role:  membership.RoleMember,
			}
			if err := members.Save(ctx, member, nil); err != nil {
				t.Fatalf("save member: %v", err)
			}
			memberIDs[i] = member.ID
		}

		var loanIDs []uuid.UUID
		pickItem := func() uuid.UUID {
			return itemIDs[rapid.IntRange(0, itemCount-1).Draw(t, "item")]
		}
		pickMember := func() uuid.UUID {
			return memberIDs[rapid.IntRange(0, memberCount-1).Draw(t, "member")]
		}
		pickLoan := func() uuid.UUID {
			return loanIDs[rapid.IntRange(0, len(loanIDs)-1).Draw(t, "loan")]
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			op := rapid.IntRange(0, 3).Draw(t, "op")
			switch {
			case op == 0 || len(loanIDs) == 0:
				loan, err := engine.Borrow(ctx, pickItem(), pickMember())
				if err == nil {
					loanIDs = append(loanIDs, loan.ID)
				}
			case op == 1:
				_, _ = engine.Return(ctx, pickLoan())
			case op == 2:
				_, _ = engine.Amend(ctx, pickLoan(), pickItem(), pickMember())
			default:
				id := pickLoan()
				if err := engine.Cancel(ctx, id); err == nil {
					for i, l := range loanIDs {
						if l == id {
							loanIDs = append(loanIDs[:i], loanIDs[i+1:]...)
							break
						}
					}
				}
			}

			checkInvariants(t, ctx, items, ledger, itemIDs)
		}
	})
}

func checkInvariants(t *rapid.T, ctx context.Context, items *catalog.MemoryStore, ledger *MemoryStore, itemIDs []uuid.UUID) {
	loans, err := ledger.List(ctx)
	if err != nil {
		t.Fatalf("list loans: %v", err)
	}

	activeByItem := make(map[uuid.UUID]int)
	for _, loan := range loans {
		if loan.Returned {
			if loan.ReturnDate == nil {
				t.Fatalf("loan %s returned without a return date", loan.ID)
			}
			if loan.ReturnDate.Before(loan.LoanDate) {
				t.Fatalf("loan %s returned before it was lent", loan.ID)
			}
		} else {
			if loan.ReturnDate != nil {
				t.Fatalf("loan %s active with a return date", loan.ID)
			}
			activeByItem[loan.ItemID]++
		}
	}

	for _, id := range itemIDs {
		item, err := items.Get(ctx, id)
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		active := activeByItem[id]

		if active > 1 {
			t.Fatalf("item %s has %d active loans", id, active)
		}
		if item.Available < 0 || item.Available > item.TotalCopies {
			t.Fatalf("item %s availability %d out of range [0, %d]", id, item.Available, item.TotalCopies)
		}
		if item.Available != item.TotalCopies-active {
			t.Fatalf("item %s availability %d does not match total %d minus %d active loans",
				id, item.Available, item.TotalCopies, active)
		}
	}
}
