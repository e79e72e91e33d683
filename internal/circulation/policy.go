// internal/circulation/policy.go
package circulation

import "lendledger/internal/catalog"

// The checks below are side-effect-free so the HTTP layer can run them as
// pre-flight validation without touching stock counters. The engine applies
// the same checks again under its exclusion scope before mutating anything.

// CanBorrow reports whether the item has at least one free copy.
func CanBorrow(item *catalog.Item) bool {
	return item.Available > 0
}

// IsMutable reports whether the loan may still be returned, amended or
// cancelled. Returned loans are immutable.
func IsMutable(loan *Loan) bool {
	return !loan.Returned
}
