// internal/circulation/errors.go
package circulation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Entities referenced by NotFoundError.
const (
	EntityItem   = "item"
	EntityMember = "member"
	EntityLoan   = "loan"
)

// Lending rules referenced by ConflictError.
const (
	RuleOutOfStock      = "out_of_stock"
	RuleAlreadyLent     = "already_lent"
	RuleAlreadyReturned = "already_returned"
)

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports the lending rule that rejected an operation.
// Detail carries enough context for a user-facing message, such as the
// item title on an out-of-stock rejection.
type ConflictError struct {
	Rule   string
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return "conflict: " + e.Rule
	}
	return fmt.Sprintf("conflict: %s: %s", e.Rule, e.Detail)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
