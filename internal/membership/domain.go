// internal/membership/domain.go
package membership

import (
	"github.com/google/uuid"
)

// Member roles. Librarians manage the catalog and may amend or cancel any
// loan; members only borrow and return.
const (
	RoleMember    = "MEMBER"
	RoleLibrarian = "LIBRARIAN"
)

// Member represents a library borrower.
type Member struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// Credential holds a member's login secret, stored separately from the
// member record and never serialized.
type Credential struct {
	MemberID     uuid.UUID `json:"-"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}
