// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, name, email, password, role string) (*Member, error)
	Authenticate(ctx context.Context, email, password string) (*Member, string, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
}
