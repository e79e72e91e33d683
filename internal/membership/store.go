// internal/membership/store.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Store persists members and their credentials. Lookups return (nil, nil)
// when no matching record exists. The lending engine only ever calls Get;
// the rest serves registration and login.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	Save(ctx context.Context, member *Member, credential *Credential) error
	Credential(ctx context.Context, memberID uuid.UUID) (*Credential, error)
}
