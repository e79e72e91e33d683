// internal/catalog/store.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store persists catalog items. Get returns (nil, nil) when the item does
// not exist.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}
