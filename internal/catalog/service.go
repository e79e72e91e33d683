// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ItemInput carries the descriptive fields and stock size for an item.
type ItemInput struct {
	ISBN          string `json:"isbn"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"published_year"`
	TotalCopies   int    `json:"total_copies"`
}

// Service defines the interface for catalog management. It never lends
// copies; available counts only move here when the total stock changes.
type Service interface {
	AddItem(ctx context.Context, input ItemInput) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input ItemInput) (*Item, error)
	RemoveItem(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context) ([]*Item, error)
}
