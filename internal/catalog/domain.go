// internal/catalog/domain.go
package catalog

import (
	"github.com/google/uuid"
)

// Item represents a catalog entry with a stock of lendable copies.
// Available is owned by the lending engine; the catalog service only
// adjusts it when the total stock itself changes.
type Item struct {
	ID            uuid.UUID `json:"id"`
	ISBN          string    `json:"isbn"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	PublishedYear int       `json:"published_year"`
	TotalCopies   int       `json:"total_copies"`
	Available     int       `json:"available"`
}
