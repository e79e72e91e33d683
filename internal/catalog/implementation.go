// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the referenced item does not exist.
	ErrNotFound = errors.New("item not found")
	// ErrInvalidItem is returned when an item's fields fail validation.
	ErrInvalidItem = errors.New("invalid item")
	// ErrCopiesOnLoan is returned when a stock change or removal would
	// strand copies that are currently lent out.
	ErrCopiesOnLoan = errors.New("copies are currently on loan")
)

// service implements the Service interface.
type service struct {
	store Store
	locks *ItemLocks
}

// NewService creates a new catalog management service instance. The locks
// must be the same instance the lending engine uses, so stock resizes and
// lending operations on one item never interleave.
func NewService(store Store, locks *ItemLocks) Service {
	return &service{store: store, locks: locks}
}

// AddItem creates a new item with its full stock available.
func (s *service) AddItem(ctx context.Context, input ItemInput) (*Item, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            uuid.New(),
		ISBN:          input.ISBN,
		Title:         input.Title,
		Author:        input.Author,
		PublishedYear: input.PublishedYear,
		TotalCopies:   input.TotalCopies,
		Available:     input.TotalCopies,
	}
	if err := s.store.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	return item, nil
}

// GetItem retrieves an item by its ID.
func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

// UpdateItem replaces an item's descriptive fields and resizes its stock.
// The available count follows the change in total copies; shrinking the
// stock below the number of copies currently lent out is rejected.
func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input ItemInput) (*Item, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	onLoan := item.TotalCopies - item.Available
	if input.TotalCopies < onLoan {
		return nil, fmt.Errorf("%w: %d of %q", ErrCopiesOnLoan, onLoan, item.Title)
	}

	item.ISBN = input.ISBN
	item.Title = input.Title
	item.Author = input.Author
	item.PublishedYear = input.PublishedYear
	item.TotalCopies = input.TotalCopies
	item.Available = input.TotalCopies - onLoan

	if err := s.store.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// RemoveItem deletes an item, provided no copies are lent out.
func (s *service) RemoveItem(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}

	if item.Available != item.TotalCopies {
		return fmt.Errorf("%w: %q", ErrCopiesOnLoan, item.Title)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// ListItems returns all catalog items.
func (s *service) ListItems(ctx context.Context) ([]*Item, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func validateInput(input ItemInput) error {
	switch {
	case input.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	case input.Author == "":
		return fmt.Errorf("%w: author is required", ErrInvalidItem)
	case input.ISBN == "":
		return fmt.Errorf("%w: isbn is required", ErrInvalidItem)
	case input.TotalCopies < 0:
		return fmt.Errorf("%w: total copies cannot be negative", ErrInvalidItem)
	}
	return nil
}
