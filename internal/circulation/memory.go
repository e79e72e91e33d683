// internal/circulation/memory.go
package circulation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of Store.
type MemoryStore struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]Loan
}

// NewMemoryStore constructs an empty in-memory loan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loans: make(map[uuid.UUID]Loan)}
}

// Get retrieves a loan by its ID, or (nil, nil) if it does not exist.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, nil
	}
	return &loan, nil
}

// List returns all loans ordered by loan date, then ID.
func (s *MemoryStore) List(_ context.Context) ([]*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Loan, 0, len(s.loans))
	for _, loan := range s.loans {
		l := loan
		result = append(result, &l)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LoanDate.Equal(result[j].LoanDate) {
			return result[i].LoanDate.Before(result[j].LoanDate)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return result, nil
}

// Save inserts or replaces a loan record.
func (s *MemoryStore) Save(_ context.Context, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loans[loan.ID] = *loan
	return nil
}

// Delete removes a loan record if it exists.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.loans, id)
	return nil
}

// FindActiveByItem returns the active loan referencing the item, or
// (nil, nil) when none exists.
func (s *MemoryStore) FindActiveByItem(_ context.Context, itemID uuid.UUID) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, loan := range s.loans {
		if loan.ItemID == itemID && !loan.Returned {
			l := loan
			return &l, nil
		}
	}
	return nil, nil
}
