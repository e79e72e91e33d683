// internal/membership/memory.go
package membership

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore provides an in-memory implementation of Store.
type MemoryStore struct {
	mu          sync.RWMutex
	members     map[uuid.UUID]Member
	credentials map[uuid.UUID]Credential
}

// NewMemoryStore constructs an empty in-memory member store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:     make(map[uuid.UUID]Member),
		credentials: make(map[uuid.UUID]Credential),
	}
}

// Get retrieves a member by ID, or (nil, nil) if absent.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

// GetByEmail retrieves a member by email, or (nil, nil) if absent.
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, member := range s.members {
		if member.Email == email {
			m := member
			return &m, nil
		}
	}
	return nil, nil
}

// Save stores a member and, when given, its credential in one step.
func (s *MemoryStore) Save(_ context.Context, member *Member, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[member.ID] = *member
	if credential != nil {
		s.credentials[member.ID] = *credential
	}
	return nil
}

// Credential retrieves a member's credential, or (nil, nil) if absent.
func (s *MemoryStore) Credential(_ context.Context, memberID uuid.UUID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[memberID]
	if !ok {
		return nil, nil
	}
	return &credential, nil
}
