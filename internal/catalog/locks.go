// internal/catalog/locks.go
package catalog

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ItemLocks serializes counter mutations per catalog item. The lending
// engine and the catalog service share one instance, so a stock resize
// cannot interleave with a borrow or return on the same item. Operations
// acquire the locks of the items they touch before reading their state,
// so a precondition observed under the lock cannot be invalidated before
// the matching write.
type ItemLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewItemLocks constructs an empty lock registry.
func NewItemLocks() *ItemLocks {
	return &ItemLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *ItemLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock acquires the mutexes for the given items in ascending ID order, so
// two operations spanning the same pair of items can never deadlock. The
// returned function releases them in reverse order.
func (l *ItemLocks) Lock(ids ...uuid.UUID) func() {
	uniq := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].String() < uniq[j].String() })

	for _, id := range uniq {
		l.get(id).Lock()
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			l.get(uniq[i]).Unlock()
		}
	}
}
