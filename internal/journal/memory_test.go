// internal/journal/memory_test.go
package journal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSequencePerLoan(t *testing.T) {
	j := NewMemoryJournal()
	first := uuid.New()
	second := uuid.New()

	require.NoError(t, j.Append(context.Background(), first, "LoanBorrowed", json.RawMessage(`{}`)))
	require.NoError(t, j.Append(context.Background(), first, "LoanReturned", json.RawMessage(`{}`)))
	require.NoError(t, j.Append(context.Background(), second, "LoanBorrowed", json.RawMessage(`{}`)))

	entries, err := j.ByLoan(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Sequence)
	assert.Equal(t, 2, entries[1].Sequence)
	assert.Equal(t, "LoanBorrowed", entries[0].EventType)
	assert.Equal(t, "LoanReturned", entries[1].EventType)

	entries, err = j.ByLoan(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Sequence)
}

func TestByLoanUnknownLoanIsEmpty(t *testing.T) {
	j := NewMemoryJournal()

	entries, err := j.ByLoan(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
