package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID_SortsByTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a, err := NewULID(t0)
	require.NoError(t, err)
	b, err := NewULID(t0.Add(time.Second))
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.Less(t, a, b)
	assert.True(t, Valid(a))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
