package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCapacityEviction(t *testing.T) {
	h := NewHistory(10)
	for i := 1; i <= 11; i++ {
		h.Append(fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	assert.Equal(t, 10, h.Len())

	// The first turn was evicted; the window is turns 2..11.
	all := h.Recent(10)
	require.Len(t, all, 10)
	assert.Equal(t, "question 2", all[0].User)
	assert.Equal(t, "question 11", all[9].User)
}

func TestHistoryRecent(t *testing.T) {
	h := NewHistory(10)
	assert.Nil(t, h.Recent(3))

	h.Append("u1", "a1")
	h.Append("u2", "a2")

	recent := h.Recent(3)
	require.Len(t, recent, 2)
	assert.Equal(t, "u1", recent[0].User)
	assert.Equal(t, "u2", recent[1].User)

	recent = h.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "u2", recent[0].User)
}
