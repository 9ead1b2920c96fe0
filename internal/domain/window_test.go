package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixed(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

// TestAdmit_EmptyWindowKeepsBatchOrder tests that admission does not sort by timestamp.
func TestAdmit_EmptyWindowKeepsBatchOrder(t *testing.T) {
	// Arrange
	batch := batchOf("e1", "e2", "e3")
	batch[0].Timestamp = batch[0].Timestamp.AddDate(0, 0, -3)
	batch[2].Timestamp = batch[2].Timestamp.AddDate(1, 0, 0)

	// Act
	window := Admit(nil, batch, DisplayCapacity)

	// Assert
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(window))
}

// TestAdmit_TruncatesTail tests that the oldest events are evicted past capacity.
func TestAdmit_TruncatesTail(t *testing.T) {
	window := batchOf(prefixed("a", 20)...)

	got := Admit(window, batchOf("b0", "b1"), DisplayCapacity)

	want := append([]string{"b0", "b1"}, prefixed("a", 18)...)
	assert.Equal(t, want, ids(got))
	assert.Len(t, window, 20, "input window must not be modified")
}

func TestAdmit_LargeBatchKeepsFirstN(t *testing.T) {
	got := Admit(batchOf("old"), batchOf(prefixed("n", 30)...), DisplayCapacity)

	assert.Equal(t, prefixed("n", 20), ids(got))
}

func TestAdmit_NoAdmissions(t *testing.T) {
	window := batchOf("a", "b")

	got := Admit(window, nil, DisplayCapacity)

	assert.Equal(t, []string{"a", "b"}, ids(got))
	got[0].Author = "changed"
	assert.Equal(t, "octocat", window[0].Author, "result must not alias the input")
}

// TestAdmit_BoundHolds tests the capacity bound over random admit sequences.
func TestAdmit_BoundHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var window []Event

	for round := 0; round < 500; round++ {
		n := rng.Intn(30)
		window = Admit(window, batchOf(prefixed(fmt.Sprintf("r%d-", round), n)...), DisplayCapacity)
		require.LessOrEqual(t, len(window), DisplayCapacity)
	}
}

func TestAdmit_ZeroCapacity(t *testing.T) {
	assert.Empty(t, Admit(batchOf("a"), batchOf("b"), 0))
}
