package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue(16)
	base := time.Now().UTC()

	require.NoError(t, q.Push("A", 3, base))
	require.NoError(t, q.Push("B", 8, base.Add(time.Second)))
	require.NoError(t, q.Push("C", 8, base.Add(2*time.Second)))

	var order []string
	for i := 0; i < 3; i++ {
		id, ok := q.Pop()
		require.True(t, ok)
		order = append(order, id)
	}
	assert.Equal(t, []string{"B", "C", "A"}, order, "priority desc, FIFO among equals")
}

func TestQueueFIFOTieBreakOnEqualTimestamps(t *testing.T) {
	q := NewQueue(16)
	now := time.Now().UTC()
	require.NoError(t, q.Push("first", 5, now))
	require.NoError(t, q.Push("second", 5, now))

	id, _ := q.Pop()
	assert.Equal(t, "first", id)
	id, _ = q.Pop()
	assert.Equal(t, "second", id)
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(1)
	now := time.Now().UTC()
	require.NoError(t, q.Push("a", 5, now))
	require.ErrorIs(t, q.Push("b", 5, now), ErrQueueFull)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(16)
	got := make(chan string, 1)
	go func() {
		id, ok := q.Pop()
		if ok {
			got <- id
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Push("late", 5, time.Now().UTC()))

	select {
	case id := <-got:
		assert.Equal(t, "late", id)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := NewQueue(16)
	require.NoError(t, q.Push("a", 5, time.Now().UTC()))
	q.Close()

	id, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	_, ok = q.Pop()
	assert.False(t, ok)

	require.ErrorIs(t, q.Push("b", 5, time.Now().UTC()), ErrStopped)
}
