package client

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueInitializationWithCapacity(t *testing.T) {
	capacity := uint(10)
	queue := NewQueue[int](capacity)

	// The initial length of the queue should be 0
	assert.Equal(t, 0, len(queue.ToSlice()), "Initial length of queue should be 0")
}

func TestDequeueEmptyQueue(t *testing.T) {
	queue := NewQueue[int](0)

	// Dequeue from an empty queue
	item, ok := queue.Dequeue()
	assert.False(t, ok, "Expected false from Dequeue on empty queue but got true")
	assert.Equal(t, 0, item, "Expected zero value from Dequeue on empty queue")
}

func TestQueueReset(t *testing.T) {
	queue := NewQueue[int](10)

	// Add items to the queue
	queue.EnqueueTail("key1", 1)
	queue.EnqueueTail("key2", 2)

	queue.Reset(5)

	// After reset, the size should be 0 and keys should be gone
	assert.Equal(t, 0, queue.Size(), "Size of queue after reset should be 0")
	assert.False(t, queue.Contains("key1"), "Keys should be cleared after reset")
}

func TestQueueSize(t *testing.T) {
	queue := NewQueue[int](10)

	// Initially, the size should be 0
	assert.Equal(t, 0, queue.Size(), "Initial size of queue should be 0")

	// Add items to the queue
	queue.EnqueueTail("key1", 1)
	queue.EnqueueTail("key2", 2)

	// Now, the size should be 2
	assert.Equal(t, 2, queue.Size(), "Size of queue after enqueueing items should be 2")
}

func TestEnqueueAndDequeue(t *testing.T) {
	queue := NewQueue[int](0)

	queue.EnqueueTail("key1", 1)
	queue.EnqueueTail("key2", 2)

	// Check the state of the queue
	expectedSliceAfterEnqueue := []int{1, 2}
	assert.Equal(t, expectedSliceAfterEnqueue, queue.ToSlice(), "Queue contents after enqueue operations are not as expected")

	// Test Dequeue
	item, ok := queue.Dequeue()
	assert.True(t, ok, "Expected true from Dequeue but got false")
	assert.Equal(t, 1, item, "Dequeued item is not as expected")

	// The dequeued key should no longer be tracked
	assert.False(t, queue.Contains("key1"), "Dequeued key should not be contained")
	assert.True(t, queue.Contains("key2"), "Remaining key should still be contained")

	expectedSliceAfterDequeue := []int{2}
	assert.Equal(t, expectedSliceAfterDequeue, queue.ToSlice(), "Queue contents after dequeue operation are not as expected")
}

func TestQueueDelete(t *testing.T) {
	queue := NewQueue[int](10)
	queue.EnqueueTail("key1", 1)
	queue.EnqueueTail("key2", 2)
	queue.EnqueueTail("key3", 3)

	// Delete the item at index 1 (value 2)
	err := queue.Delete(1)
	assert.NoError(t, err, "Error should not occur when deleting valid index")

	expectedItems := []int{1, 3}
	assert.Equal(t, expectedItems, queue.ToSlice(), "Items after deletion do not match expected items")
	assert.False(t, queue.Contains("key2"), "Deleted key should not be contained")
	assert.True(t, queue.Contains("key3"), "Later keys should survive deletion")

	// Deleting out of range should error
	err = queue.Delete(5)
	assert.Error(t, err, "Expected error when deleting invalid index")
}

func TestQueueToSlice(t *testing.T) {
	queue := NewQueue[string](0)

	queue.EnqueueTail("key1", "a")
	queue.EnqueueTail("key2", "b")

	expectedSlice := []string{"a", "b"}
	assert.Equal(t, expectedSlice, queue.ToSlice(), "Queue to slice conversion did not match expected slice")
}

func TestConcurrentAccess(t *testing.T) {
	queue := NewQueue[int](1)

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				queue.EnqueueTail(fmt.Sprintf("key%d-%d", w, i), i)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 2000, len(queue.ToSlice()), "Queue size after concurrent access is not as expected")
}
