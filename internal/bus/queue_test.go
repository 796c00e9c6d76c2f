package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int](0)
	for i := range 5 {
		require.NoError(t, q.TryPublish(i))
	}
	require.Equal(t, 5, q.Len())

	for i := range 5 {
		v, err := q.Dequeue(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.Len())
}

func TestQueueBounded(t *testing.T) {
	q := NewQueue[string](2)
	require.NoError(t, q.TryPublish("a"))
	require.NoError(t, q.TryPublish("b"))
	assert.True(t, errors.Is(q.TryPublish("c"), ErrQueueFull))
}

func TestQueueDequeueTimeout(t *testing.T) {
	q := NewQueue[int](0)
	start := time.Now()
	_, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	assert.True(t, errors.Is(err, ErrQueueEmpty))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueDequeueCancel(t *testing.T) {
	q := NewQueue[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueWakesWaitingConsumer(t *testing.T) {
	q := NewQueue[int](0)
	got := make(chan int, 1)
	go func() {
		v, err := q.Dequeue(context.Background(), 5*time.Second)
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.TryPublish(7))

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer was not woken")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int](0)
	require.NoError(t, q.TryPublish(1))
	q.Close()
	q.Close()

	assert.True(t, errors.Is(q.TryPublish(2), ErrQueueClosed))

	v, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Dequeue(context.Background(), time.Second)
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[int](0)
	for i := range 3 {
		require.NoError(t, q.TryPublish(i))
	}
	assert.Equal(t, []int{0, 1, 2}, q.Drain())
	assert.Empty(t, q.Drain())
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 200
	q := NewQueue[int](0)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				if err := q.TryPublish(p*perProducer + i); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}()
	}

	seen := make(map[int]struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(context.Background(), func(v int) { seen[v] = struct{}{} })
	}()

	wg.Wait()
	q.Close()
	<-done
	assert.Len(t, seen, producers*perProducer)
}
