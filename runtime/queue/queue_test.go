package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_FIFO(t *testing.T) {
	q := NewBounded[int](3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Put(ctx, i))
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestBounded_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewBounded[int](0).Cap())
}

// A producer faster than a stalled consumer must suspend at capacity rather
// than drop or fail.
func TestBounded_ProducerSuspendsWhenFull(t *testing.T) {
	for _, capacity := range []int{5, 2} {
		q := NewBounded[int](capacity)
		ctx, cancel := context.WithCancel(context.Background())

		var produced atomic.Int32
		done := make(chan error, 1)
		go func() {
			for i := 0; ; i++ {
				if err := q.Put(ctx, i); err != nil {
					done <- err
					return
				}
				produced.Add(1)
			}
		}()

		require.Eventually(t, func() bool { return produced.Load() == int32(capacity) },
			time.Second, 5*time.Millisecond)

		// Give the producer a chance to overrun; it must stay blocked.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(capacity), produced.Load())
		assert.LessOrEqual(t, q.Len(), capacity)

		cancel()
		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestBounded_GetUnblocksProducer(t *testing.T) {
	q := NewBounded[string](1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "a"))

	put := make(chan error, 1)
	go func() { put <- q.Put(ctx, "b") }()

	select {
	case <-put:
		t.Fatal("put should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	require.NoError(t, <-put)

	v, err = q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestBounded_GetHonoursContext(t *testing.T) {
	q := NewBounded[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBounded_Close(t *testing.T) {
	q := NewBounded[int](2)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, 7))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Put(ctx, 8), ErrClosed)

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Get(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnbounded_PutNeverBlocks(t *testing.T) {
	q := NewUnbounded[[]byte]()
	for i := 0; i < 10000; i++ {
		require.NoError(t, q.Put([]byte{byte(i)}))
	}
	assert.Equal(t, 10000, q.Len())
}

func TestUnbounded_GetWaitsForPut(t *testing.T) {
	q := NewUnbounded[int]()
	ctx := context.Background()

	got := make(chan int, 1)
	go func() {
		v, err := q.Get(ctx)
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(42))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestUnbounded_Drain(t *testing.T) {
	q := NewUnbounded[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(i))
	}

	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())

	// The queue stays usable after a drain.
	require.NoError(t, q.Put(9))
	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestUnbounded_ConcurrentProducers(t *testing.T) {
	q := NewUnbounded[int]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = q.Put(i)
			}
		}()
	}

	received := 0
	for received < 1000 {
		_, err := q.Get(ctx)
		require.NoError(t, err)
		received++
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}

func TestUnbounded_Close(t *testing.T) {
	q := NewUnbounded[int]()
	require.NoError(t, q.Put(1))
	q.Close()

	assert.True(t, errors.Is(q.Put(2), ErrClosed))

	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
