package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueReturnsValue(t *testing.T) {
	q := New(600)

	got, err := Enqueue(context.Background(), q, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestDispatchSpacing(t *testing.T) {
	// 600 rpm -> 100ms minimum spacing.
	q := New(600)

	var mu sync.Mutex
	var stamps []time.Time
	record := func(ctx context.Context) (struct{}, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return struct{}{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Enqueue(context.Background(), q, record)
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 3)
	// Allow a little scheduler jitter below the configured floor.
	const tolerance = 20 * time.Millisecond
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		require.GreaterOrEqual(t, gap, q.MinDelay()-tolerance,
			"dispatch %d followed too quickly", i)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(6000)

	var mu sync.Mutex
	var order []int

	// Submit from a single goroutine so enqueue order is deterministic, then
	// wait for every completion.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		q.add(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestTaskErrorDoesNotStopDrain(t *testing.T) {
	q := New(6000)
	boom := errors.New("boom")

	_, err := Enqueue(context.Background(), q, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := Enqueue(context.Background(), q, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got)
	require.Equal(t, 0, q.Len())
}

func TestNewClampsRate(t *testing.T) {
	q := New(0)
	require.Equal(t, time.Second, q.MinDelay())
}
