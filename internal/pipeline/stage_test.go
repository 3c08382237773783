package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PreservesInputOrder(t *testing.T) {
	stage := Stage[int, string]{
		Name:        "format",
		Concurrency: 4,
		Process: func(ctx context.Context, n int) (string, error) {
			// Later inputs finish first to shuffle completion order.
			time.Sleep(time.Duration(20-n) * time.Millisecond)
			return fmt.Sprintf("item-%d", n), nil
		},
	}

	inputs := []int{0, 1, 2, 3, 4, 5, 6, 7}
	results := Run(context.Background(), stage, inputs)

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.Value)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var active, peak int64
	var mu sync.Mutex

	stage := Stage[int, int]{
		Name:        "count",
		Concurrency: 3,
		Process: func(ctx context.Context, n int) (int, error) {
			cur := atomic.AddInt64(&active, 1)
			mu.Lock()
			if cur > peak {
				peak = cur
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return n, nil
		},
	}

	inputs := make([]int, 12)
	Run(context.Background(), stage, inputs)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int64(3))
	assert.Positive(t, peak)
}

func TestRun_RecordsPerItemErrors(t *testing.T) {
	boom := errors.New("boom")
	stage := Stage[int, int]{
		Name:        "flaky",
		Concurrency: 2,
		Process: func(ctx context.Context, n int) (int, error) {
			if n%2 == 1 {
				return 0, boom
			}
			return n * 10, nil
		},
	}

	results := Run(context.Background(), stage, []int{0, 1, 2, 3})

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 20, results[2].Value)
	assert.ErrorIs(t, results[3].Err, boom)
}

func TestRun_EmptyInput(t *testing.T) {
	stage := Stage[int, int]{Name: "noop", Concurrency: 2,
		Process: func(ctx context.Context, n int) (int, error) { return n, nil }}
	assert.Nil(t, Run(context.Background(), stage, nil))
}

func TestRun_CancelledContextMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	stage := Stage[int, int]{
		Name:        "slow",
		Concurrency: 1,
		Process: func(ctx context.Context, n int) (int, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(5 * time.Second):
				return n, nil
			}
		},
	}

	go func() {
		<-started
		cancel()
	}()

	results := Run(ctx, stage, []int{1, 2, 3, 4})

	require.Len(t, results, 4)
	cancelled := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Equal(t, 4, cancelled)
}
