package batch

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

type recorder struct {
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	mu          sync.Mutex
	seen        map[int]int
}

func newRecorder() *recorder { return &recorder{seen: map[int]int{}} }

func (p *recorder) op(_ context.Context, item int) error {
	n := p.inFlight.Add(1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	p.seen[item]++
	p.mu.Unlock()
	p.inFlight.Add(-1)
	return nil
}

func items(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestRunBoundsConcurrencyAndAttemptsEveryItemOnce(t *testing.T) {
	const c = 4
	for _, n := range []int{0, 1, c, c + 1, 10 * c} {
		for _, size := range []int{3, 500} {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				p := newRecorder()
				err := Run(context.Background(), New(c, size, 0), items(n), p.op)
				require.NoError(t, err)

				assert.LessOrEqual(t, p.maxInFlight.Load(), int64(c))
				assert.Len(t, p.seen, n)
				for i := 0; i < n; i++ {
					assert.Equal(t, 1, p.seen[i], "item %d", i)
				}
			})
		}
	}
}

func TestRunBatchesDoNotOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		batchOf = func(i int) int { return i / 5 }
		active  = map[int]int{}
		overlap bool
	)
	op := func(_ context.Context, i int) error {
		mu.Lock()
		active[batchOf(i)]++
		if len(active) > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active[batchOf(i)]--
		if active[batchOf(i)] == 0 {
			delete(active, batchOf(i))
		}
		mu.Unlock()
		return nil
	}
	require.NoError(t, Run(context.Background(), New(5, 5, 0), items(23), op))
	assert.False(t, overlap)
}

func TestRunCollectsAllFailures(t *testing.T) {
	boom := errors.New("boom")
	var attempted atomic.Int64
	op := func(_ context.Context, i int) error {
		attempted.Add(1)
		if i%3 == 0 {
			return boom
		}
		return nil
	}
	err := Run(context.Background(), New(2, 4, 0), items(10), op)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 10, attempted.Load())

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	var failed []int
	for _, e := range joined.Unwrap() {
		var ie *ItemError[int]
		require.ErrorAs(t, e, &ie)
		failed = append(failed, ie.Item)
	}
	assert.Equal(t, []int{0, 3, 6, 9}, failed)
}

func TestRunStopsSchedulingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempted atomic.Int64
	op := func(_ context.Context, i int) error {
		if attempted.Add(1) == 2 {
			cancel()
		}
		return nil
	}
	err := Run(ctx, New(1, 2, 0), items(6), op)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 2, attempted.Load())
}

func TestRunPausesBetweenBatches(t *testing.T) {
	start := time.Now()
	require.NoError(t, Run(context.Background(), New(10, 2, 20*time.Millisecond), items(6), func(context.Context, int) error { return nil }))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
