package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	got, err := Map(context.Background(), items, 4, func(_ context.Context, i int, v int) (int, error) {
		// finish out of order
		time.Sleep(time.Duration(50-v) * 100 * time.Microsecond)
		return v * v, nil
	})
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestMap_LimitsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	_, err := Map(context.Background(), make([]struct{}, 20), 3, func(context.Context, int, struct{}) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_FirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, _ int, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), []int(nil), 0, func(context.Context, int, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBatches(t *testing.T) {
	batches := [][]string{{"a", "b"}, {"c"}, {}, {"d", "e", "f"}}
	got, err := Batches(context.Background(), batches, 2, func(_ context.Context, s string) (string, error) {
		return s + s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb", "cc", "dd", "ee", "ff"}, got)
}

func TestBatches_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Batches(ctx, [][]int{{1}}, 1, func(context.Context, int) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
