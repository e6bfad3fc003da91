package stats

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemStats(t *testing.T) {
	var s ItemStats
	assert.Equal(t, 0.0, s.Mean())
	assert.Equal(t, 0.0, s.SquaredError())
	s.Add(5, 1)
	s.Add(1, -1)
	assert.Equal(t, 2, s.N)
	assert.InDelta(t, 3.0, s.Mean(), 1e-12)
	assert.InDelta(t, 0.0, s.UnbiasedMean(), 1e-12)
	assert.InDelta(t, 2.0, s.SquaredError(), 1e-12)
}

func TestSmooth(t *testing.T) {
	assert.InDelta(t, 2.5, Smooth(8, 2, 1, 2), 1e-12)
	assert.InDelta(t, 4.0, Smooth(0, 0, 4, 10), 1e-12)
	assert.InDelta(t, 4.0, Smooth(0, 0, 4, 0), 1e-12)
	assert.InDelta(t, 2.5, Smooth(5, 2, 100, 0), 1e-12)
}

func TestAccumulatorTable(t *testing.T) {
	a := NewAccumulator()
	a.Add(7, 4, 1)
	a.Add(2, 3, 0)
	a.Add(7, 2, -1)
	tb := a.Table()
	require.Len(t, tb, 2)
	assert.Equal(t, 2, tb[0].Item)
	assert.Equal(t, 7, tb[1].Item)
	assert.Equal(t, 3, tb.Ratings())
	s, ok := tb.Find(7)
	require.True(t, ok)
	assert.Equal(t, 2, s.N)
	_, ok = tb.Find(3)
	assert.False(t, ok)
	assert.InDelta(t, 2.0, tb.SquaredError(), 1e-12)
	total := tb.Total()
	assert.Equal(t, 3, total.N)
	assert.InDelta(t, 9.0, total.Sum, 1e-12)
}

func TestFingerprintOf(t *testing.T) {
	a := FingerprintOf([]int{1, 2, 3})
	assert.Equal(t, a, FingerprintOf([]int{1, 2, 3}))
	assert.NotEqual(t, a, FingerprintOf([]int{1, 2, 4}))
	assert.Equal(t, 3, a.Size)
}

func TestCacheComputeOrFetch(t *testing.T) {
	c := NewCache[int](4)
	k := Key{Subset: FingerprintOf([]int{1}), Item: 3}
	assert.Equal(t, 1, c.ComputeOrFetch(k, func() int { return 1 }))
	assert.Equal(t, 1, c.ComputeOrFetch(k, func() int { return 2 }))
	assert.Equal(t, 2, c.ComputeOrFetch(Key{Subset: k.Subset, Item: 4}, func() int { return 2 }))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Hits())
	assert.Equal(t, uint64(2), c.Misses())
}

func TestNilCache(t *testing.T) {
	var c *Cache[int]
	calls := 0
	f := func() int { calls++; return calls }
	assert.Equal(t, 1, c.ComputeOrFetch(Key{}, f))
	assert.Equal(t, 2, c.ComputeOrFetch(Key{}, f))
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentSameKey(t *testing.T) {
	c := NewCache[*int](8)
	k := Key{Subset: FingerprintOf([]int{4, 5}), Item: 1}
	var computed atomic.Int32
	results := make([]*int, 32)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.ComputeOrFetch(k, func() *int {
				computed.Add(1)
				v := i
				return &v
			})
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, computed.Load(), int32(1))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
}
