package bdtree

import (
	"testing"

	"github.com/mquad/bd-tree/stats"
	"github.com/mquad/bd-tree/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	b, err := NewBuilder(newStore(t, scenarioTriples()), scenarioConfig())
	require.NoError(t, err)
	p := b.Dataset().partition([]int{0, 1, 2, 3}, 0)
	assert.Equal(t, []int{0, 1, 2, 3}, p.Subset)
	assert.Equal(t, []int{0}, p.Users[tree.Like])
	assert.Equal(t, []int{1}, p.Users[tree.Dislike])
	assert.Equal(t, []int{2, 3}, p.Users[tree.Unknown])
	assert.Equal(t, 3, p.NonEmpty())
}

func TestCachedPartitionChecksUsers(t *testing.T) {
	b, err := NewBuilder(newStore(t, scenarioTriples()), scenarioConfig())
	require.NoError(t, err)
	d := b.Dataset()
	cache := stats.NewCache[*Partition](0)
	liking, unknown := []int{0, 1}, []int{2, 3}
	fp := stats.FingerprintOf(liking)

	// both subsets under the same fingerprint
	p := d.cachedPartition(cache, fp, unknown, 0)
	assert.Equal(t, []int{2, 3}, p.Users[tree.Unknown])
	p = d.cachedPartition(cache, fp, liking, 0)
	assert.Equal(t, []int{0, 1}, p.Subset)
	assert.Equal(t, []int{0}, p.Users[tree.Like])
	assert.Equal(t, []int{1}, p.Users[tree.Dislike])
	assert.Empty(t, p.Users[tree.Unknown])
	assert.Equal(t, 1, cache.Len())

	p = d.cachedPartition(nil, stats.Fingerprint{}, liking, 0)
	assert.Equal(t, []int{0}, p.Users[tree.Like])
}
