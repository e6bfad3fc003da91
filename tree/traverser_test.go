package tree

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraverserWalk(t *testing.T) {
	tr := NewTraverser(sampleTree(t))
	assert.False(t, tr.AtLeaf())
	q, err := tr.CurrentQuery()
	require.NoError(t, err)
	assert.Equal(t, 10, q)
	_, err = tr.Prediction()
	assert.True(t, errors.Is(err, ErrInvalidState))

	require.NoError(t, tr.TraverseLike())
	q, err = tr.CurrentQuery()
	require.NoError(t, err)
	assert.Equal(t, 20, q)
	require.NoError(t, tr.TraverseLike())
	assert.True(t, tr.AtLeaf())
	assert.Equal(t, []Branch{Like, Like}, tr.Path())

	_, err = tr.CurrentQuery()
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(tr.TraverseUnknown(), ErrInvalidTransition))
	assert.True(t, errors.Is(tr.TraverseDislike(), ErrInvalidTransition))
	p, err := tr.Prediction()
	require.NoError(t, err)
	assert.Equal(t, 4.5, p.Estimate())

	tr.Reset()
	assert.Equal(t, 0, tr.Node().ID)
	assert.Equal(t, 0, tr.Depth())
}

func TestTraverserFallbackUnknown(t *testing.T) {
	tr := NewTraverser(sampleTree(t))
	require.NoError(t, tr.TraverseLike())
	require.NoError(t, tr.TraverseDislike())
	assert.Equal(t, 3, tr.Node().ID)
	assert.Equal(t, []Branch{Like, Unknown}, tr.Path())
}

func TestTraverserFallbackFail(t *testing.T) {
	tr := NewTraverser(sampleTree(t), WithFallback(FallbackFail))
	require.NoError(t, tr.TraverseLike())
	err := tr.TraverseDislike()
	assert.True(t, errors.Is(err, ErrNoSuchBranch))
	assert.Equal(t, 1, tr.Node().ID)
}

func TestTraverserNoUnknownToFallBackTo(t *testing.T) {
	nodes := []Node{
		{ID: 0, ParentID: -1, Branch: NoBranch, Splitter: 1, Children: [3]int{1, 2, -1}},
		leaf(1, 0, Like, 1, 5),
		leaf(2, 0, Dislike, 1, 1),
	}
	tree, err := New(Info{LikeThreshold: 4}, nodes)
	require.NoError(t, err)
	tr := NewTraverser(tree)
	assert.True(t, errors.Is(tr.TraverseUnknown(), ErrNoSuchBranch))
	require.NoError(t, tr.Answer(3))
	assert.Equal(t, 2, tr.Node().ID)
}

func TestTraverserRejectsNonFiniteRatings(t *testing.T) {
	tr := NewTraverser(sampleTree(t))
	for _, rating := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.True(t, errors.Is(tr.Answer(rating), ErrInvalidRating), "%v", rating)
		assert.Equal(t, 0, tr.Node().ID)
		assert.Empty(t, tr.Path())
	}
	require.NoError(t, tr.Answer(5))
	assert.Equal(t, []Branch{Like}, tr.Path())
}

func TestConcurrentTraversers(t *testing.T) {
	tree := sampleTree(t)
	answers := [][]Branch{{Like, Like}, {Like, Unknown}, {Dislike}, {Unknown}, {Like, Dislike}}
	expected := []int{2, 3, 4, 5, 3}
	var wg sync.WaitGroup
	got := make([]int, 100)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := NewTraverser(tree)
			for _, b := range answers[i%len(answers)] {
				if err := tr.Traverse(b); err != nil {
					got[i] = -1
					return
				}
			}
			got[i] = tr.Node().ID
		}(i)
	}
	wg.Wait()
	for i, id := range got {
		assert.Equal(t, expected[i%len(expected)], id)
	}
}
