package badgerstore

import (
	"context"
	"testing"

	"github.com/mquad/bd-tree/tree"
	"github.com/mquad/bd-tree/tree/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree(t *testing.T) *tree.Tree {
	nodes := []tree.Node{
		{ID: 0, ParentID: -1, Branch: tree.NoBranch, Splitter: 5, Children: [3]int{-1, 1, 2}, Users: 3,
			Prediction: tree.NewPrediction(3.5, 3, map[int]float64{5: 3.5}, map[int]float64{5: 0.25})},
		{ID: 1, ParentID: 0, Branch: tree.Dislike, Depth: 1, Splitter: -1, Children: tree.NoChildren, Users: 1,
			Prediction: tree.NewPrediction(2, 1, map[int]float64{5: 2}, map[int]float64{5: -1})},
		{ID: 2, ParentID: 0, Branch: tree.Unknown, Depth: 1, Splitter: -1, Children: tree.NoChildren, Users: 2,
			Prediction: tree.NewPrediction(4, 2, map[int]float64{5: 4}, map[int]float64{5: 1})},
	}
	tr, err := tree.New(tree.Info{Criterion: "error", LikeThreshold: 4}, nodes)
	require.NoError(t, err)
	return tr
}

func TestSaveLoadInMemory(t *testing.T) {
	ctx := context.Background()
	ns, err := Open("", "ml", json.NewNodeEncodeDecoder(), nil)
	require.NoError(t, err)
	defer ns.Close(ctx)

	h, err := ns.GetHeader(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	original := testTree(t)
	require.NoError(t, tree.Save(ctx, ns, original))
	loaded, err := tree.Load(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	require.NoError(t, ns.Delete(ctx, 2))
	n, err := ns.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, n)
	_, err = tree.Load(ctx, ns)
	assert.ErrorIs(t, err, tree.ErrInvalidTree)
}

func TestSaveLoadOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ns, err := Open(dir, "ml", json.NewNodeEncodeDecoder(), nil)
	require.NoError(t, err)
	original := testTree(t)
	require.NoError(t, tree.Save(ctx, ns, original))
	require.NoError(t, ns.Close(ctx))

	ns, err = Open(dir, "ml", json.NewNodeEncodeDecoder(), nil)
	require.NoError(t, err)
	defer ns.Close(ctx)
	loaded, err := tree.Load(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}
