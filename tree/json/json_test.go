package json

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mquad/bd-tree/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree(t *testing.T) *tree.Tree {
	pred := func(mean float64) *tree.Prediction {
		return tree.NewPrediction(mean, 2, map[int]float64{1: mean, 2: 3.25}, map[int]float64{1: 0.125, 2: -0.5})
	}
	nodes := []tree.Node{
		{ID: 0, ParentID: -1, Branch: tree.NoBranch, Splitter: 1, Children: [3]int{1, -1, 2}, Users: 4, Ratings: 9, Quality: 7.5, SplitQuality: 1.5, Prediction: pred(3)},
		{ID: 1, ParentID: 0, Branch: tree.Like, Depth: 1, Splitter: -1, Children: tree.NoChildren, Users: 2, Ratings: 5, Quality: 1, Prediction: pred(4.1)},
		{ID: 2, ParentID: 0, Branch: tree.Unknown, Depth: 1, Splitter: -1, Children: tree.NoChildren, Users: 2, Ratings: 4, Quality: 0.5, Prediction: pred(2.2)},
	}
	tr, err := tree.New(tree.Info{Criterion: "ranking", LikeThreshold: 4}, nodes)
	require.NoError(t, err)
	return tr
}

func TestWriteReadJSONTree(t *testing.T) {
	ctx := context.Background()
	original := testTree(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSONTree(ctx, original, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), `{"criterion":"ranking","likeThreshold":4,"size":3,"nodes":[{`))
	loaded, err := ReadJSONTree(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestJSONTreeFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.json")
	original := testTree(t)
	require.NoError(t, WriteJSONTreeFile(ctx, original, path))
	loaded, err := ReadJSONTreeFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
	_, err = ReadJSONTreeFile(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReadJSONTreeInvalid(t *testing.T) {
	ctx := context.Background()
	_, err := ReadJSONTree(ctx, strings.NewReader(`{"size":2,"nodes":[{"id":0,"pId":-1,"b":-1,"s":-1,"c":[-1,-1,-1]}]}`))
	assert.True(t, errors.Is(err, tree.ErrInvalidTree))
	_, err = ReadJSONTree(ctx, strings.NewReader(`{"size":1,"nodes":[{"id":0,"pId":-1,"b":-1,"s":4,"c":[-1,-1,-1]}]}`))
	assert.True(t, errors.Is(err, tree.ErrInvalidTree))
	_, err = ReadJSONTree(ctx, strings.NewReader(`{"size":1,"nodes":[{"id":0,"pId":-1,"b":9,"s":-1,"c":[-1,-1,-1]}]}`))
	assert.Error(t, err)
	_, err = ReadJSONTree(ctx, strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestNodeEncodeDecoder(t *testing.T) {
	ned := NewNodeEncodeDecoder()
	n := tree.Node{ID: 3, ParentID: 1, Branch: tree.Dislike, Depth: 2, Splitter: -1, Children: tree.NoChildren}
	data, err := ned.Encode(&n)
	require.NoError(t, err)
	decoded, err := ned.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &n, decoded)
}
