package mongosource

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mquad/bd-tree/ratings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

func TestDecode(t *testing.T) {
	s := &Source{fields: Fields{User: "u", Item: "m", Value: "r"}}
	tr, err := s.decode(bson.M{"u": 3, "m": int64(7), "r": 4.5})
	require.NoError(t, err)
	assert.Equal(t, ratings.Triple{User: 3, Item: 7, Value: 4.5}, tr)

	_, err = s.decode(bson.M{"u": 3, "r": 4.5})
	assert.True(t, errors.Is(err, ratings.ErrInvalidInput))
	_, err = s.decode(bson.M{"u": "x", "m": 1, "r": 4.5})
	assert.True(t, errors.Is(err, ratings.ErrInvalidInput))
	_, err = s.decode(bson.M{"u": 1.5, "m": 1, "r": 4.5})
	assert.True(t, errors.Is(err, ratings.ErrInvalidInput))
}

func TestWriteAndReadTriples(t *testing.T) {
	url := os.Getenv("BDTREE_MONGO_URL")
	if url == "" {
		t.Skip("BDTREE_MONGO_URL not set")
	}
	s, err := Dial(url, "ratings_test", DefaultFields())
	require.NoError(t, err)
	defer s.Close()
	defer s.withCollection(func(c *mgo.Collection) error { return c.DropCollection() })
	ctx := context.Background()
	in := []ratings.Triple{{User: 1, Item: 2, Value: 3}, {User: 2, Item: 2, Value: 5}}
	n, err := s.Write(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	out, err := s.Triples(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, in, out)
}
