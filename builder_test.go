package bdtree

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/mquad/bd-tree/metrics"
	"github.com/mquad/bd-tree/queue"
	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/tree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, triples []ratings.Triple) *ratings.Store {
	s := ratings.New(ratings.DefaultScale())
	require.NoError(t, s.Init(triples))
	return s
}

func scenarioTriples() []ratings.Triple {
	return []ratings.Triple{
		{User: 0, Item: 0, Value: 5},
		{User: 1, Item: 0, Value: 1},
		{User: 2, Item: 1, Value: 4},
		{User: 3, Item: 1, Value: 2},
		{User: 0, Item: 2, Value: 3},
	}
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.BuReg = 7
	cfg.RatingsMin = 1
	cfg.DepthMax = 2
	cfg.NumThreads = 1
	cfg.TopPop = 0
	return cfg
}

// divergenceTriples returns ratings on which the error and ranking
// criteria choose different root questions: items 0 and 1 split the
// ratings better, items 2, 3 and 4 split the rankings better.
func divergenceTriples() []ratings.Triple {
	var triples []ratings.Triple
	for u := 0; u < 4; u++ {
		triples = append(triples, ratings.Triple{User: u, Item: 0, Value: 5}, ratings.Triple{User: u, Item: 1, Value: 5})
	}
	for u := 4; u < 8; u++ {
		triples = append(triples, ratings.Triple{User: u, Item: 0, Value: 1}, ratings.Triple{User: u, Item: 1, Value: 1})
	}
	for u := 8; u < 10; u++ {
		triples = append(triples, ratings.Triple{User: u, Item: 2, Value: 5}, ratings.Triple{User: u, Item: 3, Value: 5}, ratings.Triple{User: u, Item: 4, Value: 3})
	}
	for u := 10; u < 12; u++ {
		triples = append(triples, ratings.Triple{User: u, Item: 2, Value: 2}, ratings.Triple{User: u, Item: 3, Value: 3}, ratings.Triple{User: u, Item: 4, Value: 5})
	}
	return triples
}

func randomTriples(seed int64, users, items int, density float64) []ratings.Triple {
	rng := rand.New(rand.NewSource(seed))
	var triples []ratings.Triple
	for u := 0; u < users; u++ {
		for i := 0; i < items; i++ {
			if rng.Float64() < density {
				triples = append(triples, ratings.Triple{User: u, Item: i, Value: float64(1 + rng.Intn(5))})
			}
		}
	}
	return triples
}

func randomConfig() Config {
	cfg := DefaultConfig()
	cfg.RatingsMin = 20
	cfg.DepthMax = 4
	cfg.HSmooth = 5
	return cfg
}

func build(t *testing.T, store *ratings.Store, cfg Config, candidates []int, opts ...Option) *tree.Tree {
	b, err := NewBuilder(store, cfg, opts...)
	require.NoError(t, err)
	tr, err := b.Build(context.Background(), candidates, false)
	require.NoError(t, err)
	return tr
}

func TestBuildScenario(t *testing.T) {
	tr := build(t, newStore(t, scenarioTriples()), scenarioConfig(), nil)
	require.Equal(t, 6, tr.Len())
	root := tr.Root()
	assert.Equal(t, 0, root.Splitter)
	assert.Equal(t, 4, root.Users)
	assert.Equal(t, 5, root.Ratings)
	assert.InDelta(t, 1.53125, root.SplitQuality, 1e-9)
	assert.Equal(t, [3]int{1, 2, 3}, root.Children)

	unknown, err := tr.Lookup(tree.Unknown)
	require.NoError(t, err)
	assert.Equal(t, 1, unknown.Splitter)
	assert.Equal(t, 2, unknown.Users)
	_, ok := unknown.Child(tree.Unknown)
	assert.False(t, ok)
	for _, path := range [][]tree.Branch{{tree.Like}, {tree.Dislike}, {tree.Unknown, tree.Like}, {tree.Unknown, tree.Dislike}} {
		n, err := tr.Lookup(path...)
		require.NoError(t, err)
		assert.True(t, n.IsLeaf(), "%v", path)
		assert.Equal(t, 1, n.Users)
	}

	// estimates at the Like child of the root, smoothed toward the root means
	like, err := tr.Lookup(tree.Like)
	require.NoError(t, err)
	r, ok := like.Prediction.Rating(0)
	require.True(t, ok)
	assert.InDelta(t, (5+100*3.0)/101, r, 1e-9)
	r, ok = like.Prediction.Rating(1)
	require.True(t, ok)
	assert.InDelta(t, 3.0, r, 1e-9)
}

func TestBuildScenarioReachesLeaf(t *testing.T) {
	tr := build(t, newStore(t, scenarioTriples()), scenarioConfig(), nil)
	answers := []float64{5, 1}
	for _, first := range answers {
		for _, second := range answers {
			trav := tree.NewTraverser(tr)
			steps := 0
			for !trav.AtLeaf() {
				a := first
				if steps > 0 {
					a = second
				}
				require.NoError(t, trav.Answer(a))
				steps++
			}
			assert.LessOrEqual(t, steps, 2)
		}
	}
	trav := tree.NewTraverser(tr)
	require.NoError(t, trav.TraverseUnknown())
	q, err := trav.CurrentQuery()
	require.NoError(t, err)
	assert.Equal(t, 1, q)
	assert.True(t, errors.Is(trav.TraverseUnknown(), tree.ErrNoSuchBranch))
	require.NoError(t, trav.Answer(4))
	assert.True(t, trav.AtLeaf())
	assert.Equal(t, 2, trav.Depth())
}

func TestBuildCriteriaDiverge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuReg = 1e6
	cfg.HSmooth = 0
	cfg.RatingsMin = 1
	cfg.DepthMax = 1
	store := newStore(t, divergenceTriples())

	cfg.Criterion = ErrorCriterionName
	tr := build(t, store, cfg, nil)
	assert.Equal(t, 0, tr.Root().Splitter)
	assert.InDelta(t, 17, tr.Root().SplitQuality, 1e-3)

	cfg.Criterion = RankingCriterionName
	tr = build(t, store, cfg, nil)
	assert.Equal(t, 2, tr.Root().Splitter)
	assert.InDelta(t, 12, tr.Root().SplitQuality, 1e-9)
	assert.Less(t, tr.Root().Quality, 12.0)
	assert.Equal(t, RankingCriterionName, tr.Info().Criterion)
}

func checkInvariants(t *testing.T, tr *tree.Tree, store *ratings.Store, cfg Config) {
	t.Helper()
	assert.LessOrEqual(t, tr.Depth(), cfg.DepthMax)
	reached := make([]int, tr.Len())
	for _, u := range store.Users() {
		profile := make(map[int]float64)
		for _, e := range store.UserRatings(u) {
			profile[e.ID] = e.Value
		}
		n := tr.Root()
		reached[n.ID]++
		for !n.IsLeaf() {
			b := tree.Unknown
			if v, ok := profile[n.Splitter]; ok {
				b = tree.Dislike
				if store.Scale().Liked(v) {
					b = tree.Like
				}
			}
			c, ok := n.Child(b)
			require.True(t, ok, "user %d has no child at node %d", u, n.ID)
			n, _ = tr.Node(c)
			reached[n.ID]++
		}
	}
	for id := 0; id < tr.Len(); id++ {
		n, err := tr.Node(id)
		require.NoError(t, err)
		assert.Equal(t, n.Users, reached[id], "users reaching node %d", id)
		if n.ID != 0 {
			assert.GreaterOrEqual(t, n.Ratings, cfg.RatingsMin, "support of node %d", id)
		}
		if !n.IsLeaf() {
			children := 0
			for _, b := range tree.Branches {
				if _, ok := n.Child(b); ok {
					children++
				}
			}
			assert.GreaterOrEqual(t, children, 2)
			for p := n.ParentID; p >= 0; {
				anc, err := tr.Node(p)
				require.NoError(t, err)
				assert.NotEqual(t, anc.Splitter, n.Splitter, "item repeated on path to node %d", id)
				p = anc.ParentID
			}
		}
	}
}

func TestBuildInvariants(t *testing.T) {
	store := newStore(t, randomTriples(7, 120, 25, 0.3))
	for _, criterion := range []string{ErrorCriterionName, RankingCriterionName} {
		t.Run(criterion, func(t *testing.T) {
			cfg := randomConfig()
			cfg.Criterion = criterion
			tr := build(t, store, cfg, nil)
			if criterion == ErrorCriterionName {
				assert.Greater(t, tr.Len(), 1)
			}
			checkInvariants(t, tr, store, cfg)
		})
	}
}

func TestBuildRandomizedInvariants(t *testing.T) {
	store := newStore(t, randomTriples(11, 120, 25, 0.3))
	cfg := randomConfig()
	cfg.Randomize = true
	cfg.RandCoeff = 3
	first := build(t, store, cfg, nil, WithRandSource(NewLockedSource(42)))
	checkInvariants(t, first, store, cfg)
	second := build(t, store, cfg, nil, WithRandSource(NewLockedSource(42)))
	assert.Equal(t, first, second)

	cfg.NumThreads = 4
	parallel := build(t, store, cfg, nil, WithRandSource(NewLockedSource(42)))
	assert.Equal(t, first, parallel)
}

// rootRanking returns the items eligible as the root question of the
// builder's trees, best first.
func rootRanking(t *testing.T, b *Builder) []int {
	pool := queue.NewPool(1)
	defer pool.Close()
	g := &grower{Builder: b, ctx: context.Background(), pool: pool, candidates: b.candidatePool(nil)}
	users := b.Dataset().Store().Users()
	root := b.Dataset().subset(users, b.Dataset().table(users), nil)
	evaluated, _ := g.evaluate(root, b.Criterion().Quality(b.Dataset(), root), g.nodeCandidates(root, nil))
	var eligible []*Candidate
	for _, c := range evaluated {
		if c.Eligible {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return b.Criterion().Better(eligible[i].Score, eligible[j].Score)
	})
	items := make([]int, len(eligible))
	for i, c := range eligible {
		items[i] = c.Item
	}
	require.NotEmpty(t, items)
	return items
}

func TestBuildRandomizedSelection(t *testing.T) {
	store := newStore(t, randomTriples(11, 120, 25, 0.3))
	cfg := randomConfig()
	deterministic := build(t, store, cfg, nil)

	cfg.Randomize = true
	cfg.RandCoeff = 5
	b, err := NewBuilder(store, cfg)
	require.NoError(t, err)
	ranking := rootRanking(t, b)
	assert.Equal(t, ranking[0], deterministic.Root().Splitter)
	top := ranking
	if len(top) > cfg.RandCoeff {
		top = top[:cfg.RandCoeff]
	}
	require.Greater(t, len(top), 1)

	roots := make(map[int]int)
	for seed := int64(1); seed <= 20; seed++ {
		tr := build(t, store, cfg, nil, WithRandSource(NewLockedSource(seed)))
		assert.Contains(t, top, tr.Root().Splitter, "seed %d", seed)
		roots[tr.Root().Splitter]++
	}
	assert.Greater(t, len(roots), 1, "roots by seed: %v", roots)

	cfg.RandCoeff = 1
	for seed := int64(1); seed <= 3; seed++ {
		assert.Equal(t, deterministic, build(t, store, cfg, nil, WithRandSource(NewLockedSource(seed))))
	}
}

func TestBuildDeterministic(t *testing.T) {
	store := newStore(t, randomTriples(3, 100, 20, 0.35))
	cfg := randomConfig()
	cfg.Criterion = RankingCriterionName
	b, err := NewBuilder(store, cfg)
	require.NoError(t, err)
	first, err := b.Build(context.Background(), nil, false)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Greater(t, b.cache.Hits(), uint64(0))

	cfg.NumThreads = 4
	parallel := build(t, store, cfg, nil)
	assert.Equal(t, first, parallel)
}

func TestBuildCacheDoesNotChangeResults(t *testing.T) {
	store := newStore(t, randomTriples(5, 100, 20, 0.35))
	cfg := randomConfig()
	cfg.NumThreads = 3
	cached := build(t, store, cfg, nil)
	cfg.CacheEnabled = false
	uncached := build(t, store, cfg, nil)
	assert.Equal(t, cached, uncached)
}

func TestBuildExplicitCandidates(t *testing.T) {
	store := newStore(t, scenarioTriples())
	tr := build(t, store, scenarioConfig(), []int{99, 2, 2, 0, -1})
	assert.Equal(t, 2, tr.Root().Splitter)

	tr = build(t, store, scenarioConfig(), []int{42})
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Root().IsLeaf())
}

func TestBuildTopPop(t *testing.T) {
	store := newStore(t, scenarioTriples())
	cfg := scenarioConfig()
	cfg.TopPop = 1
	tr := build(t, store, cfg, nil)
	assert.Equal(t, 0, tr.Root().Splitter)
	unknown, err := tr.Lookup(tree.Unknown)
	require.NoError(t, err)
	assert.True(t, unknown.IsLeaf())
}

func TestBuildLeafConditions(t *testing.T) {
	store := newStore(t, scenarioTriples())
	cases := map[string]func(*Config){
		"ratings_min": func(c *Config) { c.RatingsMin = 6 },
		"min_users":   func(c *Config) { c.MinUsers = 5 },
		"item_ratings_min": func(c *Config) {
			c.ItemRatingsMin = 3
		},
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := scenarioConfig()
			mod(&cfg)
			tr := build(t, store, cfg, nil)
			assert.Equal(t, 1, tr.Len())
			assert.Equal(t, -1, tr.Root().Splitter)
		})
	}
}

func TestBuildWithoutImprovementPruning(t *testing.T) {
	store := newStore(t, randomTriples(9, 60, 12, 0.4))
	cfg := randomConfig()
	cfg.RatingsMin = 10
	tr := build(t, store, cfg, nil, WithPruner(NoPruner()))
	checkInvariants(t, tr, store, cfg)
}

func TestBuildCancelled(t *testing.T) {
	b, err := NewBuilder(newStore(t, scenarioTriples()), scenarioConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, nil, false)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewBuilderErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumThreads = 0
	cfg.DepthMax = -1
	_, err := NewBuilder(newStore(t, scenarioTriples()), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = NewBuilder(ratings.New(ratings.DefaultScale()), DefaultConfig())
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = NewBuilder(newStore(t, scenarioTriples()), DefaultConfig(), WithRelevance([]ratings.Triple{{User: 0, Item: 0, Value: 9}}))
	assert.True(t, errors.Is(err, ratings.ErrInvalidInput))
}

func TestBuildWithRelevance(t *testing.T) {
	store := newStore(t, divergenceTriples())
	cfg := DefaultConfig()
	cfg.BuReg = 1e6
	cfg.HSmooth = 0
	cfg.RatingsMin = 1
	cfg.DepthMax = 1
	cfg.Criterion = RankingCriterionName
	// every user judges items 0 and 1 only
	var relevance []ratings.Triple
	for u := 0; u < 12; u++ {
		relevance = append(relevance, ratings.Triple{User: u, Item: 0, Value: 5}, ratings.Triple{User: u, Item: 1, Value: 1})
	}
	b, err := NewBuilder(store, cfg, WithRelevance(relevance))
	require.NoError(t, err)
	assert.Len(t, b.Dataset().Relevance(3), 2)
	assert.Nil(t, b.Dataset().Relevance(42))
	_, err = b.Build(context.Background(), nil, false)
	require.NoError(t, err)
}

func TestEmptyStoreBuildsLeaf(t *testing.T) {
	tr := build(t, newStore(t, nil), DefaultConfig(), nil)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 0, tr.Root().Users)
}

func TestBuildReportsMetrics(t *testing.T) {
	splits := metrics.NodesGrown.WithLabelValues(ErrorCriterionName, "split")
	leaves := metrics.NodesGrown.WithLabelValues(ErrorCriterionName, "leaf")
	eligible := metrics.CandidatesEvaluated.WithLabelValues(ErrorCriterionName, "eligible")
	s0, l0, e0 := testutil.ToFloat64(splits), testutil.ToFloat64(leaves), testutil.ToFloat64(eligible)
	build(t, newStore(t, scenarioTriples()), scenarioConfig(), nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(splits)-s0)
	assert.Equal(t, 4.0, testutil.ToFloat64(leaves)-l0)
	assert.Equal(t, 4.0, testutil.ToFloat64(eligible)-e0)
}
