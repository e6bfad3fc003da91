package bdtree

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mquad/bd-tree/metrics"
	"github.com/mquad/bd-tree/queue"
	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/stats"
	"github.com/mquad/bd-tree/tree"
	"github.com/sirupsen/logrus"
)

// Option customizes a Builder
type Option func(*Builder)

// WithCriterion makes the builder grow trees with the given
// criterion instead of the configured one.
func WithCriterion(c Criterion) Option {
	return func(b *Builder) {
		b.criterion = c
	}
}

// WithRandSource makes the builder draw the randomness of
// randomized selection from the given source. The source is used
// once per build.
func WithRandSource(src rand.Source) Option {
	return func(b *Builder) {
		b.src = src
	}
}

// WithLogger makes the builder log to the given logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithRelevance makes the ranking criterion judge rankings against
// the given held-out ratings instead of the training ratings.
func WithRelevance(triples []ratings.Triple) Option {
	return func(b *Builder) {
		b.relevance = triples
	}
}

// WithPruner replaces the pruner deciding whether a candidate that
// splits a node with enough support may be asked there. The default
// one prunes candidates that do not improve the node's quality.
func WithPruner(p Pruner) Option {
	return func(b *Builder) {
		b.pruner = p
	}
}

/*
Builder grows elicitation trees out of the ratings of a store. A
Builder may be used to build any number of trees, sequentially or
concurrently; when its configuration enables caching, partitions
computed for a build are reused by the next ones.
*/
type Builder struct {
	cfg        Config
	dataset    *Dataset
	popularity *ratings.Popularity
	criterion  Criterion
	pruner     Pruner
	src        rand.Source
	logger     logrus.FieldLogger
	relevance  []ratings.Triple
	cache      *stats.Cache[*Partition]
}

/*
NewBuilder takes an initialized rating store, a configuration and
options and returns a Builder for them. It returns an error wrapping
ErrConfig if the configuration is not valid or ErrNotInitialized if
the store is not initialized.
*/
func NewBuilder(store *ratings.Store, cfg Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || !store.Initialized() {
		return nil, ErrNotInitialized
	}
	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.criterion == nil {
		c, err := NewCriterion(cfg.Criterion)
		if err != nil {
			return nil, err
		}
		b.criterion = c
	}
	if b.pruner == nil {
		b.pruner = ImprovementPruner()
	}
	b.pruner = Pruners(SupportPruner(cfg.RatingsMin), b.pruner)
	if b.src == nil {
		b.src = newTimeSource()
	}
	if b.logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		b.logger = l
	}
	var err error
	b.popularity, err = ratings.NewPopularity(store)
	if err != nil {
		return nil, err
	}
	b.dataset, err = newDataset(store, cfg, b.relevance)
	if err != nil {
		return nil, err
	}
	if cfg.CacheEnabled {
		b.cache = stats.NewCache[*Partition](0)
	}
	return b, nil
}

// Config returns the configuration of the builder
func (b *Builder) Config() Config {
	return b.cfg
}

// Criterion returns the criterion trees are grown with
func (b *Builder) Criterion() Criterion {
	return b.criterion
}

// Dataset returns the data trees are grown from
func (b *Builder) Dataset() *Dataset {
	return b.dataset
}

/*
Build takes a context, the items that may be asked and whether to
log diagnostics and returns a tree grown on the builder's ratings.

A nil slice of candidates makes every item of the store a candidate,
ordered by popularity and capped to the configured top_pop most
popular ones. Otherwise candidates are asked in the given order
preference, items without ratings dropped.

Build returns an error if the context is done before the tree is
complete.
*/
func (b *Builder) Build(ctx context.Context, candidates []int, diagnostics bool) (t *tree.Tree, e error) {
	start := time.Now()
	defer func() {
		metrics.BuildDuration.WithLabelValues(b.criterion.Name(), strconv.FormatBool(e == nil)).Observe(time.Since(start).Seconds())
	}()
	hits, misses := b.cache.Hits(), b.cache.Misses()
	defer func() {
		metrics.CacheLookups.WithLabelValues("hit").Add(float64(b.cache.Hits() - hits))
		metrics.CacheLookups.WithLabelValues("miss").Add(float64(b.cache.Misses() - misses))
	}()
	pool := queue.NewPool(b.cfg.NumThreads)
	defer pool.Close()
	g := &grower{
		Builder:     b,
		ctx:         ctx,
		pool:        pool,
		candidates:  b.candidatePool(candidates),
		seed:        rand.New(b.src).Int63(),
		diagnostics: diagnostics,
	}
	users := b.dataset.Store().Users()
	root := b.dataset.subset(users, b.dataset.table(users), nil)
	grown, err := g.grow(root, nil, nil)
	if err != nil {
		return nil, err
	}
	var nodes []tree.Node
	flatten(grown, -1, &nodes)
	info := tree.Info{Criterion: b.criterion.Name(), LikeThreshold: b.dataset.Store().Scale().LikeThreshold}
	t, err = tree.New(info, nodes)
	if err != nil {
		return nil, fmt.Errorf("assembling tree: %w", err)
	}
	b.logger.WithFields(logrus.Fields{
		"nodes":    t.Len(),
		"depth":    t.Depth(),
		"leaves":   len(t.Leaves()),
		"duration": time.Since(start),
	}).Info("tree grown")
	return t, nil
}

func (b *Builder) candidatePool(candidates []int) []int {
	if candidates == nil {
		return b.popularity.TopK(b.cfg.TopPop)
	}
	store := b.dataset.Store()
	seen := make(map[int]bool, len(candidates))
	items := make([]int, 0, len(candidates))
	for _, it := range candidates {
		if seen[it] || !store.HasItem(it) {
			continue
		}
		seen[it] = true
		items = append(items, it)
	}
	return items
}

// grower holds the state of one build
type grower struct {
	*Builder
	ctx         context.Context
	pool        *queue.Pool
	candidates  []int
	seed        int64
	diagnostics bool
}

type grownNode struct {
	node     tree.Node
	children [3]*grownNode
}

/*
grow takes the subset of users reaching a node, the items asked on
the way to the node and the answers given and returns the subtree
rooted at the node.
*/
func (g *grower) grow(s *Subset, asked []int, path []tree.Branch) (*grownNode, error) {
	if err := g.ctx.Err(); err != nil {
		return nil, err
	}
	branch := tree.NoBranch
	if len(path) > 0 {
		branch = path[len(path)-1]
	}
	quality := g.criterion.Quality(g.dataset, s)
	gn := &grownNode{node: tree.Node{
		Branch:     branch,
		Depth:      len(path),
		Splitter:   -1,
		Users:      len(s.Users),
		Ratings:    s.Ratings,
		Quality:    quality,
		Prediction: tree.NewPrediction(s.Mean, len(s.Users), s.ItemRatings, s.ItemScores),
	}}
	var pool []int
	if len(path) < g.cfg.DepthMax && s.Ratings >= g.cfg.RatingsMin && len(s.Users) >= g.cfg.MinUsers {
		pool = g.nodeCandidates(s, asked)
	}
	var best *Candidate
	eligible := 0
	if len(pool) > 0 {
		var evaluated []*Candidate
		evaluated, eligible = g.evaluate(s, quality, pool)
		best = g.selectCandidate(evaluated, path)
	}
	fields := logrus.Fields{
		"depth":      len(path),
		"users":      len(s.Users),
		"ratings":    s.Ratings,
		"candidates": len(pool),
		"eligible":   eligible,
		"quality":    quality,
	}
	if best == nil {
		g.logNode(fields, "leaf")
		metrics.NodesGrown.WithLabelValues(g.criterion.Name(), "leaf").Inc()
		return gn, nil
	}
	fields["splitter"] = best.Item
	fields["score"] = best.Score
	g.logNode(fields, "split")
	metrics.NodesGrown.WithLabelValues(g.criterion.Name(), "split").Inc()
	gn.node.Splitter = best.Item
	gn.node.SplitQuality = best.Score
	childAsked := make([]int, len(asked)+1)
	copy(childAsked, asked)
	childAsked[len(asked)] = best.Item
	var errs [3]error
	grp := g.pool.Group()
	for _, b := range tree.Branches {
		users := best.Partition.Users[b]
		if len(users) == 0 {
			continue
		}
		childPath := make([]tree.Branch, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = b
		grp.Go(func() {
			child := g.dataset.subset(users, best.Partition.Tables[b], s)
			gn.children[b], errs[b] = g.grow(child, childAsked, childPath)
		})
	}
	grp.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return gn, nil
}

func (g *grower) logNode(fields logrus.Fields, msg string) {
	l := g.logger.WithFields(fields)
	if g.diagnostics {
		l.Info(msg)
		return
	}
	l.Debug(msg)
}

// nodeCandidates returns the pool items that may be asked to the
// users of a subset.
func (g *grower) nodeCandidates(s *Subset, asked []int) []int {
	var items []int
	for _, it := range g.candidates {
		if containsItem(asked, it) {
			continue
		}
		if st, _ := s.Table.Find(it); st.N < g.cfg.ItemRatingsMin {
			continue
		}
		items = append(items, it)
	}
	return items
}

func containsItem(items []int, item int) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}

/*
evaluate scores the items of the pool as questions for the subset in
parallel and returns the candidates in pool order together with the
number of eligible ones.
*/
func (g *grower) evaluate(s *Subset, quality float64, pool []int) ([]*Candidate, int) {
	var fp stats.Fingerprint
	if g.cache != nil {
		fp = stats.FingerprintOf(s.Users)
	}
	evaluated := make([]*Candidate, len(pool))
	grp := g.pool.Group()
	for i, item := range pool {
		grp.Go(func() {
			c := &Candidate{
				Item:        item,
				Partition:   g.dataset.cachedPartition(g.cache, fp, s.Users, item),
				NodeQuality: quality,
			}
			c.Score = g.criterion.Score(g.dataset, s, c.Partition)
			c.Eligible = !g.pruner.Prune(c, g.criterion)
			evaluated[i] = c
		})
	}
	grp.Wait()
	var eligible int
	for _, c := range evaluated {
		if c.Eligible {
			eligible++
		}
	}
	name := g.criterion.Name()
	metrics.CandidatesEvaluated.WithLabelValues(name, "eligible").Add(float64(eligible))
	metrics.CandidatesEvaluated.WithLabelValues(name, "pruned").Add(float64(len(evaluated) - eligible))
	return evaluated, eligible
}

/*
selectCandidate returns the eligible candidate to ask at the node
with the given path, or nil if there is none. Without randomization
it is the first one in pool order with the best score. Otherwise it
is drawn uniformly among the best rand_coeff eligible candidates,
from a generator that depends only on the build seed and the path.
*/
func (g *grower) selectCandidate(evaluated []*Candidate, path []tree.Branch) *Candidate {
	var eligible []*Candidate
	for _, c := range evaluated {
		if c.Eligible {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	if !g.cfg.Randomize {
		best := eligible[0]
		for _, c := range eligible[1:] {
			if g.criterion.Better(c.Score, best.Score) {
				best = c
			}
		}
		return best
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return g.criterion.Better(eligible[i].Score, eligible[j].Score)
	})
	k := g.cfg.RandCoeff
	if k > len(eligible) {
		k = len(eligible)
	}
	rng := rand.New(rand.NewSource(g.seed ^ int64(pathHash(path))))
	return eligible[rng.Intn(k)]
}

func pathHash(path []tree.Branch) uint64 {
	buf := make([]byte, len(path))
	for i, b := range path {
		buf[i] = byte(b)
	}
	return xxhash.Sum64(buf)
}

// flatten appends the nodes of the subtree to nodes in preorder and
// returns the position of its root.
func flatten(gn *grownNode, parent int, nodes *[]tree.Node) int {
	id := len(*nodes)
	n := gn.node
	n.ID = id
	n.ParentID = parent
	n.Children = tree.NoChildren
	*nodes = append(*nodes, n)
	for _, b := range tree.Branches {
		if child := gn.children[b]; child != nil {
			cid := flatten(child, id, nodes)
			(*nodes)[id].Children[b] = cid
		}
	}
	return id
}
