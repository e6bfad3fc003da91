package bdtree

import (
	"fmt"

	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/stats"
)

/*
Dataset is the rating data of a store prepared for growing trees:
the ratings with each user's regularized bias removed, the relevance
judgements ranking quality is measured on and the smoothing weight
of node estimates.
*/
type Dataset struct {
	store     *ratings.Store
	biases    []float64
	hSmooth   float64
	cutoff    int
	relevance map[int][]ratings.Entry
}

func newDataset(store *ratings.Store, cfg Config, relevance []ratings.Triple) (*Dataset, error) {
	d := &Dataset{
		store:   store,
		biases:  store.Biases(cfg.BuReg),
		hSmooth: cfg.HSmooth,
		cutoff:  cfg.NDCGCutoff,
	}
	if relevance != nil {
		held := ratings.New(store.Scale())
		if err := held.Init(relevance); err != nil {
			return nil, fmt.Errorf("indexing relevance judgements: %w", err)
		}
		d.relevance = make(map[int][]ratings.Entry, len(held.Users()))
		for _, u := range held.Users() {
			d.relevance[u] = held.UserRatings(u)
		}
	}
	return d, nil
}

// Store returns the rating store the dataset was prepared from
func (d *Dataset) Store() *ratings.Store {
	return d.store
}

// Bias returns the regularized bias of a user
func (d *Dataset) Bias(user int) float64 {
	i, ok := d.store.UserIndex(user)
	if !ok {
		return d.store.GlobalMean()
	}
	return d.biases[i]
}

// Smoothing returns the weight of parent estimates on node estimates
func (d *Dataset) Smoothing() float64 {
	return d.hSmooth
}

// Cutoff returns the number of top ranked items ranking quality accounts
func (d *Dataset) Cutoff() int {
	return d.cutoff
}

// Relevance returns the relevance judgements of a user sorted by
// item: the held-out ratings when the dataset has them, the user's
// training ratings otherwise.
func (d *Dataset) Relevance(user int) []ratings.Entry {
	if d.relevance != nil {
		return d.relevance[user]
	}
	return d.store.UserRatings(user)
}

// table returns the statistics of every item over the sorted users
func (d *Dataset) table(users []int) stats.Table {
	acc := stats.NewAccumulator()
	for _, u := range users {
		bias := d.Bias(u)
		for _, e := range d.store.UserRatings(u) {
			acc.Add(e.ID, e.Value, e.Value-bias)
		}
	}
	return acc.Table()
}

/*
Subset is a set of users reaching a node together with the
statistics of their ratings and the estimates made for them.
*/
type Subset struct {
	// Sorted ids of the users
	Users []int
	// Statistics of their ratings by item
	Table stats.Table
	// Number of ratings they gave
	Ratings int
	// Regularized mean rating
	Mean float64
	// Estimated rating by item
	ItemRatings map[int]float64
	// Estimated unbiased score by item
	ItemScores map[int]float64
}

/*
subset takes sorted users, the statistics of their ratings and the
subset of the parent node (nil for the root) and returns the subset
with its estimates. At the root estimates are plain means. Below,
every item rated by the users gets its parent estimate smoothed with
the users' ratings, (sum + h*parent) / (n + h), and any other item
keeps the parent estimate.
*/
func (d *Dataset) subset(users []int, table stats.Table, parent *Subset) *Subset {
	s := &Subset{Users: users, Table: table, Ratings: table.Ratings()}
	total := table.Total()
	if parent == nil {
		s.Mean = total.Mean()
		s.ItemRatings = make(map[int]float64, len(table))
		s.ItemScores = make(map[int]float64, len(table))
		for _, e := range table {
			s.ItemRatings[e.Item] = e.Mean()
			s.ItemScores[e.Item] = e.UnbiasedMean()
		}
		return s
	}
	s.Mean = stats.Smooth(total.Sum, total.N, parent.Mean, d.hSmooth)
	s.ItemRatings = make(map[int]float64, len(parent.ItemRatings))
	s.ItemScores = make(map[int]float64, len(parent.ItemScores))
	for it, r := range parent.ItemRatings {
		s.ItemRatings[it] = r
	}
	for it, sc := range parent.ItemScores {
		s.ItemScores[it] = sc
	}
	for _, e := range table {
		s.ItemRatings[e.Item] = stats.Smooth(e.Sum, e.N, parent.ItemRatings[e.Item], d.hSmooth)
		s.ItemScores[e.Item] = d.smoothScore(e.ItemStats, parent.ItemScores[e.Item])
	}
	return s
}

func (d *Dataset) smoothScore(s stats.ItemStats, prior float64) float64 {
	return stats.Smooth(s.SumUnb, s.N, prior, d.hSmooth)
}
