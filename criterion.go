package bdtree

import (
	"fmt"
	"math"
	"sort"

	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/tree"
)

/*
Criterion is the objective a tree is grown with. Quality measures
the objective on the users of a node, Score measures it on the
branches a partition splits them into, and Better tells whether a
value improves on another.
*/
type Criterion interface {
	Name() string
	Quality(d *Dataset, s *Subset) float64
	Score(d *Dataset, s *Subset, p *Partition) float64
	Better(a, b float64) bool
}

// NewCriterion returns the criterion with the given name
func NewCriterion(name string) (Criterion, error) {
	switch name {
	case ErrorCriterionName:
		return ErrorCriterion{}, nil
	case RankingCriterionName:
		return RankingCriterion{}, nil
	}
	return nil, fmt.Errorf("unknown criterion %q: %w", name, ErrConfig)
}

/*
ErrorCriterion grows trees minimizing the residual error of the
unbiased ratings: for every item, the sum of squared deviations of
its unbiased ratings from their mean, added over all items and over
all branches of a split.
*/
type ErrorCriterion struct{}

// Name returns "error"
func (ErrorCriterion) Name() string {
	return ErrorCriterionName
}

// Quality returns the residual error of the subset
func (ErrorCriterion) Quality(_ *Dataset, s *Subset) float64 {
	return s.Table.SquaredError()
}

// Score returns the residual error added over the partition branches
func (ErrorCriterion) Score(_ *Dataset, _ *Subset, p *Partition) float64 {
	var e float64
	for _, b := range tree.Branches {
		e += p.Tables[b].SquaredError()
	}
	return e
}

// Better returns whether a is a lower error than b
func (ErrorCriterion) Better(a, b float64) bool {
	return a < b
}

/*
RankingCriterion grows trees maximizing ranking quality: the NDCG of
the ranking of each user's relevant items by the unbiased scores
estimated for the branch they fall into, added over all users. Items
are ranked by decreasing score, ties broken by lower item id, and
only the top Cutoff() items of a ranking count.
*/
type RankingCriterion struct{}

// Name returns "ranking"
func (RankingCriterion) Name() string {
	return RankingCriterionName
}

// Quality returns the NDCG of the subset users ranking items by the
// subset scores.
func (RankingCriterion) Quality(d *Dataset, s *Subset) float64 {
	return rankingQuality(d, s.Users, func(item int) (float64, bool) {
		sc, ok := s.ItemScores[item]
		return sc, ok
	})
}

// Score returns the NDCG of the users of every branch ranking items
// by the branch scores, smoothed toward the subset scores.
func (RankingCriterion) Score(d *Dataset, s *Subset, p *Partition) float64 {
	var q float64
	for _, b := range tree.Branches {
		if len(p.Users[b]) == 0 {
			continue
		}
		table := p.Tables[b]
		q += rankingQuality(d, p.Users[b], func(item int) (float64, bool) {
			prior, ok := s.ItemScores[item]
			if st, found := table.Find(item); found {
				return d.smoothScore(st, prior), true
			}
			return prior, ok
		})
	}
	return q
}

// Better returns whether a is a higher quality than b
func (RankingCriterion) Better(a, b float64) bool {
	return a > b
}

func rankingQuality(d *Dataset, users []int, score func(int) (float64, bool)) float64 {
	var q float64
	var ranked []scoredEntry
	for _, u := range users {
		ranked = ranked[:0]
		for _, e := range d.Relevance(u) {
			if sc, ok := score(e.ID); ok {
				ranked = append(ranked, scoredEntry{Entry: e, score: sc})
			}
		}
		q += ndcg(ranked, d.Cutoff())
	}
	return q
}

type scoredEntry struct {
	ratings.Entry
	score float64
}

/*
ndcg sorts the entries by decreasing score, ties broken by lower id,
and returns the normalized discounted cumulative gain of their values
at the cutoff: the DCG of the ranking over the DCG of the entries
sorted by decreasing value, or 0 when the latter is 0.
*/
func ndcg(entries []scoredEntry, cutoff int) float64 {
	if len(entries) == 0 {
		return 0
	}
	rels := make([]float64, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].ID < entries[j].ID
	})
	for i, e := range entries {
		rels[i] = e.Value
	}
	dcg := DCG(rels, cutoff)
	sort.Sort(sort.Reverse(sort.Float64Slice(rels)))
	idcg := DCG(rels, cutoff)
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// DCG returns the discounted cumulative gain of the relevances in
// ranking order at the cutoff, each position i (from 0) adding
// (2^rel - 1) / log2(i + 2).
func DCG(rels []float64, cutoff int) float64 {
	var dcg float64
	for i, rel := range rels {
		if i >= cutoff {
			break
		}
		dcg += (math.Exp2(rel) - 1) / math.Log2(float64(i)+2)
	}
	return dcg
}
