package tree

import (
	"fmt"
	"sort"
)

/*
Prediction represents the estimates a Tree makes for the users
that reach one of its nodes
*/
type Prediction struct {
	mean    float64
	weight  int
	ratings map[int]float64
	scores  map[int]float64
}

/*
NewPrediction takes the regularized mean rating of the node's users,
their number and maps from item id to the estimated rating and to
the estimated unbiased score of the item, and returns a prediction
with those values. The maps are owned by the prediction afterwards.
*/
func NewPrediction(mean float64, weight int, ratings, scores map[int]float64) *Prediction {
	return &Prediction{mean: mean, weight: weight, ratings: ratings, scores: scores}
}

// Estimate returns the regularized mean rating of the node's users
func (p *Prediction) Estimate() float64 {
	return p.mean
}

/*
Weight returns the weight of the prediction: an int equal to the
number of users from which the prediction was made
*/
func (p *Prediction) Weight() int {
	return p.weight
}

// Rating returns the estimated rating of the item and whether
// there is one.
func (p *Prediction) Rating(item int) (float64, bool) {
	r, ok := p.ratings[item]
	return r, ok
}

// RatingOrEstimate returns the estimated rating of the item or
// the overall estimate when the item has none.
func (p *Prediction) RatingOrEstimate(item int) float64 {
	if r, ok := p.ratings[item]; ok {
		return r
	}
	return p.mean
}

// Score returns the estimated unbiased score of the item, which
// orders items by preference.
func (p *Prediction) Score(item int) (float64, bool) {
	s, ok := p.scores[item]
	return s, ok
}

// Ratings returns the estimated ratings by item. The map must not be modified.
func (p *Prediction) Ratings() map[int]float64 {
	return p.ratings
}

// Scores returns the estimated scores by item. The map must not be modified.
func (p *Prediction) Scores() map[int]float64 {
	return p.scores
}

/*
Top takes a number n and a set of items to exclude and returns the
n best scored items not in the set, best first, breaking ties by
lower item id. All of them are returned when n is not positive.
*/
func (p *Prediction) Top(n int, exclude map[int]bool) []int {
	items := make([]int, 0, len(p.scores))
	for it := range p.scores {
		if !exclude[it] {
			items = append(items, it)
		}
	}
	SortByScore(items, p.scores)
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	return items
}

// SortByScore sorts the items by decreasing score, breaking ties by
// lower item id.
func SortByScore(items []int, scores map[int]float64) {
	sort.Slice(items, func(i, j int) bool {
		si, sj := scores[items[i]], scores[items[j]]
		if si != sj {
			return si > sj
		}
		return items[i] < items[j]
	})
}

func (p *Prediction) String() string {
	return fmt.Sprintf("{estimate: %.4f weight: %d items: %d}", p.mean, p.weight, len(p.ratings))
}
