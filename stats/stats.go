/*
Package stats provides the aggregate rating statistics trees are
grown with and a concurrent cache to memoize them.
*/
package stats

import "sort"

/*
ItemStats aggregates the ratings of an item over a set of users,
both as given and with each user's bias removed.
*/
type ItemStats struct {
	N       int
	Sum     float64
	Sum2    float64
	SumUnb  float64
	Sum2Unb float64
}

// Add accounts a rating and its unbiased value
func (s *ItemStats) Add(value, unbiased float64) {
	s.N++
	s.Sum += value
	s.Sum2 += value * value
	s.SumUnb += unbiased
	s.Sum2Unb += unbiased * unbiased
}

// Mean returns the mean rating, 0 with no ratings
func (s ItemStats) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// UnbiasedMean returns the mean unbiased rating, 0 with no ratings
func (s ItemStats) UnbiasedMean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.SumUnb / float64(s.N)
}

// SquaredError returns the sum of squared deviations of the
// unbiased ratings from their mean.
func (s ItemStats) SquaredError() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum2Unb - s.SumUnb*s.SumUnb/float64(s.N)
}

// Smooth returns (sum + h*prior) / (n + h), or prior when both n and h are 0.
func Smooth(sum float64, n int, prior, h float64) float64 {
	den := float64(n) + h
	if den == 0 {
		return prior
	}
	return (sum + h*prior) / den
}

// Entry is the statistics of one item
type Entry struct {
	Item int
	ItemStats
}

// Table holds per item statistics sorted by item id
type Table []Entry

/*
Accumulator builds a Table. Ratings must be added in a fixed order
for the resulting sums to be reproducible.
*/
type Accumulator struct {
	index map[int]int
	table Table
}

// NewAccumulator returns an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{index: make(map[int]int)}
}

// Add accounts a rating of the given item
func (a *Accumulator) Add(item int, value, unbiased float64) {
	i, ok := a.index[item]
	if !ok {
		i = len(a.table)
		a.index[item] = i
		a.table = append(a.table, Entry{Item: item})
	}
	a.table[i].Add(value, unbiased)
}

// Table returns the accumulated statistics sorted by item id
func (a *Accumulator) Table() Table {
	t := a.table
	sort.Slice(t, func(i, j int) bool { return t[i].Item < t[j].Item })
	a.table, a.index = nil, make(map[int]int)
	return t
}

// Find returns the statistics of the item on the table
func (t Table) Find(item int) (ItemStats, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Item >= item })
	if i < len(t) && t[i].Item == item {
		return t[i].ItemStats, true
	}
	return ItemStats{}, false
}

// SquaredError returns the sum of the squared errors of all items
func (t Table) SquaredError() float64 {
	var e float64
	for _, entry := range t {
		e += entry.SquaredError()
	}
	return e
}

// Ratings returns the number of ratings accounted on the table
func (t Table) Ratings() int {
	var n int
	for _, entry := range t {
		n += entry.N
	}
	return n
}

// Total returns the statistics of all items added together
func (t Table) Total() ItemStats {
	var total ItemStats
	for _, e := range t {
		total.N += e.N
		total.Sum += e.Sum
		total.Sum2 += e.Sum2
		total.SumUnb += e.SumUnb
		total.Sum2Unb += e.Sum2Unb
	}
	return total
}
