package ratings

import "sort"

/*
Popularity ranks the items of a store by their number of ratings,
most rated first, breaking ties by lower item id.
*/
type Popularity struct {
	ranked []int
	counts map[int]int
	rank   map[int]int
}

// NewPopularity takes an initialized store and returns the
// popularity ranking of its items, or ErrNotInitialized.
func NewPopularity(s *Store) (*Popularity, error) {
	if !s.Initialized() {
		return nil, ErrNotInitialized
	}
	p := &Popularity{
		ranked: make([]int, len(s.items)),
		counts: make(map[int]int, len(s.items)),
		rank:   make(map[int]int, len(s.items)),
	}
	copy(p.ranked, s.items)
	for i, it := range s.items {
		p.counts[it] = len(s.byItem[i])
	}
	sort.SliceStable(p.ranked, func(i, j int) bool {
		ci, cj := p.counts[p.ranked[i]], p.counts[p.ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return p.ranked[i] < p.ranked[j]
	})
	for i, it := range p.ranked {
		p.rank[it] = i
	}
	return p, nil
}

// TopK returns a new slice with the n most popular items, or
// with all of them when n is not positive or exceeds their number.
func (p *Popularity) TopK(n int) []int {
	if n <= 0 || n > len(p.ranked) {
		n = len(p.ranked)
	}
	result := make([]int, n)
	copy(result, p.ranked[:n])
	return result
}

// Count returns the number of ratings of an item
func (p *Popularity) Count(item int) int {
	return p.counts[item]
}

// Rank returns the position of the item in the ranking
func (p *Popularity) Rank(item int) (int, bool) {
	r, ok := p.rank[item]
	return r, ok
}

// Len returns the number of ranked items
func (p *Popularity) Len() int {
	return len(p.ranked)
}
