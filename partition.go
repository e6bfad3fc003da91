package bdtree

import (
	"github.com/mquad/bd-tree/stats"
	"github.com/mquad/bd-tree/tree"
)

/*
Partition represents the split of a set of users by their answer to
the question on an item: the sorted users split, the users in each
branch, indexed by tree.Branch, and the statistics of their ratings. A Partition only
depends on the users and the item, so it can be shared between nodes
and builds; it must not be modified.
*/
type Partition struct {
	Item    int
	Subset  []int
	Users   [3][]int
	Tables  [3]stats.Table
	Ratings [3]int
}

// NonEmpty returns the number of branches with users
func (p *Partition) NonEmpty() int {
	var n int
	for _, users := range p.Users {
		if len(users) > 0 {
			n++
		}
	}
	return n
}

/*
partition takes sorted users and an item and returns the partition
of the users by their answer: Like for ratings at or above the like
threshold, Dislike for those below and Unknown for users who did not
rate the item.
*/
func (d *Dataset) partition(users []int, item int) *Partition {
	p := &Partition{Item: item, Subset: users}
	scale := d.store.Scale()
	raters := d.store.ItemRatings(item)
	j := 0
	for _, u := range users {
		for j < len(raters) && raters[j].ID < u {
			j++
		}
		b := tree.Unknown
		if j < len(raters) && raters[j].ID == u {
			b = tree.Dislike
			if scale.Liked(raters[j].Value) {
				b = tree.Like
			}
		}
		p.Users[b] = append(p.Users[b], u)
	}
	for _, b := range tree.Branches {
		if len(p.Users[b]) > 0 {
			p.Tables[b] = d.table(p.Users[b])
			p.Ratings[b] = p.Tables[b].Ratings()
		}
	}
	return p
}

/*
cachedPartition returns the partition of the subset by the item,
going through the cache when there is one. A cached partition whose
users differ from the subset, which only happens when two subsets
share a fingerprint, is not used and the partition is computed again.
*/
func (d *Dataset) cachedPartition(cache *stats.Cache[*Partition], fp stats.Fingerprint, users []int, item int) *Partition {
	p := cache.ComputeOrFetch(stats.Key{Subset: fp, Item: item}, func() *Partition {
		return d.partition(users, item)
	})
	if p.Item != item || !sameUsers(p.Subset, users) {
		return d.partition(users, item)
	}
	return p
}

func sameUsers(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
