package bdtree

/*
Candidate is the evaluation of an item as the question to ask
at a node.
*/
type Candidate struct {
	// The evaluated item
	Item int
	// The split of the node's users by their answer
	Partition *Partition
	// The objective value after the split
	Score float64
	// The objective value of the node before the split
	NodeQuality float64
	// Whether the item may be asked at the node
	Eligible bool
}

/*
Pruner is an interface wrapping the Prune method, that can be used
to decide whether a candidate split is good enough to become part of
a tree or if it must be pruned instead.

The Prune method takes an evaluated candidate and the criterion it
was scored with and returns a boolean: true to indicate the candidate
must be pruned, false to allow its adding to the tree.
*/
type Pruner interface {
	Prune(c *Candidate, cr Criterion) bool
}

/*
PrunerFunc wraps a function with the Prune method signature to implement
the Pruner interface
*/
type PrunerFunc func(c *Candidate, cr Criterion) bool

/*
Prune takes a candidate and a criterion and invokes the PrunerFunc with
those parameters to return its boolean result.
*/
func (pf PrunerFunc) Prune(c *Candidate, cr Criterion) bool {
	return pf(c, cr)
}

/*
SupportPruner takes a minimum number of ratings and returns a Pruner
that prunes candidates leaving fewer than two branches with users or
a branch with users whose ratings add up to less than the minimum.
*/
func SupportPruner(ratingsMin int) Pruner {
	return PrunerFunc(func(c *Candidate, _ Criterion) bool {
		p := c.Partition
		if p.NonEmpty() < 2 {
			return true
		}
		for b, users := range p.Users {
			if len(users) > 0 && p.Ratings[b] < ratingsMin {
				return true
			}
		}
		return false
	})
}

/*
ImprovementPruner returns a Pruner that prunes candidates whose score
is not strictly better than the quality of the node they split.
*/
func ImprovementPruner() Pruner {
	return PrunerFunc(func(c *Candidate, cr Criterion) bool {
		return !cr.Better(c.Score, c.NodeQuality)
	})
}

/*
Pruners takes a number of pruners and returns a Pruner that prunes
any candidate pruned by one of them.
*/
func Pruners(pruners ...Pruner) Pruner {
	return PrunerFunc(func(c *Candidate, cr Criterion) bool {
		for _, p := range pruners {
			if p.Prune(c, cr) {
				return true
			}
		}
		return false
	})
}

/*
NoPruner returns a Pruner whose Prune method always returns false, that is,
never prunes.
*/
func NoPruner() Pruner {
	return PrunerFunc(func(*Candidate, Criterion) bool {
		return false
	})
}
