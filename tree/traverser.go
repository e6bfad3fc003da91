package tree

import (
	"fmt"
	"math"
)

// FallbackPolicy decides what a Traverser does when the current
// node has no child for the given answer.
type FallbackPolicy int

const (
	// FallbackUnknown moves to the Unknown child when there is one
	FallbackUnknown FallbackPolicy = iota
	// FallbackFail always fails with ErrNoSuchBranch
	FallbackFail
)

func (fp FallbackPolicy) String() string {
	if fp == FallbackFail {
		return "fail"
	}
	return "unknown"
}

// TraverserOption customizes a Traverser
type TraverserOption func(*Traverser)

// WithFallback sets the policy applied on missing branches,
// FallbackUnknown by default.
func WithFallback(fp FallbackPolicy) TraverserOption {
	return func(t *Traverser) { t.fallback = fp }
}

/*
Traverser walks a Tree one answer at a time, as a user is asked the
questions on the nodes. A Traverser only holds a cursor on the tree:
any number of them may walk the same tree concurrently, but a single
Traverser must not be used from several goroutines at once.
*/
type Traverser struct {
	t        *Tree
	current  int
	path     []Branch
	fallback FallbackPolicy
}

// NewTraverser returns a traverser at the root of the tree
func NewTraverser(t *Tree, opts ...TraverserOption) *Traverser {
	tr := &Traverser{t: t}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// Reset moves the traverser back to the root
func (tr *Traverser) Reset() {
	tr.current = 0
	tr.path = tr.path[:0]
}

// Node returns the current node. It must not be modified.
func (tr *Traverser) Node() *Node {
	return &tr.t.nodes[tr.current]
}

// Depth returns the number of answers given so far
func (tr *Traverser) Depth() int {
	return len(tr.path)
}

// Path returns a copy of the branches followed so far
func (tr *Traverser) Path() []Branch {
	return append([]Branch(nil), tr.path...)
}

// AtLeaf returns whether the current node has no children
func (tr *Traverser) AtLeaf() bool {
	return tr.Node().IsLeaf()
}

// CurrentQuery returns the item the user should be asked to rate,
// or ErrInvalidState at a leaf.
func (tr *Traverser) CurrentQuery() (int, error) {
	n := tr.Node()
	if n.IsLeaf() {
		return -1, fmt.Errorf("asking at node %d: %w", n.ID, ErrInvalidState)
	}
	return n.Splitter, nil
}

// TraverseLike moves to the child for users who like the current item
func (tr *Traverser) TraverseLike() error {
	return tr.Traverse(Like)
}

// TraverseDislike moves to the child for users who dislike the current item
func (tr *Traverser) TraverseDislike() error {
	return tr.Traverse(Dislike)
}

// TraverseUnknown moves to the child for users who do not know the current item
func (tr *Traverser) TraverseUnknown() error {
	return tr.Traverse(Unknown)
}

/*
Traverse moves to the child of the current node for the given answer.
It returns ErrInvalidTransition at a leaf. When the node has no child
for the answer, the fallback policy applies: with FallbackUnknown the
Unknown child is taken if there is one. ErrNoSuchBranch is returned
otherwise, and the traverser stays where it was.
*/
func (tr *Traverser) Traverse(b Branch) error {
	n := tr.Node()
	if n.IsLeaf() {
		return fmt.Errorf("answering %s at node %d: %w", b, n.ID, ErrInvalidTransition)
	}
	c, ok := n.Child(b)
	if !ok && tr.fallback == FallbackUnknown {
		b = Unknown
		c, ok = n.Child(b)
	}
	if !ok {
		return fmt.Errorf("answering %s at node %d: %w", b, n.ID, ErrNoSuchBranch)
	}
	tr.current = c
	tr.path = append(tr.path, b)
	return nil
}

// Answer takes the rating the user gave to the current item and
// moves to the Like or Dislike child according to the tree's
// like threshold. Non-finite ratings are rejected with
// ErrInvalidRating and the traverser stays where it was.
func (tr *Traverser) Answer(rating float64) error {
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return fmt.Errorf("answering %v at node %d: %w", rating, tr.Node().ID, ErrInvalidRating)
	}
	if rating >= tr.t.info.LikeThreshold {
		return tr.Traverse(Like)
	}
	return tr.Traverse(Dislike)
}

// Prediction returns the prediction of the current node, or
// ErrInvalidState when the traverser is not at a leaf.
func (tr *Traverser) Prediction() (*Prediction, error) {
	n := tr.Node()
	if !n.IsLeaf() {
		return nil, fmt.Errorf("predicting at node %d: %w", n.ID, ErrInvalidState)
	}
	if n.Prediction == nil {
		return nil, fmt.Errorf("predicting at node %d: no prediction: %w", n.ID, ErrInvalidState)
	}
	return n.Prediction, nil
}
