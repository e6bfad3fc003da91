package tree

import (
	"context"
	"fmt"
	"strings"
)

// Error represents an error related with trees and their traversal
type Error string

const (
	// ErrInvalidState is returned when an operation is not
	// available at the traverser's current node.
	ErrInvalidState = Error("operation not available at current node")
	// ErrInvalidTransition is returned when trying to answer at a leaf
	ErrInvalidTransition = Error("no question to answer at a leaf")
	// ErrNoSuchBranch is returned when the node has no child for an
	// answer and no fallback applies.
	ErrNoSuchBranch = Error("no branch for answer")
	// ErrInvalidTree is returned when nodes do not make up a tree
	ErrInvalidTree = Error("invalid tree")
	// ErrInvalidRating is returned when answering with NaN or an
	// infinite rating.
	ErrInvalidRating = Error("invalid rating")
)

func (e Error) Error() string {
	return string(e)
}

// Info describes how a tree was grown
type Info struct {
	// The name of the objective the tree was grown with
	Criterion string
	// The rating from which an answer counts as a like
	LikeThreshold float64
}

/*
Tree represents an elicitation decision tree: an immutable arena of
nodes where each node references its parent and children by their
position. The root is at position 0 and nodes are laid out in
preorder. A Tree is safe for concurrent use once created.
*/
type Tree struct {
	info  Info
	nodes []Node
	depth int
}

/*
New takes the info for a tree and its nodes and returns the tree they
make up or an error wrapping ErrInvalidTree when they do not: node
IDs must match their positions, the root must be at position 0, every
child must come after its parent, point back to it with the right
branch and be one level deeper, and nodes must have children iff they
have a splitter. The tree takes ownership of the slice.
*/
func New(info Info, nodes []Node) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes: %w", ErrInvalidTree)
	}
	root := nodes[0]
	if root.ParentID != -1 || root.Depth != 0 || root.Branch != NoBranch {
		return nil, fmt.Errorf("node 0 is not a root: %w", ErrInvalidTree)
	}
	t := &Tree{info: info, nodes: nodes}
	for i := range nodes {
		n := &nodes[i]
		if n.ID != i {
			return nil, fmt.Errorf("node at %d has id %d: %w", i, n.ID, ErrInvalidTree)
		}
		if i > 0 {
			if n.ParentID < 0 || n.ParentID >= i {
				return nil, fmt.Errorf("node %d has parent %d: %w", i, n.ParentID, ErrInvalidTree)
			}
			if id, ok := nodes[n.ParentID].Child(n.Branch); !ok || id != i {
				return nil, fmt.Errorf("node %d is not the %s child of %d: %w", i, n.Branch, n.ParentID, ErrInvalidTree)
			}
		}
		if n.IsLeaf() != (n.Splitter < 0) {
			return nil, fmt.Errorf("node %d has splitter %d and children %v: %w", i, n.Splitter, n.Children, ErrInvalidTree)
		}
		for _, b := range Branches {
			c, ok := n.Child(b)
			if !ok {
				continue
			}
			if c <= i || c >= len(nodes) {
				return nil, fmt.Errorf("node %d has child %d: %w", i, c, ErrInvalidTree)
			}
			if nodes[c].ParentID != i || nodes[c].Branch != b || nodes[c].Depth != n.Depth+1 {
				return nil, fmt.Errorf("node %d does not hang from %d: %w", c, i, ErrInvalidTree)
			}
		}
		if n.Depth > t.depth {
			t.depth = n.Depth
		}
	}
	return t, nil
}

// Info returns how the tree was grown
func (t *Tree) Info() Info {
	return t.info
}

// Len returns the number of nodes in the tree
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Depth returns the depth of the deepest node
func (t *Tree) Depth() int {
	return t.depth
}

// Root returns the root node. It must not be modified.
func (t *Tree) Root() *Node {
	return &t.nodes[0]
}

// Node returns the node at the given position. It must not be modified.
func (t *Tree) Node(id int) (*Node, error) {
	if id < 0 || id >= len(t.nodes) {
		return nil, fmt.Errorf("node %d: %w", id, ErrInvalidState)
	}
	return &t.nodes[id], nil
}

// Leaves returns the leaves of the tree in preorder
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			leaves = append(leaves, &t.nodes[i])
		}
	}
	return leaves
}

/*
Lookup takes a sequence of answers and returns the node reached by
following them from the root. It returns ErrInvalidTransition if the
sequence goes on after reaching a leaf and ErrNoSuchBranch if a node
has no child for one of the answers.
*/
func (t *Tree) Lookup(path ...Branch) (*Node, error) {
	n := &t.nodes[0]
	for i, b := range path {
		if n.IsLeaf() {
			return nil, fmt.Errorf("answer %d: %w", i, ErrInvalidTransition)
		}
		c, ok := n.Child(b)
		if !ok {
			return nil, fmt.Errorf("answer %d (%s) at node %d: %w", i, b, n.ID, ErrNoSuchBranch)
		}
		n = &t.nodes[c]
	}
	return n, nil
}

// Path returns the answers leading from the root to the node
func (t *Tree) Path(id int) ([]Branch, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	path := make([]Branch, n.Depth)
	for n.ParentID >= 0 {
		path[n.Depth-1] = n.Branch
		n = &t.nodes[n.ParentID]
	}
	return path, nil
}

/*
Predict takes the ratings a user has given by item and returns the
leaf the user reaches answering each question with their rating
for the asked item: Unknown when they have none, Like or Dislike
according to the tree's like threshold otherwise. When a node has no
child for the answer, the Unknown child is followed if present;
otherwise the node is returned.
*/
func (t *Tree) Predict(profile map[int]float64) *Node {
	n := &t.nodes[0]
	for !n.IsLeaf() {
		b := Unknown
		if v, ok := profile[n.Splitter]; ok {
			b = Dislike
			if v >= t.info.LikeThreshold {
				b = Like
			}
		}
		c, ok := n.Child(b)
		if !ok {
			if c, ok = n.Child(Unknown); !ok {
				return n
			}
		}
		n = &t.nodes[c]
	}
	return n
}

// Traverse takes a context, bottomup boolean and an
// error-returning function that takes a context and a node
// as parameters, and goes through the tree running the
// function with the context and every traversed node.
// Traverse will call the function with a parent node before
// calling it for its children if bottomup is false, and
// call it after its children if bottomup is true.
// If the given context times out or is cancelled, the context
// error is returned. If the call to the function returns an
// error, the traversing is aborted and the error is returned.
func (t *Tree) Traverse(ctx context.Context, bottomup bool, f func(context.Context, *Node) error) error {
	return t.traverse(ctx, &t.nodes[0], bottomup, f)
}

func (t *Tree) traverse(ctx context.Context, n *Node, bottomup bool, f func(context.Context, *Node) error) error {
	err := ctx.Err()
	if err != nil {
		return err
	}
	if !bottomup {
		if err = f(ctx, n); err != nil {
			return err
		}
	}
	for _, b := range Branches {
		if c, ok := n.Child(b); ok {
			if err = t.traverse(ctx, &t.nodes[c], bottomup, f); err != nil {
				return err
			}
		}
	}
	if bottomup {
		return f(ctx, n)
	}
	return nil
}

func (t *Tree) String() string {
	return t.subtreeString(0)
}

func (t *Tree) subtreeString(id int) string {
	n := &t.nodes[id]
	result := fmt.Sprintf("[%d]\n", id)
	if n.Branch != NoBranch {
		result = fmt.Sprintf("%s{ %s }\n", result, n.Branch)
	}
	result = fmt.Sprintf("%s{ %s }\n", result, n)
	if n.Prediction != nil {
		result = fmt.Sprintf("%s{ %v }\n", result, n.Prediction)
	}
	if !n.IsLeaf() {
		result = fmt.Sprintf("%s|\n", result)
	} else {
		result = fmt.Sprintf("%s \n", result)
	}
	var children []int
	for _, b := range Branches {
		if c, ok := n.Child(b); ok {
			children = append(children, c)
		}
	}
	for i, c := range children {
		for j, line := range strings.Split(t.subtreeString(c), "\n") {
			if len(line) > 0 {
				if j == 0 {
					result = fmt.Sprintf("%s|__%s\n", result, line)
				} else if i < len(children)-1 {
					result = fmt.Sprintf("%s|  %s\n", result, line)
				} else {
					result = fmt.Sprintf("%s   %s\n", result, line)
				}
			}
		}
	}
	return result
}
