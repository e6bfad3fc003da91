package tree

import "fmt"

// Branch is the answer given to the question asked at a node
type Branch int

const (
	// NoBranch is the branch of the root node, which hangs from no parent
	NoBranch Branch = iota - 1
	// Like holds users who rated the node's item at or above the like threshold
	Like
	// Dislike holds users who rated the node's item below the like threshold
	Dislike
	// Unknown holds users who did not rate the node's item
	Unknown
)

// Branches lists the answers a node may have a child for
var Branches = [...]Branch{Like, Dislike, Unknown}

func (b Branch) String() string {
	switch b {
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	case Unknown:
		return "unknown"
	case NoBranch:
		return "root"
	}
	return fmt.Sprintf("branch(%d)", int(b))
}

// ParseBranch takes the name of a branch and returns it
func ParseBranch(s string) (Branch, error) {
	switch s {
	case "like", "l":
		return Like, nil
	case "dislike", "d":
		return Dislike, nil
	case "unknown", "u":
		return Unknown, nil
	}
	return NoBranch, fmt.Errorf("unknown branch %q", s)
}

/*
Node is a node of the tree
*/
type Node struct {
	// The position of the node in the tree
	ID int
	// The position of the parent node, -1 for the root
	ParentID int
	// The answer that leads from the parent to this node
	Branch Branch
	// The number of questions asked to get to the node, 0 for the root
	Depth int
	// The item users reaching this node are asked to rate, -1 on leaves
	Splitter int
	// The positions of the child nodes indexed by Branch, -1 when absent
	Children [3]int
	// The number of users of the training data reaching the node
	Users int
	// The number of ratings those users gave
	Ratings int
	// The value of the growing objective on the node's users
	Quality float64
	// The value of the growing objective after the node's split
	SplitQuality float64
	// The estimates for users reaching the node
	Prediction *Prediction
}

// NoChildren is the Children value of a leaf
var NoChildren = [3]int{-1, -1, -1}

// IsLeaf returns whether the node has no children
func (n *Node) IsLeaf() bool {
	return n.Children == NoChildren
}

// Child returns the position of the node's child for the branch
func (n *Node) Child(b Branch) (int, bool) {
	if b < Like || b > Unknown {
		return -1, false
	}
	id := n.Children[b]
	return id, id >= 0
}

func (n *Node) String() string {
	if n.IsLeaf() {
		return fmt.Sprintf("leaf users=%d ratings=%d quality=%.4g", n.Users, n.Ratings, n.Quality)
	}
	return fmt.Sprintf("ask item %d users=%d ratings=%d quality=%.4g split=%.4g", n.Splitter, n.Users, n.Ratings, n.Quality, n.SplitQuality)
}
