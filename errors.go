package bdtree

import "github.com/mquad/bd-tree/ratings"

// Error represents an error related with growing trees
type Error string

const (
	// ErrConfig is wrapped by every configuration validation error
	ErrConfig = Error("invalid configuration")
	// ErrNotInitialized is returned when growing a tree from a
	// rating store that has not been initialized
	ErrNotInitialized = ratings.ErrNotInitialized
)

func (e Error) Error() string {
	return string(e)
}
