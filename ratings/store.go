/*
Package ratings holds the rating data trees are grown from: a store
of (user, item, value) triples indexed by item and by user, and the
popularity ranking of its items.
*/
package ratings

import (
	"fmt"
	"math"
	"sort"
)

// Error represents an error related with rating data
type Error string

const (
	// ErrInvalidInput is returned when a triple cannot be
	// accepted by a store: negative ids or a value outside
	// the store's scale.
	ErrInvalidInput = Error("invalid rating triple")
	// ErrNotInitialized is returned when a store is used
	// before its Init method has succeeded.
	ErrNotInitialized = Error("rating store not initialized")
	// ErrAlreadyInitialized is returned by Init on a store
	// that already holds data.
	ErrAlreadyInitialized = Error("rating store already initialized")
)

func (e Error) Error() string {
	return string(e)
}

// Triple is a single rating given by a user to an item
type Triple struct {
	User  int     `json:"user" yaml:"user"`
	Item  int     `json:"item" yaml:"item"`
	Value float64 `json:"value" yaml:"value"`
}

/*
Scale describes the range rating values must lie in and the
threshold from which a rating is considered a like.
*/
type Scale struct {
	Min           float64 `yaml:"min"`
	Max           float64 `yaml:"max"`
	LikeThreshold float64 `yaml:"like_threshold"`
}

// DefaultScale returns the usual 1 to 5 stars scale where
// ratings of 4 and 5 are likes.
func DefaultScale() Scale {
	return Scale{Min: 1, Max: 5, LikeThreshold: 4}
}

// Validate returns an error if the scale bounds are not
// ordered or the like threshold falls outside them.
func (s Scale) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || s.Min > s.Max {
		return fmt.Errorf("scale min %v must not exceed max %v", s.Min, s.Max)
	}
	if s.LikeThreshold < s.Min || s.LikeThreshold > s.Max {
		return fmt.Errorf("like threshold %v outside scale [%v, %v]", s.LikeThreshold, s.Min, s.Max)
	}
	return nil
}

// Contains returns whether the value lies within the scale
func (s Scale) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// Liked returns whether the value counts as a like
func (s Scale) Liked(v float64) bool {
	return v >= s.LikeThreshold
}

/*
Entry is a rating seen from one of its sides: in the ratings of an
item, ID is the user that gave it; in the ratings of a user, ID is
the rated item.
*/
type Entry struct {
	ID    int
	Value float64
}

/*
Store is a sparse rating matrix indexed both by item and by user.
A store is filled once with Init and is read-only afterwards, so it
can be shared by any number of goroutines.
*/
type Store struct {
	scale       Scale
	initialized bool
	users       []int
	items       []int
	userIndex   map[int]int
	itemIndex   map[int]int
	byUser      [][]Entry
	byItem      [][]Entry
	mean        float64
	count       int
}

// New returns an empty store that will accept ratings
// within the given scale.
func New(scale Scale) *Store {
	return &Store{scale: scale}
}

/*
Init takes a slice of triples, validates them and builds the
store indices. A triple with a negative id or a value outside the
store's scale makes it fail with an error wrapping ErrInvalidInput,
leaving the store uninitialized. When several triples rate the same
item for the same user, the last one wins.
*/
func (s *Store) Init(triples []Triple) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	type pair struct{ user, item int }
	latest := make(map[pair]float64, len(triples))
	for i, t := range triples {
		if err := s.validate(t); err != nil {
			return fmt.Errorf("triple %d (%d, %d, %v): %w", i, t.User, t.Item, t.Value, err)
		}
		latest[pair{t.User, t.Item}] = t.Value
	}
	s.userIndex = make(map[int]int)
	s.itemIndex = make(map[int]int)
	for p := range latest {
		if _, ok := s.userIndex[p.user]; !ok {
			s.userIndex[p.user] = 0
			s.users = append(s.users, p.user)
		}
		if _, ok := s.itemIndex[p.item]; !ok {
			s.itemIndex[p.item] = 0
			s.items = append(s.items, p.item)
		}
	}
	sort.Ints(s.users)
	sort.Ints(s.items)
	for i, u := range s.users {
		s.userIndex[u] = i
	}
	for i, it := range s.items {
		s.itemIndex[it] = i
	}
	s.byUser = make([][]Entry, len(s.users))
	s.byItem = make([][]Entry, len(s.items))
	for p, v := range latest {
		ui, ii := s.userIndex[p.user], s.itemIndex[p.item]
		s.byUser[ui] = append(s.byUser[ui], Entry{ID: p.item, Value: v})
		s.byItem[ii] = append(s.byItem[ii], Entry{ID: p.user, Value: v})
	}
	var sum float64
	for _, entries := range s.byUser {
		sortEntries(entries)
	}
	for _, entries := range s.byItem {
		sortEntries(entries)
	}
	for _, entries := range s.byUser {
		for _, e := range entries {
			sum += e.Value
		}
	}
	s.count = len(latest)
	if s.count > 0 {
		s.mean = sum / float64(s.count)
	}
	s.initialized = true
	return nil
}

func (s *Store) validate(t Triple) error {
	if t.User < 0 || t.Item < 0 {
		return fmt.Errorf("negative id: %w", ErrInvalidInput)
	}
	if math.IsNaN(t.Value) || !s.scale.Contains(t.Value) {
		return fmt.Errorf("value outside [%v, %v]: %w", s.scale.Min, s.scale.Max, ErrInvalidInput)
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}

// Initialized returns whether Init has succeeded on the store
func (s *Store) Initialized() bool {
	return s.initialized
}

// Scale returns the scale the store validates ratings against
func (s *Store) Scale() Scale {
	return s.scale
}

// Users returns the sorted ids of all users with ratings on the
// store. The returned slice must not be modified.
func (s *Store) Users() []int {
	return s.users
}

// Items returns the sorted ids of all items with ratings on the
// store. The returned slice must not be modified.
func (s *Store) Items() []int {
	return s.items
}

// Len returns the number of ratings on the store
func (s *Store) Len() int {
	return s.count
}

// GlobalMean returns the mean of all ratings on the store
func (s *Store) GlobalMean() float64 {
	return s.mean
}

// HasItem returns whether the item has ratings on the store
func (s *Store) HasItem(item int) bool {
	_, ok := s.itemIndex[item]
	return ok
}

// HasUser returns whether the user has ratings on the store
func (s *Store) HasUser(user int) bool {
	_, ok := s.userIndex[user]
	return ok
}

// UserIndex returns the position of the user in Users()
func (s *Store) UserIndex(user int) (int, bool) {
	i, ok := s.userIndex[user]
	return i, ok
}

// ItemRatings returns the ratings of an item sorted by user id.
// The returned slice must not be modified.
func (s *Store) ItemRatings(item int) []Entry {
	i, ok := s.itemIndex[item]
	if !ok {
		return nil
	}
	return s.byItem[i]
}

// UserRatings returns the ratings of a user sorted by item id.
// The returned slice must not be modified.
func (s *Store) UserRatings(user int) []Entry {
	i, ok := s.userIndex[user]
	if !ok {
		return nil
	}
	return s.byUser[i]
}

/*
Biases takes a regularization weight and returns the bias of every
user, indexed like Users(). The bias of a user with n ratings adding
up to sum is

	(sum + buReg * globalMean) / (n + buReg)

that is, the user's mean rating pulled toward the global mean by
buReg virtual ratings.
*/
func (s *Store) Biases(buReg float64) []float64 {
	biases := make([]float64, len(s.users))
	for i, entries := range s.byUser {
		var sum float64
		for _, e := range entries {
			sum += e.Value
		}
		den := float64(len(entries)) + buReg
		if den == 0 {
			biases[i] = s.mean
			continue
		}
		biases[i] = (sum + buReg*s.mean) / den
	}
	return biases
}
