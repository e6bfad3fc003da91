package bdtree

import (
	"math/rand"
	"sync"
	"time"
)

type lockedRandSource struct {
	lock sync.Mutex
	src  rand.Source
}

// NewLockedSource returns a rand.Source seeded with the given
// seed that is safe for concurrent use.
func NewLockedSource(seed int64) rand.Source {
	return &lockedRandSource{src: rand.NewSource(seed)}
}

func newTimeSource() rand.Source {
	return NewLockedSource(time.Now().UnixNano())
}

// to satisfy rand.Source interface
func (r *lockedRandSource) Int63() int64 {
	r.lock.Lock()
	ret := r.src.Int63()
	r.lock.Unlock()
	return ret
}

// to satisfy rand.Source interface
func (r *lockedRandSource) Seed(seed int64) {
	r.lock.Lock()
	r.src.Seed(seed)
	r.lock.Unlock()
}
