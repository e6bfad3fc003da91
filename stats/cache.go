package stats

import (
	"encoding/binary"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const defaultShards = 64

// Fingerprint identifies a set of users by the hash of their ids and
// their number. Distinct sets may share a fingerprint, so callers that
// cannot tolerate a collision check the value they get back.
type Fingerprint struct {
	Hash uint64
	Size int
}

// FingerprintOf takes a sorted slice of user ids and returns its fingerprint
func FingerprintOf(users []int) Fingerprint {
	d := xxhash.New()
	var buf [8]byte
	for _, u := range users {
		binary.LittleEndian.PutUint64(buf[:], uint64(u))
		d.Write(buf[:])
	}
	return Fingerprint{Hash: d.Sum64(), Size: len(users)}
}

// Key identifies the statistics of an item over a set of users
type Key struct {
	Subset Fingerprint
	Item   int
}

func (k Key) String() string {
	return strconv.FormatUint(k.Subset.Hash, 16) + "/" + strconv.Itoa(k.Subset.Size) + "/" + strconv.Itoa(k.Item)
}

type shard[V any] struct {
	lock   sync.RWMutex
	values map[Key]V
	group  singleflight.Group
}

/*
Cache memoizes values by Key. It is split into shards, each with
its own lock, so that goroutines working on unrelated keys do not
wait on each other.

A nil *Cache is valid and caches nothing.
*/
type Cache[V any] struct {
	shards []*shard[V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache returns an empty cache with the given number of
// shards, or a default number when it is not positive.
func NewCache[V any](shards int) *Cache[V] {
	if shards <= 0 {
		shards = defaultShards
	}
	c := &Cache[V]{shards: make([]*shard[V], shards)}
	for i := range c.shards {
		c.shards[i] = &shard[V]{values: make(map[Key]V)}
	}
	return c
}

func (c *Cache[V]) shardFor(k Key) *shard[V] {
	h := k.Subset.Hash ^ (uint64(k.Item)+1)*0x9e3779b97f4a7c15
	return c.shards[h%uint64(len(c.shards))]
}

/*
ComputeOrFetch returns the value cached for the key. On a miss it
calls compute and stores its result, unless another goroutine stored
a value for the key in the meantime: then the computed value is
dropped and the stored one returned. Concurrent misses on the same
key wait for a single computation.
*/
func (c *Cache[V]) ComputeOrFetch(k Key, compute func() V) V {
	if c == nil {
		return compute()
	}
	s := c.shardFor(k)
	s.lock.RLock()
	v, ok := s.values[k]
	s.lock.RUnlock()
	if ok {
		c.hits.Add(1)
		return v
	}
	c.misses.Add(1)
	r, _, _ := s.group.Do(k.String(), func() (interface{}, error) {
		return s.insert(k, compute()), nil
	})
	return r.(V)
}

func (s *shard[V]) insert(k Key, v V) V {
	s.lock.Lock()
	defer s.lock.Unlock()
	if stored, ok := s.values[k]; ok {
		return stored
	}
	s.values[k] = v
	return v
}

// Len returns the number of cached values
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	var n int
	for _, s := range c.shards {
		s.lock.RLock()
		n += len(s.values)
		s.lock.RUnlock()
	}
	return n
}

// Hits returns the number of lookups answered from the cache
func (c *Cache[V]) Hits() uint64 {
	if c == nil {
		return 0
	}
	return c.hits.Load()
}

// Misses returns the number of lookups that had to compute
func (c *Cache[V]) Misses() uint64 {
	if c == nil {
		return 0
	}
	return c.misses.Load()
}
