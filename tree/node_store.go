package tree

import (
	"context"
	"fmt"
	"sync"
)

// Header holds what a NodeStore needs besides the nodes to
// rebuild a tree.
type Header struct {
	Info
	Size int
}

/*
NodeStore is an interface to manage a store
where the nodes of a tree can be saved, retrieved
and deleted.

All it methods take a context that may allow
cancelling the operation (thus forcing the return
of an error) if the implementation allows it.
*/
type NodeStore interface {
	// Store takes a node and saves it in the store
	// under its ID, replacing any node with the same
	// ID. It returns an error if the node cannot be
	// stored.
	Store(ctx context.Context, n *Node) error
	// Get takes an id and returns the node in the
	// store with that id (or nil if it cannot be
	// found) or an error if the store cannot be
	// queried
	Get(ctx context.Context, id int) (*Node, error)
	// Delete takes an id and deletes the node with
	// that id on the store. It returns an error if
	// the node exists but the deletion cannot be
	// performed.
	Delete(ctx context.Context, id int) error
	// StoreHeader saves the header of the stored tree
	StoreHeader(ctx context.Context, h *Header) error
	// GetHeader returns the header of the stored tree
	// (or nil if there is none) or an error if the
	// store cannot be queried
	GetHeader(ctx context.Context) (*Header, error)
	// Close closes the store, implementations should
	// freeing any resources in use as well as ensure
	// any pending changes are applied before returning
	// (unless the context expires). It returns an error
	// if the Close cannot be completed (because of the
	// context or another error)
	Close(ctx context.Context) error
}

/*
NodeEncodeDecoder is an interface for objects
that allow encoding nodes into slices of
bytes and decoding them back to nodes.
*/
type NodeEncodeDecoder interface {
	//Encode receives a *Node and returns a slice
	//of bytes with the node encoded or an error if
	//the encoding could not be performed for some
	//reason.
	Encode(*Node) ([]byte, error)

	//Decode receives a slice of bytes and returns
	//a *Node decoded from the slice of bytes or an
	//error if the decoding could not be performed
	//for some reason.
	Decode([]byte) (*Node, error)
}

// Save takes a context, a node store and a tree and stores
// every node of the tree and its header on the store.
func Save(ctx context.Context, ns NodeStore, t *Tree) error {
	for i := range t.nodes {
		if err := ns.Store(ctx, &t.nodes[i]); err != nil {
			return fmt.Errorf("saving node %d: %w", i, err)
		}
	}
	if err := ns.StoreHeader(ctx, &Header{Info: t.info, Size: len(t.nodes)}); err != nil {
		return fmt.Errorf("saving tree header: %w", err)
	}
	return nil
}

// Load takes a context and a node store and returns the tree
// saved on it or an error if it cannot be read or is not valid.
func Load(ctx context.Context, ns NodeStore) (*Tree, error) {
	h, err := ns.GetHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tree header: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("loading tree: no header stored: %w", ErrInvalidTree)
	}
	nodes := make([]Node, h.Size)
	for i := range nodes {
		n, err := ns.Get(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("loading node %d: %w", i, err)
		}
		if n == nil {
			return nil, fmt.Errorf("loading node %d: not found: %w", i, ErrInvalidTree)
		}
		nodes[i] = *n
	}
	return New(h.Info, nodes)
}

type memoryNodeStore struct {
	nodes  map[int]*Node
	header *Header
	lock   *sync.RWMutex
}

// NewMemoryNodeStore returns an implementation
// of NodeStore with the process memory space
// as underlying backend
func NewMemoryNodeStore() NodeStore {
	return &memoryNodeStore{
		nodes: make(map[int]*Node),
		lock:  &sync.RWMutex{},
	}
}

func (mns *memoryNodeStore) Store(ctx context.Context, n *Node) error {
	return mns.withLock(ctx, func(ctx context.Context) error {
		c := *n
		mns.nodes[n.ID] = &c
		return nil
	})
}

func (mns *memoryNodeStore) Get(ctx context.Context, id int) (*Node, error) {
	var n *Node
	err := mns.withRLock(ctx, func(ctx context.Context) error {
		if stored, ok := mns.nodes[id]; ok {
			c := *stored
			n = &c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (mns *memoryNodeStore) Delete(ctx context.Context, id int) error {
	return mns.withLock(ctx, func(ctx context.Context) error {
		delete(mns.nodes, id)
		return nil
	})
}

func (mns *memoryNodeStore) StoreHeader(ctx context.Context, h *Header) error {
	return mns.withLock(ctx, func(ctx context.Context) error {
		c := *h
		mns.header = &c
		return nil
	})
}

func (mns *memoryNodeStore) GetHeader(ctx context.Context) (*Header, error) {
	var h *Header
	err := mns.withRLock(ctx, func(ctx context.Context) error {
		if mns.header != nil {
			c := *mns.header
			h = &c
		}
		return nil
	})
	return h, err
}

func (mns *memoryNodeStore) Close(ctx context.Context) error {
	return nil
}

func (mns *memoryNodeStore) withLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mns.lock.Lock()
		select {
		case <-ctx.Done():
			mns.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mns.lock.Unlock()
	}
	return f(ctx)
}

func (mns *memoryNodeStore) withRLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mns.lock.RLock()
		select {
		case <-ctx.Done():
			mns.lock.RUnlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mns.lock.RUnlock()
	}
	return f(ctx)
}
