/*
Package badgerstore provides a tree.NodeStore backed by an embedded
Badger key-value database, so trees can be kept on local disk
without running any server.
*/
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/mquad/bd-tree/tree"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type badgerStore struct {
	db      *badger.DB
	prefix  string
	nencdec tree.NodeEncodeDecoder
	owned   bool
}

// New builds a tree.NodeStore on an open Badger database that
// keeps the nodes under keys starting with the given prefix. Closing
// the store leaves the database open.
func New(db *badger.DB, prefix string, nencdec tree.NodeEncodeDecoder) tree.NodeStore {
	return &badgerStore{db: db, prefix: prefix, nencdec: nencdec}
}

/*
Open takes the directory of a Badger database (created if missing),
a key prefix, a NodeEncodeDecoder and a logger for Badger's messages,
and returns a tree.NodeStore on that database. An empty directory
opens an in-memory database. Closing the store closes the database.
*/
func Open(dir, prefix string, nencdec tree.NodeEncodeDecoder, logger *logrus.Logger) (tree.NodeStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating badger directory %s: %v", dir, err)
	}
	if logger != nil {
		opts = opts.WithLogger(logger)
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &badgerStore{db: db, prefix: prefix, nencdec: nencdec, owned: true}, nil
}

func (bs *badgerStore) Get(ctx context.Context, id int) (*tree.Node, error) {
	data, err := bs.get(ctx, bs.keyFor(id))
	if err != nil || data == nil {
		return nil, err
	}
	n, err := bs.nencdec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: decoding: %v", id, err)
	}
	return n, nil
}

func (bs *badgerStore) Store(ctx context.Context, n *tree.Node) error {
	data, err := bs.nencdec.Encode(n)
	if err != nil {
		return fmt.Errorf("storing node %d: encoding node: %v", n.ID, err)
	}
	return bs.set(ctx, bs.keyFor(n.ID), data)
}

func (bs *badgerStore) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bs.keyFor(id))
	})
	if err != nil {
		return fmt.Errorf("deleting node %d from badger: %w", id, err)
	}
	return nil
}

func (bs *badgerStore) StoreHeader(ctx context.Context, h *tree.Header) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("storing tree header: encoding: %v", err)
	}
	return bs.set(ctx, bs.headerKey(), data)
}

func (bs *badgerStore) GetHeader(ctx context.Context) (*tree.Header, error) {
	data, err := bs.get(ctx, bs.headerKey())
	if err != nil || data == nil {
		return nil, err
	}
	h := &tree.Header{}
	if err = json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("retrieving tree header: decoding: %v", err)
	}
	return h, nil
}

func (bs *badgerStore) Close(ctx context.Context) error {
	if !bs.owned {
		return nil
	}
	return multierr.Append(ctx.Err(), bs.db.Close())
}

func (bs *badgerStore) get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q from badger: %w", key, err)
	}
	return data, nil
}

func (bs *badgerStore) set(ctx context.Context, key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("writing %q to badger: %w", key, err)
	}
	return nil
}

func (bs *badgerStore) keyFor(id int) []byte {
	return []byte(bs.prefix + ":node:" + strconv.Itoa(id))
}

func (bs *badgerStore) headerKey() []byte {
	return []byte(bs.prefix + ":header")
}
