/*
Package redisstore provides a tree.NodeStore backed by a redis DB.
*/
package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/mquad/bd-tree/tree"
	"gopkg.in/redis.v5"
)

type redisStore struct {
	rc      *redis.Client
	prefix  string
	nencdec tree.NodeEncodeDecoder
}

// New builds a tree.NodeStore backed by a redis DB that keeps the
// nodes under keys starting with the given prefix.
func New(rc *redis.Client, prefix string, nencdec tree.NodeEncodeDecoder) tree.NodeStore {
	return &redisStore{rc, prefix, nencdec}
}

func (rs *redisStore) Get(ctx context.Context, id int) (*tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := rs.keyFor(id)
	data, err := rs.rc.Get(key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving node %q: %v", key, err)
	}
	n, err := rs.nencdec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving node %q: decoding %q: %v", key, data, err)
	}
	return n, nil
}

func (rs *redisStore) Store(ctx context.Context, n *tree.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := rs.keyFor(n.ID)
	data, err := rs.nencdec.Encode(n)
	if err != nil {
		return fmt.Errorf("storing node %q: encoding node: %v", key, err)
	}
	if err = rs.rc.Set(key, data, 0).Err(); err != nil {
		return fmt.Errorf("storing node %q in redis: %v", key, err)
	}
	return nil
}

func (rs *redisStore) Delete(ctx context.Context, id int) error {
	key := rs.keyFor(id)
	if err := rs.rc.Del(key).Err(); err != nil {
		return fmt.Errorf("deleting node %q from redis: %v", key, err)
	}
	return nil
}

func (rs *redisStore) StoreHeader(ctx context.Context, h *tree.Header) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("storing tree header: encoding: %v", err)
	}
	if err = rs.rc.Set(rs.headerKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("storing tree header in redis: %v", err)
	}
	return nil
}

func (rs *redisStore) GetHeader(ctx context.Context) (*tree.Header, error) {
	data, err := rs.rc.Get(rs.headerKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving tree header: %v", err)
	}
	h := &tree.Header{}
	if err = json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("retrieving tree header: decoding %q: %v", data, err)
	}
	return h, nil
}

func (rs *redisStore) Close(ctx context.Context) error {
	return nil
}

func (rs *redisStore) keyFor(id int) string {
	return rs.prefix + ":node:" + strconv.Itoa(id)
}

func (rs *redisStore) headerKey() string {
	return rs.prefix + ":header"
}
