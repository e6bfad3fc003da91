/*
Package json serializes trees and their nodes as JSON.
*/
package json

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/mquad/bd-tree/tree"
)

type header struct {
	Criterion     string  `json:"criterion"`
	LikeThreshold float64 `json:"likeThreshold"`
	Size          int     `json:"size"`
}

/*
WriteJSONTree takes a context.Context, a pointer to a tree.Tree and
an io.Writer and serializes the given tree as JSON onto the io.Writer.
A tree is serialized as a JSON object with the following fields:
* "criterion": a string with the objective the tree was grown with
* "likeThreshold": the rating from which answers count as likes
* "size": the number of nodes
* "nodes": an array containing the nodes of the tree in preorder
  serialized by the NodeEncodeDecoder returned by NewNodeEncodeDecoder.
An error is returned if the tree cannot be traversed, serialized or
written onto the io.Writer.
*/
func WriteJSONTree(ctx context.Context, t *tree.Tree, w io.Writer) error {
	if err := marshalJSONTreeHeader(t, w); err != nil {
		return err
	}
	ned := NewNodeEncodeDecoder()
	var i int
	err := t.Traverse(ctx, false, func(ctx context.Context, n *tree.Node) error {
		err := writeNode(i, n, ned, w)
		i++
		return err
	})
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(`]}`))
	return err
}

/*
ReadJSONTree takes a context.Context and an io.Reader and returns
the tree unmarshalled from the contents of the io.Reader, which are
expected to follow the format written by WriteJSONTree. An error is
returned if the JSON cannot be read from the io.Reader or its nodes
do not make up a valid tree.
*/
func ReadJSONTree(ctx context.Context, r io.Reader) (*tree.Tree, error) {
	dec := json.NewDecoder(r)
	jt := &struct {
		header
		Nodes []json.RawMessage `json:"nodes"`
	}{}
	if err := dec.DecodeContext(ctx, jt); err != nil {
		return nil, err
	}
	if jt.Size != len(jt.Nodes) {
		return nil, fmt.Errorf("tree declares %d nodes but has %d: %w", jt.Size, len(jt.Nodes), tree.ErrInvalidTree)
	}
	ned := NewNodeEncodeDecoder()
	nodes := make([]tree.Node, len(jt.Nodes))
	for _, jn := range jt.Nodes {
		n, err := ned.Decode(jn)
		if err != nil {
			return nil, err
		}
		if n.ID < 0 || n.ID >= len(nodes) {
			return nil, fmt.Errorf("node id %d out of range: %w", n.ID, tree.ErrInvalidTree)
		}
		nodes[n.ID] = *n
	}
	return tree.New(tree.Info{Criterion: jt.Criterion, LikeThreshold: jt.LikeThreshold}, nodes)
}

// WriteJSONTreeFile writes the tree as JSON on the file at the given path
func WriteJSONTreeFile(ctx context.Context, t *tree.Tree, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing tree in JSON to %s: %v", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("writing tree in JSON to %s: %v", path, cerr)
		}
	}()
	if err = WriteJSONTree(ctx, t, f); err != nil {
		return fmt.Errorf("writing tree in JSON to %s: %w", path, err)
	}
	return nil
}

// ReadJSONTreeFile reads a tree in JSON from the file at the given path
func ReadJSONTreeFile(ctx context.Context, path string) (*tree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading tree in JSON from %s: %v", path, err)
	}
	defer f.Close()
	t, err := ReadJSONTree(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parsing tree in JSON from %s: %w", path, err)
	}
	return t, nil
}

func marshalJSONTreeHeader(t *tree.Tree, w io.Writer) error {
	info := t.Info()
	h, err := json.Marshal(&header{Criterion: info.Criterion, LikeThreshold: info.LikeThreshold, Size: t.Len()})
	if err != nil {
		return err
	}
	h = append(h[:len(h)-1], []byte(`,"nodes":[`)...)
	_, err = w.Write(h)
	return err
}

func writeNode(i int, n *tree.Node, ned tree.NodeEncodeDecoder, w io.Writer) error {
	if i != 0 {
		if _, err := w.Write([]byte(",")); err != nil {
			return err
		}
	}
	jn, err := ned.Encode(n)
	if err != nil {
		return err
	}
	_, err = w.Write(jn)
	return err
}
