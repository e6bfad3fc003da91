package json

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mquad/bd-tree/tree"
)

type nodeEncodeDecoder struct{}

type node struct {
	ID           int             `json:"id"`
	ParentID     int             `json:"pId"`
	Branch       int             `json:"b"`
	Depth        int             `json:"d"`
	Splitter     int             `json:"s"`
	Children     [3]int          `json:"c"`
	Users        int             `json:"u"`
	Ratings      int             `json:"r"`
	Quality      float64         `json:"q"`
	SplitQuality float64         `json:"sq,omitempty"`
	Prediction   *jsonPrediction `json:"pred,omitempty"`
}

type jsonPrediction struct {
	Estimate float64         `json:"est"`
	Weight   int             `json:"w,omitempty"`
	Ratings  map[int]float64 `json:"ratings,omitempty"`
	Scores   map[int]float64 `json:"scores,omitempty"`
}

/*
NewNodeEncodeDecoder returns a tree.NodeEncodeDecoder that encodes
nodes as JSON objects.
*/
func NewNodeEncodeDecoder() tree.NodeEncodeDecoder {
	return nodeEncodeDecoder{}
}

func (nodeEncodeDecoder) Encode(n *tree.Node) ([]byte, error) {
	jn := &node{
		ID:           n.ID,
		ParentID:     n.ParentID,
		Branch:       int(n.Branch),
		Depth:        n.Depth,
		Splitter:     n.Splitter,
		Children:     n.Children,
		Users:        n.Users,
		Ratings:      n.Ratings,
		Quality:      n.Quality,
		SplitQuality: n.SplitQuality,
	}
	if p := n.Prediction; p != nil {
		jn.Prediction = &jsonPrediction{Estimate: p.Estimate(), Weight: p.Weight(), Ratings: p.Ratings(), Scores: p.Scores()}
	}
	return json.Marshal(jn)
}

func (nodeEncodeDecoder) Decode(data []byte) (*tree.Node, error) {
	jn := &node{}
	if err := json.Unmarshal(data, jn); err != nil {
		return nil, err
	}
	b := tree.Branch(jn.Branch)
	if b < tree.NoBranch || b > tree.Unknown {
		return nil, fmt.Errorf("unmarshalling node %d: unknown branch %d", jn.ID, jn.Branch)
	}
	n := &tree.Node{
		ID:           jn.ID,
		ParentID:     jn.ParentID,
		Branch:       b,
		Depth:        jn.Depth,
		Splitter:     jn.Splitter,
		Children:     jn.Children,
		Users:        jn.Users,
		Ratings:      jn.Ratings,
		Quality:      jn.Quality,
		SplitQuality: jn.SplitQuality,
	}
	if jp := jn.Prediction; jp != nil {
		n.Prediction = tree.NewPrediction(jp.Estimate, jp.Weight, nonNil(jp.Ratings), nonNil(jp.Scores))
	}
	return n, nil
}

func nonNil(m map[int]float64) map[int]float64 {
	if m == nil {
		return map[int]float64{}
	}
	return m
}
