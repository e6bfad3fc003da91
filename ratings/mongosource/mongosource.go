/*
Package mongosource reads and writes rating triples on a MongoDB
collection, one document per rating.
*/
package mongosource

import (
	"context"
	"fmt"

	"github.com/mquad/bd-tree/ratings"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const defaultCollectionName = "ratings"

// Fields holds the document field names of a rating
type Fields struct {
	User  string
	Item  string
	Value string
}

// DefaultFields returns the "user", "item" and "rating" field names
func DefaultFields() Fields {
	return Fields{User: "user", Item: "item", Value: "rating"}
}

// Source is a collection of ratings on a MongoDB database
type Source struct {
	session    *mgo.Session
	collection string
	fields     Fields
}

/*
Dial takes a MongoDB connection URL, a collection name (ratings when
empty) and the document field names and returns a Source working on
the default database for that URL, or an error if it fails to connect.
*/
func Dial(url, collection string, fields Fields) (*Source, error) {
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %v", err)
	}
	return New(session, collection, fields), nil
}

// New takes a session, a collection name and field names and
// returns a Source on the session's default database.
func New(session *mgo.Session, collection string, fields Fields) *Source {
	if collection == "" {
		collection = defaultCollectionName
	}
	return &Source{session: session, collection: collection, fields: fields}
}

func (s *Source) withCollection(f func(*mgo.Collection) error) error {
	session := s.session.Copy()
	defer session.Close()
	return f(session.DB("").C(s.collection))
}

// Triples returns every rating on the collection. Documents whose
// fields are missing or not numeric make it fail.
func (s *Source) Triples(ctx context.Context) ([]ratings.Triple, error) {
	var triples []ratings.Triple
	err := s.withCollection(func(c *mgo.Collection) error {
		iter := c.Find(nil).Select(bson.M{s.fields.User: 1, s.fields.Item: 1, s.fields.Value: 1}).Iter()
		var doc bson.M
		for iter.Next(&doc) {
			if err := ctx.Err(); err != nil {
				iter.Close()
				return err
			}
			t, err := s.decode(doc)
			if err != nil {
				iter.Close()
				return fmt.Errorf("decoding rating document %v: %w", doc["_id"], err)
			}
			triples = append(triples, t)
			doc = nil
		}
		return iter.Close()
	})
	if err != nil {
		return nil, err
	}
	return triples, nil
}

// Write inserts the given triples on the collection and returns
// the number of inserted triples and an error if not all of them
// could be inserted.
func (s *Source) Write(ctx context.Context, triples []ratings.Triple) (int, error) {
	docs := make([]interface{}, 0, len(triples))
	for _, t := range triples {
		docs = append(docs, bson.M{s.fields.User: t.User, s.fields.Item: t.Item, s.fields.Value: t.Value})
	}
	if len(docs) == 0 {
		return 0, nil
	}
	err := s.withCollection(func(c *mgo.Collection) error {
		return c.Insert(docs...)
	})
	if err != nil {
		return 0, fmt.Errorf("inserting ratings: %v", err)
	}
	return len(docs), nil
}

// Close closes the underlying session
func (s *Source) Close() {
	s.session.Close()
}

func (s *Source) decode(doc bson.M) (ratings.Triple, error) {
	var t ratings.Triple
	u, err := number(doc, s.fields.User)
	if err != nil {
		return t, err
	}
	i, err := number(doc, s.fields.Item)
	if err != nil {
		return t, err
	}
	v, err := number(doc, s.fields.Value)
	if err != nil {
		return t, err
	}
	if u != float64(int(u)) || i != float64(int(i)) {
		return t, fmt.Errorf("non integer id: %w", ratings.ErrInvalidInput)
	}
	return ratings.Triple{User: int(u), Item: int(i), Value: v}, nil
}

func number(doc bson.M, field string) (float64, error) {
	switch v := doc[field].(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing field %q: %w", field, ratings.ErrInvalidInput)
	default:
		return 0, fmt.Errorf("field %q is a %T: %w", field, v, ratings.ErrInvalidInput)
	}
}
