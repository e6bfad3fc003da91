package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/ratings/csv"
	"github.com/mquad/bd-tree/ratings/mongosource"
	"github.com/mquad/bd-tree/ratings/sqlsource"
	"github.com/mquad/bd-tree/tree"
	"github.com/mquad/bd-tree/tree/badgerstore"
	"github.com/mquad/bd-tree/tree/json"
	"github.com/mquad/bd-tree/tree/redisstore"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	redis "gopkg.in/redis.v5"
)

const defaultStorePrefix = "bdtree"

type sourceConfig struct {
	verbose    logger
	table      string
	collection string
	comma      string
	header     bool
}

func (sc *sourceConfig) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&(sc.table), "table", "ratings", "table holding the ratings on SQL inputs, with user_id, item_id and rating columns")
	cmd.PersistentFlags().StringVar(&(sc.collection), "collection", "ratings", "collection holding the ratings on MongoDB inputs, with user, item and rating fields")
	cmd.PersistentFlags().StringVar(&(sc.comma), "comma", ",", "field delimiter of CSV inputs")
	cmd.PersistentFlags().BoolVar(&(sc.header), "header", false, "skip the first row of CSV inputs")
}

/*
triples reads the ratings at the given input: a PostgreSQL connection
URL, a MongoDB connection URL, a SQLite3 file (.db) or a CSV file.
An empty input reads CSV from STDIN.
*/
func (sc *sourceConfig) triples(ctx context.Context, input string) ([]ratings.Triple, error) {
	switch {
	case strings.HasPrefix(input, "postgres://") || strings.HasPrefix(input, "postgresql://"):
		sc.verbose.Logf("Reading ratings from PostgreSQL table %s...", sc.table)
		return sc.sqlTriples(ctx, "postgres", input)
	case strings.HasPrefix(input, "mongodb://"):
		sc.verbose.Logf("Reading ratings from MongoDB collection %s...", sc.collection)
		src, err := mongosource.Dial(input, sc.collection, mongosource.DefaultFields())
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Triples(ctx)
	case strings.HasSuffix(input, ".db"):
		sc.verbose.Logf("Reading ratings from SQLite3 table %s on %s...", sc.table, input)
		return sc.sqlTriples(ctx, "sqlite3", input)
	}
	opts, err := sc.csvOptions()
	if err != nil {
		return nil, err
	}
	if input == "" {
		sc.verbose.Logf("Reading ratings from STDIN...")
		return csv.ReadTriples(os.Stdin, opts)
	}
	sc.verbose.Logf("Reading ratings from %s...", input)
	return csv.ReadFile(input, opts)
}

func (sc *sourceConfig) sqlTriples(ctx context.Context, driver, dsn string) ([]ratings.Triple, error) {
	src, err := sqlsource.Open(driver, dsn, sqlsource.WithTable(sc.table))
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Triples(ctx)
}

func (sc *sourceConfig) csvOptions() (csv.Options, error) {
	if utf8.RuneCountInString(sc.comma) != 1 {
		return csv.Options{}, fmt.Errorf("comma must be a single character, got %q", sc.comma)
	}
	r, _ := utf8.DecodeRuneInString(sc.comma)
	return csv.Options{Comma: r, Header: sc.header}, nil
}

/*
openNodeStore takes a tree location of the form redis://ADDR[/PREFIX]
or badger://DIR and returns a node store on it, or nil if the
location is not one of those, taken as the path to a JSON file.
*/
func openNodeStore(location string) (tree.NodeStore, error) {
	switch {
	case strings.HasPrefix(location, "redis://"):
		addr := strings.TrimPrefix(location, "redis://")
		prefix := defaultStorePrefix
		if i := strings.Index(addr, "/"); i >= 0 {
			addr, prefix = addr[:i], addr[i+1:]
		}
		rc := redis.NewClient(&redis.Options{Addr: addr})
		return &closingNodeStore{NodeStore: redisstore.New(rc, prefix, json.NewNodeEncodeDecoder()), close: rc.Close}, nil
	case strings.HasPrefix(location, "badger://"):
		return badgerstore.Open(strings.TrimPrefix(location, "badger://"), defaultStorePrefix, json.NewNodeEncodeDecoder(), log)
	}
	return nil, nil
}

type closingNodeStore struct {
	tree.NodeStore
	close func() error
}

func (cns *closingNodeStore) Close(ctx context.Context) error {
	return multierr.Append(cns.NodeStore.Close(ctx), cns.close())
}

// outputTree writes the tree to the given location, STDOUT in JSON
// when empty.
func outputTree(ctx context.Context, location string, t *tree.Tree) (err error) {
	ns, err := openNodeStore(location)
	if err != nil {
		return err
	}
	if ns != nil {
		defer func() {
			err = multierr.Append(err, ns.Close(ctx))
		}()
		return tree.Save(ctx, ns, t)
	}
	if location == "" {
		return json.WriteJSONTree(ctx, t, os.Stdout)
	}
	return json.WriteJSONTreeFile(ctx, t, location)
}

// loadTree reads the tree at the given location
func loadTree(ctx context.Context, location string) (t *tree.Tree, err error) {
	ns, err := openNodeStore(location)
	if err != nil {
		return nil, err
	}
	if ns != nil {
		defer func() {
			err = multierr.Append(err, ns.Close(ctx))
		}()
		return tree.Load(ctx, ns)
	}
	t, err = json.ReadJSONTreeFile(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("reading tree in JSON from %s: %w", location, err)
	}
	return t, nil
}
