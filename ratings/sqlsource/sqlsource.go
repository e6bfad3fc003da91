/*
Package sqlsource reads and writes rating triples on a table of a
SQL database. SQLite3 and PostgreSQL are supported.
*/
package sqlsource

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mquad/bd-tree/ratings"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"
	// Import of SQLite3 driver
	_ "github.com/mattn/go-sqlite3"
)

const (
	// MaxInsertionsPerStatement is the maximum number of triples
	// written with a single insert command by Write. Writing more
	// results in several insert commands.
	MaxInsertionsPerStatement = 200

	defaultTable       = "ratings"
	defaultUserColumn  = "user_id"
	defaultItemColumn  = "item_id"
	defaultValueColumn = "rating"
)

// Source is a table of ratings on a SQL database
type Source struct {
	db          *sqlx.DB
	builder     sq.StatementBuilderType
	table       string
	userColumn  string
	itemColumn  string
	valueColumn string
	filter      sq.Sqlizer
}

// Option customizes a Source
type Option func(*Source)

// WithTable sets the table holding the ratings, "ratings" by default
func WithTable(table string) Option {
	return func(s *Source) { s.table = table }
}

// WithColumns sets the names of the user, item and rating columns,
// "user_id", "item_id" and "rating" by default.
func WithColumns(user, item, value string) Option {
	return func(s *Source) {
		s.userColumn, s.itemColumn, s.valueColumn = user, item, value
	}
}

// WithFilter restricts the rows read by Triples to those
// satisfying the given condition.
func WithFilter(filter sq.Sqlizer) Option {
	return func(s *Source) { s.filter = filter }
}

type row struct {
	User  int     `db:"u"`
	Item  int     `db:"i"`
	Value float64 `db:"v"`
}

/*
Open takes a driver name ("sqlite3" or "postgres"), a data source
name and options and returns a Source on the database or an error
if the connection cannot be set up.
*/
func Open(driver, dsn string, opts ...Option) (*Source, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %v", driver, err)
	}
	return New(db, opts...)
}

// New takes an open database and options and returns a Source
// on it, or an error if a table or column name is not valid.
func New(db *sqlx.DB, opts ...Option) (*Source, error) {
	s := &Source{
		db:          db,
		builder:     sq.StatementBuilder,
		table:       defaultTable,
		userColumn:  defaultUserColumn,
		itemColumn:  defaultItemColumn,
		valueColumn: defaultValueColumn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if db.DriverName() == "postgres" {
		s.builder = s.builder.PlaceholderFormat(sq.Dollar)
	}
	for _, name := range []string{s.table, s.userColumn, s.itemColumn, s.valueColumn} {
		if err := checkIdentifier(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func checkIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsAny(name, "\"'`; ") {
		return fmt.Errorf("identifier '%s' contains invalid characters", name)
	}
	return nil
}

// CreateTable creates the ratings table if it does not exist
func (s *Source) CreateTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s INTEGER NOT NULL,
		%s INTEGER NOT NULL,
		%s DOUBLE PRECISION NOT NULL)`, s.table, s.userColumn, s.itemColumn, s.valueColumn)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %v", s.table, err)
	}
	return nil
}

// Triples returns all triples on the table that satisfy the
// source filter, ordered by user and item.
func (s *Source) Triples(ctx context.Context) ([]ratings.Triple, error) {
	q := s.builder.
		Select(s.userColumn+" AS u", s.itemColumn+" AS i", s.valueColumn+" AS v").
		From(s.table).
		OrderBy(s.userColumn, s.itemColumn)
	if s.filter != nil {
		q = q.Where(s.filter)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building ratings query: %v", err)
	}
	var rows []row
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying ratings from %s: %v", s.table, err)
	}
	triples := make([]ratings.Triple, len(rows))
	for i, r := range rows {
		triples[i] = ratings.Triple{User: r.User, Item: r.Item, Value: r.Value}
	}
	return triples, nil
}

// Write inserts the given triples on the table and returns the
// number of inserted triples and an error if not all of them
// could be inserted.
func (s *Source) Write(ctx context.Context, triples []ratings.Triple) (int, error) {
	var written int
	for len(triples) > 0 {
		n := len(triples)
		if n > MaxInsertionsPerStatement {
			n = MaxInsertionsPerStatement
		}
		q := s.builder.Insert(s.table).Columns(s.userColumn, s.itemColumn, s.valueColumn)
		for _, t := range triples[:n] {
			q = q.Values(t.User, t.Item, t.Value)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return written, fmt.Errorf("building insert statement: %v", err)
		}
		if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("inserting ratings into %s: %v", s.table, err)
		}
		written += n
		triples = triples[n:]
	}
	return written, nil
}

// Close closes the underlying database
func (s *Source) Close() error {
	return s.db.Close()
}
