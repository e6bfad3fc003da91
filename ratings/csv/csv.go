/*
Package csv reads rating triples from delimited text such as the
MovieLens or Netflix dumps: one rating per row with the user id,
the item id and the value on the first three columns. Any further
column (a timestamp, usually) is ignored.
*/
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mquad/bd-tree/ratings"
)

// Options controls how rows are parsed
type Options struct {
	// Comma is the field delimiter, ',' when zero
	Comma rune
	// Header makes the reader skip the first row
	Header bool
}

/*
ReadFile takes the path to a delimited file and options and returns
the triples parsed from it or an error.
*/
func ReadFile(path string, opts Options) ([]ratings.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading ratings from %s: %v", path, err)
	}
	defer f.Close()
	triples, err := ReadTriples(f, opts)
	if err != nil {
		return nil, fmt.Errorf("reading ratings from %s: %w", path, err)
	}
	return triples, nil
}

// ReadTriples takes an io.Reader and options and returns the
// triples parsed from it or an error.
func ReadTriples(r io.Reader, opts Options) ([]ratings.Triple, error) {
	var triples []ratings.Triple
	err := ReadTriplesByRow(r, opts, func(_ int, t ratings.Triple) (bool, error) {
		triples = append(triples, t)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return triples, nil
}

/*
ReadTriplesByRow takes an io.Reader, options and a lambda function
on an integer and a triple that returns a boolean value. It parses
the triples from the reader and for each it calls the lambda function
with the triple and its row number. If the lambda function returns
true, it will continue processing the next row, otherwise it will
stop. An error is returned if something goes wrong when reading the
stream or parsing a row.
*/
func ReadTriplesByRow(r io.Reader, opts Options, lambda func(int, ratings.Triple) (bool, error)) error {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	row := 0
	if opts.Header {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading header: %v", err)
		}
		row++
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading row %d: %v", row, err)
		}
		t, err := parseTriple(record)
		if err != nil {
			return fmt.Errorf("parsing row %d: %w", row, err)
		}
		ok, err := lambda(row, t)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row++
	}
}

func parseTriple(record []string) (ratings.Triple, error) {
	var t ratings.Triple
	if len(record) < 3 {
		return t, fmt.Errorf("expected at least 3 fields, got %d: %w", len(record), ratings.ErrInvalidInput)
	}
	var err error
	t.User, err = strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return t, fmt.Errorf("user id %q: %w", record[0], ratings.ErrInvalidInput)
	}
	t.Item, err = strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return t, fmt.Errorf("item id %q: %w", record[1], ratings.ErrInvalidInput)
	}
	t.Value, err = strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return t, fmt.Errorf("rating %q: %w", record[2], ratings.ErrInvalidInput)
	}
	return t, nil
}

/*
WriteTriples takes an io.Writer, a delimiter and a slice of triples
and writes them one per row. It returns an error if the rows cannot
be written.
*/
func WriteTriples(w io.Writer, comma rune, triples []ratings.Triple) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	record := make([]string, 3)
	for _, t := range triples {
		record[0] = strconv.Itoa(t.User)
		record[1] = strconv.Itoa(t.Item)
		record[2] = strconv.FormatFloat(t.Value, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
