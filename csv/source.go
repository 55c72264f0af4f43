// Package csv reads delimited tabular data (CSV, TSV, anything with a single
// rune separator) as a stream of flat records.
package csv

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// Source is a bdk.RecordSource over one delimited stream. Column names come
// from a declared field mapping (output field -> column index) or, absent
// one, from the header line.
type Source struct {
	r       io.Reader
	cr      *csv.Reader
	name    string
	comma   rune
	mapping map[string]int
	header  []string
	line    int
}

// Option is a functional option for Source.
type Option func(*Source)

// Comma sets the column separator (default ',').
func Comma(c rune) Option {
	return func(s *Source) { s.comma = c }
}

// FieldMapping declares output fields by column index; the stream is then
// treated as headerless.
func FieldMapping(fm map[string]int) Option {
	return func(s *Source) { s.mapping = fm }
}

// Name labels the source in error messages (usually its URL).
func Name(n string) Option {
	return func(s *Source) { s.name = n }
}

// NewSource builds a Source over r. With no field mapping the first row is
// consumed as the header and validated (no empty or duplicate names).
func NewSource(r io.Reader, opts ...Option) (*Source, error) {
	s := &Source{r: r, comma: ',', name: "csv"}
	for _, opt := range opts {
		opt(s)
	}
	s.cr = csv.NewReader(r)
	s.cr.Comma = s.comma
	s.cr.FieldsPerRecord = -1
	s.cr.LazyQuotes = true

	if s.mapping == nil {
		rec, err := s.cr.Read()
		if err == io.EOF {
			return nil, &bdk.FormatDriftError{Source: s.name, Detail: "empty stream, no header"}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading header of %s", s.name)
		}
		if err := validateHeader(s.name, rec); err != nil {
			return nil, err
		}
		s.header = rec
	}
	return s, nil
}

// Columns returns the output field names.
func (s *Source) Columns() []string {
	if s.mapping != nil {
		cols := make([]string, 0, len(s.mapping))
		for c := range s.mapping {
			cols = append(cols, c)
		}
		return cols
	}
	return append([]string(nil), s.header...)
}

// Record implements bdk.RecordSource. Blank lines are skipped; empty cells
// are omitted from the record.
func (s *Source) Record() (bdk.Row, error) {
	for {
		rec, err := s.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s line %d", s.name, s.line)
		}
		s.line++
		if blank(rec) {
			continue
		}
		if s.mapping != nil {
			row := make(bdk.Row, len(s.mapping))
			for field, idx := range s.mapping {
				if idx < 0 || idx >= len(rec) {
					return nil, &bdk.FormatDriftError{
						Source: s.name,
						Detail: errors.Errorf("field %q wants column %d but line %d has %d columns", field, idx, s.line, len(rec)).Error(),
					}
				}
				if v := rec[idx]; v != "" {
					row[field] = v
				}
			}
			return row, nil
		}
		row := make(bdk.Row, len(s.header))
		for i, h := range s.header {
			if i >= len(rec) {
				break
			}
			if v := rec[i]; v != "" {
				row[h] = v
			}
		}
		return row, nil
	}
}

// Close implements bdk.RecordSource.
func (s *Source) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func validateHeader(name string, header []string) error {
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			return &bdk.FormatDriftError{Source: name, Detail: errors.Errorf("header has an empty name at column %d", i).Error()}
		}
		if pos, ok := seen[h]; ok {
			return &bdk.FormatDriftError{Source: name, Detail: errors.Errorf("header name %q appears at both %d and %d", h, pos, i).Error()}
		}
		seen[h] = i
	}
	return nil
}
