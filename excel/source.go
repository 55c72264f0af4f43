// Package excel reads one worksheet of an XLSX workbook as a stream of flat
// records.
package excel

import (
	"io"
	"strings"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Source is a bdk.RecordSource over one worksheet. Column names come from a
// declared field mapping (output field -> column index) or from the header
// row.
type Source struct {
	f       *excelize.File
	rows    *excelize.Rows
	name    string
	sheet   string
	mapping map[string]int
	header  []string
}

// Option is a functional option for Source.
type Option func(*Source)

// Sheet selects the worksheet by name (default: the first sheet).
func Sheet(name string) Option {
	return func(s *Source) { s.sheet = name }
}

// FieldMapping declares output fields by zero-based column index; the sheet
// is then treated as headerless.
func FieldMapping(fm map[string]int) Option {
	return func(s *Source) { s.mapping = fm }
}

// Name labels the source in error messages.
func Name(n string) Option {
	return func(s *Source) { s.name = n }
}

// NewSource opens the workbook from r and positions on the selected sheet.
func NewSource(r io.Reader, opts ...Option) (*Source, error) {
	s := &Source{name: "excel"}
	for _, opt := range opts {
		opt(s)
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "opening workbook %s", s.name)
	}
	s.f = f
	if s.sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, &bdk.FormatDriftError{Source: s.name, Detail: "workbook has no sheets"}
		}
		s.sheet = sheets[0]
	}
	s.rows, err = f.Rows(s.sheet)
	if err != nil {
		f.Close()
		return nil, &bdk.FormatDriftError{Source: s.name, Detail: errors.Wrapf(err, "sheet %q", s.sheet).Error()}
	}
	if s.mapping == nil {
		if !s.rows.Next() {
			s.Close()
			return nil, &bdk.FormatDriftError{Source: s.name, Detail: "sheet has no header row"}
		}
		header, err := s.rows.Columns()
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "reading header of %s", s.name)
		}
		s.header = header
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

// Record implements bdk.RecordSource.
func (s *Source) Record() (bdk.Row, error) {
	for s.rows.Next() {
		cells, err := s.rows.Columns()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.name)
		}
		if blank(cells) {
			continue
		}
		if s.mapping != nil {
			row := make(bdk.Row, len(s.mapping))
			for field, idx := range s.mapping {
				if idx >= 0 && idx < len(cells) && cells[idx] != "" {
					row[field] = cells[idx]
				}
			}
			return row, nil
		}
		row := make(bdk.Row, len(s.header))
		for i, h := range s.header {
			if h == "" || i >= len(cells) {
				continue
			}
			if cells[i] != "" {
				row[h] = cells[i]
			}
		}
		return row, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, errors.Wrapf(err, "iterating %s", s.name)
	}
	return nil, io.EOF
}

// Close implements bdk.RecordSource.
func (s *Source) Close() error {
	var err error
	if s.rows != nil {
		err = s.rows.Close()
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
