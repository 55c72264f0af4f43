package bronze

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/biograph/bdk"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// parquetWriter streams rows into one Parquet file. Data goes to a temp file
// in the destination directory and is renamed into place on Close, so a
// concurrent reader never observes a partial artifact.
type parquetWriter struct {
	tmp   *os.File
	final string
	w     *parquet.Writer
	cols  []string // sorted; leaf column i corresponds to cols[i]
	rows  int64
}

// rowSchema builds a flat schema of optional string columns. parquet-go
// orders group fields alphabetically, so column indexes are taken from the
// sorted name list.
func rowSchema(columns []string) (*parquet.Schema, []string) {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	group := parquet.Group{}
	for _, c := range sorted {
		group[c] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("rows", group), sorted
}

func newParquetWriter(final string, columns []string) (*parquetWriter, error) {
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(final), ".write-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating parquet temp file")
	}
	schema, sorted := rowSchema(columns)
	return &parquetWriter{
		tmp:   tmp,
		final: final,
		w:     parquet.NewWriter(tmp, schema),
		cols:  sorted,
	}, nil
}

// Write appends one record. Fields outside the schema are ignored; absent
// fields become nulls.
func (pw *parquetWriter) Write(rec bdk.Row) error {
	row := make(parquet.Row, 0, len(pw.cols))
	for i, c := range pw.cols {
		if v, ok := rec[c]; ok && v != "" {
			row = append(row, parquet.ByteArrayValue([]byte(v)).Level(0, 1, i))
		} else {
			row = append(row, parquet.ValueOf(nil).Level(0, 0, i))
		}
	}
	if _, err := pw.w.WriteRows([]parquet.Row{row}); err != nil {
		return errors.Wrap(err, "writing parquet row")
	}
	pw.rows++
	return nil
}

// Close flushes and atomically publishes the file.
func (pw *parquetWriter) Close() error {
	if err := pw.w.Close(); err != nil {
		pw.Abort()
		return errors.Wrap(err, "closing parquet writer")
	}
	if err := pw.tmp.Close(); err != nil {
		os.Remove(pw.tmp.Name())
		return errors.Wrap(err, "closing parquet temp file")
	}
	if err := os.Rename(pw.tmp.Name(), pw.final); err != nil {
		os.Remove(pw.tmp.Name())
		return errors.Wrap(err, "publishing parquet file")
	}
	return nil
}

// Abort discards the temp file; the destination is untouched.
func (pw *parquetWriter) Abort() {
	pw.tmp.Close()
	os.Remove(pw.tmp.Name())
}

// fileRows iterates one Parquet cache file as bdk.Row records.
type fileRows struct {
	f      *os.File
	cols   []string
	groups []parquet.RowGroup
	gi     int
	rows   parquet.Rows
	buf    []parquet.Row
	n, i   int
}

func openParquetRows(path string) (*fileRows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache file %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statting cache file")
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "reading parquet %s", path)
	}
	fields := pf.Schema().Fields()
	cols := make([]string, len(fields))
	for i, fld := range fields {
		cols[i] = fld.Name()
	}
	return &fileRows{
		f:      f,
		cols:   cols,
		groups: pf.RowGroups(),
		buf:    make([]parquet.Row, 64),
	}, nil
}

// Record implements bdk.RecordSource.
func (r *fileRows) Record() (bdk.Row, error) {
	for {
		if r.i < r.n {
			row := r.buf[r.i]
			r.i++
			rec := make(bdk.Row, len(row))
			for _, v := range row {
				if v.IsNull() {
					continue
				}
				c := int(v.Column())
				if c < 0 || c >= len(r.cols) {
					continue
				}
				rec[r.cols[c]] = string(v.ByteArray())
			}
			return rec, nil
		}
		if r.rows == nil {
			if r.gi >= len(r.groups) {
				return nil, io.EOF
			}
			r.rows = r.groups[r.gi].Rows()
			r.gi++
		}
		n, err := r.rows.ReadRows(r.buf)
		r.n, r.i = n, 0
		if n == 0 {
			cerr := r.rows.Close()
			r.rows = nil
			if err != nil && err != io.EOF {
				return nil, errors.Wrap(err, "reading parquet rows")
			}
			if cerr != nil {
				return nil, errors.Wrap(cerr, "closing row group reader")
			}
		} else if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "reading parquet rows")
		}
	}
}

// Close implements bdk.RecordSource.
func (r *fileRows) Close() error {
	var err error
	if r.rows != nil {
		err = r.rows.Close()
		r.rows = nil
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// multiRows chains the per-partition files of one cache entry into a single
// record stream.
type multiRows struct {
	files []string
	cur   *fileRows
}

// Record implements bdk.RecordSource.
func (m *multiRows) Record() (bdk.Row, error) {
	for {
		if m.cur == nil {
			if len(m.files) == 0 {
				return nil, io.EOF
			}
			cur, err := openParquetRows(m.files[0])
			if err != nil {
				return nil, err
			}
			m.files = m.files[1:]
			m.cur = cur
		}
		rec, err := m.cur.Record()
		if err == io.EOF {
			if cerr := m.cur.Close(); cerr != nil {
				m.cur = nil
				return nil, cerr
			}
			m.cur = nil
			continue
		}
		return rec, err
	}
}

// Close implements bdk.RecordSource.
func (m *multiRows) Close() error {
	m.files = nil
	if m.cur != nil {
		err := m.cur.Close()
		m.cur = nil
		return err
	}
	return nil
}
