// Package json reads JSON data - a top-level array of objects, or a stream
// of concatenated/newline-delimited objects - as flat records.
package json

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// Source is a bdk.RecordSource over a JSON stream. With a path mapping each
// output field is extracted by a dotted path into the object; without one
// the object's top-level scalar fields become the record.
type Source struct {
	r     io.Reader
	dec   *json.Decoder
	name  string
	paths map[string]string
	array bool
	begun bool
}

// Option is a functional option for Source.
type Option func(*Source)

// Paths declares output fields by dotted path (e.g. "organism.taxon_id").
// A path landing on an array of scalars joins the elements with ";".
func Paths(p map[string]string) Option {
	return func(s *Source) { s.paths = p }
}

// Name labels the source in error messages.
func Name(n string) Option {
	return func(s *Source) { s.name = n }
}

// NewSource builds a Source over r.
func NewSource(r io.Reader, opts ...Option) (*Source, error) {
	s := &Source{r: r, name: "json"}
	for _, opt := range opts {
		opt(s)
	}
	s.dec = json.NewDecoder(r)
	s.dec.UseNumber()
	return s, nil
}

// Columns returns the declared output fields, or nil when the source is
// free-form.
func (s *Source) Columns() []string {
	if s.paths == nil {
		return nil
	}
	cols := make([]string, 0, len(s.paths))
	for c := range s.paths {
		cols = append(cols, c)
	}
	return cols
}

// Record implements bdk.RecordSource.
func (s *Source) Record() (bdk.Row, error) {
	if !s.begun {
		s.begun = true
		// peek: a leading '[' switches to array mode
		tok, err := s.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.name)
		}
		if d, ok := tok.(json.Delim); ok && d == '[' {
			s.array = true
		} else if d, ok := tok.(json.Delim); ok && d == '{' {
			// single object stream: re-decode it as the first record
			obj := make(map[string]interface{})
			if err := decodeObjectBody(s.dec, obj); err != nil {
				return nil, errors.Wrapf(err, "decoding %s", s.name)
			}
			return s.flatten(obj), nil
		} else {
			return nil, &bdk.FormatDriftError{Source: s.name, Detail: "expected an object or array at top level"}
		}
	}
	if s.array && !s.dec.More() {
		return nil, io.EOF
	}
	obj := make(map[string]interface{})
	if err := s.dec.Decode(&obj); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "decoding %s", s.name)
	}
	return s.flatten(obj), nil
}

// Close implements bdk.RecordSource.
func (s *Source) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Source) flatten(obj map[string]interface{}) bdk.Row {
	row := bdk.Row{}
	if s.paths != nil {
		for field, path := range s.paths {
			if v, ok := lookupPath(obj, strings.Split(path, ".")); ok && v != "" {
				row[field] = v
			}
		}
		return row
	}
	for k, v := range obj {
		if sv, ok := scalar(v); ok && sv != "" {
			row[k] = sv
		}
	}
	return row
}

func lookupPath(obj map[string]interface{}, path []string) (string, bool) {
	var cur interface{} = obj
	for _, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		cur, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	if vs, ok := cur.([]interface{}); ok {
		parts := make([]string, 0, len(vs))
		for _, v := range vs {
			if sv, ok := scalar(v); ok {
				parts = append(parts, sv)
			}
		}
		return strings.Join(parts, ";"), true
	}
	return scalar(cur)
}

func scalar(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

// decodeObjectBody consumes the remainder of an object whose opening brace
// was already read, collecting its members.
func decodeObjectBody(dec *json.Decoder, obj map[string]interface{}) error {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.Errorf("expected object key, got %v", keyTok)
		}
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return err
		}
		obj[key] = val
	}
	_, err := dec.Token() // closing brace
	return err
}
