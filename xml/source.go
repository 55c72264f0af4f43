// Package xml reads XML documents as a stream of flat records, one per
// occurrence of a declared record element.
package xml

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// Source is a bdk.RecordSource over an XML stream. Every element named
// recordTag yields one record; output fields are extracted by slash-paths
// relative to the record element ("xref/@id", "name", "."), or, absent a
// path mapping, from the record's attributes and direct children's text.
type Source struct {
	r     io.Reader
	dec   *xml.Decoder
	name  string
	tag   string
	paths map[string]string
}

// Option is a functional option for Source.
type Option func(*Source)

// Paths declares output fields by slash-path. A leading '@' segment reads an
// attribute; "." reads the record element's own text. A path matching
// several elements joins their values with ";".
func Paths(p map[string]string) Option {
	return func(s *Source) { s.paths = p }
}

// Name labels the source in error messages.
func Name(n string) Option {
	return func(s *Source) { s.name = n }
}

// NewSource builds a Source over r; recordTag is the local name of the
// element that delimits one record.
func NewSource(r io.Reader, recordTag string, opts ...Option) (*Source, error) {
	if recordTag == "" {
		return nil, errors.New("xml source needs a record tag")
	}
	s := &Source{r: r, dec: xml.NewDecoder(r), name: "xml", tag: recordTag}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Columns returns the declared output fields, or nil when free-form.
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
	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.name)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != s.tag {
			continue
		}
		node, err := parseElement(s.dec, start)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s record", s.name)
		}
		return s.flatten(node), nil
	}
}

// Close implements bdk.RecordSource.
func (s *Source) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Source) flatten(n *node) bdk.Row {
	row := bdk.Row{}
	if s.paths != nil {
		for field, path := range s.paths {
			if v := n.lookup(strings.Split(path, "/")); v != "" {
				row[field] = v
			}
		}
		return row
	}
	for name, v := range n.attrs {
		if v != "" {
			row[name] = v
		}
	}
	for name, kids := range n.children {
		parts := make([]string, 0, len(kids))
		for _, k := range kids {
			if t := strings.TrimSpace(k.text.String()); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			row[name] = strings.Join(parts, ";")
		}
	}
	return row
}

type node struct {
	attrs    map[string]string
	children map[string][]*node
	text     strings.Builder
}

func newNode(start xml.StartElement) *node {
	n := &node{attrs: make(map[string]string), children: make(map[string][]*node)}
	for _, a := range start.Attr {
		n.attrs[a.Name.Local] = a.Value
	}
	return n
}

// parseElement consumes one element subtree whose start tag was already read.
func parseElement(dec *xml.Decoder, start xml.StartElement) (*node, error) {
	n := newNode(start)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			n.children[t.Name.Local] = append(n.children[t.Name.Local], child)
		case xml.CharData:
			n.text.Write(t)
		case xml.EndElement:
			return n, nil
		}
	}
}

func (n *node) lookup(path []string) string {
	if len(path) == 0 {
		return ""
	}
	seg := path[0]
	switch {
	case seg == ".":
		return strings.TrimSpace(n.text.String())
	case strings.HasPrefix(seg, "@"):
		return n.attrs[seg[1:]]
	default:
		kids := n.children[seg]
		if len(kids) == 0 {
			return ""
		}
		rest := path[1:]
		parts := make([]string, 0, len(kids))
		for _, k := range kids {
			var v string
			if len(rest) == 0 {
				v = strings.TrimSpace(k.text.String())
			} else {
				v = k.lookup(rest)
			}
			if v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, ";")
	}
}
