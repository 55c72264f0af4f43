package bdk

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Row is one raw record as handed to the mapping layer: flat field name to
// string value. Absent and empty fields are equivalent.
type Row map[string]string

// Entity is the normalized record produced by the mapping engine. Its type is
// always set; identifiers, annotations and membership may each be empty.
// Membership entries are owned exclusively by their parent - the structure is
// a tree, never a graph.
type Entity struct {
	Type        CVTerm       `json:"type"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Membership  []Member     `json:"membership,omitempty"`
}

// Identifier names an entity within one namespace. Several identifiers may
// share a namespace (synonyms).
type Identifier struct {
	Namespace CVTerm `json:"namespace"`
	Value     string `json:"value"`
}

// Annotation attaches one term-qualified value to an entity, optionally with
// a unit term.
type Annotation struct {
	Term  CVTerm  `json:"term"`
	Value string  `json:"value"`
	Unit  *CVTerm `json:"unit,omitempty"`
}

// Member wraps one child entity together with its role annotations (e.g.
// source/target of an interaction, or stoichiometry of a complex member).
type Member struct {
	Entity *Entity      `json:"entity"`
	Roles  []Annotation `json:"roles,omitempty"`
}

// Equal compares two entities field by field and reports the first difference
// found as an error, or nil if they are identical. Used by tests and by
// consumers verifying determinism.
func (e *Entity) Equal(e2 *Entity) error {
	if e.Type != e2.Type {
		return errors.Errorf("type '%v' != '%v'", e.Type, e2.Type)
	}
	if len(e.Identifiers) != len(e2.Identifiers) {
		return errors.Errorf("identifier counts differ: %d and %d", len(e.Identifiers), len(e2.Identifiers))
	}
	for i := range e.Identifiers {
		if e.Identifiers[i] != e2.Identifiers[i] {
			return errors.Errorf("identifier %d: %v != %v", i, e.Identifiers[i], e2.Identifiers[i])
		}
	}
	if len(e.Annotations) != len(e2.Annotations) {
		return errors.Errorf("annotation counts differ: %d and %d", len(e.Annotations), len(e2.Annotations))
	}
	for i := range e.Annotations {
		if err := annotationEqual(e.Annotations[i], e2.Annotations[i]); err != nil {
			return errors.Wrapf(err, "annotation %d", i)
		}
	}
	if len(e.Membership) != len(e2.Membership) {
		return errors.Errorf("membership counts differ: %d and %d", len(e.Membership), len(e2.Membership))
	}
	for i := range e.Membership {
		m, m2 := e.Membership[i], e2.Membership[i]
		if err := m.Entity.Equal(m2.Entity); err != nil {
			return errors.Wrapf(err, "member %d", i)
		}
		if len(m.Roles) != len(m2.Roles) {
			return errors.Errorf("member %d role counts differ: %d and %d", i, len(m.Roles), len(m2.Roles))
		}
		for j := range m.Roles {
			if err := annotationEqual(m.Roles[j], m2.Roles[j]); err != nil {
				return errors.Wrapf(err, "member %d role %d", i, j)
			}
		}
	}
	return nil
}

func annotationEqual(a, a2 Annotation) error {
	if a.Term != a2.Term || a.Value != a2.Value {
		return errors.Errorf("%v != %v", a, a2)
	}
	if (a.Unit == nil) != (a2.Unit == nil) {
		return errors.Errorf("unit presence differs: %v and %v", a.Unit, a2.Unit)
	}
	if a.Unit != nil && *a.Unit != *a2.Unit {
		return errors.Errorf("unit '%v' != '%v'", *a.Unit, *a2.Unit)
	}
	return nil
}

// MarshalBytes serializes the entity to its canonical JSON form. Field order
// is fixed by the struct definitions, so the same entity always serializes to
// the same bytes.
func (e *Entity) MarshalBytes() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Wrap(err, "marshaling entity")
}

// RecordSource is the interface for pulling raw rows one at a time. Record
// returns io.EOF when the source is exhausted. Close releases any underlying
// readers and must be safe to call after EOF or mid-stream (a consumer
// abandoning iteration early calls Close).
type RecordSource interface {
	Record() (Row, error)
	Close() error
}
