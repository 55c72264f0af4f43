package bdk

import (
	"fmt"
	"sort"
	"sync"
)

// CVTerm is a namespace-qualified controlled-vocabulary term. Terms compare
// by value and are only ever obtained from the registry - the mapping layer
// never invents terms while processing rows.
type CVTerm struct {
	Accession string `json:"accession"`
	Name      string `json:"name"`
}

func (t CVTerm) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.Accession)
}

// IsZero reports whether t is the zero term (no accession).
func (t CVTerm) IsZero() bool { return t.Accession == "" }

var (
	vocabMu sync.RWMutex
	vocab   = map[string]CVTerm{}
)

// RegisterTerm adds a term to the vocabulary registry under its name. It is
// intended to be called from package init; re-registering a name with a
// different accession panics, since that can only be a programming error.
func RegisterTerm(accession, name string) CVTerm {
	t := CVTerm{Accession: accession, Name: name}
	vocabMu.Lock()
	defer vocabMu.Unlock()
	if prev, ok := vocab[name]; ok && prev != t {
		panic(fmt.Sprintf("CV term %q already registered as %v, cannot re-register as %v", name, prev, t))
	}
	vocab[name] = t
	return t
}

// Term looks a term up by name. Lookups happen at schema-construction time,
// never per row.
func Term(name string) (CVTerm, bool) {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	t, ok := vocab[name]
	return t, ok
}

// MustTerm is Term for module-load schema construction: unknown names panic.
func MustTerm(name string) CVTerm {
	t, ok := Term(name)
	if !ok {
		panic(fmt.Sprintf("unknown CV term %q", name))
	}
	return t
}

// TermNames returns the sorted names of all registered terms.
func TermNames() []string {
	vocabMu.RLock()
	defer vocabMu.RUnlock()
	names := make([]string, 0, len(vocab))
	for n := range vocab {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TermSource resolves the CV term for one resolved value of a CV spec. The
// value v is the i'th value the spec's column produced for the row. ok=false
// with a nil error means this value contributes no record (e.g. an unset
// boolean flag); a non-nil error is surfaced only in strict mode.
type TermSource interface {
	ResolveTerm(row Row, i int, v string) (CVTerm, bool, error)
}

// ResolveTerm implements TermSource for a bare CVTerm: static resolution,
// the same term regardless of data.
func (t CVTerm) ResolveTerm(Row, int, string) (CVTerm, bool, error) {
	return t, true, nil
}

// TermMap maps resolved column values to CV terms, with an optional default.
// Used for dynamic term resolution such as prefix dispatch ("chebi:" ->
// CHEBI namespace).
type TermMap struct {
	Terms   map[string]CVTerm
	Default CVTerm
	HasDef  bool
}

// MapTerms builds a TermMap with no default.
func MapTerms(terms map[string]CVTerm) TermMap {
	return TermMap{Terms: terms}
}

// WithDefault returns a copy of the TermMap carrying a default term for
// unmatched values.
func (m TermMap) WithDefault(def CVTerm) TermMap {
	m.Default = def
	m.HasDef = true
	return m
}

// TermColumn resolves the term dynamically from the row itself: the column
// source's i'th value (or its only value) is looked up in the term map. A
// miss with no default drops the record in tolerant mode and raises
// CVResolutionError in strict mode.
type TermColumn struct {
	Src ColumnSource
	Map TermMap
}

// ResolveTerm implements TermSource.
func (tc TermColumn) ResolveTerm(row Row, i int, _ string) (CVTerm, bool, error) {
	keys := tc.Src.Values(row)
	var key string
	switch {
	case i < len(keys):
		key = keys[i]
	case len(keys) == 1:
		key = keys[0]
	default:
		return CVTerm{}, false, nil
	}
	if t, ok := tc.Map.Terms[key]; ok {
		return t, true, nil
	}
	if tc.Map.HasDef {
		return tc.Map.Default, true, nil
	}
	return CVTerm{}, false, &CVResolutionError{Field: tc.Src.field, Value: key}
}

// FlagTerm emits its term only when the spec's value equals When; any other
// value contributes nothing. This encodes boolean source columns as
// presence-of-term rather than materializing "field=false" annotations.
type FlagTerm struct {
	When string
	Term CVTerm
}

// Flag is shorthand for a single truthy-value FlagTerm.
func Flag(when string, term CVTerm) FlagTerm {
	return FlagTerm{When: when, Term: term}
}

// ResolveTerm implements TermSource.
func (f FlagTerm) ResolveTerm(_ Row, _ int, v string) (CVTerm, bool, error) {
	if v == f.When {
		return f.Term, true, nil
	}
	return CVTerm{}, false, nil
}

// CVSpec binds a term source to a value source. Evaluated against a row it
// yields zero or more (term, value) pairs, one per resolved value.
type CVSpec struct {
	Term  TermSource
	Value ColumnSource
	Unit  *CVTerm
}

// CV builds a CVSpec. term is either a bare CVTerm (static), a TermColumn
// (dynamic) or a FlagTerm (boolean flag).
func CV(term TermSource, value ColumnSource) CVSpec {
	return CVSpec{Term: term, Value: value}
}

// WithUnit attaches a unit term; only meaningful for annotation specs.
func (s CVSpec) WithUnit(u CVTerm) CVSpec {
	s.Unit = &u
	return s
}

type termValue struct {
	term  CVTerm
	value string
}

// resolve evaluates the spec against one row. In tolerant mode any failure
// (extraction miss, unmapped value, unresolved term) contributes nothing;
// in strict mode the typed error is returned.
func (s CVSpec) resolve(row Row, strict bool) ([]termValue, error) {
	var vals []string
	var err error
	if strict {
		vals, err = s.Value.StrictValues(row)
		if err != nil {
			return nil, err
		}
	} else {
		vals = s.Value.Values(row)
	}
	out := make([]termValue, 0, len(vals))
	for i, v := range vals {
		if v == "" {
			continue
		}
		term, ok, err := s.Term.ResolveTerm(row, i, v)
		if err != nil {
			if strict {
				return nil, err
			}
			continue
		}
		if !ok {
			continue
		}
		out = append(out, termValue{term: term, value: v})
	}
	return out, nil
}
