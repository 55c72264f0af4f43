package bdk

import "github.com/pkg/errors"

// IdentifiersBuilder evaluates an ordered sequence of CV specs into a flat
// identifier list. Multi-valued sources expand into multiple identifiers
// sharing the same namespace, in split order - downstream consumers may rely
// on positional alignment with sibling multi-valued annotations.
type IdentifiersBuilder struct {
	Specs []CVSpec
}

// Identifiers builds an IdentifiersBuilder.
func Identifiers(specs ...CVSpec) *IdentifiersBuilder {
	return &IdentifiersBuilder{Specs: specs}
}

// Build evaluates every spec against the row. Empty resolutions are dropped,
// never represented as null-valued records. Two specs targeting the same
// namespace both append (no last-wins).
func (b *IdentifiersBuilder) Build(row Row, strict bool) ([]Identifier, error) {
	if b == nil {
		return nil, nil
	}
	var ids []Identifier
	for _, spec := range b.Specs {
		tvs, err := spec.resolve(row, strict)
		if err != nil {
			return nil, err
		}
		for _, tv := range tvs {
			ids = append(ids, Identifier{Namespace: tv.term, Value: tv.value})
		}
	}
	return ids, nil
}

// AnnotationsBuilder is the annotation counterpart of IdentifiersBuilder.
type AnnotationsBuilder struct {
	Specs []CVSpec
}

// Annotations builds an AnnotationsBuilder.
func Annotations(specs ...CVSpec) *AnnotationsBuilder {
	return &AnnotationsBuilder{Specs: specs}
}

// Build evaluates every spec against the row.
func (b *AnnotationsBuilder) Build(row Row, strict bool) ([]Annotation, error) {
	if b == nil {
		return nil, nil
	}
	var anns []Annotation
	for _, spec := range b.Specs {
		tvs, err := spec.resolve(row, strict)
		if err != nil {
			return nil, err
		}
		for _, tv := range tvs {
			anns = append(anns, Annotation{Term: tv.term, Value: tv.value, Unit: spec.Unit})
		}
	}
	return anns, nil
}

// MemberSource produces nested child entities for one row. Implemented by
// MemberSpec (fixed arity) and MembersFromList (delimited expansion).
type MemberSource interface {
	BuildMembers(row Row, strict bool) ([]Member, error)
}

// EntityBuilder compiles identifier, annotation and membership specs into a
// schema applied per raw row. Builders are constructed once at module load
// and are immutable for the process lifetime.
type EntityBuilder struct {
	Type        CVTerm
	Identifiers *IdentifiersBuilder
	Annotations *AnnotationsBuilder
	Membership  []MemberSource

	// AllowEmpty permits entities with no identifiers (pure annotation
	// carriers). Without it a row resolving zero identifiers produces no
	// entity - a policy decision, not an error.
	AllowEmpty bool

	// Strict surfaces per-spec failures as typed errors instead of
	// degrading them to absent.
	Strict bool
}

// Build applies the schema to one row and returns zero or one entity.
// (nil, nil) means the row carried no identifying information. Composition
// order is fixed: identifiers first, then annotations, then membership.
func (b *EntityBuilder) Build(row Row) (*Entity, error) {
	return b.build(row, b.Strict)
}

// BuildStrict applies the schema with strict error surfacing for this call,
// leaving the builder's own mode untouched.
func (b *EntityBuilder) BuildStrict(row Row) (*Entity, error) {
	return b.build(row, true)
}

// build carries the caller's strictness so that nested builders inside
// membership follow the top-level mode.
func (b *EntityBuilder) build(row Row, strict bool) (*Entity, error) {
	if b.Type.IsZero() {
		return nil, errors.New("entity builder has no type")
	}
	ids, err := b.Identifiers.Build(row, strict)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && !b.AllowEmpty {
		return nil, nil
	}
	anns, err := b.Annotations.Build(row, strict)
	if err != nil {
		return nil, err
	}
	var members []Member
	for _, ms := range b.Membership {
		mm, err := ms.BuildMembers(row, strict)
		if err != nil {
			return nil, err
		}
		members = append(members, mm...)
	}
	return &Entity{
		Type:        b.Type,
		Identifiers: ids,
		Annotations: anns,
		Membership:  members,
	}, nil
}
