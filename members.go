package bdk

import "github.com/pkg/errors"

// MemberSpec wraps exactly one nested entity construction plus role
// annotations. Used for fixed-arity relationships such as the two
// participants of a binary interaction.
type MemberSpec struct {
	Entity *EntityBuilder
	Roles  *AnnotationsBuilder
}

// BuildMembers implements MemberSource. A nested row that resolves no entity
// contributes no member.
func (m MemberSpec) BuildMembers(row Row, strict bool) ([]Member, error) {
	if m.Entity == nil {
		return nil, errors.New("member spec has no entity builder")
	}
	e, err := m.Entity.build(row, strict)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	roles, err := m.Roles.Build(row, strict)
	if err != nil {
		return nil, err
	}
	return []Member{{Entity: e, Roles: roles}}, nil
}

// MembersFromList expands one delimited field into N child entities of a
// declared type, zipping any parallel delimited columns positionally. The
// first identifier spec is the driving column: its split count sets N. A
// parallel annotation column that splits to a different count is omitted for
// every member rather than raising - ragged fields are routine in source
// files, and losing one annotation beats losing the dataset. That tolerance
// is a deliberate policy, not an omission.
type MembersFromList struct {
	Type        CVTerm
	Identifiers []CVSpec
	Annotations []CVSpec
}

// BuildMembers implements MemberSource.
func (m MembersFromList) BuildMembers(row Row, strict bool) ([]Member, error) {
	if len(m.Identifiers) == 0 {
		return nil, errors.New("members-from-list has no identifier specs")
	}

	// Positional evaluation: Values preserves split holes as "" so that
	// element i of every aligned column refers to the same member.
	cols := make([][]string, len(m.Identifiers))
	for j, spec := range m.Identifiers {
		var err error
		if strict {
			cols[j], err = spec.Value.StrictValues(row)
			if err != nil {
				return nil, err
			}
		} else {
			cols[j] = spec.Value.Values(row)
		}
	}
	n := len(cols[0])
	if n == 0 {
		return nil, nil
	}

	annCols := make([][]string, len(m.Annotations))
	for j, spec := range m.Annotations {
		vals := spec.Value.Values(row)
		if len(vals) == n {
			annCols[j] = vals
		}
		// length mismatch: column stays nil and is omitted for all members
	}

	members := make([]Member, 0, n)
	for i := 0; i < n; i++ {
		var ids []Identifier
		for j, spec := range m.Identifiers {
			if j > 0 && len(cols[j]) != n {
				continue // secondary identifier column out of alignment
			}
			v := cols[j][i]
			if v == "" {
				continue
			}
			term, ok, err := spec.Term.ResolveTerm(row, i, v)
			if err != nil {
				if strict {
					return nil, err
				}
				continue
			}
			if !ok {
				continue
			}
			ids = append(ids, Identifier{Namespace: term, Value: v})
		}
		if len(ids) == 0 {
			continue // an empty list element carries no member
		}
		var anns []Annotation
		for j, spec := range m.Annotations {
			if annCols[j] == nil {
				continue
			}
			v := annCols[j][i]
			if v == "" {
				continue
			}
			term, ok, err := spec.Term.ResolveTerm(row, i, v)
			if err != nil {
				if strict {
					return nil, err
				}
				continue
			}
			if !ok {
				continue
			}
			anns = append(anns, Annotation{Term: term, Value: v, Unit: spec.Unit})
		}
		members = append(members, Member{
			Entity: &Entity{Type: m.Type, Identifiers: ids, Annotations: anns},
		})
	}
	return members, nil
}
