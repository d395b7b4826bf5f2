// Package compat implements the role → entity-type compatibility filter that
// bounds every bridging decision.  The matrix is configuration-driven and
// fail-closed: a role without a configured row yields no compatible types,
// so its elements can never be bridged by accident.
package compat

import (
	"sort"

	"github.com/silicograph/bridger/internal/domain/element"
)

// Matrix answers which canonical entity types a structural element role may
// bridge to.  Immutable after construction; safe for concurrent reads.
type Matrix struct {
	rules map[element.Role]map[string]struct{}
	types map[element.Role][]string
}

// NewMatrix builds a Matrix from configuration rows keyed by role name.
// Unknown role names are kept verbatim; they simply never match a valid
// element.
func NewMatrix(rules map[string][]string) *Matrix {
	m := &Matrix{
		rules: make(map[element.Role]map[string]struct{}, len(rules)),
		types: make(map[element.Role][]string, len(rules)),
	}
	for role, entityTypes := range rules {
		set := make(map[string]struct{}, len(entityTypes))
		list := make([]string, 0, len(entityTypes))
		for _, et := range entityTypes {
			if et == "" {
				continue
			}
			if _, dup := set[et]; dup {
				continue
			}
			set[et] = struct{}{}
			list = append(list, et)
		}
		sort.Strings(list)
		m.rules[element.Role(role)] = set
		m.types[element.Role(role)] = list
	}
	return m
}

// CompatibleTypes returns the sorted entity types a role may bridge to.
// Nil for unconfigured roles (fail-closed).
func (m *Matrix) CompatibleTypes(role element.Role) []string {
	return m.types[role]
}

// Allows reports whether an element of the given role may bridge to an
// entity of the given type.  Unconfigured roles allow nothing.
func (m *Matrix) Allows(role element.Role, entityType string) bool {
	set, ok := m.rules[role]
	if !ok {
		return false
	}
	_, ok = set[entityType]
	return ok
}
