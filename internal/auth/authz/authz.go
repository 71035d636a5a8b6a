// Package authz flattens roles into the permission strings granted at login.
package authz

import (
	"sort"

	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// Reference permissions seeded with the schema.
const (
	NoteRead        = "note.read"
	NoteCreate      = "note.create"
	NoteUpdate      = "note.update"
	NoteDelete      = "note.delete"
	AuthorityCreate = "authority.create"
)

// Set is an immutable set of permission strings.
type Set struct {
	m map[string]struct{}
}

// Derive unions the authorities of every role. Repeated permissions collapse
// to a single entry and empty permission strings are dropped.
func Derive(roles ...repository.Role) Set {
	m := make(map[string]struct{})
	for _, r := range roles {
		for _, a := range r.Authorities {
			if a.Permission == "" {
				continue
			}
			m[a.Permission] = struct{}{}
		}
	}
	return Set{m: m}
}

// Of builds a Set from raw permission strings.
func Of(perms ...string) Set {
	m := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p != "" {
			m[p] = struct{}{}
		}
	}
	return Set{m: m}
}

// Has reports whether perm is granted.
func (s Set) Has(perm string) bool {
	_, ok := s.m[perm]
	return ok
}

// Len is the number of distinct permissions.
func (s Set) Len() int { return len(s.m) }

// Slice returns the permissions sorted, so output is stable across calls.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same permissions.
func (s Set) Equal(o Set) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for p := range s.m {
		if _, ok := o.m[p]; !ok {
			return false
		}
	}
	return true
}
