package phoenix

import "sort"

// RoleSet is a set of Discord role ids. Desired sets are always recomputed
// from durable state and never persisted.
type RoleSet map[string]struct{}

func NewRoleSet(ids ...string) RoleSet {
	s := RoleSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add ignores empty ids so unset catalog entries never become tags.
func (s RoleSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s RoleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s RoleSet) Len() int {
	return len(s)
}

func (s RoleSet) Union(other RoleSet) RoleSet {
	out := RoleSet{}
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

// Diff returns the ids in s that are not in other.
func (s RoleSet) Diff(other RoleSet) RoleSet {
	out := RoleSet{}
	for id := range s {
		if !other.Has(id) {
			out.Add(id)
		}
	}
	return out
}

func (s RoleSet) Intersect(other RoleSet) RoleSet {
	out := RoleSet{}
	for id := range s {
		if other.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Slice returns the ids in a stable order.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
