package config

import "strings"

// Key identifies one element of an identity path. Name is the unit type or
// owner identifier; Instance discriminates between multiple instances of the
// same unit type under one owner and is empty for single-instance keys.
type Key struct {
	Name     string
	Instance string
}

// NewKey creates a single-instance key
func NewKey(name string) Key {
	return Key{Name: name}
}

// InstanceKey creates a compound key for multi-instance units
func InstanceKey(name, instance string) Key {
	return Key{Name: name, Instance: instance}
}

// String renders the key for display. Compound keys render as
// "Name:Instance"; any package-qualification prefix is stripped from the
// name, since type-derived names are a runtime detail rather than identity.
func (k Key) String() string {
	name := k.Name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if k.Instance == "" {
		return name
	}
	return name + ":" + k.Instance
}

// Path is an immutable ordered sequence of keys tracking a unit's position
// in the spawn hierarchy. Element 0 is the owner key. Paths are never
// mutated in place; Extend copies.
type Path []Key

// Extend returns the path with key appended. Extension is idempotent on the
// last element: extending with a key equal to the current last element
// returns the path unchanged, so re-running an init with the same parent
// config cannot grow the path. Equality against earlier elements does not
// suppress extension.
func (p Path) Extend(key Key) Path {
	if len(p) > 0 && p[len(p)-1] == key {
		return p
	}
	extended := make(Path, len(p), len(p)+1)
	copy(extended, p)
	return append(extended, key)
}

// Root returns the owner key (element 0)
func (p Path) Root() Key {
	return p[0]
}

// Last returns the most recently appended key
func (p Path) Last() Key {
	return p[len(p)-1]
}

// String joins the path elements with "/"
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, key := range p {
		parts[i] = key.String()
	}
	return strings.Join(parts, "/")
}
