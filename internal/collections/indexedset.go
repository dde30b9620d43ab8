// Package collections provides the IndexedSet container used by the mixture to
// index agents by type and embeddings by the host agents they touch.  It is a
// set with three extras: O(1) uniform random selection by position, secondary
// indices defined by caller-supplied keying functions, and an element identity
// function so that logically-equal values (e.g. two enumerations of the same
// embedding) collapse to one member.
package collections

import (
	"fmt"

	"github.com/turtacn/KappaForge/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Properties
// ─────────────────────────────────────────────────────────────────────────────

// SetProperty keys an element under zero or more values.  A unique SetProperty
// asserts that at most one element occupies any bucket.
type SetProperty[T any] struct {
	fn       func(T) []any
	isUnique bool
}

// NewSetProperty constructs a SetProperty from a multi-valued keying function.
func NewSetProperty[T any](fn func(T) []any, unique bool) *SetProperty[T] {
	return &SetProperty[T]{fn: fn, isUnique: unique}
}

// NewProperty constructs a SetProperty from a single-valued keying function.
// If you know a bucket can only ever hold one element, mark it unique so that
// Lookup misuse is caught early.
func NewProperty[T any](fn func(T) any, unique bool) *SetProperty[T] {
	return &SetProperty[T]{
		fn:       func(item T) []any { return []any{fn(item)} },
		isUnique: unique,
	}
}

// Keys returns the index values the property produces for item.
func (p *SetProperty[T]) Keys(item T) []any { return p.fn(item) }

// Unique reports whether the property's buckets hold at most one element.
func (p *SetProperty[T]) Unique() bool { return p.isUnique }

// ─────────────────────────────────────────────────────────────────────────────
// IndexedSet
// ─────────────────────────────────────────────────────────────────────────────

// IndexedSet is a set with positional access for uniform random sampling and
// named secondary indices.  Element membership is decided by the identity
// function supplied at construction: two values with the same identity are the
// same member.
//
// Positions are not stable across modification: Remove swap-pops the last
// element into the vacated slot, which is what makes removal O(1).
//
// Mutating a member in a way that changes any registered property value while
// it is in the set corrupts the indices.  When mutation is unavoidable the
// caller must Remove, mutate, and re-Add, which is exactly what the mixture
// does when an embedding migrates between connected components.
type IndexedSet[T any] struct {
	identity func(T) any

	pos   map[any]int
	items []T

	properties map[string]*SetProperty[T]
	indices    map[string]map[any]*IndexedSet[T]
}

// NewIndexedSet constructs an empty IndexedSet whose members are distinguished
// by the given identity function.  The identity values must be comparable.
func NewIndexedSet[T any](identity func(T) any, items ...T) *IndexedSet[T] {
	s := &IndexedSet[T]{
		identity:   identity,
		pos:        make(map[any]int),
		properties: make(map[string]*SetProperty[T]),
		indices:    make(map[string]map[any]*IndexedSet[T]),
	}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Len returns the number of members.
func (s *IndexedSet[T]) Len() int { return len(s.items) }

// Has reports whether an element with item's identity is a member.
func (s *IndexedSet[T]) Has(item T) bool {
	_, ok := s.pos[s.identity(item)]
	return ok
}

// At returns the i-th member by internal position.  Positions are only
// meaningful between modifications; the sole intended use is uniform random
// selection via At(rng.Intn(Len())).
func (s *IndexedSet[T]) At(i int) T {
	if i < 0 || i >= len(s.items) {
		panic(errors.Newf(errors.CodeInternal, "indexed set position %d out of range [0,%d)", i, len(s.items)))
	}
	return s.items[i]
}

// Items returns the members in internal order.  The slice is shared with the
// set; callers must not modify it and must not hold it across modifications.
func (s *IndexedSet[T]) Items() []T { return s.items }

// Add inserts item.  Adding an element whose identity is already present is a
// programming error and panics.
func (s *IndexedSet[T]) Add(item T) {
	id := s.identity(item)
	if _, ok := s.pos[id]; ok {
		panic(errors.Newf(errors.CodeInternal, "indexed set already contains %v", id))
	}
	s.items = append(s.items, item)
	s.pos[id] = len(s.items) - 1

	for name, prop := range s.properties {
		buckets := s.indices[name]
		for _, val := range prop.Keys(item) {
			bucket, ok := buckets[val]
			if !ok {
				bucket = NewIndexedSet[T](s.identity)
				buckets[val] = bucket
			}
			if prop.Unique() && bucket.Len() > 0 {
				panic(errors.Newf(errors.CodeInternal,
					"unique property %q bucket %v already occupied", name, val))
			}
			bucket.Add(item)
		}
	}
}

// Remove deletes item.  Removing an element that is not a member is a
// programming error and panics.
func (s *IndexedSet[T]) Remove(item T) {
	id := s.identity(item)
	pos, ok := s.pos[id]
	if !ok {
		panic(errors.Newf(errors.CodeInternal, "indexed set does not contain %v", id))
	}

	// Swap-pop the last element into the vacated slot.
	delete(s.pos, id)
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	if pos != len(s.items) {
		s.items[pos] = last
		s.pos[s.identity(last)] = pos
	}

	for name, prop := range s.properties {
		buckets := s.indices[name]
		for _, val := range prop.Keys(item) {
			bucket := buckets[val]
			bucket.Remove(item)
			if bucket.Len() == 0 {
				delete(buckets, val)
			}
		}
	}
}

// CreateIndex registers a named property and indexes the current members
// under it.  Registering a duplicate name panics.
func (s *IndexedSet[T]) CreateIndex(name string, prop *SetProperty[T]) {
	if _, ok := s.properties[name]; ok {
		panic(errors.Newf(errors.CodeInternal, "index %q already registered", name))
	}
	s.properties[name] = prop
	buckets := make(map[any]*IndexedSet[T])
	s.indices[name] = buckets

	for _, item := range s.items {
		for _, val := range prop.Keys(item) {
			bucket, ok := buckets[val]
			if !ok {
				bucket = NewIndexedSet[T](s.identity)
				buckets[val] = bucket
			}
			if prop.Unique() && bucket.Len() > 0 {
				panic(errors.Newf(errors.CodeInternal,
					"unique property %q bucket %v already occupied", name, val))
			}
			bucket.Add(item)
		}
	}
}

// HasIndex reports whether a property with the given name is registered.
func (s *IndexedSet[T]) HasIndex(name string) bool {
	_, ok := s.properties[name]
	return ok
}

// Lookup returns the bucket of members keyed under value by the named
// property.  The returned set is live and read-only; it is empty (but
// non-nil) when no member carries the value.
func (s *IndexedSet[T]) Lookup(name string, value any) *IndexedSet[T] {
	buckets, ok := s.indices[name]
	if !ok {
		panic(errors.Newf(errors.CodeInternal, "unknown index %q", name))
	}
	if bucket, ok := buckets[value]; ok {
		return bucket
	}
	return NewIndexedSet[T](s.identity)
}

// LookupUnique returns the single member keyed under value by the named
// unique property.  The second return is false when the bucket is empty.
func (s *IndexedSet[T]) LookupUnique(name string, value any) (T, bool) {
	prop, ok := s.properties[name]
	if !ok {
		panic(errors.Newf(errors.CodeInternal, "unknown index %q", name))
	}
	if !prop.Unique() {
		panic(errors.Newf(errors.CodeInternal, "index %q is not unique", name))
	}
	bucket := s.Lookup(name, value)
	switch bucket.Len() {
	case 0:
		var zero T
		return zero, false
	case 1:
		return bucket.At(0), true
	default:
		panic(errors.Newf(errors.CodeInternal,
			"unique property %q bucket %v holds %d elements", name, value, bucket.Len()))
	}
}

// String renders a short debugging description.
func (s *IndexedSet[T]) String() string {
	return fmt.Sprintf("IndexedSet(len=%d, indices=%d)", s.Len(), len(s.properties))
}
