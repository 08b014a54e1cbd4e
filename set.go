// Copyright 2025 The Flathash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flathash

// Set is an unordered set of items backed by the same open-addressing
// engine as Map, with struct{} values so no value array is materialized
// in practice.
//
// A Set is NOT goroutine-safe.
type Set[K any] struct {
	m *Map[K, struct{}]
}

// NewSet constructs a Set sized to hold initialCapacity items without
// growing. Items are hashed with hash/maphash under a fresh per-set
// seed and compared with ==.
func NewSet[K comparable](initialCapacity int, opts ...Option[K, struct{}]) *Set[K] {
	return &Set[K]{m: New[K, struct{}](initialCapacity, opts...)}
}

// NewSetFunc constructs a Set with an explicit hash/equality strategy.
// See NewFunc for the contract the pair must satisfy.
func NewSetFunc[K any](
	hash func(K) uint64, equal func(a, b K) bool, initialCapacity int, opts ...Option[K, struct{}],
) *Set[K] {
	return &Set[K]{m: NewFunc[K, struct{}](hash, equal, initialCapacity, opts...)}
}

// NewSetOf constructs a Set holding the given items. Duplicates under
// == collapse to the first occurrence.
func NewSetOf[K comparable](items ...K) *Set[K] {
	s := NewSet[K](len(items))
	s.AddAll(items...)
	return s
}

// NewKeyedSet constructs a Set of composite elements whose membership
// and hashing are decided by a derived key: two elements are equal iff
// extract returns equal keys for both. The extractor runs on every
// comparison and must be pure and O(1).
//
// On duplicate keys the set keeps the first-added element; Add reports
// false and leaves the stored element untouched.
func NewKeyedSet[E any, K comparable](
	extract func(E) K, initialCapacity int, opts ...Option[E, struct{}],
) *Set[E] {
	hashKey := defaultHash[K]()
	return NewSetFunc[E](
		func(e E) uint64 { return hashKey(extract(e)) },
		func(a, b E) bool { return extract(a) == extract(b) },
		initialCapacity, opts...)
}

// Add inserts an item, reporting whether the set changed. If an equal
// item is already present the set keeps the stored item and returns
// false.
func (s *Set[K]) Add(item K) bool {
	_, added := s.m.PutIfAbsent(item, struct{}{})
	return added
}

// AddAll inserts every item, keeping first occurrences of duplicates.
func (s *Set[K]) AddAll(items ...K) {
	for _, item := range items {
		s.Add(item)
	}
}

// Contains reports whether an equal item is present.
func (s *Set[K]) Contains(item K) bool {
	return s.m.Contains(item)
}

// Get returns the stored item equal to the argument. For keyed sets
// this retrieves the full element from its key fields.
func (s *Set[K]) Get(item K) (K, bool) {
	i, ok := s.m.find(item)
	if !ok {
		var zero K
		return zero, false
	}
	return s.m.slots[i].key, true
}

// Delete removes the item equal to the argument, reporting whether the
// set changed.
func (s *Set[K]) Delete(item K) bool {
	_, ok := s.m.Delete(item)
	return ok
}

// Len returns the number of items in the set.
func (s *Set[K]) Len() int {
	return s.m.Len()
}

// IsEmpty reports whether the set has no items.
func (s *Set[K]) IsEmpty() bool {
	return s.m.IsEmpty()
}

// First returns an arbitrary item, ok=false if the set is empty.
func (s *Set[K]) First() (K, bool) {
	k, _, ok := s.m.First()
	return k, ok
}

// All calls yield for each item in the set until yield returns false.
func (s *Set[K]) All(yield func(item K) bool) {
	s.m.Keys(yield)
}

// Iter returns an iteration handle over the set. Handles come from the
// same two-slot pool as Map handles; see Iterator.
func (s *Set[K]) Iter() SetIterator[K] {
	return SetIterator[K]{it: s.m.Iter()}
}

// Clone returns a copy of the set sharing the original's strategy and
// configuration.
func (s *Set[K]) Clone() *Set[K] {
	return &Set[K]{m: s.m.Clone()}
}

// Clear removes all items, keeping the current slot array.
func (s *Set[K]) Clear() {
	s.m.Clear()
}

// ClearTo removes all items and resizes the table to hold capacity
// items.
func (s *Set[K]) ClearTo(capacity int) {
	s.m.ClearTo(capacity)
}

// EnsureCapacity grows the table, if necessary, so that additional more
// items fit without a resize.
func (s *Set[K]) EnsureCapacity(additional int) {
	s.m.EnsureCapacity(additional)
}

// Shrink reallocates the table at the capacity needed for maxCapacity
// items, or for the current size if that is larger.
func (s *Set[K]) Shrink(maxCapacity int) {
	s.m.Shrink(maxCapacity)
}
