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

import "slices"

// OrderIndex is the auxiliary key sequence behind an ordered container.
// It records iteration order only; hash-derived slot positions live in
// the base table, and resolving an indexed key back to its slot always
// re-derives the placement. Implementations need no knowledge of the
// table. Position lookup by key is deliberately not part of the
// contract: it needs the key equality that lives with the table's
// strategy, so OrderedMap.IndexOf provides it.
type OrderIndex[K any] interface {
	// Insert places key at position i, shifting later keys right.
	Insert(i int, key K)
	// RemoveAt removes and returns the key at position i, shifting later
	// keys left.
	RemoveAt(i int) K
	// Get returns the key at position i.
	Get(i int) K
	// Set replaces the key at position i.
	Set(i int, key K)
	// Len returns the number of recorded keys.
	Len() int
	// Sort reorders the keys by cmp, keeping equal keys in their current
	// relative order.
	Sort(cmp func(a, b K) int)
	// Clear removes all keys.
	Clear()
}

// sliceIndex is the default OrderIndex, a growable slice.
type sliceIndex[K any] struct {
	keys []K
}

func (x *sliceIndex[K]) Insert(i int, key K) {
	x.keys = slices.Insert(x.keys, i, key)
}

func (x *sliceIndex[K]) RemoveAt(i int) K {
	key := x.keys[i]
	x.keys = slices.Delete(x.keys, i, i+1)
	return key
}

func (x *sliceIndex[K]) Get(i int) K { return x.keys[i] }

func (x *sliceIndex[K]) Set(i int, key K) { x.keys[i] = key }

func (x *sliceIndex[K]) Len() int { return len(x.keys) }

func (x *sliceIndex[K]) Sort(cmp func(a, b K) int) {
	slices.SortStableFunc(x.keys, cmp)
}

func (x *sliceIndex[K]) Clear() {
	x.keys = x.keys[:0]
}

// OrderedMap is a Map that additionally maintains an Order Index over
// its keys: iteration, First and the positional operations see keys in
// insertion order unless PutAt, Sort or AlterAt rearranged them.
// Overwriting a key's value keeps its position.
//
// An OrderedMap is NOT goroutine-safe.
type OrderedMap[K, V any] struct {
	m     *Map[K, V]
	index OrderIndex[K]
	// Positional iterator handle pool, independent of the base map's.
	iterEpoch [2]uint64
	iterNext  uint8
}

// NewOrdered constructs an OrderedMap with the default strategy and a
// slice-backed Order Index.
func NewOrdered[K comparable, V any](initialCapacity int, opts ...Option[K, V]) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		m:     New[K, V](initialCapacity, opts...),
		index: &sliceIndex[K]{},
	}
}

// NewOrderedFunc constructs an OrderedMap with an explicit
// hash/equality strategy. See NewFunc for the contract.
func NewOrderedFunc[K, V any](
	hash func(K) uint64, equal func(a, b K) bool, initialCapacity int, opts ...Option[K, V],
) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		m:     NewFunc[K, V](hash, equal, initialCapacity, opts...),
		index: &sliceIndex[K]{},
	}
}

// NewOrderedWithIndex constructs an OrderedMap backed by a
// caller-supplied OrderIndex, which must be empty.
func NewOrderedWithIndex[K comparable, V any](
	index OrderIndex[K], initialCapacity int, opts ...Option[K, V],
) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		m:     New[K, V](initialCapacity, opts...),
		index: index,
	}
}

// Put inserts an entry, appending new keys to the end of the order.
// Overwriting an existing key keeps its position and returns the prior
// value and true.
func (om *OrderedMap[K, V]) Put(key K, value V) (prev V, replaced bool) {
	prev, replaced = om.m.Put(key, value)
	if !replaced {
		om.index.Insert(om.index.Len(), key)
	}
	return prev, replaced
}

// PutAt inserts an entry so that key ends at position i of the
// resulting order, relocating the key if it is already present. i may
// equal Len to place the key last. Out-of-range positions panic with
// ErrIndexOutOfRange before any mutation.
func (om *OrderedMap[K, V]) PutAt(i int, key K, value V) (prev V, replaced bool) {
	if i < 0 || i > om.index.Len() {
		panic(ErrIndexOutOfRange)
	}
	prev, replaced = om.m.Put(key, value)
	if replaced {
		j := om.indexOf(key)
		if j == i {
			return prev, replaced
		}
		om.index.RemoveAt(j)
		if j < i {
			i--
		}
	}
	om.index.Insert(i, key)
	return prev, replaced
}

// Get retrieves the value for the specified key, ok=false if absent.
func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	return om.m.Get(key)
}

// GetOrDefault retrieves the value for the specified key, or def.
func (om *OrderedMap[K, V]) GetOrDefault(key K, def V) V {
	return om.m.GetOrDefault(key, def)
}

// Contains reports whether the map holds an entry with an equal key.
func (om *OrderedMap[K, V]) Contains(key K) bool {
	return om.m.Contains(key)
}

// KeyAt returns the key at order position i. Out-of-range positions
// panic with ErrIndexOutOfRange.
func (om *OrderedMap[K, V]) KeyAt(i int) K {
	om.checkIndex(i)
	return om.index.Get(i)
}

// IndexOf returns the order position of key, -1 if absent. O(n): the
// Order Index keeps no reverse key→position map.
func (om *OrderedMap[K, V]) IndexOf(key K) int {
	if !om.m.Contains(key) {
		return -1
	}
	return om.indexOf(key)
}

// Delete removes the entry for key from the table and the order,
// returning the removed value and whether an entry was removed. O(n)
// due to the order scan.
func (om *OrderedMap[K, V]) Delete(key K) (V, bool) {
	if !om.m.Contains(key) {
		var zero V
		return zero, false
	}
	om.index.RemoveAt(om.indexOf(key))
	return om.m.Delete(key)
}

// DeleteAt removes the entry at order position i, returning its key and
// value. Out-of-range positions panic with ErrIndexOutOfRange.
func (om *OrderedMap[K, V]) DeleteAt(i int) (K, V) {
	om.checkIndex(i)
	key := om.index.RemoveAt(i)
	v, _ := om.m.Delete(key)
	return key, v
}

// Alter renames key before to after, keeping its position and value.
// It returns false without changes if before is absent or after is
// already present. O(n); use AlterAt when the position is known.
func (om *OrderedMap[K, V]) Alter(before, after K) bool {
	if om.m.Contains(after) || !om.m.Contains(before) {
		return false
	}
	return om.AlterAt(om.indexOf(before), after)
}

// AlterAt renames the key at order position i to after, keeping the
// position and value. It returns false without changes if after is
// already present. Out-of-range positions panic with
// ErrIndexOutOfRange.
func (om *OrderedMap[K, V]) AlterAt(i int, after K) bool {
	om.checkIndex(i)
	if om.m.Contains(after) {
		return false
	}
	before := om.index.Get(i)
	v, _ := om.m.Delete(before)
	om.m.Put(after, v)
	om.index.Set(i, after)
	return true
}

// Sort reorders iteration by cmp. Only the Order Index moves; the
// hash-derived slot positions are untouched.
func (om *OrderedMap[K, V]) Sort(cmp func(a, b K) int) {
	om.index.Sort(cmp)
}

// First returns the entry at order position 0, ok=false if the map is
// empty.
func (om *OrderedMap[K, V]) First() (key K, value V, ok bool) {
	if om.index.Len() == 0 {
		return key, value, false
	}
	key = om.index.Get(0)
	value, _ = om.m.Get(key)
	return key, value, true
}

// Len returns the number of entries in the map.
func (om *OrderedMap[K, V]) Len() int {
	return om.m.Len()
}

// IsEmpty reports whether the map has no entries.
func (om *OrderedMap[K, V]) IsEmpty() bool {
	return om.m.IsEmpty()
}

// All calls yield for each entry in order until yield returns false.
// Mutating the map during iteration is undefined except through
// OrderedIterator.Remove.
func (om *OrderedMap[K, V]) All(yield func(key K, value V) bool) {
	for i := 0; i < om.index.Len(); i++ {
		k := om.index.Get(i)
		v, _ := om.m.Get(k)
		if !yield(k, v) {
			return
		}
	}
}

// Keys calls yield for each key in order until yield returns false.
func (om *OrderedMap[K, V]) Keys(yield func(key K) bool) {
	om.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// Values calls yield for each value in key order until yield returns
// false.
func (om *OrderedMap[K, V]) Values(yield func(value V) bool) {
	om.All(func(_ K, v V) bool {
		return yield(v)
	})
}

// Clear removes all entries and the recorded order, keeping the current
// slot array.
func (om *OrderedMap[K, V]) Clear() {
	om.m.Clear()
	om.index.Clear()
}

// ClearTo removes all entries and the recorded order, resizing the
// table to hold capacity entries.
func (om *OrderedMap[K, V]) ClearTo(capacity int) {
	om.m.ClearTo(capacity)
	om.index.Clear()
}

// EnsureCapacity grows the table, if necessary, so that additional more
// entries fit without a resize.
func (om *OrderedMap[K, V]) EnsureCapacity(additional int) {
	om.m.EnsureCapacity(additional)
}

// Shrink reallocates the table at the capacity needed for maxCapacity
// entries, or for the current size if that is larger. The order is
// unaffected.
func (om *OrderedMap[K, V]) Shrink(maxCapacity int) {
	om.m.Shrink(maxCapacity)
}

// Iter returns a positional iteration handle. Handles come from a
// two-slot pool with the same invalidation rules as Map handles.
func (om *OrderedMap[K, V]) Iter() OrderedIterator[K, V] {
	s := om.iterNext & 1
	om.iterNext++
	om.iterEpoch[s]++
	return OrderedIterator[K, V]{om: om, slot: s, epoch: om.iterEpoch[s], current: -1}
}

func (om *OrderedMap[K, V]) checkIndex(i int) {
	if i < 0 || i >= om.index.Len() {
		panic(ErrIndexOutOfRange)
	}
}

// indexOf is IndexOf without the presence pre-check; the key must be
// present.
func (om *OrderedMap[K, V]) indexOf(key K) int {
	for i := 0; i < om.index.Len(); i++ {
		if om.m.equal(om.index.Get(i), key) {
			return i
		}
	}
	return -1
}

// OrderedIterator is a positional cursor over an OrderedMap, yielding
// entries in order. It follows the same two-handle pool and Remove
// semantics as Iterator.
type OrderedIterator[K, V any] struct {
	om      *OrderedMap[K, V]
	slot    uint8
	epoch   uint64
	next    int
	current int
}

func (it *OrderedIterator[K, V]) check() {
	if it.om.iterEpoch[it.slot] != it.epoch {
		panic(ErrStaleIterator)
	}
}

// Next advances to the next entry in order, reporting whether one
// exists.
func (it *OrderedIterator[K, V]) Next() bool {
	it.check()
	if it.next >= it.om.index.Len() {
		it.current = -1
		return false
	}
	it.current = it.next
	it.next++
	return true
}

// Key returns the key at the iterator's current position. It is only
// valid after a call to Next that returned true.
func (it *OrderedIterator[K, V]) Key() K {
	return it.om.index.Get(it.current)
}

// Value returns the value at the iterator's current position. It is
// only valid after a call to Next that returned true.
func (it *OrderedIterator[K, V]) Value() V {
	v, _ := it.om.m.Get(it.Key())
	return v
}

// Remove deletes the entry last yielded by Next and keeps the cursor
// aligned with the shifted order. Calling Remove before Next, or twice
// for one entry, panics with ErrRemoveBeforeNext.
func (it *OrderedIterator[K, V]) Remove() {
	it.check()
	if it.current < 0 {
		panic(ErrRemoveBeforeNext)
	}
	it.om.DeleteAt(it.current)
	it.next = it.current
	it.current = -1
}

// OrderedSet is a Set that maintains insertion order, layered over
// OrderedMap the way Set layers over Map.
//
// An OrderedSet is NOT goroutine-safe.
type OrderedSet[K any] struct {
	om *OrderedMap[K, struct{}]
}

// NewOrderedSet constructs an OrderedSet with the default strategy.
func NewOrderedSet[K comparable](initialCapacity int, opts ...Option[K, struct{}]) *OrderedSet[K] {
	return &OrderedSet[K]{om: NewOrdered[K, struct{}](initialCapacity, opts...)}
}

// NewOrderedSetFunc constructs an OrderedSet with an explicit
// hash/equality strategy.
func NewOrderedSetFunc[K any](
	hash func(K) uint64, equal func(a, b K) bool, initialCapacity int, opts ...Option[K, struct{}],
) *OrderedSet[K] {
	return &OrderedSet[K]{om: NewOrderedFunc[K, struct{}](hash, equal, initialCapacity, opts...)}
}

// Add appends an item to the order if it is not already present,
// reporting whether the set changed.
func (s *OrderedSet[K]) Add(item K) bool {
	if s.om.Contains(item) {
		return false
	}
	s.om.Put(item, struct{}{})
	return true
}

// AddAt inserts an item so that it ends at position i of the resulting
// order, relocating it if already present. It reports whether the set
// grew.
func (s *OrderedSet[K]) AddAt(i int, item K) bool {
	_, replaced := s.om.PutAt(i, item, struct{}{})
	return !replaced
}

// AddAll appends the items in argument order, skipping duplicates.
func (s *OrderedSet[K]) AddAll(items ...K) {
	for _, item := range items {
		s.Add(item)
	}
}

// Contains reports whether an equal item is present.
func (s *OrderedSet[K]) Contains(item K) bool {
	return s.om.Contains(item)
}

// IndexOf returns the order position of item, -1 if absent.
func (s *OrderedSet[K]) IndexOf(item K) int {
	return s.om.IndexOf(item)
}

// ItemAt returns the item at order position i.
func (s *OrderedSet[K]) ItemAt(i int) K {
	return s.om.KeyAt(i)
}

// Delete removes the item equal to the argument, reporting whether the
// set changed.
func (s *OrderedSet[K]) Delete(item K) bool {
	_, ok := s.om.Delete(item)
	return ok
}

// DeleteAt removes and returns the item at order position i.
func (s *OrderedSet[K]) DeleteAt(i int) K {
	k, _ := s.om.DeleteAt(i)
	return k
}

// Alter replaces item before with after, keeping its position. It
// returns false if before is absent or after is already present.
func (s *OrderedSet[K]) Alter(before, after K) bool {
	return s.om.Alter(before, after)
}

// AlterAt replaces the item at order position i with after, keeping the
// position. It returns false if after is already present.
func (s *OrderedSet[K]) AlterAt(i int, after K) bool {
	return s.om.AlterAt(i, after)
}

// Sort reorders iteration by cmp; slot positions are untouched.
func (s *OrderedSet[K]) Sort(cmp func(a, b K) int) {
	s.om.Sort(cmp)
}

// First returns the item at order position 0, ok=false if the set is
// empty.
func (s *OrderedSet[K]) First() (K, bool) {
	k, _, ok := s.om.First()
	return k, ok
}

// Len returns the number of items in the set.
func (s *OrderedSet[K]) Len() int {
	return s.om.Len()
}

// IsEmpty reports whether the set has no items.
func (s *OrderedSet[K]) IsEmpty() bool {
	return s.om.IsEmpty()
}

// All calls yield for each item in order until yield returns false.
func (s *OrderedSet[K]) All(yield func(item K) bool) {
	s.om.Keys(yield)
}

// Iter returns a positional iteration handle over the set.
func (s *OrderedSet[K]) Iter() OrderedSetIterator[K] {
	return OrderedSetIterator[K]{it: s.om.Iter()}
}

// Clear removes all items and the recorded order.
func (s *OrderedSet[K]) Clear() {
	s.om.Clear()
}

// OrderedSetIterator is a positional cursor over an OrderedSet.
type OrderedSetIterator[K any] struct {
	it OrderedIterator[K, struct{}]
}

// Next advances to the next item in order, reporting whether one
// exists.
func (it *OrderedSetIterator[K]) Next() bool {
	return it.it.Next()
}

// Key returns the item at the iterator's current position. It is only
// valid after a call to Next that returned true.
func (it *OrderedSetIterator[K]) Key() K {
	return it.it.Key()
}

// Remove deletes the item last yielded by Next.
func (it *OrderedSetIterator[K]) Remove() {
	it.it.Remove()
}
