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

// Package flathash provides allocation-lean, cache-friendly hash
// containers: maps and sets built on a single open-addressing engine,
// plus insertion-ordered variants layered on top of it.
//
// # Engine
//
// The engine stores all entries in one flat, power-of-two sized slot
// array and resolves collisions by linear probing: a lookup for key k
// starts at place(k) and walks forward (wrapping at the end) until it
// finds an equal key or an empty slot. Slot occupancy is tracked by a
// bitmap parallel to the slot array, so no key value is reserved as an
// in-array empty marker and zero keys need no special casing.
//
// Deletion is tombstone-free. Vacating a slot would break the "absence
// is proven by an empty slot" rule for any later cluster member that
// probed across it, so removal closes the gap by shifting such members
// backward into it (backward-shift deletion). Probe sequences never
// accumulate dead markers and the table's performance does not degrade
// under sustained insert/delete churn.
//
// Growth always doubles the capacity once the live count reaches
// ⌊capacity·loadFactor⌋ and reinserts every live entry through a
// no-duplicate-check fast path. Tables never shrink on their own;
// Shrink and ClearTo reallocate on request.
//
// # Hashing
//
// place(k) mixes the key's hash through a fixed bit-rotation XOR before
// masking to the capacity, which spreads low-quality hashes without any
// per-table state. Tables built with WithRotatingMultiplier instead use
// a multiplicative hash whose constant rotates on every growth, for
// callers worried about adversarially chosen key sequences. New uses
// the hash/maphash hasher for the key type with a per-table seed;
// NewFunc accepts an arbitrary hash/equality pair, which is how the
// extractor-keyed and filtered-string containers are built.
//
// A Map is NOT goroutine-safe.
package flathash

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

const defaultLoadFactor = 0.8

// minCapacity is the slot array size allocated on the first insert into
// a lazily initialized table.
const minCapacity = 2

// Slot holds a key and value.
type Slot[K, V any] struct {
	key   K
	value V
}

// Map is an unordered map from keys to values with Put, Get, Delete and
// All operations, backed by a linear-probing open-addressing table with
// backward-shift deletion. The zero value for a Map is not usable; use
// New or NewFunc.
//
// A Map is NOT goroutine-safe.
type Map[K, V any] struct {
	// The strategy pair. Bound at construction and immutable thereafter:
	// every slot position depends on hash, and every probe depends on
	// equal.
	hash  func(K) uint64
	equal func(a, b K) bool
	// The allocator to use for the slot array.
	allocator Allocator[K, V]
	// slots is capacity in length; live has one bit per slot. Both are
	// nil until the first insert when the map is created with zero
	// capacity.
	slots []Slot[K, V]
	live  *bitset.BitSet
	// capacity-1; capacity is always a power of two so masking replaces
	// modulo when the probe wraps.
	mask uint64
	// 64 - log2(capacity), used by the rotating-multiplier placement.
	shift uint
	// The number of live entries. Always < capacity.
	count int
	// The live count at which the table doubles: ⌊capacity·loadFactor⌋.
	threshold  uint64
	loadFactor float64
	// Non-zero iff WithRotatingMultiplier was set. Advances through the
	// multipliers table on every growth.
	multiplier uint64
	multIndex  int
	// Iterator handle pool: two epoch slots handed out alternately. See
	// Iter.
	iterEpoch [2]uint64
	iterNext  uint8
}

// New constructs a Map sized to hold initialCapacity entries without
// growing. If initialCapacity is 0 the map starts with no slot array
// and allocates on the first insert. Keys are hashed with hash/maphash
// under a fresh per-map seed and compared with ==.
func New[K comparable, V any](initialCapacity int, opts ...Option[K, V]) *Map[K, V] {
	return NewFunc[K, V](defaultHash[K](), defaultEqual[K], initialCapacity, opts...)
}

// NewFunc constructs a Map with an explicit hash/equality strategy. The
// pair must agree (equal(a, b) implies hash(a) == hash(b)) and both
// functions must be pure; violating either makes the table behave
// erratically. NewFunc is the building block for indirect (extractor)
// keys and filtered string keys.
func NewFunc[K, V any](
	hash func(K) uint64, equal func(a, b K) bool, initialCapacity int, opts ...Option[K, V],
) *Map[K, V] {
	if initialCapacity < 0 {
		panic(ErrNegativeCapacity)
	}
	m := &Map[K, V]{
		hash:       hash,
		equal:      equal,
		allocator:  defaultAllocator[K, V]{},
		loadFactor: defaultLoadFactor,
	}
	for _, op := range opts {
		op.apply(m)
	}
	if c := tableSize(initialCapacity, m.loadFactor); c > 0 {
		m.rebuild(c)
	}
	m.checkInvariants()
	return m
}

// NewFromMap constructs a Map holding a copy of the entries of a
// builtin map.
func NewFromMap[K comparable, V any](src map[K]V, opts ...Option[K, V]) *Map[K, V] {
	m := New[K, V](len(src), opts...)
	for k, v := range src {
		m.Put(k, v)
	}
	return m
}

// Clone returns a copy of the map sharing the original's strategy,
// allocator and configuration. The slot array is copied, not shared.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hash:       m.hash,
		equal:      m.equal,
		allocator:  m.allocator,
		mask:       m.mask,
		shift:      m.shift,
		count:      m.count,
		threshold:  m.threshold,
		loadFactor: m.loadFactor,
		multiplier: m.multiplier,
		multIndex:  m.multIndex,
	}
	if m.slots != nil {
		c.slots = c.allocator.AllocSlots(len(m.slots))
		copy(c.slots, m.slots)
		c.live = m.live.Clone()
	}
	return c
}

// Close closes the map, releasing the slot array back to its configured
// allocator. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed,
// though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
		m.slots = nil
		m.live = nil
		m.count = 0
		m.mask = 0
		m.threshold = 0
	}
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting the value if an entry
// with the same key already exists. On overwrite it returns the prior
// value and true; the stored key itself is never replaced. On insert it
// returns the zero value and false.
func (m *Map[K, V]) Put(key K, value V) (prev V, replaced bool) {
	if len(m.slots) == 0 {
		m.rebuild(minCapacity)
	}
	i := m.place(m.hash(key))
	for m.live.Test(uint(i)) {
		if m.equal(key, m.slots[i].key) {
			prev = m.slots[i].value
			m.slots[i].value = value
			m.checkInvariants()
			return prev, true
		}
		i = (i + 1) & m.mask
	}
	m.slots[i] = Slot[K, V]{key: key, value: value}
	m.live.Set(uint(i))
	m.count++
	m.maybeGrow()
	m.checkInvariants()
	return prev, false
}

// PutIfAbsent inserts an entry only if no entry with an equal key
// exists. It returns the value now associated with the key and whether
// the insert happened. An existing entry is left untouched, key
// included.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	if len(m.slots) == 0 {
		m.rebuild(minCapacity)
	}
	i := m.place(m.hash(key))
	for m.live.Test(uint(i)) {
		if m.equal(key, m.slots[i].key) {
			return m.slots[i].value, false
		}
		i = (i + 1) & m.mask
	}
	m.slots[i] = Slot[K, V]{key: key, value: value}
	m.live.Set(uint(i))
	m.count++
	m.maybeGrow()
	m.checkInvariants()
	return value, true
}

// PutAll inserts every entry of other into m, overwriting values of
// existing keys.
func (m *Map[K, V]) PutAll(other *Map[K, V]) {
	other.All(func(k K, v V) bool {
		m.Put(k, v)
		return true
	})
}

// Get retrieves the value for the specified key, returning ok=false if
// the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return value, false
	}
	return m.slots[i].value, true
}

// GetOrDefault retrieves the value for the specified key, returning
// def if the key is not present.
func (m *Map[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	return def
}

// Contains reports whether the map holds an entry with an equal key.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.find(key)
	return ok
}

// Delete deletes the entry corresponding to the specified key, closing
// the probe gap by backward-shifting later cluster members. It returns
// the removed value and whether an entry was removed; deleting a
// non-existent key is not an error.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	i, ok := m.find(key)
	if !ok {
		var zero V
		return zero, false
	}
	v := m.slots[i].value
	m.removeSlot(i, nil)
	m.checkInvariants()
	return v, true
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.count
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.count == 0
}

// First returns an arbitrary entry of the map, ok=false if the map is
// empty. Which entry is returned is stable between mutations but
// otherwise unspecified.
func (m *Map[K, V]) First() (key K, value V, ok bool) {
	if m.count == 0 {
		return key, value, false
	}
	i, _ := m.live.NextSet(0)
	return m.slots[i].key, m.slots[i].value, true
}

// All calls yield for each key and value present in the map, in slot
// order, until yield returns false. All is usable in a range-over-func
// statement. Mutating the map during iteration is undefined except
// through Iterator.Remove; use Iter for that.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	if m.live == nil {
		return
	}
	// Snapshot the slot array and bitmap so iteration keeps walking the
	// old arrays if the map is resized mid-flight.
	slots, live := m.slots, m.live
	for i, ok := live.NextSet(0); ok; i, ok = live.NextSet(i + 1) {
		if !yield(slots[i].key, slots[i].value) {
			return
		}
	}
}

// Keys calls yield for each key in the map until yield returns false.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// Values calls yield for each value in the map until yield returns
// false.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	m.All(func(_ K, v V) bool {
		return yield(v)
	})
}

// Clear removes all entries, keeping the current slot array.
func (m *Map[K, V]) Clear() {
	if m.slots != nil {
		clear(m.slots)
		m.live.ClearAll()
	}
	m.count = 0
	m.checkInvariants()
}

// ClearTo removes all entries and resizes the table to hold capacity
// entries, releasing the old slot array if the size changes. A negative
// capacity panics with ErrNegativeCapacity.
func (m *Map[K, V]) ClearTo(capacity int) {
	if capacity < 0 {
		panic(ErrNegativeCapacity)
	}
	target := tableSize(capacity, m.loadFactor)
	if target == uint64(len(m.slots)) {
		m.Clear()
		return
	}
	old := m.slots
	m.slots = nil
	m.live = nil
	m.count = 0
	m.mask = 0
	m.threshold = 0
	if target > 0 {
		m.setupArrays(target)
	}
	if old != nil {
		m.allocator.FreeSlots(old)
	}
	m.checkInvariants()
}

// EnsureCapacity grows the table, if necessary, so that additional more
// entries fit without triggering a resize. A negative count panics with
// ErrNegativeCapacity.
func (m *Map[K, V]) EnsureCapacity(additional int) {
	if additional < 0 {
		panic(ErrNegativeCapacity)
	}
	if target := tableSize(m.count+additional, m.loadFactor); target > uint64(len(m.slots)) {
		m.rebuild(target)
	}
	m.checkInvariants()
}

// Shrink reallocates the table at the capacity needed for maxCapacity
// entries, or for the current live count if that is larger. Shrink
// always reallocates and rehashes, even when the capacity is unchanged.
// A negative maxCapacity panics with ErrNegativeCapacity.
func (m *Map[K, V]) Shrink(maxCapacity int) {
	if maxCapacity < 0 {
		panic(ErrNegativeCapacity)
	}
	n := maxCapacity
	if m.count > n {
		n = m.count
	}
	m.rebuild(tableSize(n, m.loadFactor))
	m.checkInvariants()
}

// capacity returns the slot array length. Exposed for tests.
func (m *Map[K, V]) capacity() int {
	return len(m.slots)
}

// find returns the slot index holding an equal key. Absence is proven
// by reaching an empty slot, which backward-shift deletion guarantees
// never appears inside a probe cluster.
func (m *Map[K, V]) find(key K) (uint64, bool) {
	if m.count == 0 {
		return 0, false
	}
	i := m.place(m.hash(key))
	for m.live.Test(uint(i)) {
		if m.equal(key, m.slots[i].key) {
			return i, true
		}
		i = (i + 1) & m.mask
	}
	return 0, false
}

// removeSlot empties slot i using backward-shift deletion: every later
// cluster member that could no longer be found across the gap is
// shifted into it, and the gap advances to the member's old slot until
// an empty slot ends the cluster. It returns the slot left empty, which
// is i itself only when nothing needed to shift. moved, when non-nil,
// is called once per shifted entry with its old and new slot; iterators
// use it to keep their cursors aligned. The caller is expected to run
// checkInvariants.
func (m *Map[K, V]) removeSlot(i uint64, moved func(src, dst uint64)) uint64 {
	mask := m.mask
	j := i
	for {
		j = (j + 1) & mask
		if !m.live.Test(uint(j)) {
			break
		}
		// The key at j can move into the gap iff its ideal slot does not
		// lie between the gap (exclusive) and j: moving it otherwise
		// would place it before its own probe start.
		p := m.place(m.hash(m.slots[j].key))
		if (j-p)&mask > (i-p)&mask {
			m.slots[i] = m.slots[j]
			if moved != nil {
				moved(j, i)
			}
			i = j
		}
	}
	m.slots[i] = Slot[K, V]{}
	m.live.Clear(uint(i))
	m.count--
	return i
}

// maybeGrow doubles the table while the live count is at or above the
// growth threshold. Doubling runs to completion inside the triggering
// insert; growth is never amortized across calls.
func (m *Map[K, V]) maybeGrow() {
	for uint64(m.count) >= m.threshold {
		m.rebuild(uint64(len(m.slots)) * 2)
	}
}

// rebuild reallocates the slot array at newCapacity (a power of two)
// and reinserts every live entry, recomputing placements. Reinsertion
// uses uncheckedPut: the entries are known to be distinct, so no
// equality checks are needed. Rotating-multiplier tables advance their
// constant first so the new placements use the new constant.
func (m *Map[K, V]) rebuild(newCapacity uint64) {
	oldSlots, oldLive := m.slots, m.live
	m.rotateMultiplier()
	m.slots = nil
	m.live = nil
	if newCapacity > 0 {
		m.setupArrays(newCapacity)
		if oldLive != nil {
			for i, ok := oldLive.NextSet(0); ok; i, ok = oldLive.NextSet(i + 1) {
				m.uncheckedPut(oldSlots[i].key, oldSlots[i].value)
			}
		}
	} else {
		m.mask = 0
		m.threshold = 0
	}
	if oldSlots != nil {
		m.allocator.FreeSlots(oldSlots)
	}
}

// setupArrays installs fresh empty arrays at the given power-of-two
// capacity and recomputes the derived fields.
func (m *Map[K, V]) setupArrays(capacity uint64) {
	m.slots = m.allocator.AllocSlots(int(capacity))
	m.live = bitset.New(uint(capacity))
	m.mask = capacity - 1
	m.shift = uint(64 - bits.TrailingZeros64(capacity))
	m.threshold = threshold(capacity, m.loadFactor)
}

// uncheckedPut inserts an entry known not to be in the table.
func (m *Map[K, V]) uncheckedPut(key K, value V) {
	i := m.place(m.hash(key))
	for m.live.Test(uint(i)) {
		i = (i + 1) & m.mask
	}
	m.slots[i] = Slot[K, V]{key: key, value: value}
	m.live.Set(uint(i))
}

// probeLength returns the number of slots inspected to find key,
// including the final hit. Used by tests to bound cluster growth.
func (m *Map[K, V]) probeLength(key K) int {
	i, ok := m.find(key)
	if !ok {
		return 0
	}
	p := m.place(m.hash(key))
	return int((i-p)&m.mask) + 1
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.slots == nil {
			if m.count != 0 {
				panic("invariant failed: nil slots with non-zero count")
			}
			return
		}
		capacity := uint64(len(m.slots))
		if capacity&(capacity-1) != 0 {
			panic("invariant failed: capacity is not a power of two")
		}
		if uint64(m.count) >= capacity {
			panic("invariant failed: count must stay below capacity")
		}
		if m.threshold != threshold(capacity, m.loadFactor) {
			panic("invariant failed: stale growth threshold")
		}
		if uint(m.count) != m.live.Count() {
			panic("invariant failed: count disagrees with occupancy bitmap")
		}
		// Every live entry must be reachable from its ideal slot.
		for i, ok := m.live.NextSet(0); ok; i, ok = m.live.NextSet(i + 1) {
			if !m.Contains(m.slots[i].key) {
				panic("invariant failed: live key not reachable by probing")
			}
		}
	}
}
