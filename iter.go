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

// Iterator is a cursor over a Map obtained from Iter. The usage pattern
// is:
//
//	it := m.Iter()
//	for it.Next() {
//		_, _ = it.Key(), it.Value()
//	}
//
// Key and Value are valid only after a call to Next that returned true.
//
// A map hands out at most two live handles, which supports one level of
// nested traversal (for example two independent passes over the same
// map). Requesting a third handle silently invalidates the oldest one;
// any call on an invalidated handle panics with ErrStaleIterator.
//
// Remove is the only mutation that may be interleaved with the
// iterator's own traversal. Any other structural mutation of the map
// during iteration leaves the traversal undefined.
type Iterator[K, V any] struct {
	m     *Map[K, V]
	slot  uint8
	epoch uint64
	// next is the next slot index to examine; current is the slot of the
	// last yielded entry, -1 when no entry is pending.
	next    int
	current int
	// skips holds slots at or past next whose occupants were already
	// yielded. A removal whose backward shift crosses the array end can
	// force a yielded entry into a slot the cursor has not reached yet;
	// Next consumes these slots without yielding them again. Nil until
	// such a removal happens.
	skips []int
}

// Iter returns an iteration handle over the map. Handles are issued
// from a two-slot pool: the third call to Iter invalidates the handle
// issued first, the fourth invalidates the second, and so on.
func (m *Map[K, V]) Iter() Iterator[K, V] {
	s := m.iterNext & 1
	m.iterNext++
	m.iterEpoch[s]++
	return Iterator[K, V]{m: m, slot: s, epoch: m.iterEpoch[s], current: -1}
}

func (it *Iterator[K, V]) check() {
	if it.m.iterEpoch[it.slot] != it.epoch {
		panic(ErrStaleIterator)
	}
}

// Next advances to the next entry, reporting whether one exists.
func (it *Iterator[K, V]) Next() bool {
	it.check()
	m := it.m
	if m.live != nil {
		i, ok := m.live.NextSet(uint(it.next))
		for ok && it.consumeSkip(int(i)) {
			i, ok = m.live.NextSet(i + 1)
		}
		if ok {
			it.current = int(i)
			it.next = int(i) + 1
			return true
		}
	}
	it.current = -1
	it.next = len(m.slots)
	return false
}

// consumeSkip reports whether slot i holds an already yielded entry,
// dropping it from the pending skips.
func (it *Iterator[K, V]) consumeSkip(i int) bool {
	for k, s := range it.skips {
		if s == i {
			it.skips[k] = it.skips[len(it.skips)-1]
			it.skips = it.skips[:len(it.skips)-1]
			return true
		}
	}
	return false
}

// Key returns the key at the iterator's current position. It is only
// valid after a call to Next that returned true.
func (it *Iterator[K, V]) Key() K {
	return it.m.slots[it.current].key
}

// Value returns the value at the iterator's current position. It is
// only valid after a call to Next that returned true.
func (it *Iterator[K, V]) Value() V {
	return it.m.slots[it.current].value
}

// Remove deletes the entry last yielded by Next. This is the one
// structural mutation that is safe during the iterator's own traversal:
// the cursor is adjusted so that no entry is skipped and none is
// yielded twice. The backward shift that closes the probe gap may move
// a not yet visited entry into the vacated slot, in which case the
// cursor rewinds; when the shift wraps the end of the array it may also
// force an already yielded entry past the cursor, in which case that
// slot is recorded and skipped when reached. Calling Remove before
// Next, or twice for one entry, panics with ErrRemoveBeforeNext.
func (it *Iterator[K, V]) Remove() {
	it.check()
	if it.current < 0 {
		panic(ErrRemoveBeforeNext)
	}
	c := it.current
	gap := it.m.removeSlot(uint64(c), func(src, dst uint64) {
		// An entry was yielded iff it sat in a live slot below the
		// cursor or in a pending skip. Only a shift across the array end
		// can land one at or past the rewound cursor.
		yielded := int(src) < c || it.consumeSkip(int(src))
		if yielded && int(dst) >= c {
			it.skips = append(it.skips, int(dst))
		}
	})
	if int(gap) != c {
		// A later cluster member now occupies the vacated slot; revisit
		// it on the next advance.
		it.next = c
	}
	it.current = -1
	it.m.checkInvariants()
}

// SetIterator is a cursor over a Set obtained from Set.Iter. It has the
// same two-handle pool and Remove semantics as Iterator.
type SetIterator[K any] struct {
	it Iterator[K, struct{}]
}

// Next advances to the next item, reporting whether one exists.
func (it *SetIterator[K]) Next() bool {
	return it.it.Next()
}

// Key returns the item at the iterator's current position. It is only
// valid after a call to Next that returned true.
func (it *SetIterator[K]) Key() K {
	return it.it.Key()
}

// Remove deletes the item last yielded by Next.
func (it *SetIterator[K]) Remove() {
	it.it.Remove()
}
