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

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// toBuiltinMap returns the elements as a map[K]V. Useful for testing.
// A free function rather than a method: Map constrains K only to any,
// but a builtin map key needs comparable.
func toBuiltinMap[K comparable, V any](m *Map[K, V]) map[K]V {
	r := make(map[K]V)
	m.All(func(k K, v V) bool {
		r[k] = v
		return true
	})
	return r
}

// randElement relies on unspecified iteration order to give us an
// arbitrary element. The elements are not selected uniformly.
func (m *Map[K, V]) randElement() (key K, value V, ok bool) {
	m.All(func(k K, v V) bool {
		key, value = k, v
		ok = true
		return false
	})
	return
}

func TestBasic(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		const count = 100

		e := make(map[int]int)
		require.EqualValues(t, 0, m.Len())
		require.True(t, m.IsEmpty())

		// Non-existent.
		for i := 0; i < count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
			require.False(t, m.Contains(i))
		}

		// Insert.
		for i := 0; i < count; i++ {
			_, replaced := m.Put(i, i+count)
			require.False(t, replaced)
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, i+1, m.Len())
			require.Equal(t, e, toBuiltinMap(m))
		}

		// Update.
		for i := 0; i < count; i++ {
			prev, replaced := m.Put(i, i+2*count)
			require.True(t, replaced)
			require.EqualValues(t, i+count, prev)
			e[i] = i + 2*count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+2*count, v)
			require.EqualValues(t, count, m.Len())
			require.Equal(t, e, toBuiltinMap(m))
		}

		// Delete.
		for i := 0; i < count; i++ {
			v, ok := m.Delete(i)
			require.True(t, ok)
			require.EqualValues(t, i+2*count, v)
			delete(e, i)
			require.EqualValues(t, count-i-1, m.Len())
			_, ok = m.Get(i)
			require.False(t, ok)
			require.Equal(t, e, toBuiltinMap(m))
		}

		// Deleting a vanished key is not an error.
		_, ok := m.Delete(0)
		require.False(t, ok)
	}

	t.Run("normal", func(t *testing.T) {
		test(t, New[int, int](0))
	})

	t.Run("preallocated", func(t *testing.T) {
		test(t, New[int, int](100))
	})

	t.Run("rotating-multiplier", func(t *testing.T) {
		test(t, New[int, int](0, WithRotatingMultiplier[int, int]()))
	})

	t.Run("degenerate", func(t *testing.T) {
		// A constant hash piles every key into a single probe cluster.
		// The table must stay correct, just slow.
		testDegenerate := func(t *testing.T, h uint64) {
			m := NewFunc[int, int](
				func(int) uint64 { return h },
				func(a, b int) bool { return a == b },
				0)
			test(t, m)
		}

		for _, v := range []uint64{0, ^uint64(0)} {
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				testDegenerate(t, v)
			})
		}
		for i := 0; i < 4; i++ {
			v := rand.Uint64()
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				testDegenerate(t, v)
			})
		}
	})
}

func TestRandom(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int], ops int) {
		e := make(map[int]int)
		for i := 0; i < ops; i++ {
			switch r := rand.Float64(); {
			case r < 0.5: // 50% inserts
				k, v := rand.Int(), rand.Int()
				m.Put(k, v)
				e[k] = v
			case r < 0.65: // 15% updates
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					v := rand.Int()
					m.Put(k, v)
					e[k] = v
				}
			case r < 0.80: // 15% deletes
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					m.Delete(k)
					delete(e, k)
				}
			case r < 0.95: // 15% lookups
				if k, v, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.EqualValues(t, e[k], v)
				}
			default: // 5% shrink and full compare
				m.Shrink(m.Len())
				require.Equal(t, e, toBuiltinMap(m))
			}
			require.EqualValues(t, len(e), m.Len())
		}
		require.Equal(t, e, toBuiltinMap(m))
	}

	t.Run("normal", func(t *testing.T) {
		test(t, New[int, int](0), 10000)
	})

	t.Run("rotating-multiplier", func(t *testing.T) {
		test(t, New[int, int](0, WithRotatingMultiplier[int, int]()), 10000)
	})

	t.Run("degenerate", func(t *testing.T) {
		for _, v := range []uint64{0, ^uint64(0)} {
			t.Run(fmt.Sprintf("%016x", v), func(t *testing.T) {
				m := NewFunc[int, int](
					func(int) uint64 { return v },
					func(a, b int) bool { return a == b },
					0)
				test(t, m, 1000)
			})
		}
	})
}

func TestDuplicateInserts(t *testing.T) {
	m := New[int, int](4)
	for _, k := range []int{5, 21, 5, 37} {
		m.Put(k, k)
	}
	require.EqualValues(t, 3, m.Len())
	require.True(t, m.Contains(5))
	require.True(t, m.Contains(21))
	require.True(t, m.Contains(37))
	require.False(t, m.Contains(6))
}

func TestRemovalClosure(t *testing.T) {
	// Three keys sharing one ideal slot form a single cluster. Removing
	// the middle one must backward-shift the tail so the remaining keys
	// stay reachable in short probes.
	m := NewFunc[int, int](
		func(int) uint64 { return 0 },
		func(a, b int) bool { return a == b },
		8)
	m.Put(1, 10)
	m.Put(2, 20)
	m.Put(3, 30)

	_, ok := m.Delete(2)
	require.True(t, ok)

	require.False(t, m.Contains(2))
	require.True(t, m.Contains(1))
	require.True(t, m.Contains(3))
	require.LessOrEqual(t, m.probeLength(1), 2)
	require.LessOrEqual(t, m.probeLength(3), 2)

	v, ok := m.Get(3)
	require.True(t, ok)
	require.EqualValues(t, 30, v)
}

func TestGrowthStability(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		lastCapacity := m.capacity()
		for i := 0; i < 1000; i++ {
			m.Put(i, i)
			if c := m.capacity(); c != lastCapacity {
				// A growth event: every previously inserted key must have
				// survived the rehash.
				for j := 0; j <= i; j++ {
					v, ok := m.Get(j)
					require.True(t, ok, "key %d lost growing to capacity %d", j, c)
					require.EqualValues(t, j, v)
				}
				lastCapacity = c
			}
		}
		require.EqualValues(t, 1000, m.Len())
	}

	t.Run("fixed-mix", func(t *testing.T) {
		test(t, New[int, int](0))
	})
	t.Run("rotating-multiplier", func(t *testing.T) {
		test(t, New[int, int](0, WithRotatingMultiplier[int, int]()))
	})
	t.Run("full-load-factor", func(t *testing.T) {
		test(t, New[int, int](0, WithLoadFactor[int, int](1.0)))
	})
}

func TestProbeBound(t *testing.T) {
	// 1800 entries settle in a 2048-slot table at load factor 0.9, just
	// below the growth threshold.
	m := New[int, int](0, WithLoadFactor[int, int](0.9))
	live := make([]int, 0, 1800)
	next := 0
	for i := 0; i < 1800; i++ {
		m.Put(next, next)
		live = append(live, next)
		next++
	}

	// Churn at a steady size, then verify the average probe length over
	// every live key stays small.
	for i := 0; i < 10000; i++ {
		j := rand.Intn(len(live))
		m.Delete(live[j])
		live[j] = next
		m.Put(next, next)
		next++
	}

	total := 0
	for _, k := range live {
		pl := m.probeLength(k)
		require.Greater(t, pl, 0)
		total += pl
	}
	avg := float64(total) / float64(len(live))
	require.Less(t, avg, 16.0, "average probe length %f", avg)
}

func TestPutIfAbsent(t *testing.T) {
	m := New[string, int](0)

	v, added := m.PutIfAbsent("a", 1)
	require.True(t, added)
	require.EqualValues(t, 1, v)

	v, added = m.PutIfAbsent("a", 2)
	require.False(t, added)
	require.EqualValues(t, 1, v)
	require.EqualValues(t, 1, m.Len())
}

func TestGetOrDefault(t *testing.T) {
	m := New[string, int](0)
	m.Put("a", 1)
	require.EqualValues(t, 1, m.GetOrDefault("a", -1))
	require.EqualValues(t, -1, m.GetOrDefault("b", -1))
}

func TestFirst(t *testing.T) {
	m := New[int, int](0)
	_, _, ok := m.First()
	require.False(t, ok)

	m.Put(42, 84)
	k, v, ok := m.First()
	require.True(t, ok)
	require.EqualValues(t, 42, k)
	require.EqualValues(t, 84, v)

	for i := 0; i < 10; i++ {
		m.Put(i, i)
	}
	k, v, ok = m.First()
	require.True(t, ok)
	ev, eok := m.Get(k)
	require.True(t, eok)
	require.EqualValues(t, ev, v)
}

func TestClear(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}

	capacity := m.capacity()
	m.Clear()
	require.EqualValues(t, 0, m.Len())
	require.EqualValues(t, capacity, m.capacity())

	m.All(func(k, v int) bool {
		require.Fail(t, "should not iterate")
		return true
	})

	// The cleared table remains usable.
	m.Put(1, 2)
	require.EqualValues(t, 1, m.Len())
}

func TestClearTo(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}

	big := m.capacity()
	m.ClearTo(8)
	require.EqualValues(t, 0, m.Len())
	require.Less(t, m.capacity(), big)

	m.Put(1, 2)
	v, ok := m.Get(1)
	require.True(t, ok)
	require.EqualValues(t, 2, v)

	m.ClearTo(0)
	require.EqualValues(t, 0, m.Len())
	require.EqualValues(t, 0, m.capacity())
}

func TestEnsureCapacity(t *testing.T) {
	m := New[int, int](0)
	m.EnsureCapacity(1000)

	capacity := m.capacity()
	require.Greater(t, capacity, 0)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	require.EqualValues(t, capacity, m.capacity())
}

func TestShrink(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	for i := 10; i < 1000; i++ {
		m.Delete(i)
	}

	grown := m.capacity()
	m.Shrink(0)
	require.Less(t, m.capacity(), grown)
	require.EqualValues(t, 10, m.Len())
	for i := 0; i < 10; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.EqualValues(t, i, v)
	}

	// Shrink never reallocates below what the live count requires.
	m.Shrink(0)
	require.Greater(t, m.capacity(), m.Len())
}

func TestArgumentErrors(t *testing.T) {
	require.PanicsWithValue(t, ErrInvalidLoadFactor, func() {
		New[int, int](0, WithLoadFactor[int, int](0))
	})
	require.PanicsWithValue(t, ErrInvalidLoadFactor, func() {
		New[int, int](0, WithLoadFactor[int, int](1.5))
	})
	require.PanicsWithValue(t, ErrNegativeCapacity, func() {
		New[int, int](-1)
	})

	m := New[int, int](0)
	m.Put(1, 1)
	require.PanicsWithValue(t, ErrNegativeCapacity, func() { m.EnsureCapacity(-1) })
	require.PanicsWithValue(t, ErrNegativeCapacity, func() { m.ClearTo(-1) })
	require.PanicsWithValue(t, ErrNegativeCapacity, func() { m.Shrink(-1) })
	// Failed validation must leave the table untouched.
	require.EqualValues(t, 1, m.Len())
	require.True(t, m.Contains(1))
}

func TestClone(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}

	c := m.Clone()
	require.Equal(t, toBuiltinMap(m), toBuiltinMap(c))

	// Mutations do not leak between the copies.
	c.Put(1000, 1000)
	m.Delete(0)
	require.True(t, c.Contains(0))
	require.False(t, m.Contains(1000))
}

func TestNewFromMap(t *testing.T) {
	src := map[string]int{"a": 1, "b": 2, "c": 3}
	m := NewFromMap(src)
	require.Equal(t, src, toBuiltinMap(m))
}

func TestPutAll(t *testing.T) {
	a := New[int, int](0)
	b := New[int, int](0)
	for i := 0; i < 10; i++ {
		a.Put(i, i)
		b.Put(i+5, -i)
	}
	a.PutAll(b)
	require.EqualValues(t, 15, a.Len())
	v, _ := a.Get(7)
	require.EqualValues(t, -2, v)
}

type countingAllocator[K, V any] struct {
	alloc int
	free  int
}

func (a *countingAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	a.alloc++
	return make([]Slot[K, V], n)
}

func (a *countingAllocator[K, V]) FreeSlots(_ []Slot[K, V]) {
	a.free++
}

func TestAllocator(t *testing.T) {
	a := &countingAllocator[int, int]{}
	m := New[int, int](0, WithAllocator[int, int](a))

	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}

	require.Greater(t, a.alloc, 0)
	require.EqualValues(t, a.alloc-1, a.free)

	m.Close()
	require.EqualValues(t, a.alloc, a.free)

	// Close is idempotent.
	m.Close()
	require.EqualValues(t, a.alloc, a.free)
}

func TestRotatingMultiplier(t *testing.T) {
	m := New[int, int](0, WithRotatingMultiplier[int, int]())
	first := m.multiplier
	require.NotZero(t, first)

	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	require.NotEqual(t, first, m.multiplier, "multiplier should rotate across growths")
	for i := 0; i < 1000; i++ {
		require.True(t, m.Contains(i))
	}
}

func TestTableSize(t *testing.T) {
	testCases := []struct {
		n        int
		f        float64
		expected uint64
	}{
		{0, 0.8, 0},
		{1, 0.8, 4},
		{3, 0.8, 8},
		{4, 0.8, 8},
		{6, 0.8, 16},
		{896, 0.8, 2048},
		{4, 1.0, 8},
		{7, 1.0, 8},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			got := tableSize(c.n, c.f)
			require.EqualValues(t, c.expected, got)
			if c.n > 0 {
				require.Greater(t, threshold(got, c.f), uint64(c.n))
			}
		})
	}
}
