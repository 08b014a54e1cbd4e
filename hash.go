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
	"hash/maphash"
	"math/bits"
)

// defaultHash returns a hash function for a comparable key type, backed
// by hash/maphash with a fresh per-table seed. Two tables over the same
// key type hash differently, which keeps a key sequence that floods one
// table from flooding another.
func defaultHash[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

func defaultEqual[K comparable](a, b K) bool {
	return a == b
}

// mix spreads a raw hash across all bits using a fixed rotation mix.
// Masking to the table capacity keeps only low bits, so low-quality
// hashes (sequential ints, pointers) need their high bits folded in.
// The mix is stateless: unlike a seeded multiplier there is nothing to
// store or rotate on resize.
func mix(h uint64) uint64 {
	return h ^ bits.RotateLeft64(h, 9) ^ bits.RotateLeft64(h, 21)
}

// multipliers is a curated table of odd 64-bit constants with good
// avalanche behavior under Fibonacci-style hashing. Tables configured
// with WithRotatingMultiplier advance through it on every growth, so a
// key sequence crafted to collide at one capacity stops colliding after
// the next resize. The first entry is 2^64 divided by the golden ratio.
var multipliers = [...]uint64{
	0x9E3779B97F4A7C15,
	0xD1B54A32D192ED03,
	0xABC98388FB8FAC03,
	0x8CB92BA72F3D8DD7,
	0xAEF17502108EF2D9,
	0xF1357AEA2E62A9C5,
	0x9FB21C651E98DF25,
	0xC2B2AE3D27D4EB4F,
	0x94D049BB133111EB,
	0xBF58476D1CE4E5B9,
	0xFF51AFD7ED558CCD,
	0xC4CEB9FE1A85EC53,
	0x8EBC6AF09C88C6E3,
	0x589965CC75374CC3,
	0xA24BAED4963EE407,
	0x9FB504F32D6A2E43,
}

// place computes the slot index for a raw hash at the current capacity.
func (m *Map[K, V]) place(h uint64) uint64 {
	if m.multiplier != 0 {
		return (h * m.multiplier) >> m.shift
	}
	return mix(h) & m.mask
}

// rotateMultiplier advances the evolving multiplier. A no-op for tables
// using the default fixed mix.
func (m *Map[K, V]) rotateMultiplier() {
	if m.multiplier == 0 {
		return
	}
	m.multIndex = (m.multIndex + 1) % len(multipliers)
	m.multiplier = multipliers[m.multIndex]
}

// tableSize returns the smallest power-of-two capacity whose growth
// threshold exceeds n, i.e. the capacity at which n entries fit without
// triggering a resize. A zero n yields a zero capacity: the table
// allocates lazily on first insert.
func tableSize(n int, f float64) uint64 {
	if n <= 0 {
		return 0
	}
	capacity := uint64(2)
	for threshold(capacity, f) <= uint64(n) {
		capacity <<= 1
	}
	return capacity
}

// threshold is the live count at which a table of the given capacity
// must grow.
func threshold(capacity uint64, f float64) uint64 {
	return uint64(float64(capacity) * f)
}
