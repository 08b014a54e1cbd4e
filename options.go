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

// Option provides an interface to do work on a Map while it is being
// created. The hash/equality strategy is deliberately not an Option:
// changing the strategy of a live table would invalidate every slot
// position, so the strategy is bound once by New or NewFunc.
type Option[K, V any] interface {
	apply(m *Map[K, V])
}

type loadFactorOption[K, V any] struct {
	f float64
}

func (op loadFactorOption[K, V]) apply(m *Map[K, V]) {
	if op.f <= 0 || op.f > 1 {
		panic(ErrInvalidLoadFactor)
	}
	m.loadFactor = op.f
}

// WithLoadFactor is an option to specify the load factor of a Map. The
// table doubles once the live count reaches ⌊capacity·f⌋. The default
// is 0.8. Factors outside (0, 1] panic with ErrInvalidLoadFactor.
func WithLoadFactor[K, V any](f float64) Option[K, V] {
	return loadFactorOption[K, V]{f}
}

type rotatingMultiplierOption[K, V any] struct{}

func (op rotatingMultiplierOption[K, V]) apply(m *Map[K, V]) {
	m.multiplier = multipliers[0]
}

// WithRotatingMultiplier is an option that switches slot placement from
// the default fixed rotation mix to a multiplicative hash whose
// constant advances through a curated table on every growth. A key
// sequence chosen to collide at one capacity stops colliding after the
// next resize, which hardens the table against adversarial keys at the
// cost of one word of per-table state.
func WithRotatingMultiplier[K, V any]() Option[K, V] {
	return rotatingMultiplierOption[K, V]{}
}

// Allocator specifies an interface for allocating and releasing the
// slot array backing a Map. The default allocator uses Go's builtin
// make() and lets the GC reclaim memory.
//
// If the allocator manually manages memory then Map.Close must be
// called to ensure FreeSlots is invoked for the final slot array.
type Allocator[K, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a
// Map.
func WithAllocator[K, V any](allocator Allocator[K, V]) Option[K, V] {
	return allocatorOption[K, V]{allocator}
}
