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

import "errors"

// Programmer errors are reported by panicking with one of the sentinel
// errors below. Absence of a key is never an error: lookups and deletes
// report it through an ok bool.
var (
	// ErrInvalidLoadFactor is the panic value when a load factor outside
	// (0, 1] is configured.
	ErrInvalidLoadFactor = errors.New("flathash: load factor must be in (0, 1]")

	// ErrNegativeCapacity is the panic value when a negative capacity or
	// capacity delta is passed to a constructor, EnsureCapacity, ClearTo,
	// or Shrink.
	ErrNegativeCapacity = errors.New("flathash: capacity must be non-negative")

	// ErrIndexOutOfRange is the panic value for positional operations on
	// ordered containers with an index outside the valid range.
	ErrIndexOutOfRange = errors.New("flathash: index out of range")

	// ErrStaleIterator is the panic value when an iterator handle is used
	// after two newer handles were requested from the same container.
	ErrStaleIterator = errors.New("flathash: iterator invalidated by newer iterators")

	// ErrRemoveBeforeNext is the panic value when Iterator.Remove is
	// called before Next has yielded an entry.
	ErrRemoveBeforeNext = errors.New("flathash: Remove called before Next")
)
