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
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// NewFilteredStringMap constructs a Map keyed by strings compared
// through a filter and an editor: runes rejected by keep are skipped,
// surviving runes are transformed by edit before hashing and
// comparison. Strings differing only in filtered or edited runes
// collide and compare equal; the first-stored string is retained as the
// visible key.
//
// A nil keep accepts every rune, a nil edit is the identity. Both must
// be pure: the same rune must always filter and edit the same way.
//
// A map ignoring non-letters and case-folding to upper case treats
// "Hello!" and "hello" as the same key.
func NewFilteredStringMap[V any](
	keep func(rune) bool, edit func(rune) rune, initialCapacity int, opts ...Option[string, V],
) *Map[string, V] {
	return NewFunc[string, V](
		filteredHash(keep, edit), filteredEqual(keep, edit), initialCapacity, opts...)
}

// NewFilteredStringSet constructs a Set of strings with the same
// filter/editor semantics as NewFilteredStringMap.
func NewFilteredStringSet(
	keep func(rune) bool, edit func(rune) rune, initialCapacity int, opts ...Option[string, struct{}],
) *Set[string] {
	return NewSetFunc[string](
		filteredHash(keep, edit), filteredEqual(keep, edit), initialCapacity, opts...)
}

// filteredHash streams the surviving, edited runes of a string through
// an xxhash digest. Allocation-free: the digest and rune scratch live
// on the stack.
func filteredHash(keep func(rune) bool, edit func(rune) rune) func(string) uint64 {
	return func(s string) uint64 {
		var d xxhash.Digest
		d.Reset()
		var buf [utf8.UTFMax]byte
		for _, r := range s {
			if keep != nil && !keep(r) {
				continue
			}
			if edit != nil {
				r = edit(r)
			}
			n := utf8.EncodeRune(buf[:], r)
			d.Write(buf[:n])
		}
		return d.Sum64()
	}
}

// filteredEqual walks both strings in lockstep, skipping filtered runes
// and comparing edited ones.
func filteredEqual(keep func(rune) bool, edit func(rune) rune) func(a, b string) bool {
	next := func(s string) (rune, string, bool) {
		for len(s) > 0 {
			r, n := utf8.DecodeRuneInString(s)
			s = s[n:]
			if keep != nil && !keep(r) {
				continue
			}
			if edit != nil {
				r = edit(r)
			}
			return r, s, true
		}
		return 0, s, false
	}
	return func(a, b string) bool {
		for {
			ra, restA, okA := next(a)
			rb, restB, okB := next(b)
			if okA != okB {
				return false
			}
			if !okA {
				return true
			}
			if ra != rb {
				return false
			}
			a, b = restA, restB
		}
	}
}
