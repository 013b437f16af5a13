// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package atom implements the content-addressed string interner ("atom
// table") that every RDF term in a quad store is resolved through. The
// design is a hash-bucket index over an append-only byte arena, the same
// shape as an ion symbol table (see github.com/SnellerInc/sneller's
// ion/symtab.go): a term's bytes are hashed, the hash indexes into a
// bucket of candidate slots, and byte-equal candidates are deduplicated.
// Unlike ion's symbol table, bucket hashing here uses xxhash instead of
// ion's internal varint hash, and growth appends new arenas without
// copying or moving existing bytes, so concurrent readers holding a read
// lock never observe a torn table.
package atom

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/bemafred/rdfq/ints"
)

// ID is an opaque integer assigned to a distinct interned term.
// The zero ID is reserved to mean "unbound" / "unknown".
type ID uint64

// Unbound is the reserved sentinel atom id meaning "no value".
const Unbound ID = 0

type slot struct {
	arena  uint32
	offset uint32
	length uint32
	hash   uint64
}

// Table is a concurrent, append-only string interner.
//
// Table is safe for concurrent use: Resolve and Contains may be called
// concurrently with Intern, and Resolve's returned slice stays valid for
// the lifetime of the process (the backing arena is never mutated after
// a byte range is published, and the table only grows by appending new
// arenas, never by relocating existing ones in place).
type Table struct {
	mu sync.RWMutex

	// arenas are independently addressed byte buffers; a slot's offset
	// is relative to the arena it was allocated from, identified by the
	// slot's arena field. Keeping prior arenas immutable means resolve()
	// never has to invalidate a borrow when the active arena fills up and
	// a new one is appended.
	arenas []arena

	// buckets maps a term's hash to candidate slot indices into ids.
	buckets map[uint64][]ID

	// ids is indexed by ID-1 (ID 0 is reserved); ids[i] describes where
	// the bytes for atom i+1 live.
	ids []slot
}

type arena struct {
	data []byte
}

// New returns an empty atom table.
func New() *Table {
	return &Table{
		buckets: make(map[uint64][]ID),
	}
}

func hashOf(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Contains performs a non-allocating membership check.
func (t *Table) Contains(term []byte) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookupLocked(term, hashOf(term))
}

func (t *Table) lookupLocked(term []byte, h uint64) (ID, bool) {
	for _, id := range t.buckets[h] {
		s := t.ids[id-1]
		if s.hash != h {
			continue
		}
		if bytesEqual(t.bytesLocked(s), term) {
			return id, true
		}
	}
	return Unbound, false
}

// Intern returns the atom id for term, allocating a new id if this is
// the first time term has been seen. Intern is idempotent: repeated
// calls with byte-equal input return the same id.
func (t *Table) Intern(term []byte) ID {
	h := hashOf(term)

	t.mu.RLock()
	if id, ok := t.lookupLocked(term, h); ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// re-check under the write lock: another writer may have interned
	// the same term between our read-unlock and write-lock.
	if id, ok := t.lookupLocked(term, h); ok {
		return id
	}

	arenaIdx, off := t.appendLocked(term)
	id := ID(len(t.ids) + 1)
	t.ids = append(t.ids, slot{arena: arenaIdx, offset: off, length: uint32(len(term)), hash: h})
	t.buckets[h] = append(t.buckets[h], id)
	return id
}

// minArenaSize is the capacity of a freshly allocated arena; a term
// longer than this gets an arena sized to fit it exactly.
const minArenaSize = 1 << 20

// appendLocked copies term into the tail of the current arena (growing
// a new one if it doesn't fit) and returns where it landed. Because a
// full arena is never reused for a resize, once bytesLocked has handed
// out a slice into it, that slice stays valid for the life of the
// process: growth only ever appends a new arena to t.arenas.
func (t *Table) appendLocked(term []byte) (arenaIdx uint32, offset uint32) {
	if len(t.arenas) == 0 || cap(t.arenas[len(t.arenas)-1].data)-len(t.arenas[len(t.arenas)-1].data) < len(term) {
		size := ints.Max(minArenaSize, len(term))
		t.arenas = append(t.arenas, arena{data: make([]byte, 0, size)})
	}
	idx := len(t.arenas) - 1
	a := &t.arenas[idx]
	off := len(a.data)
	a.data = append(a.data, term...)
	return uint32(idx), uint32(off)
}

func (t *Table) bytesLocked(s slot) []byte {
	return t.arenas[s.arena].data[s.offset : s.offset+s.length]
}

// Resolve returns a zero-copy borrow of the bytes interned for id. The
// returned slice is valid for the life of the process; it is safe to
// retain beyond the scope of any particular read lock because arenas
// are never mutated or relocated once published.
func (t *Table) Resolve(id ID) []byte {
	if id == Unbound {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) > len(t.ids) {
		return nil
	}
	return t.bytesLocked(t.ids[id-1])
}

// Len returns the number of distinct interned terms.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
