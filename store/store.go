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

package store

import (
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/bemafred/rdfq/atom"
)

// Store is a concurrent, MVCC quad store. Readers call AcquireRead to
// obtain a ReadView pinned to a single snapshot; writers serialize
// through Begin/Commit, mutating a private clone of the current snapshot
// and publishing it with a single atomic pointer swap so that in-flight
// reads are never disturbed.
type Store struct {
	cur atomic.Pointer[snapshot]
	wmu sync.Mutex // serializes writers; readers never block on this

	log *zap.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the Store's structured logger; the default is a
// no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{log: zap.NewNop()}
	s.cur.Store(newSnapshot())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadView is a snapshot pinned for the duration of a read, per spec.md
// §4.2's AcquireReadLock/ReleaseReadLock contract. Release does nothing
// and ReadView keeps no reference count: snapshots never mutate in place
// and are garbage collected once unreferenced. Callers still pair
// AcquireRead with Release.
type ReadView struct {
	snap *snapshot
}

// Len returns the number of quads visible in the view.
func (v ReadView) Len() int { return v.snap.Len() }

// AcquireRead returns a ReadView pinned to the store's current snapshot.
// The view remains valid (and consistent) even as concurrent writers
// commit new snapshots.
func (s *Store) AcquireRead() ReadView {
	return ReadView{snap: s.cur.Load()}
}

// Release relinquishes a ReadView. See ReadView's doc comment.
func (v ReadView) Release() {}

// Batch accumulates inserts and deletes against a private clone of the
// store's current snapshot; nothing is visible to readers until Commit
// publishes it.
type Batch struct {
	store    *Store
	base     *snapshot
	work     *snapshot
	inserted int
	removed  int
}

// Begin starts a write batch. Only one batch may be open on a Store at a
// time; a second concurrent Begin blocks until the first Commits or
// Discards.
func (s *Store) Begin() *Batch {
	s.wmu.Lock()
	base := s.cur.Load()
	return &Batch{store: s, base: base, work: base.clone()}
}

// Add stages the insertion of q, returning false if q was already
// present (a duplicate insert is a silent no-op, per RDF set semantics).
func (b *Batch) Add(q Quad) bool {
	ok := b.work.insert(q)
	if ok {
		b.inserted++
	}
	return ok
}

// Remove stages the deletion of q, returning false if q was not present.
func (b *Batch) Remove(q Quad) bool {
	ok := b.work.remove(q)
	if ok {
		b.removed++
	}
	return ok
}

// Commit publishes the batch's snapshot atomically and releases the
// writer lock. After Commit, all new ReadViews observe the batch's
// effects; ReadViews acquired before Commit keep observing the prior
// snapshot.
func (b *Batch) Commit() (inserted, removed int) {
	b.store.cur.Store(b.work)
	b.store.wmu.Unlock()
	b.store.log.Debug("committed batch",
		zap.Int("inserted", b.inserted),
		zap.Int("removed", b.removed),
		zap.Int("size", b.work.size),
	)
	return b.inserted, b.removed
}

// Discard abandons the batch's staged changes without publishing them.
func (b *Batch) Discard() {
	b.store.wmu.Unlock()
}

// Pattern is a quad pattern with atom.Unbound standing for a wildcard in
// that position.
type Pattern struct {
	S, P, O, G atom.ID
}

// IndexName identifies which of the store's four orderings a Query chose
// to serve a pattern; exec and stats use this for EXPLAIN-style
// diagnostics.
type IndexName int

const (
	IndexSPOG IndexName = iota
	IndexPOSG
	IndexOSPG
	IndexGSPO
)

func (n IndexName) String() string {
	return [...]string{"SPOG", "POSG", "OSPG", "GSPO"}[n]
}

// ChooseIndex picks the index best suited to pat, preferring (in order)
// a bound graph, then the most selective bound leading column: S, then
// P, then O. This mirrors the leading-column selectivity heuristic
// db/scan.go uses to pick a segment index's sort key before falling back
// to a full scan.
func ChooseIndex(pat Pattern) IndexName {
	switch {
	case pat.G != atom.Unbound:
		return IndexGSPO
	case pat.S != atom.Unbound:
		return IndexSPOG
	case pat.P != atom.Unbound:
		return IndexPOSG
	case pat.O != atom.Unbound:
		return IndexOSPG
	default:
		return IndexSPOG
	}
}

// Scan iterates the quads in v matching pat in the chosen index's sort
// order, invoking fn for each until it returns false or the matching
// range is exhausted.
func (v ReadView) Scan(pat Pattern, fn func(Quad) bool) {
	idx := ChooseIndex(pat)
	v.ScanIndex(idx, pat, fn)
}

// ScanIndex is like Scan but pins the index explicitly; the planner uses
// this once it has already decided on a join order and merge strategy
// that depends on a particular sort order (e.g. a merge join across two
// patterns sharing a bound predicate wants POSG on both sides).
func (v ReadView) ScanIndex(idx IndexName, pat Pattern, fn func(Quad) bool) {
	tree, pivot := treeAndPivot(v.snap, idx, pat)
	tree.Ascend(pivot, func(q Quad) bool {
		if !inPrefix(idx, pivot, q) {
			return false
		}
		if !matches(q, pat) {
			return true
		}
		return fn(q)
	})
}

// treeAndPivot returns the index to scan and the lowest quad consistent
// with pat's leading bound columns under idx's ordering.
func treeAndPivot(s *snapshot, idx IndexName, pat Pattern) (*btree.BTreeG[Quad], Quad) {
	switch idx {
	case IndexPOSG:
		return s.posg, Quad{P: pat.P, O: pat.O}
	case IndexOSPG:
		return s.ospg, Quad{O: pat.O}
	case IndexGSPO:
		return s.gspo, Quad{G: pat.G, S: pat.S, P: pat.P}
	default:
		return s.spog, Quad{S: pat.S, P: pat.P, O: pat.O}
	}
}

// inPrefix reports whether q still falls within the leading-column
// prefix that pivot fixed; once Ascend walks past it for a bound column,
// the scan has exhausted every quad that pat could match and should stop
// rather than walk the rest of the tree.
func inPrefix(idx IndexName, pivot, q Quad) bool {
	switch idx {
	case IndexPOSG:
		return (pivot.P == atom.Unbound || q.P == pivot.P) &&
			(pivot.P == atom.Unbound || pivot.O == atom.Unbound || q.O == pivot.O)
	case IndexOSPG:
		return pivot.O == atom.Unbound || q.O == pivot.O
	case IndexGSPO:
		return (pivot.G == atom.Unbound || q.G == pivot.G) &&
			(pivot.G == atom.Unbound || pivot.S == atom.Unbound || q.S == pivot.S) &&
			(pivot.G == atom.Unbound || pivot.S == atom.Unbound || pivot.P == atom.Unbound || q.P == pivot.P)
	default:
		return (pivot.S == atom.Unbound || q.S == pivot.S) &&
			(pivot.S == atom.Unbound || pivot.P == atom.Unbound || q.P == pivot.P) &&
			(pivot.S == atom.Unbound || pivot.P == atom.Unbound || pivot.O == atom.Unbound || q.O == pivot.O)
	}
}

func matches(q Quad, pat Pattern) bool {
	return (pat.S == atom.Unbound || pat.S == q.S) &&
		(pat.P == atom.Unbound || pat.P == q.P) &&
		(pat.O == atom.Unbound || pat.O == q.O) &&
		(pat.G == atom.Unbound || pat.G == q.G)
}
