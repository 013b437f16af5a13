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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/atom"
)

func ids(tab *atom.Table, n int) atom.ID {
	return tab.Intern([]byte{byte(n)})
}

func TestBatchCommitIsVisibleToNewReaders(t *testing.T) {
	s := New()
	tab := atom.New()
	q := Quad{S: ids(tab, 1), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}

	b := s.Begin()
	b.Add(q)
	inserted, removed := b.Commit()
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, removed)

	v := s.AcquireRead()
	defer v.Release()
	assert.Equal(t, 1, v.Len())
}

func TestReadViewIsolatedFromLaterWrites(t *testing.T) {
	s := New()
	tab := atom.New()
	q1 := Quad{S: ids(tab, 1), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}

	b := s.Begin()
	b.Add(q1)
	b.Commit()

	view := s.AcquireRead()
	defer view.Release()

	q2 := Quad{S: ids(tab, 5), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}
	b2 := s.Begin()
	b2.Add(q2)
	b2.Commit()

	assert.Equal(t, 1, view.Len(), "a ReadView acquired before a later commit must not see it")

	fresh := s.AcquireRead()
	defer fresh.Release()
	assert.Equal(t, 2, fresh.Len())
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	s := New()
	tab := atom.New()
	q := Quad{S: ids(tab, 1), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}

	b := s.Begin()
	require.True(t, b.Add(q))
	require.False(t, b.Add(q))
	b.Commit()

	v := s.AcquireRead()
	defer v.Release()
	assert.Equal(t, 1, v.Len())
}

func TestDiscardAbandonsBatch(t *testing.T) {
	s := New()
	tab := atom.New()
	q := Quad{S: ids(tab, 1), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}

	b := s.Begin()
	b.Add(q)
	b.Discard()

	v := s.AcquireRead()
	defer v.Release()
	assert.Equal(t, 0, v.Len())

	// the writer lock must actually have been released, or this Begin
	// would hang forever.
	b2 := s.Begin()
	b2.Discard()
}

func TestScanMatchesEveryIndexChoice(t *testing.T) {
	s := New()
	tab := atom.New()
	alice := tab.Intern([]byte("alice"))
	bob := tab.Intern([]byte("bob"))
	knows := tab.Intern([]byte("knows"))
	likes := tab.Intern([]byte("likes"))
	g := tab.Intern([]byte("g"))

	b := s.Begin()
	b.Add(Quad{S: alice, P: knows, O: bob, G: g})
	b.Add(Quad{S: alice, P: likes, O: bob, G: g})
	b.Add(Quad{S: bob, P: knows, O: alice, G: g})
	b.Commit()

	v := s.AcquireRead()
	defer v.Release()

	var bySubject []Quad
	v.Scan(Pattern{S: alice}, func(q Quad) bool { bySubject = append(bySubject, q); return true })
	assert.Len(t, bySubject, 2)

	var byPredicate []Quad
	v.Scan(Pattern{P: knows}, func(q Quad) bool { byPredicate = append(byPredicate, q); return true })
	assert.Len(t, byPredicate, 2)

	var byObject []Quad
	v.Scan(Pattern{O: bob}, func(q Quad) bool { byObject = append(byObject, q); return true })
	assert.Len(t, byObject, 2)

	var byGraph []Quad
	v.Scan(Pattern{G: g}, func(q Quad) bool { byGraph = append(byGraph, q); return true })
	assert.Len(t, byGraph, 3)

	var all []Quad
	v.Scan(Pattern{}, func(q Quad) bool { all = append(all, q); return true })
	assert.Len(t, all, 3)
}

func TestScanStopsWhenCallbackReturnsFalse(t *testing.T) {
	s := New()
	tab := atom.New()
	p := tab.Intern([]byte("p"))

	b := s.Begin()
	for i := 0; i < 5; i++ {
		b.Add(Quad{S: ids(tab, 10+i), P: p, O: ids(tab, 20+i), G: ids(tab, 30)})
	}
	b.Commit()

	v := s.AcquireRead()
	defer v.Release()

	count := 0
	v.Scan(Pattern{P: p}, func(Quad) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestChooseIndexPrefersGraphThenSubjectThenPredicateThenObject(t *testing.T) {
	u := atom.Unbound
	bound := atom.ID(1)

	assert.Equal(t, IndexGSPO, ChooseIndex(Pattern{G: bound}))
	assert.Equal(t, IndexSPOG, ChooseIndex(Pattern{S: bound}))
	assert.Equal(t, IndexPOSG, ChooseIndex(Pattern{P: bound}))
	assert.Equal(t, IndexOSPG, ChooseIndex(Pattern{O: bound}))
	assert.Equal(t, IndexSPOG, ChooseIndex(Pattern{S: u, P: u, O: u, G: u}))
}

func TestRemoveThenScanSeesNothing(t *testing.T) {
	s := New()
	tab := atom.New()
	q := Quad{S: ids(tab, 1), P: ids(tab, 2), O: ids(tab, 3), G: ids(tab, 4)}

	b := s.Begin()
	b.Add(q)
	b.Commit()

	b2 := s.Begin()
	removed := b2.Remove(q)
	require.True(t, removed)
	b2.Commit()

	v := s.AcquireRead()
	defer v.Release()
	assert.Equal(t, 0, v.Len())
}
