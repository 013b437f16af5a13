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

import "github.com/tidwall/btree"

// snapshot is an immutable view of the quad store: four indexes over the
// same set of quads, ordered differently so that any (S, P, O, G)
// binding pattern can be served by a single ordered range scan. Once
// published, a snapshot's trees are never mutated in place; a writer
// clones the snapshot (a cheap copy-on-write Copy() of each BTreeG) and
// installs a new one.
type snapshot struct {
	spog *btree.BTreeG[Quad]
	posg *btree.BTreeG[Quad]
	ospg *btree.BTreeG[Quad]
	gspo *btree.BTreeG[Quad]
	size int
}

func newSnapshot() *snapshot {
	return &snapshot{
		spog: btree.NewBTreeG(lessSPOG),
		posg: btree.NewBTreeG(lessPOSG),
		ospg: btree.NewBTreeG(lessOSPG),
		gspo: btree.NewBTreeG(lessGSPO),
	}
}

// clone returns a new snapshot sharing node storage with s until either
// copy is next mutated, per BTreeG's copy-on-write semantics.
func (s *snapshot) clone() *snapshot {
	return &snapshot{
		spog: s.spog.Copy(),
		posg: s.posg.Copy(),
		ospg: s.ospg.Copy(),
		gspo: s.gspo.Copy(),
		size: s.size,
	}
}

// insert adds q to all four indexes, reporting whether q was newly
// added (false for a no-op duplicate insert).
func (s *snapshot) insert(q Quad) bool {
	if _, had := s.spog.Get(q); had {
		return false
	}
	s.spog.Set(q)
	s.posg.Set(q)
	s.ospg.Set(q)
	s.gspo.Set(q)
	s.size++
	return true
}

// remove deletes q from all four indexes, reporting whether it had been
// present.
func (s *snapshot) remove(q Quad) bool {
	if _, had := s.spog.Delete(q); !had {
		return false
	}
	s.posg.Delete(q)
	s.ospg.Delete(q)
	s.gspo.Delete(q)
	s.size--
	return true
}

// Len returns the number of distinct quads in the snapshot.
func (s *snapshot) Len() int { return s.size }
