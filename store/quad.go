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

// Package store implements the quad store (C2): a set of RDF quads
// indexed four ways (SPOG, POSG, OSPG, GSPO) over atom ids, published
// under MVCC snapshot isolation so readers never block writers and never
// observe a partially applied batch. The index structure is
// github.com/tidwall/btree's copy-on-write BTreeG, the same "clone the
// root, keep node sharing" technique github.com/SnellerInc/sneller's
// db package uses for its segment index generations (see db/index.go),
// adapted here to an in-memory ordered set instead of an on-disk
// manifest of segment pointers.
package store

import "github.com/bemafred/rdfq/atom"

// Quad is one (subject, predicate, object, graph) fact, addressed
// entirely by atom ids. The default graph is represented by the atom id
// of expr.DefaultGraph's canonical encoding, never by atom.Unbound:
// atom.Unbound is reserved for "match any value" in a query pattern.
type Quad struct {
	S, P, O, G atom.ID
}

// lessSPOG orders quads lexicographically by (S, P, O, G); this is the
// primary index, used whenever the subject is bound.
func lessSPOG(a, b Quad) bool {
	if a.S != b.S {
		return a.S < b.S
	}
	if a.P != b.P {
		return a.P < b.P
	}
	if a.O != b.O {
		return a.O < b.O
	}
	return a.G < b.G
}

// lessPOSG orders quads by (P, O, S, G); used when the predicate is
// bound but the subject is not (e.g. ?s :knows "Alice").
func lessPOSG(a, b Quad) bool {
	if a.P != b.P {
		return a.P < b.P
	}
	if a.O != b.O {
		return a.O < b.O
	}
	if a.S != b.S {
		return a.S < b.S
	}
	return a.G < b.G
}

// lessOSPG orders quads by (O, S, P, G); used when only the object is
// bound.
func lessOSPG(a, b Quad) bool {
	if a.O != b.O {
		return a.O < b.O
	}
	if a.S != b.S {
		return a.S < b.S
	}
	if a.P != b.P {
		return a.P < b.P
	}
	return a.G < b.G
}

// lessGSPO orders quads by (G, S, P, O); used whenever a query
// constrains the active graph, e.g. GRAPH <g> { ... }.
func lessGSPO(a, b Quad) bool {
	if a.G != b.G {
		return a.G < b.G
	}
	if a.S != b.S {
		return a.S < b.S
	}
	if a.P != b.P {
		return a.P < b.P
	}
	return a.O < b.O
}
