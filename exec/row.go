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

// Package exec implements the iterator operators (C8) that a plan tree
// compiles to, and a small move_next-protocol runtime: every Iterator
// exposes Next(ctx) (Row, bool, error), pulled by its parent one
// solution at a time. This single-row pull model (as opposed to
// columnar batches) follows the row-oriented join operators in
// github.com/SnellerInc/sneller's plan package conceptually, adapted
// from that package's batch/vector execution style to SPARQL's
// naturally row-at-a-time binding-set semantics.
package exec

import (
	"context"

	"github.com/bemafred/rdfq/expr"
)

// Row is one solution mapping: a set of (variable hash -> term)
// bindings. A nil entry for a hash that IS present in the map means the
// variable is bound to nothing meaningful; absence of the key means
// unbound. Row is shared copy-on-write between operators: Bind returns
// a new Row rather than mutating its receiver, so a JOIN's left input
// row stays valid for re-probing against multiple right-hand matches.
type Row struct {
	vars map[uint64]expr.Term
	name map[uint64]string // hash -> original variable name, for projection/output
}

// NewRow returns an empty row.
func NewRow() Row {
	return Row{vars: map[uint64]expr.Term{}, name: map[uint64]string{}}
}

// Lookup implements eval.Env.
func (r Row) Lookup(hash uint64) (expr.Term, bool) {
	t, ok := r.vars[hash]
	return t, ok
}

// Get returns the term bound to v, if any.
func (r Row) Get(v expr.Var) (expr.Term, bool) {
	return r.Lookup(v.Hash)
}

// Bind returns a copy of r with v bound to t.
func (r Row) Bind(v expr.Var, t expr.Term) Row {
	out := Row{vars: make(map[uint64]expr.Term, len(r.vars)+1), name: make(map[uint64]string, len(r.name)+1)}
	for k, val := range r.vars {
		out.vars[k] = val
	}
	for k, val := range r.name {
		out.name[k] = val
	}
	out.vars[v.Hash] = t
	out.name[v.Hash] = v.Name
	return out
}

// Compatible reports whether r and other agree on every variable they
// both bind, the join condition for a basic graph pattern match.
func (r Row) Compatible(other Row) bool {
	for k, v := range other.vars {
		if existing, ok := r.vars[k]; ok {
			eq, err := sameTermFast(existing, v)
			if err != nil || !eq {
				return false
			}
		}
	}
	return true
}

// Merge returns the union of r and other's bindings, assuming
// Compatible(other) already holds.
func (r Row) Merge(other Row) Row {
	out := Row{vars: make(map[uint64]expr.Term, len(r.vars)+len(other.vars)), name: make(map[uint64]string, len(r.name)+len(other.name))}
	for k, v := range r.vars {
		out.vars[k] = v
	}
	for k, v := range r.name {
		out.name[k] = v
	}
	for k, v := range other.vars {
		out.vars[k] = v
	}
	for k, v := range other.name {
		out.name[k] = v
	}
	return out
}

// Vars returns the (hash, name) pairs bound in r, for projection.
func (r Row) Vars() map[uint64]string {
	return r.name
}

func sameTermFast(a, b expr.Term) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	return string(a.Encode()) == string(b.Encode()), nil
}

// RowEnv adapts a Row plus a Runtime into an eval.Env, so FILTER/BIND
// expressions can call EXISTS/NOT EXISTS without the eval package ever
// importing exec (it would have to, to know what an Iterator is).
type RowEnv struct {
	Ctx context.Context
	Row Row
	RT  *Runtime
}

func (e RowEnv) Lookup(hash uint64) (expr.Term, bool) {
	return e.Row.Lookup(hash)
}

func (e RowEnv) Exists(pattern expr.Node) (bool, error) {
	if e.RT == nil || e.RT.Exists == nil {
		return false, nil
	}
	return e.RT.Exists(e.Ctx, e.Row, pattern)
}
