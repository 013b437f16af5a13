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

package exec

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/store"
)

// SlotPlan is a compiled TriplePattern position: either a fixed atom id
// to filter on, or a variable to bind (and, if seen earlier in the same
// BGP, to also verify against, a self-join).
type SlotPlan struct {
	IsVar  bool
	Fixed  atom.ID
	Var    expr.Var
}

// PatternPlan is a compiled TriplePattern, ready to drive a store scan
// without touching expr or the atom table again on every row.
type PatternPlan struct {
	S, P, O, G SlotPlan
}

// Scan is the leaf operator that walks the quad store for a single
// triple pattern, binding every variable slot for each matching quad. It
// buffers matches eagerly because tidwall/btree's Ascend callback can't
// be paused/resumed across Next calls; for the cardinalities a
// cost-based planner would choose a full scan for, this is the same
// tradeoff github.com/SnellerInc/sneller's db package makes when a
// segment is small enough that decompressing it whole beats streaming.
type Scan struct {
	rt   *Runtime
	pat  PatternPlan
	base Row

	buf []Row
	pos int
	done bool
}

// NewScan returns a Scan operator for pat, extending every output row
// from base.
func NewScan(rt *Runtime, pat PatternPlan, base Row) *Scan {
	return &Scan{rt: rt, pat: pat, base: base}
}

func (s *Scan) fill() error {
	if s.done {
		return nil
	}
	s.done = true

	storePat := store.Pattern{
		S: resolveFixedWithRuntime(s.rt, s.pat.S, s.base),
		P: resolveFixedWithRuntime(s.rt, s.pat.P, s.base),
		O: resolveFixedWithRuntime(s.rt, s.pat.O, s.base),
		G: resolveFixedWithRuntime(s.rt, s.pat.G, s.base),
	}
	var scanErr error
	s.rt.View.Scan(storePat, func(q store.Quad) bool {
		row, ok, err := s.bindQuad(q)
		if err != nil {
			scanErr = err
			return false
		}
		if ok {
			s.buf = append(s.buf, row)
		}
		return true
	})
	return scanErr
}

// resolveFixedWithRuntime returns the atom id to filter a position on: the slot's
// fixed id, or (if the slot is a variable already bound in base, e.g.
// because an earlier pattern in the same BGP bound it) that binding's
// interned id, or atom.Unbound to leave the position wild.
func resolveFixedWithRuntime(rt *Runtime, sl SlotPlan, base Row) atom.ID {
	if !sl.IsVar {
		return sl.Fixed
	}
	if t, ok := base.Get(sl.Var); ok {
		return rt.Atoms.Intern(t.Encode())
	}
	return atom.Unbound
}

func (s *Scan) bindQuad(q store.Quad) (Row, bool, error) {
	row := s.base
	var err error
	row, ok, err := bindSlot(s.rt, row, s.pat.S, q.S)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, ok, err = bindSlot(s.rt, row, s.pat.P, q.P)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, ok, err = bindSlot(s.rt, row, s.pat.O, q.O)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, ok, err = bindSlot(s.rt, row, s.pat.G, q.G)
	if err != nil || !ok {
		return Row{}, false, err
	}
	return row, true, nil
}

// bindSlot binds id into row at sl's variable, verifying consistency if
// the variable is already bound (a repeated variable within one
// pattern, e.g. ?x :knows ?x).
func bindSlot(rt *Runtime, row Row, sl SlotPlan, id atom.ID) (Row, bool, error) {
	if !sl.IsVar {
		return row, true, nil
	}
	if existing, ok := row.Get(sl.Var); ok {
		if existingID := rt.Atoms.Intern(existing.Encode()); existingID != id {
			return row, false, nil
		}
		return row, true, nil
	}
	bytes := rt.Atoms.Resolve(id)
	term, err := expr.Decode(bytes)
	if err != nil {
		return row, false, errors.Wrapf(err, "exec: decode atom %d", id)
	}
	return row.Bind(sl.Var, term), true, nil
}

func (s *Scan) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	if err := s.fill(); err != nil {
		return Row{}, false, err
	}
	if s.pos >= len(s.buf) {
		return Row{}, false, nil
	}
	row := s.buf[s.pos]
	s.pos++
	return row, true, nil
}

func (s *Scan) Close() {}
