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

	"github.com/dchest/siphash"

	"github.com/bemafred/rdfq/eval"
	"github.com/bemafred/rdfq/expr"
)

// ProjectColumn is one SELECT output column: a bare variable, or
// AS-named expression.
type ProjectColumn struct {
	Var  expr.Var
	Expr expr.Node // nil for a bare variable projection
}

// Project evaluates each column against the input row and returns a new
// row holding only the projected variables (the shape a result-set
// writer or an outer subquery join sees).
type Project struct {
	Input   Iterator
	Columns []ProjectColumn
	RT      *Runtime
}

func (p *Project) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	row, ok, err := p.Input.Next(ctx)
	if err != nil || !ok {
		return Row{}, false, err
	}
	out := NewRow()
	for _, col := range p.Columns {
		if col.Expr == nil {
			if t, ok := row.Get(col.Var); ok {
				out = out.Bind(col.Var, t)
			}
			continue
		}
		val, err := eval.Eval(col.Expr, RowEnv{Ctx: ctx, Row: row, RT: p.RT})
		if err != nil {
			continue
		}
		out = out.Bind(col.Var, val)
	}
	return out, true, nil
}

func (p *Project) Close() { p.Input.Close() }

// Distinct suppresses rows whose fingerprint (a 64-bit siphash of every
// bound variable's Encode bytes, ordered by variable hash for a stable
// digest) has already been seen. REDUCED uses the same operator; SPARQL
// permits a reduced implementation to still eliminate duplicates, so
// there is no separate weaker path.
type Distinct struct {
	Input Iterator
	seen  map[uint64]struct{}
	k0    uint64
	k1    uint64
}

// NewDistinct returns a Distinct operator with a fixed siphash key; the
// key only needs to avoid adversarial collisions within one query run,
// not across runs, so a constant is fine.
func NewDistinct(input Iterator) *Distinct {
	return &Distinct{Input: input, seen: map[uint64]struct{}{}, k0: 0x5ca1ab1ecafe, k1: 0xdeadbeefcafe}
}

func (d *Distinct) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		row, ok, err := d.Input.Next(ctx)
		if err != nil || !ok {
			return Row{}, false, err
		}
		fp := fingerprint(row, d.k0, d.k1)
		if _, dup := d.seen[fp]; dup {
			continue
		}
		d.seen[fp] = struct{}{}
		return row, true, nil
	}
}

func (d *Distinct) Close() { d.Input.Close() }

func fingerprint(row Row, k0, k1 uint64) uint64 {
	hashes := make([]uint64, 0, len(row.vars))
	for h := range row.vars {
		hashes = append(hashes, h)
	}
	// insertion sort: result sets rarely project more than a handful of
	// variables, so this beats pulling in sort.Slice's overhead.
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && hashes[j-1] > hashes[j]; j-- {
			hashes[j-1], hashes[j] = hashes[j], hashes[j-1]
		}
	}
	var buf []byte
	for _, h := range hashes {
		buf = appendUint64(buf, h)
		if t := row.vars[h]; t != nil {
			buf = append(buf, t.Encode()...)
		}
	}
	return siphash.Hash(k0, k1, buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

// Slice implements LIMIT/OFFSET: it discards the first Offset rows and
// then yields at most Limit more (Limit < 0 means unbounded).
type Slice struct {
	Input  Iterator
	Offset int64
	Limit  int64

	skipped int64
	emitted int64
}

func (s *Slice) Next(ctx context.Context) (Row, bool, error) {
	for s.skipped < s.Offset {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		_, ok, err := s.Input.Next(ctx)
		if err != nil || !ok {
			return Row{}, false, err
		}
		s.skipped++
	}
	if s.Limit >= 0 && s.emitted >= s.Limit {
		return Row{}, false, nil
	}
	row, ok, err := s.Input.Next(ctx)
	if err != nil || !ok {
		return Row{}, false, err
	}
	s.emitted++
	return row, true, nil
}

func (s *Slice) Close() { s.Input.Close() }

// Union yields every solution of Left, then every solution of Right, each keeping its
// own variable bindings (SPARQL UNION never requires compatibility
// between the two sides).
type Union struct {
	Left, Right Iterator
	leftDone    bool
}

func (u *Union) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	if !u.leftDone {
		row, ok, err := u.Left.Next(ctx)
		if err != nil {
			return Row{}, false, err
		}
		if ok {
			return row, true, nil
		}
		u.leftDone = true
	}
	return u.Right.Next(ctx)
}

func (u *Union) Close() {
	u.Left.Close()
	u.Right.Close()
}
