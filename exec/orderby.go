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

	"github.com/bemafred/rdfq/eval"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/heap"
)

// OrderBy is blocking like GroupBy: a solution sequence's order depends
// on every row, so nothing can be emitted until the input is exhausted.
// With Limit >= 0 it keeps only the Limit best rows in a bounded
// min-heap (ordered so the *worst* kept row sits at the root and gets
// evicted first) rather than sorting the whole input, the same top-K
// shortcut the kept heap package exists to serve; with no limit it
// falls back to heap.OrderSlice over the full buffered set.
type OrderBy struct {
	Input Iterator
	Keys  []expr.OrderKey
	Limit int64 // < 0 means unbounded
	RT    *Runtime

	out  []Row
	pos  int
	done bool
}

func (o *OrderBy) less(a, b Row) bool {
	for _, key := range o.Keys {
		av, aerr := eval.Eval(key.Expr, RowEnv{Row: a, RT: o.RT})
		bv, berr := eval.Eval(key.Expr, RowEnv{Row: b, RT: o.RT})
		if aerr != nil || berr != nil {
			continue
		}
		cmp, err := eval.Order(av, bv)
		if err != nil || cmp == 0 {
			continue
		}
		if key.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func (o *OrderBy) Next(ctx context.Context) (Row, bool, error) {
	if !o.done {
		if err := o.drain(ctx); err != nil {
			return Row{}, false, err
		}
		o.done = true
	}
	if o.pos >= len(o.out) {
		return Row{}, false, nil
	}
	row := o.out[o.pos]
	o.pos++
	return row, true, nil
}

func (o *OrderBy) drain(ctx context.Context) error {
	var candidates []Row
	if o.Limit < 0 {
		for {
			if err := checkCtx(ctx); err != nil {
				return err
			}
			row, ok, err := o.Input.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			candidates = append(candidates, row)
		}
	} else {
		// worse(a, b) is true when a should be evicted before b, making a
		// max-heap (by o.less's ascending order) whose root is always the
		// current worst of the Limit rows kept so far.
		worse := func(a, b Row) bool { return o.less(b, a) }
		var kept []Row
		for {
			if err := checkCtx(ctx); err != nil {
				return err
			}
			row, ok, err := o.Input.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if int64(len(kept)) < o.Limit {
				heap.PushSlice(&kept, row, worse)
				continue
			}
			if len(kept) > 0 && o.less(row, kept[0]) {
				heap.PopSlice(&kept, worse)
				heap.PushSlice(&kept, row, worse)
			}
		}
		candidates = kept
	}

	heap.OrderSlice(candidates, o.less)
	out := make([]Row, 0, len(candidates))
	for len(candidates) > 0 {
		out = append(out, heap.PopSlice(&candidates, o.less))
	}
	o.out = out
	return nil
}

func (o *OrderBy) Close() { o.Input.Close() }
