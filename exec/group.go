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
	"strconv"
	"strings"

	"github.com/bemafred/rdfq/eval"
	"github.com/bemafred/rdfq/expr"
)

// AggregateColumn is one SELECT-clause aggregate, bound to a result
// variable the way BIND binds an ordinary expression.
type AggregateColumn struct {
	Agg *expr.Aggregate
	As  expr.Var
}

// GroupBy consumes its entire input up front (aggregation is inherently
// blocking: the result for any group isn't known until every row that
// could belong to it has been seen), partitions rows by the GROUP BY
// keys, and emits one output row per group holding the grouping key
// bindings plus every aggregate column.
//
// With no GROUP BY keys, the whole input is a single implicit group
// (SPARQL's "the entire solution sequence is one group" rule), except
// that an aggregate over zero input rows without any keys still
// produces one row (COUNT, SUM and AVG give 0, GROUP_CONCAT the empty
// string, MIN, MAX and SAMPLE stay unbound), matching
// the empty-group special case in the SPARQL 1.1 aggregates algebra.
type GroupBy struct {
	Input   Iterator
	Keys    []expr.Node
	Columns []AggregateColumn
	RT      *Runtime

	rows []Row
	pos  int
	out  []Row
	done bool
}

func (g *GroupBy) Next(ctx context.Context) (Row, bool, error) {
	if !g.done {
		if err := g.drain(ctx); err != nil {
			return Row{}, false, err
		}
		g.done = true
	}
	if g.pos >= len(g.out) {
		return Row{}, false, nil
	}
	row := g.out[g.pos]
	g.pos++
	return row, true, nil
}

func (g *GroupBy) drain(ctx context.Context) error {
	for {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		row, ok, err := g.Input.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		g.rows = append(g.rows, row)
	}

	groups, order := g.partition(ctx)
	if len(groups) == 0 && len(g.Keys) == 0 {
		// The empty-group case: no input rows, no grouping keys, but the
		// aggregate projection still produces exactly one row.
		groups = map[string][]Row{"": nil}
		order = []string{""}
	}
	for _, key := range order {
		members := groups[key]
		out := NewRow()
		if len(members) > 0 {
			for _, k := range g.Keys {
				if v, ok := k.(expr.Var); ok {
					if t, ok2 := members[0].Get(v); ok2 {
						out = out.Bind(v, t)
					}
				}
			}
		}
		for _, col := range g.Columns {
			val, err := evalAggregate(col.Agg, members, g.RT)
			if err != nil {
				continue
			}
			if val != nil {
				out = out.Bind(col.As, val)
			}
		}
		g.out = append(g.out, out)
	}
	return nil
}

func (g *GroupBy) partition(ctx context.Context) (map[string][]Row, []string) {
	groups := map[string][]Row{}
	var order []string
	for _, row := range g.rows {
		key := groupKey(g.Keys, row, g.RT)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	return groups, order
}

func groupKey(keys []expr.Node, row Row, rt *Runtime) string {
	if len(keys) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range keys {
		val, err := eval.Eval(k, RowEnv{Row: row, RT: rt})
		b.WriteByte(0)
		if err == nil && val != nil {
			b.Write(val.Encode())
		}
	}
	return b.String()
}

func (g *GroupBy) Close() { g.Input.Close() }

func evalAggregate(agg *expr.Aggregate, rows []Row, rt *Runtime) (expr.Term, error) {
	switch agg.Kind {
	case expr.AggCount:
		return aggCount(agg, rows, rt)
	case expr.AggSum:
		return aggFold(agg, rows, rt, 0, func(acc, v float64) float64 { return acc + v })
	case expr.AggMin:
		return aggMinMax(agg, rows, rt, true)
	case expr.AggMax:
		return aggMinMax(agg, rows, rt, false)
	case expr.AggAvg:
		return aggAvg(agg, rows, rt)
	case expr.AggSample:
		return aggSample(agg, rows, rt)
	case expr.AggGroupConcat:
		return aggGroupConcat(agg, rows, rt)
	default:
		return nil, nil
	}
}

func aggValues(agg *expr.Aggregate, rows []Row, rt *Runtime) []expr.Term {
	var vals []expr.Term
	seen := map[string]struct{}{}
	for _, row := range rows {
		var t expr.Term
		var err error
		if agg.Expr == nil {
			t = expr.Literal{Lexical: "*"}
		} else {
			t, err = eval.Eval(agg.Expr, RowEnv{Row: row, RT: rt})
		}
		if err != nil || t == nil {
			continue
		}
		if agg.Distinct {
			key := string(t.Encode())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		vals = append(vals, t)
	}
	return vals
}

func aggCount(agg *expr.Aggregate, rows []Row, rt *Runtime) (expr.Term, error) {
	if agg.Expr == nil {
		n := len(rows)
		if agg.Distinct {
			// COUNT(DISTINCT *) has no standard meaning; fall back to the
			// plain row count.
			return expr.Literal{Lexical: expr.FormatInteger(int64(n)), Datatype: expr.XSDInteger}, nil
		}
		return expr.Literal{Lexical: expr.FormatInteger(int64(n)), Datatype: expr.XSDInteger}, nil
	}
	vals := aggValues(agg, rows, rt)
	return expr.Literal{Lexical: expr.FormatInteger(int64(len(vals))), Datatype: expr.XSDInteger}, nil
}

func aggFold(agg *expr.Aggregate, rows []Row, rt *Runtime, seed float64, f func(acc, v float64) float64) (expr.Term, error) {
	vals := aggValues(agg, rows, rt)
	acc := seed
	dt := expr.XSDInteger
	for _, v := range vals {
		n, err := eval.ToFloat(v)
		if err != nil {
			continue
		}
		acc = f(acc, n)
		if lit, ok := v.(expr.Literal); ok && lit.Datatype != "" {
			dt = eval.NumericResultType(dt, lit.Datatype)
		}
	}
	return expr.Literal{Lexical: formatAggNumber(acc, dt), Datatype: dt}, nil
}

func aggAvg(agg *expr.Aggregate, rows []Row, rt *Runtime) (expr.Term, error) {
	vals := aggValues(agg, rows, rt)
	if len(vals) == 0 {
		return expr.Literal{Lexical: "0", Datatype: expr.XSDInteger}, nil
	}
	var sum float64
	dt := expr.XSDInteger
	for _, v := range vals {
		n, err := eval.ToFloat(v)
		if err != nil {
			continue
		}
		sum += n
		if lit, ok := v.(expr.Literal); ok && lit.Datatype != "" {
			dt = eval.NumericResultType(dt, lit.Datatype)
		}
	}
	avg := sum / float64(len(vals))
	return expr.Literal{Lexical: formatAggNumber(avg, expr.XSDDecimal), Datatype: expr.XSDDecimal}, nil
}

func aggMinMax(agg *expr.Aggregate, rows []Row, rt *Runtime, wantMin bool) (expr.Term, error) {
	vals := aggValues(agg, rows, rt)
	if len(vals) == 0 {
		return nil, nil
	}
	best := vals[0]
	for _, v := range vals[1:] {
		cmp, err := eval.Order(best, v)
		if err != nil {
			continue
		}
		if (wantMin && cmp > 0) || (!wantMin && cmp < 0) {
			best = v
		}
	}
	return best, nil
}

func aggSample(agg *expr.Aggregate, rows []Row, rt *Runtime) (expr.Term, error) {
	vals := aggValues(agg, rows, rt)
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

func aggGroupConcat(agg *expr.Aggregate, rows []Row, rt *Runtime) (expr.Term, error) {
	vals := aggValues(agg, rows, rt)
	sep := agg.Separator
	if sep == "" {
		sep = " "
	}
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		if lit, ok := v.(expr.Literal); ok {
			parts = append(parts, lit.Lexical)
		} else {
			parts = append(parts, v.String())
		}
	}
	return expr.Literal{Lexical: strings.Join(parts, sep), Datatype: expr.XSDString}, nil
}

func formatAggNumber(f float64, datatype string) string {
	if datatype == expr.XSDInteger && f == float64(int64(f)) {
		return expr.FormatInteger(int64(f))
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
