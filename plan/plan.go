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

// Package plan lowers a parsed *expr.Query into an exec.Iterator tree
// (C7). It is the one package that imports both expr and exec: it reads
// the algebra, consults stats.Tracker for join ordering, and produces
// the operator pipeline exec actually runs. This mirrors
// github.com/SnellerInc/sneller's plan package, which sits the same way
// between expr (the parsed AST) and vm (the thing that executes it).
package plan

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/stats"
)

// Planner compiles queries against a fixed Runtime and Tracker. A new
// Planner is cheap to construct; it holds no state of its own beyond
// the two references every Compile call needs.
type Planner struct {
	RT      *exec.Runtime
	Tracker *stats.Tracker
}

// New returns a Planner bound to rt and tracker. tracker may be nil, in
// which case join ordering falls back to source order.
func New(rt *exec.Runtime, tracker *stats.Tracker) *Planner {
	return &Planner{RT: rt, Tracker: tracker}
}

// CompileSelect lowers a SELECT query into an Iterator over projected,
// grouped, ordered, sliced result rows. The returned []expr.Var names
// the output columns in order; for SELECT * it is nil, and the caller
// should read each row's bound variables directly via Row.Vars().
func (p *Planner) CompileSelect(q *expr.Query) (exec.Iterator, []expr.Var, error) {
	if q.Form != expr.FormSelect {
		return nil, nil, errors.New("plan: CompileSelect requires a SELECT query")
	}
	it, err := p.compileWhere(q)
	if err != nil {
		return nil, nil, err
	}

	if len(q.Modifiers.GroupBy) > 0 || hasAggregate(q.Projection) {
		it = p.compileGroupBy(it, q)
	}
	if len(q.Modifiers.Having) > 0 {
		for _, h := range q.Modifiers.Having {
			it = &exec.Filter{Input: it, Expr: h, RT: p.RT}
		}
	}

	var names []expr.Var
	if !q.Star {
		cols, projNames := p.projectionColumns(q)
		it = &exec.Project{Input: it, Columns: cols, RT: p.RT}
		names = projNames
	}

	if len(q.Modifiers.OrderBy) > 0 {
		it = &exec.OrderBy{Input: it, Keys: q.Modifiers.OrderBy, Limit: -1, RT: p.RT}
	}
	if q.Modifiers.Distinct || q.Modifiers.Reduced {
		it = exec.NewDistinct(it)
	}
	if q.Modifiers.Limit >= 0 || q.Modifiers.Offset > 0 {
		it = &exec.Slice{Input: it, Offset: q.Modifiers.Offset, Limit: q.Modifiers.Limit}
	}
	return it, names, nil
}

// CompileAsk reports whether q.Where has at least one solution.
func (p *Planner) CompileAsk(ctx context.Context, q *expr.Query) (bool, error) {
	it, err := p.compileWhere(q)
	if err != nil {
		return false, err
	}
	defer it.Close()
	_, ok, err := it.Next(ctx)
	return ok, err
}

// CompileConstruct evaluates q.Where and instantiates q.Template once
// per solution, returning the resulting quads (deduplicated, per RDF set
// semantics, by the caller via a map on Encode bytes if needed).
func (p *Planner) CompileConstruct(ctx context.Context, q *expr.Query) ([]ConstructedQuad, error) {
	it, err := p.compileWhere(q)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []ConstructedQuad
	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		for _, tmpl := range q.Template {
			quad, ok := instantiate(tmpl, row)
			if ok {
				out = append(out, quad)
			}
		}
	}
}

// ConstructedQuad is one instantiated CONSTRUCT/DESCRIBE result triple,
// left ungraphed (CONSTRUCT always targets the default graph of the
// result RDF graph, not any dataset graph).
type ConstructedQuad struct {
	S, P, O expr.Term
}

// instantiate binds tmpl's variable slots from row, producing nil (and
// ok=false) if any slot's variable is unbound in this solution (per
// SPARQL 1.1's rule that a template triple with an unbound variable is
// simply not output for that solution).
func instantiate(tmpl *expr.TriplePattern, row exec.Row) (ConstructedQuad, bool) {
	s, ok := slotTerm(tmpl.Subject, row)
	if !ok {
		return ConstructedQuad{}, false
	}
	var p expr.Term
	if tmpl.Path != nil {
		return ConstructedQuad{}, false // templates never carry a property path
	}
	p, ok = slotTerm(tmpl.Pred, row)
	if !ok {
		return ConstructedQuad{}, false
	}
	o, ok := slotTerm(tmpl.Object, row)
	if !ok {
		return ConstructedQuad{}, false
	}
	return ConstructedQuad{S: s, P: p, O: o}, true
}

func slotTerm(sl expr.Slot, row exec.Row) (expr.Term, bool) {
	if !sl.IsVar {
		return sl.Term, true
	}
	return row.Get(sl.Var)
}

// ExistsSolution implements the shape exec.Runtime.Exists expects: it
// compiles pattern (always the *expr.Group an ExistsExpr carries) against
// outer's current bindings and reports whether it yields at least one
// solution, letting EXISTS/NOT EXISTS re-enter planning+execution without
// exec or eval importing plan.
func (p *Planner) ExistsSolution(ctx context.Context, outer exec.Row, pattern expr.Node) (bool, error) {
	g, ok := pattern.(*expr.Group)
	if !ok {
		return false, errors.Errorf("plan: EXISTS pattern must be a group, got %T", pattern)
	}
	it, err := p.compileGroup(g, outer, p.defaultGraphSlot())
	if err != nil {
		return false, err
	}
	defer it.Close()
	_, found, err := it.Next(ctx)
	return found, err
}

func (p *Planner) compileWhere(q *expr.Query) (exec.Iterator, error) {
	if q.Where == nil {
		return exec.NewRowsIterator([]exec.Row{exec.NewRow()}), nil
	}
	return p.compileGroup(q.Where, exec.NewRow(), p.defaultGraphSlot())
}

func (p *Planner) defaultGraphSlot() exec.SlotPlan {
	return exec.SlotPlan{IsVar: false, Fixed: p.RT.DefaultGraph}
}

func hasAggregate(projection []expr.Projection) bool {
	v := &aggregateFinder{}
	for _, col := range projection {
		if col.Expr != nil {
			expr.Walk(v, col.Expr)
		}
	}
	return v.found
}

// aggregateFinder walks an expression tree looking for any *expr.Aggregate
// node, at any depth (e.g. inside an arithmetic wrapper like
// `(COUNT(?x) * 2 AS ?c)`).
type aggregateFinder struct{ found bool }

func (f *aggregateFinder) Visit(n expr.Node) expr.Visitor {
	if n == nil {
		return nil
	}
	if _, ok := n.(*expr.Aggregate); ok {
		f.found = true
	}
	return f
}

func (p *Planner) projectionColumns(q *expr.Query) ([]exec.ProjectColumn, []expr.Var) {
	if q.Star {
		return nil, nil // engine falls back to emitting every bound variable; handled by caller via exec.Row.Vars
	}
	cols := make([]exec.ProjectColumn, len(q.Projection))
	names := make([]expr.Var, len(q.Projection))
	for i, proj := range q.Projection {
		cols[i] = exec.ProjectColumn{Var: proj.Var, Expr: proj.Expr}
		names[i] = proj.Var
	}
	return cols, names
}

func (p *Planner) compileGroupBy(input exec.Iterator, q *expr.Query) exec.Iterator {
	var cols []exec.AggregateColumn
	for _, proj := range q.Projection {
		if proj.Expr == nil {
			continue
		}
		if agg, ok := proj.Expr.(*expr.Aggregate); ok {
			cols = append(cols, exec.AggregateColumn{Agg: agg, As: proj.Var})
		}
	}
	return &exec.GroupBy{Input: input, Keys: q.Modifiers.GroupBy, Columns: cols, RT: p.RT}
}
