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

package plan

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
)

// compileGroup lowers one `{ ... }` graph pattern group into an
// Iterator, seeded with base's bindings (so a nested group planned
// inside a join sees its outer row's variables) and evaluated against
// graph (the active graph for every triple pattern in this group that
// isn't itself wrapped in its own GRAPH clause).
func (p *Planner) compileGroup(g *expr.Group, base exec.Row, graph exec.SlotPlan) (exec.Iterator, error) {
	var it exec.Iterator = exec.NewRowsIterator([]exec.Row{base})
	if g.BGP != nil && len(g.BGP.Patterns) > 0 {
		var err error
		it, err = p.compileBGP(g.BGP, base, graph)
		if err != nil {
			return nil, err
		}
	}
	for _, op := range g.Ops {
		var err error
		it, err = p.compileGroupOp(it, op, graph)
		if err != nil {
			return nil, err
		}
	}
	return it, nil
}

// compileBGP orders Patterns by estimated selectivity (patterns with a
// bound predicate and the tracker's narrowest selectivity go first, so
// later patterns' scans are maximally constrained by earlier bindings)
// and folds them into a chain of NestedLoopJoins.
func (p *Planner) compileBGP(bgp *expr.BGP, base exec.Row, graph exec.SlotPlan) (exec.Iterator, error) {
	patterns := append([]*expr.TriplePattern(nil), bgp.Patterns...)
	sort.SliceStable(patterns, func(i, j int) bool {
		return p.patternSelectivity(patterns[i]) < p.patternSelectivity(patterns[j])
	})

	var it exec.Iterator = exec.NewRowsIterator([]exec.Row{base})
	for _, pat := range patterns {
		pat := pat
		it = &exec.NestedLoopJoin{
			Left: it,
			Build: func(left exec.Row) (exec.Iterator, error) {
				return p.compileTriplePattern(pat, left, graph)
			},
		}
	}
	return it, nil
}

// patternSelectivity estimates how restrictive a pattern is: lower is
// more selective (fewer expected matches) and should be scanned first.
// A bound predicate lets the tracker give a real estimate; an unbound
// predicate (fully variable or a property path) is treated
// pessimistically as matching everything.
func (p *Planner) patternSelectivity(pat *expr.TriplePattern) float64 {
	if pat.Path != nil || pat.Pred.IsVar {
		return 1.0
	}
	if p.Tracker == nil {
		return 0.5
	}
	predID := p.RT.Atoms.Intern(pat.Pred.Term.Encode())
	return p.Tracker.Selectivity(predID, !pat.Subject.IsVar)
}

func (p *Planner) compileTriplePattern(pat *expr.TriplePattern, base exec.Row, graph exec.SlotPlan) (exec.Iterator, error) {
	if pat.Path != nil {
		return exec.NewPathScan(p.RT, exec.PathPlan{
			Subject: p.compileSlot(pat.Subject),
			Object:  p.compileSlot(pat.Object),
			Graph:   graph,
			Path:    pat.Path,
		}, base), nil
	}
	return exec.NewScan(p.RT, exec.PatternPlan{
		S: p.compileSlot(pat.Subject),
		P: p.compileSlot(pat.Pred),
		O: p.compileSlot(pat.Object),
		G: graph,
	}, base), nil
}

func (p *Planner) compileSlot(s expr.Slot) exec.SlotPlan {
	if s.IsVar {
		return exec.SlotPlan{IsVar: true, Var: s.Var}
	}
	return exec.SlotPlan{Fixed: p.RT.Atoms.Intern(s.Term.Encode())}
}

func (p *Planner) compileGroupOp(left exec.Iterator, op expr.Node, graph exec.SlotPlan) (exec.Iterator, error) {
	switch o := op.(type) {
	case *expr.Optional:
		return &exec.LeftOuterJoin{
			Left: left,
			Build: func(row exec.Row) (exec.Iterator, error) {
				it, err := p.compileGroup(o.Pattern, row, graph)
				if err != nil {
					return nil, err
				}
				for _, f := range o.Filters {
					it = &exec.Filter{Input: it, Expr: f, RT: p.RT}
				}
				return it, nil
			},
		}, nil

	case *expr.Union:
		return &exec.NestedLoopJoin{
			Left: left,
			Build: func(row exec.Row) (exec.Iterator, error) {
				leftIt, err := p.compileGroup(o.Left, row, graph)
				if err != nil {
					return nil, err
				}
				rightIt, err := p.compileGroup(o.Right, row, graph)
				if err != nil {
					return nil, err
				}
				return &exec.Union{Left: leftIt, Right: rightIt}, nil
			},
		}, nil

	case *expr.Minus:
		return &exec.Minus{
			Left: left,
			Build: func(exec.Row) (exec.Iterator, error) {
				// MINUS evaluates its pattern independently of the left
				// solution (SPARQL 1.1 §18.4, the Minus algebra operator
				// takes two independently-evaluated multisets): seed with
				// an empty row, not the left row, so the emitted rows
				// carry only the right pattern's own variables and
				// excludedBy's sharesVariable/Compatible check can tell a
				// disjoint-variable pattern (a no-op MINUS) from a
				// genuinely overlapping one.
				return p.compileGroup(o.Pattern, exec.NewRow(), graph)
			},
		}, nil

	case *expr.Filter:
		return &exec.Filter{Input: left, Expr: o.Expr, RT: p.RT}, nil

	case *expr.Bind:
		return &exec.Bind{Input: left, Expr: o.Expr, As: o.As, RT: p.RT}, nil

	case *expr.Values:
		return &exec.NestedLoopJoin{
			Left: left,
			Build: func(exec.Row) (exec.Iterator, error) {
				return exec.NewValuesScan(o.Vars, o.Rows), nil
			},
		}, nil

	case *expr.GraphClause:
		gslot := p.compileSlot(o.Graph)
		return &exec.NestedLoopJoin{
			Left: left,
			Build: func(row exec.Row) (exec.Iterator, error) {
				return p.compileGroup(o.Pattern, row, gslot)
			},
		}, nil

	case *expr.Service:
		endpointSlot := o.Slot
		pattern := o.Pattern.String()
		return &exec.ServiceScan{
			Input: left,
			Endpoint: func(row exec.Row) (expr.Term, error) {
				if !endpointSlot.IsVar {
					return endpointSlot.Term, nil
				}
				t, ok := row.Get(endpointSlot.Var)
				if !ok {
					return nil, errors.New("plan: SERVICE endpoint variable unbound")
				}
				return t, nil
			},
			Pattern: pattern,
			Silent:  o.Silent,
			Call:    p.RT.Federation,
		}, nil

	case *expr.SubSelect:
		return &exec.NestedLoopJoin{
			Left: left,
			Build: func(row exec.Row) (exec.Iterator, error) {
				return p.compileSubSelect(o.Query, row)
			},
		}, nil

	default:
		return nil, errors.Errorf("plan: unsupported group pattern operator %T", op)
	}
}

// compileSubSelect materializes a nested SELECT's results (per SPARQL
// 1.1, a subquery is evaluated independently of the outer query's
// bindings, so the outer row is ignored) and replays them as an
// Iterator the outer NestedLoopJoin can join against by shared variable
// name. The NestedLoopJoin calls it once per outer row, so the subquery
// is re-run for each one. It runs to completion with a background
// context rather than the outer query's context, since RightBuilder has
// no ctx parameter to thread through; cancellation and deadlines of the
// outer context are not observed while it drains.
func (p *Planner) compileSubSelect(q *expr.Query, _ exec.Row) (exec.Iterator, error) {
	it, names, err := p.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	rows, err := exec.Drain(context.Background(), it)
	if err != nil {
		return nil, err
	}
	_ = names
	return exec.NewRowsIterator(rows), nil
}
