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

package expr

import "strings"

// Slot is one position (subject, predicate, object, or graph) of a
// triple pattern: either a bound term or a variable to bind.
type Slot struct {
	IsVar bool
	Var   Var
	Term  Term // valid when !IsVar
}

// VarSlot returns a Slot bound to v.
func VarSlot(v Var) Slot { return Slot{IsVar: true, Var: v} }

// TermSlot returns a Slot fixed to t.
func TermSlot(t Term) Slot { return Slot{Term: t} }

func (s Slot) String() string {
	if s.IsVar {
		return s.Var.String()
	}
	return s.Term.String()
}

// TriplePattern is a single (subject, predicate, object) pattern,
// evaluated in some named or default graph. Predicate may instead be a
// PropertyPath; exactly one of Pred/Path is set.
type TriplePattern struct {
	Subject Slot
	Pred    Slot
	Path    PropertyPath // non-nil when this is a path pattern
	Object  Slot
}

func (n *TriplePattern) walk(Visitor) {}

func (n *TriplePattern) String() string {
	pred := n.Pred.String()
	if n.Path != nil {
		pred = n.Path.String()
	}
	return n.Subject.String() + " " + pred + " " + n.Object.String() + " ."
}

// BGP is a basic graph pattern: a conjunction of triple patterns matched
// against the same active graph, evaluated as a single multi-way join.
type BGP struct {
	Patterns []*TriplePattern
}

func (n *BGP) walk(v Visitor) {
	for _, p := range n.Patterns {
		Walk(v, p)
	}
}

func (n *BGP) rewrite(r Rewriter) Node {
	return n // triple patterns are leaves; nothing below them to rewrite
}

func (n *BGP) String() string {
	parts := make([]string, len(n.Patterns))
	for i, p := range n.Patterns {
		parts[i] = p.String()
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// Group is a `{ ... }` graph pattern group: a BGP plus zero or more
// nested pattern operators (Optional, Union, Minus, Filter, Bind,
// Values, subqueries) applied left to right in source order, per the
// SPARQL group-graph-pattern grammar.
type Group struct {
	BGP     *BGP
	Ops     []Node // Optional, Union, Minus, *Filter, *Bind, *Values, *SubSelect, *Service, *GraphClause
}

func (n *Group) walk(v Visitor) {
	if n.BGP != nil {
		Walk(v, n.BGP)
	}
	for _, op := range n.Ops {
		Walk(v, op)
	}
}

func (n *Group) rewrite(r Rewriter) Node {
	if n.BGP != nil {
		if rewritten := Rewrite(r, n.BGP); rewritten != nil {
			n.BGP = rewritten.(*BGP)
		}
	}
	for i, op := range n.Ops {
		n.Ops[i] = Rewrite(r, op)
	}
	return n
}

func (n *Group) String() string {
	var b strings.Builder
	b.WriteString("{ ")
	if n.BGP != nil {
		b.WriteString(n.BGP.String())
		b.WriteByte(' ')
	}
	for _, op := range n.Ops {
		b.WriteString(op.String())
		b.WriteByte(' ')
	}
	b.WriteByte('}')
	return b.String()
}

// Optional is OPTIONAL { Pattern }, a left outer join against the
// enclosing group's accumulated pattern.
type Optional struct {
	Pattern *Group
	Filters []Node // FILTERs inside the optional block, applied at join time
}

func (n *Optional) walk(v Visitor) {
	Walk(v, n.Pattern)
	for _, f := range n.Filters {
		Walk(v, f)
	}
}

func (n *Optional) rewrite(r Rewriter) Node {
	n.Pattern = Rewrite(r, n.Pattern).(*Group)
	for i, f := range n.Filters {
		n.Filters[i] = Rewrite(r, f)
	}
	return n
}

func (n *Optional) String() string { return "OPTIONAL " + n.Pattern.String() }

// Union is `{ Left } UNION { Right }`.
type Union struct {
	Left, Right *Group
}

func (n *Union) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *Union) rewrite(r Rewriter) Node {
	n.Left = Rewrite(r, n.Left).(*Group)
	n.Right = Rewrite(r, n.Right).(*Group)
	return n
}

func (n *Union) String() string { return n.Left.String() + " UNION " + n.Right.String() }

// Minus is `MINUS { Pattern }`: removes solutions compatible with Pattern.
type Minus struct {
	Pattern *Group
}

func (n *Minus) walk(v Visitor)          { Walk(v, n.Pattern) }
func (n *Minus) rewrite(r Rewriter) Node { n.Pattern = Rewrite(r, n.Pattern).(*Group); return n }
func (n *Minus) String() string          { return "MINUS " + n.Pattern.String() }

// Filter is a FILTER(expr) applied to the enclosing group's solutions.
type Filter struct {
	Expr Node
}

func (n *Filter) walk(v Visitor)          { Walk(v, n.Expr) }
func (n *Filter) rewrite(r Rewriter) Node { n.Expr = Rewrite(r, n.Expr); return n }
func (n *Filter) String() string          { return "FILTER(" + n.Expr.String() + ")" }

// Bind is `BIND(expr AS ?var)`.
type Bind struct {
	Expr Node
	As   Var
}

func (n *Bind) walk(v Visitor)          { Walk(v, n.Expr) }
func (n *Bind) rewrite(r Rewriter) Node { n.Expr = Rewrite(r, n.Expr); return n }
func (n *Bind) String() string          { return "BIND(" + n.Expr.String() + " AS " + n.As.String() + ")" }

// Values is an inline `VALUES (?v1 ?v2) { (...) (...) }` data block. A
// nil entry in Rows[i][j] represents UNDEF for that (row, var) cell.
type Values struct {
	Vars []Var
	Rows [][]Term
}

func (n *Values) walk(Visitor) {}

func (n *Values) String() string {
	names := make([]string, len(n.Vars))
	for i, v := range n.Vars {
		names[i] = v.String()
	}
	return "VALUES (" + strings.Join(names, " ") + ") { ... }"
}

// GraphClause is `GRAPH term-or-var { Pattern }`.
type GraphClause struct {
	Graph   Slot
	Pattern *Group
}

func (n *GraphClause) walk(v Visitor)          { Walk(v, n.Pattern) }
func (n *GraphClause) rewrite(r Rewriter) Node { n.Pattern = Rewrite(r, n.Pattern).(*Group); return n }
func (n *GraphClause) String() string {
	return "GRAPH " + n.Graph.String() + " " + n.Pattern.String()
}

// Service is `SERVICE [SILENT] endpoint { Pattern }`, delegated to the
// federation package at execution time.
type Service struct {
	Silent  bool
	Slot    Slot // endpoint IRI, or a variable bound to one
	Pattern *Group
}

func (n *Service) walk(v Visitor)          { Walk(v, n.Pattern) }
func (n *Service) rewrite(r Rewriter) Node { n.Pattern = Rewrite(r, n.Pattern).(*Group); return n }
func (n *Service) String() string {
	prefix := "SERVICE "
	if n.Silent {
		prefix = "SERVICE SILENT "
	}
	return prefix + n.Slot.String() + " " + n.Pattern.String()
}

// SubSelect embeds a nested SELECT query as a graph pattern operand.
type SubSelect struct {
	Query *Query
}

func (n *SubSelect) walk(v Visitor)          { Walk(v, n.Query) }
func (n *SubSelect) rewrite(r Rewriter) Node { n.Query = Rewrite(r, n.Query).(*Query); return n }
func (n *SubSelect) String() string          { return "{ " + n.Query.String() + " }" }
