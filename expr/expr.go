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

// Ref is a (start, length, kind) span into the original query text.
// sparql.Parse does not produce Refs: it materializes every term mention
// as a string-backed Term value while parsing.
type Ref struct {
	Start int
	Len   int
	Kind  Kind
}

// Bytes returns the span of src that Ref addresses.
func (r Ref) Bytes(src []byte) []byte {
	return src[r.Start : r.Start+r.Len]
}

// Var names a SPARQL variable, e.g. ?name or $name. Variables are
// compared and bound by Hash, not by Name, once a query has been parsed.
type Var struct {
	Name string
	Hash uint64
}

// NewVar returns a Var for name (without the leading sigil), precomputing
// its stable binding-table hash.
func NewVar(name string) Var {
	return Var{Name: name, Hash: VarHash(name)}
}

func (v Var) walk(Visitor) {}
func (v Var) String() string { return "?" + v.Name }

// TermNode wraps a constant Term (IRI, Literal, or BlankNode) so it can
// appear wherever an algebra Node is expected, e.g. as a FILTER operand.
type TermNode struct {
	Term Term
}

func (t TermNode) walk(Visitor) {}
func (t TermNode) String() string { return t.Term.String() }

// BooleanOp is the operator of an Or/And node.
type BooleanOp int

const (
	OpOr BooleanOp = iota
	OpAnd
)

// Logical is a short-circuiting OR/AND of two boolean expressions.
type Logical struct {
	Op          BooleanOp
	Left, Right Node
}

func (n *Logical) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *Logical) rewrite(r Rewriter) Node {
	n.Left = Rewrite(r, n.Left)
	n.Right = Rewrite(r, n.Right)
	return n
}

func (n *Logical) String() string {
	op := "||"
	if n.Op == OpAnd {
		op = "&&"
	}
	return "(" + n.Left.String() + " " + op + " " + n.Right.String() + ")"
}

// Not negates a boolean expression.
type Not struct {
	Expr Node
}

func (n *Not) walk(v Visitor)          { Walk(v, n.Expr) }
func (n *Not) rewrite(r Rewriter) Node { n.Expr = Rewrite(r, n.Expr); return n }
func (n *Not) String() string          { return "!" + n.Expr.String() }

// CompareOp is the operator of a Compare node.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (op CompareOp) String() string {
	switch op {
	case CmpEq:
		return "="
	case CmpNe:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	}
	return "?"
}

// Compare is a relational comparison between two expressions.
type Compare struct {
	Op          CompareOp
	Left, Right Node
}

func (n *Compare) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *Compare) rewrite(r Rewriter) Node {
	n.Left = Rewrite(r, n.Left)
	n.Right = Rewrite(r, n.Right)
	return n
}

func (n *Compare) String() string {
	return "(" + n.Left.String() + " " + n.Op.String() + " " + n.Right.String() + ")"
}

// ArithOp is the operator of an Arith node.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithNeg // unary; Right is unused
)

// Arith is a numeric arithmetic expression.
type Arith struct {
	Op          ArithOp
	Left, Right Node
}

func (n *Arith) walk(v Visitor) {
	Walk(v, n.Left)
	if n.Right != nil {
		Walk(v, n.Right)
	}
}

func (n *Arith) rewrite(r Rewriter) Node {
	n.Left = Rewrite(r, n.Left)
	if n.Right != nil {
		n.Right = Rewrite(r, n.Right)
	}
	return n
}

func (n *Arith) String() string {
	sym := [...]string{"+", "-", "*", "/", "-"}[n.Op]
	if n.Op == ArithNeg {
		return "-" + n.Left.String()
	}
	return "(" + n.Left.String() + " " + sym + " " + n.Right.String() + ")"
}

// FuncCall applies a built-in or extension function (named by IRI or a
// reserved keyword such as "REGEX", "BOUND", "STRLEN") to Args.
type FuncCall struct {
	Name string
	Args []Node
}

func (n *FuncCall) walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a)
	}
}

func (n *FuncCall) rewrite(r Rewriter) Node {
	for i, a := range n.Args {
		n.Args[i] = Rewrite(r, a)
	}
	return n
}

func (n *FuncCall) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return n.Name + "(" + strings.Join(parts, ", ") + ")"
}

// AggregateKind names a SPARQL set function.
type AggregateKind int

const (
	AggCount AggregateKind = iota
	AggSum
	AggMin
	AggMax
	AggAvg
	AggSample
	AggGroupConcat
)

// Aggregate is a SELECT-clause or HAVING-clause set function application.
type Aggregate struct {
	Kind     AggregateKind
	Distinct bool
	Expr     Node // nil for COUNT(*)
	// Separator is GROUP_CONCAT's SEPARATOR argument; defaults to " " if
	// empty and Kind == AggGroupConcat.
	Separator string
}

func (n *Aggregate) walk(v Visitor) {
	if n.Expr != nil {
		Walk(v, n.Expr)
	}
}

func (n *Aggregate) rewrite(r Rewriter) Node {
	if n.Expr != nil {
		n.Expr = Rewrite(r, n.Expr)
	}
	return n
}

func (n *Aggregate) String() string {
	name := [...]string{"COUNT", "SUM", "MIN", "MAX", "AVG", "SAMPLE", "GROUP_CONCAT"}[n.Kind]
	arg := "*"
	if n.Expr != nil {
		arg = n.Expr.String()
	}
	distinct := ""
	if n.Distinct {
		distinct = "DISTINCT "
	}
	return name + "(" + distinct + arg + ")"
}

// ExistsExpr is an EXISTS/NOT EXISTS filter over a nested graph pattern.
type ExistsExpr struct {
	Negate  bool
	Pattern Node // *Group
}

func (n *ExistsExpr) walk(v Visitor)          { Walk(v, n.Pattern) }
func (n *ExistsExpr) rewrite(r Rewriter) Node { n.Pattern = Rewrite(r, n.Pattern); return n }

func (n *ExistsExpr) String() string {
	if n.Negate {
		return "NOT EXISTS " + n.Pattern.String()
	}
	return "EXISTS " + n.Pattern.String()
}

// InExpr is IN / NOT IN over an expression list.
type InExpr struct {
	Negate bool
	Expr   Node
	List   []Node
}

func (n *InExpr) walk(v Visitor) {
	Walk(v, n.Expr)
	for _, e := range n.List {
		Walk(v, e)
	}
}

func (n *InExpr) rewrite(r Rewriter) Node {
	n.Expr = Rewrite(r, n.Expr)
	for i, e := range n.List {
		n.List[i] = Rewrite(r, e)
	}
	return n
}

func (n *InExpr) String() string {
	parts := make([]string, len(n.List))
	for i, e := range n.List {
		parts[i] = e.String()
	}
	op := "IN"
	if n.Negate {
		op = "NOT IN"
	}
	return n.Expr.String() + " " + op + " (" + strings.Join(parts, ", ") + ")"
}

// IfExpr is the SPARQL IF(cond, then, else) conditional.
type IfExpr struct {
	Cond, Then, Else Node
}

func (n *IfExpr) walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	Walk(v, n.Else)
}

func (n *IfExpr) rewrite(r Rewriter) Node {
	n.Cond = Rewrite(r, n.Cond)
	n.Then = Rewrite(r, n.Then)
	n.Else = Rewrite(r, n.Else)
	return n
}

func (n *IfExpr) String() string {
	return "IF(" + n.Cond.String() + ", " + n.Then.String() + ", " + n.Else.String() + ")"
}

// BoundExpr is the BOUND(?var) test.
type BoundExpr struct {
	V Var
}

func (n *BoundExpr) walk(Visitor)  {}
func (n *BoundExpr) String() string { return "BOUND(" + n.V.String() + ")" }

// CoalesceExpr is COALESCE(expr, ...), evaluating to the first operand
// that doesn't raise a type error.
type CoalesceExpr struct {
	Args []Node
}

func (n *CoalesceExpr) walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a)
	}
}

func (n *CoalesceExpr) rewrite(r Rewriter) Node {
	for i, a := range n.Args {
		n.Args[i] = Rewrite(r, a)
	}
	return n
}

func (n *CoalesceExpr) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}
