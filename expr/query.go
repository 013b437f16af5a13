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

// Form names the syntactic shape of a Query.
type Form int

const (
	FormSelect Form = iota
	FormAsk
	FormConstruct
	FormDescribe
	FormUpdate
)

// Prologue holds a query's BASE IRI and PREFIX declarations, resolved by
// the prologue package before the algebra reaches planning.
type Prologue struct {
	Base     string
	Prefixes map[string]string // prefix label (without trailing colon) -> expansion
}

// Projection is one SELECT-clause item: either a bare variable, or an
// expression aliased with AS.
type Projection struct {
	Var  Var
	Expr Node // nil for a bare "SELECT ?x"
}

// OrderKey is one ORDER BY item.
type OrderKey struct {
	Expr Node
	Desc bool
}

// Modifiers holds the solution-modifier clauses common to SELECT and
// (in part) CONSTRUCT/DESCRIBE: grouping, having, ordering, projection
// dedup, and slicing.
type Modifiers struct {
	GroupBy  []Node
	Having   []Node
	OrderBy  []OrderKey
	Distinct bool
	Reduced  bool
	Limit    int64 // -1 means unset
	Offset   int64
}

// Query is a parsed SPARQL query or update request in algebra form.
// Exactly the fields relevant to Form are populated.
type Query struct {
	Form     Form
	Prologue Prologue

	// SELECT / ASK / CONSTRUCT / DESCRIBE
	Star       bool // SELECT * / DESCRIBE *
	Projection []Projection
	From       []Term // FROM graphs (default dataset)
	FromNamed  []Term // FROM NAMED graphs
	Where      *Group
	Modifiers  Modifiers

	// CONSTRUCT template; DESCRIBE resource list (IRIs or variables)
	Template []*TriplePattern
	Describe []Slot

	// UPDATE
	Updates []UpdateOp
}

func (q *Query) walk(v Visitor) {
	if q.Where != nil {
		Walk(v, q.Where)
	}
	for _, p := range q.Projection {
		if p.Expr != nil {
			Walk(v, p.Expr)
		}
	}
	for _, u := range q.Updates {
		Walk(v, u)
	}
}

func (q *Query) rewrite(r Rewriter) Node {
	if q.Where != nil {
		q.Where = Rewrite(r, q.Where).(*Group)
	}
	for i, u := range q.Updates {
		q.Updates[i] = Rewrite(r, u).(UpdateOp)
	}
	return q
}

func (q *Query) String() string {
	var b strings.Builder
	switch q.Form {
	case FormSelect:
		b.WriteString("SELECT ")
		if q.Modifiers.Distinct {
			b.WriteString("DISTINCT ")
		}
		if q.Modifiers.Reduced {
			b.WriteString("REDUCED ")
		}
		if q.Star {
			b.WriteString("*")
		} else {
			parts := make([]string, len(q.Projection))
			for i, p := range q.Projection {
				if p.Expr == nil {
					parts[i] = p.Var.String()
				} else {
					parts[i] = "(" + p.Expr.String() + " AS " + p.Var.String() + ")"
				}
			}
			b.WriteString(strings.Join(parts, " "))
		}
		b.WriteString(" WHERE ")
		if q.Where != nil {
			b.WriteString(q.Where.String())
		}
	case FormAsk:
		b.WriteString("ASK ")
		if q.Where != nil {
			b.WriteString(q.Where.String())
		}
	case FormConstruct:
		b.WriteString("CONSTRUCT { ... } WHERE ")
		if q.Where != nil {
			b.WriteString(q.Where.String())
		}
	case FormDescribe:
		b.WriteString("DESCRIBE ...")
	case FormUpdate:
		parts := make([]string, len(q.Updates))
		for i, u := range q.Updates {
			parts[i] = u.String()
		}
		b.WriteString(strings.Join(parts, " ; "))
	}
	return b.String()
}

// UpdateOp is one operation of a SPARQL Update request: InsertData,
// DeleteData, DeleteInsert (the general DELETE/INSERT/WHERE form), Load,
// Clear, Create, Drop, Copy, Move, or Add.
type UpdateOp interface {
	Node
	isUpdate()
}

// InsertData is `INSERT DATA { quads }`.
type InsertData struct {
	Quads []*TriplePattern
	Graph Term // nil for the default graph
}

func (u *InsertData) isUpdate()        {}
func (u *InsertData) walk(Visitor)     {}
func (u *InsertData) String() string   { return "INSERT DATA { ... }" }

// DeleteData is `DELETE DATA { quads }`.
type DeleteData struct {
	Quads []*TriplePattern
	Graph Term
}

func (u *DeleteData) isUpdate()      {}
func (u *DeleteData) walk(Visitor)   {}
func (u *DeleteData) String() string { return "DELETE DATA { ... }" }

// DeleteInsert is the general `[WITH g] DELETE {...} INSERT {...} [USING
// ...] WHERE {...}` template-rewrite update form.
type DeleteInsert struct {
	With        Term
	DeleteTmpl  []*TriplePattern
	InsertTmpl  []*TriplePattern
	Using       []Term
	UsingNamed  []Term
	Where       *Group
}

func (u *DeleteInsert) isUpdate() {}
func (u *DeleteInsert) walk(v Visitor) {
	if u.Where != nil {
		Walk(v, u.Where)
	}
}
func (u *DeleteInsert) rewrite(r Rewriter) Node {
	if u.Where != nil {
		u.Where = Rewrite(r, u.Where).(*Group)
	}
	return u
}
func (u *DeleteInsert) String() string { return "DELETE/INSERT WHERE { ... }" }

// GraphRef names a graph target for a management update: the default
// graph, a named graph, all named graphs, or every graph.
type GraphRef struct {
	Default bool
	Named   bool
	All     bool
	IRI     Term // set when neither Default, Named, nor All
}

// Load is `LOAD [SILENT] source [INTO GRAPH target]`.
type Load struct {
	Silent bool
	Source Term
	Into   *GraphRef // nil for the default graph
}

func (u *Load) isUpdate()      {}
func (u *Load) walk(Visitor)   {}
func (u *Load) String() string { return "LOAD " + u.Source.String() }

// Clear is `CLEAR [SILENT] target`.
type Clear struct {
	Silent bool
	Target GraphRef
}

func (u *Clear) isUpdate()      {}
func (u *Clear) walk(Visitor)   {}
func (u *Clear) String() string { return "CLEAR" }

// Create is `CREATE [SILENT] GRAPH iri`.
type Create struct {
	Silent bool
	Graph  Term
}

func (u *Create) isUpdate()      {}
func (u *Create) walk(Visitor)   {}
func (u *Create) String() string { return "CREATE GRAPH " + u.Graph.String() }

// Drop is `DROP [SILENT] target`.
type Drop struct {
	Silent bool
	Target GraphRef
}

func (u *Drop) isUpdate()      {}
func (u *Drop) walk(Visitor)   {}
func (u *Drop) String() string { return "DROP" }

// GraphUpdateKind distinguishes COPY/MOVE/ADD, which share a shape.
type GraphUpdateKind int

const (
	GraphCopy GraphUpdateKind = iota
	GraphMove
	GraphAdd
)

// GraphUpdate is `COPY|MOVE|ADD [SILENT] source TO dest`.
type GraphUpdate struct {
	Kind         GraphUpdateKind
	Silent       bool
	Source, Dest GraphRef
}

func (u *GraphUpdate) isUpdate()      {}
func (u *GraphUpdate) walk(Visitor)   {}
func (u *GraphUpdate) String() string { return "COPY/MOVE/ADD" }
