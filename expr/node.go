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

// Package expr holds the SPARQL algebra: the tree of Node values that
// sparql.Parse produces and that plan/exec consume.
// Terms in the algebra are Term values holding their own strings; the
// span type Ref exists but the parser does not use it, so parsing
// allocates a string per term. The Node/Visitor/Rewriter shape mirrors
// github.com/SnellerInc/sneller's expr.Node traversal machinery.
package expr

// Node is satisfied by every algebra node: triple patterns, property
// paths, filter expressions, and the group/modifier structure that ties
// them together.
type Node interface {
	// walk invokes v.Visit on each child node, in source order.
	walk(v Visitor)
	// String renders the node back to (re-parseable, not
	// necessarily byte-identical) SPARQL text, for diagnostics.
	String() string
}

// Visitor is invoked for each node encountered by Walk. If the Visitor
// returned by Visit is non-nil, Walk recurses into the node's children
// with it.
type Visitor interface {
	Visit(Node) Visitor
}

// Rewriter rewrites nodes in depth-first order.
type Rewriter interface {
	// Rewrite is applied to a node after its children have been
	// rewritten.
	Rewrite(Node) Node
	// Walk returns the Rewriter to use for n's children, or nil to
	// skip rewriting them.
	Walk(Node) Rewriter
}

type nonleaf interface {
	rewrite(r Rewriter) Node
}

// Walk traverses n in depth-first order, calling v.Visit(n) and then
// v.Visit(nil) once n's children (if any) have been visited.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// Rewrite recursively applies r to n in depth-first order.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if nl, ok := n.(nonleaf); ok {
		if rc := r.Walk(n); rc != nil {
			n = nl.rewrite(rc)
		}
	}
	return r.Rewrite(n)
}
