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

// PropertyPath is a SPARQL 1.1 property path expression, matched by the
// exec package's path-BFS operator rather than a single index lookup.
type PropertyPath interface {
	Node
	isPath()
}

// PathIRI is a path consisting of a single predicate IRI; this is the
// degenerate case that the planner can still satisfy with a plain index
// scan instead of the path-BFS operator.
type PathIRI struct {
	IRI Term
}

func (p *PathIRI) isPath()         {}
func (p *PathIRI) walk(Visitor)    {}
func (p *PathIRI) String() string  { return p.IRI.String() }

// PathInverse is `^path`: traverse path in the reverse direction.
type PathInverse struct {
	Path PropertyPath
}

func (p *PathInverse) isPath()            {}
func (p *PathInverse) walk(v Visitor)     { Walk(v, p.Path) }
func (p *PathInverse) rewrite(r Rewriter) Node { p.Path = Rewrite(r, p.Path).(PropertyPath); return p }
func (p *PathInverse) String() string     { return "^" + p.Path.String() }

// PathSequence is `a/b`: traverse a then b.
type PathSequence struct {
	Left, Right PropertyPath
}

func (p *PathSequence) isPath()        {}
func (p *PathSequence) walk(v Visitor) { Walk(v, p.Left); Walk(v, p.Right) }
func (p *PathSequence) rewrite(r Rewriter) Node {
	p.Left = Rewrite(r, p.Left).(PropertyPath)
	p.Right = Rewrite(r, p.Right).(PropertyPath)
	return p
}
func (p *PathSequence) String() string { return p.Left.String() + "/" + p.Right.String() }

// PathAlternative is `a|b`: traverse a or b.
type PathAlternative struct {
	Left, Right PropertyPath
}

func (p *PathAlternative) isPath()        {}
func (p *PathAlternative) walk(v Visitor) { Walk(v, p.Left); Walk(v, p.Right) }
func (p *PathAlternative) rewrite(r Rewriter) Node {
	p.Left = Rewrite(r, p.Left).(PropertyPath)
	p.Right = Rewrite(r, p.Right).(PropertyPath)
	return p
}
func (p *PathAlternative) String() string { return p.Left.String() + "|" + p.Right.String() }

// PathZeroOrMore is `path*`.
type PathZeroOrMore struct{ Path PropertyPath }

func (p *PathZeroOrMore) isPath()        {}
func (p *PathZeroOrMore) walk(v Visitor) { Walk(v, p.Path) }
func (p *PathZeroOrMore) rewrite(r Rewriter) Node {
	p.Path = Rewrite(r, p.Path).(PropertyPath)
	return p
}
func (p *PathZeroOrMore) String() string { return p.Path.String() + "*" }

// PathOneOrMore is `path+`.
type PathOneOrMore struct{ Path PropertyPath }

func (p *PathOneOrMore) isPath()        {}
func (p *PathOneOrMore) walk(v Visitor) { Walk(v, p.Path) }
func (p *PathOneOrMore) rewrite(r Rewriter) Node {
	p.Path = Rewrite(r, p.Path).(PropertyPath)
	return p
}
func (p *PathOneOrMore) String() string { return p.Path.String() + "+" }

// PathZeroOrOne is `path?`.
type PathZeroOrOne struct{ Path PropertyPath }

func (p *PathZeroOrOne) isPath()        {}
func (p *PathZeroOrOne) walk(v Visitor) { Walk(v, p.Path) }
func (p *PathZeroOrOne) rewrite(r Rewriter) Node {
	p.Path = Rewrite(r, p.Path).(PropertyPath)
	return p
}
func (p *PathZeroOrOne) String() string { return p.Path.String() + "?" }

// PathNegatedSet is `!(iri1|^iri2|...)`: any predicate except the listed
// ones (optionally traversed in reverse).
type PathNegatedSet struct {
	Forward []Term // excluded forward predicates
	Inverse []Term // excluded inverse predicates
}

func (p *PathNegatedSet) isPath()     {}
func (p *PathNegatedSet) walk(Visitor) {}

func (p *PathNegatedSet) String() string {
	parts := make([]string, 0, len(p.Forward)+len(p.Inverse))
	for _, t := range p.Forward {
		parts = append(parts, t.String())
	}
	for _, t := range p.Inverse {
		parts = append(parts, "^"+t.String())
	}
	return "!(" + strings.Join(parts, "|") + ")"
}
