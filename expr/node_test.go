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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVisitor struct {
	kinds []string
}

func (v *countingVisitor) Visit(n Node) Visitor {
	if n == nil {
		return nil
	}
	switch n.(type) {
	case *BGP:
		v.kinds = append(v.kinds, "BGP")
	case *TriplePattern:
		v.kinds = append(v.kinds, "TriplePattern")
	case *Filter:
		v.kinds = append(v.kinds, "Filter")
	default:
		v.kinds = append(v.kinds, "other")
	}
	return v
}

func TestWalkVisitsGroupBGPAndOps(t *testing.T) {
	tp := &TriplePattern{Subject: VarSlot(NewVar("s")), Pred: TermSlot(IRI("http://ex/p")), Object: VarSlot(NewVar("o"))}
	g := &Group{
		BGP: &BGP{Patterns: []*TriplePattern{tp}},
		Ops: []Node{&Filter{Expr: &TermNode{Term: Literal{Lexical: "true", Datatype: XSDBoolean}}}},
	}

	v := &countingVisitor{}
	Walk(v, g)

	assert.Equal(t, []string{"other", "BGP", "TriplePattern", "Filter", "other"}, v.kinds)
}

func TestWalkOnNilNodeIsNoop(t *testing.T) {
	v := &countingVisitor{}
	Walk(v, nil)
	assert.Empty(t, v.kinds)
}

type varRenamer struct {
	from, to string
}

func (r *varRenamer) Walk(Node) Rewriter { return r }

func (r *varRenamer) Rewrite(n Node) Node {
	tp, ok := n.(*TriplePattern)
	if !ok {
		return n
	}
	if tp.Subject.IsVar && tp.Subject.Var.Name == r.from {
		tp.Subject.Var = NewVar(r.to)
	}
	return tp
}

func TestRewriteAppliesToLeafTriplePattern(t *testing.T) {
	tp := &TriplePattern{Subject: VarSlot(NewVar("s")), Pred: TermSlot(IRI("http://ex/p")), Object: VarSlot(NewVar("o"))}

	out := Rewrite(&varRenamer{from: "s", to: "renamed"}, tp)

	rewritten, ok := out.(*TriplePattern)
	require.True(t, ok)
	assert.Equal(t, "renamed", rewritten.Subject.Var.Name)
}

func TestRewriteLeavesBGPPatternsUntouched(t *testing.T) {
	tp := &TriplePattern{Subject: VarSlot(NewVar("s")), Pred: TermSlot(IRI("http://ex/p")), Object: VarSlot(NewVar("o"))}
	bgp := &BGP{Patterns: []*TriplePattern{tp}}

	out := Rewrite(&varRenamer{from: "s", to: "renamed"}, bgp)

	rewritten, ok := out.(*BGP)
	require.True(t, ok)
	assert.Equal(t, "s", rewritten.Patterns[0].Subject.Var.Name, "BGP.rewrite treats its patterns as leaves")
}

func TestRewriteOnNilNodeReturnsNil(t *testing.T) {
	assert.Nil(t, Rewrite(&varRenamer{}, nil))
}
