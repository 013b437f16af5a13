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

package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/expr"
)

// mapEnv is a minimal Env backed by a variable-hash -> Term map, enough
// to exercise Eval/EvalBool without pulling in exec's Row machinery.
type mapEnv map[uint64]expr.Term

func (e mapEnv) Lookup(hash uint64) (expr.Term, bool) {
	t, ok := e[hash]
	return t, ok
}

func (mapEnv) Exists(expr.Node) (bool, error) { return false, nil }

func bind(name string, t expr.Term) (uint64, expr.Term) {
	return expr.VarHash(name), t
}

func TestEvalVarLookup(t *testing.T) {
	h, term := bind("x", expr.Literal{Lexical: "hi"})
	env := mapEnv{h: term}
	got, err := Eval(expr.NewVar("x"), env)
	require.NoError(t, err)
	assert.Equal(t, term, got)
}

func TestEvalUnboundVarErrors(t *testing.T) {
	_, err := Eval(expr.NewVar("missing"), mapEnv{})
	assert.Error(t, err)
}

func lit(lex, datatype string) expr.Node {
	return &expr.TermNode{Term: expr.Literal{Lexical: lex, Datatype: datatype}}
}

func TestEvalCompareNumeric(t *testing.T) {
	env := mapEnv{}
	cmp := &expr.Compare{Op: expr.CmpLt, Left: lit("3", expr.XSDInteger), Right: lit("10", expr.XSDInteger)}
	got, err := Eval(cmp, env)
	require.NoError(t, err)
	b, err := EffectiveBooleanValue(got)
	require.NoError(t, err)
	assert.True(t, b)
}

func TestEvalArithAdd(t *testing.T) {
	env := mapEnv{}
	ar := &expr.Arith{Op: expr.ArithAdd, Left: lit("2", expr.XSDInteger), Right: lit("3", expr.XSDInteger)}
	got, err := Eval(ar, env)
	require.NoError(t, err)
	f, err := ToFloat(got)
	require.NoError(t, err)
	assert.Equal(t, 5.0, f)
}

func TestEvalBoolFilterFalseOnTypeError(t *testing.T) {
	env := mapEnv{}
	// comparing two incompatible literal datatypes (e.g. a plain string
	// against a boolean-typed literal) must make a FILTER reject the
	// solution rather than propagate a Go error, per SPARQL's "a FILTER
	// expression that raises an error behaves as if it evaluated to
	// false" rule.
	bad := &expr.Compare{
		Op:    expr.CmpLt,
		Left:  lit("abc", ""),
		Right: lit("true", expr.XSDBoolean),
	}
	ok, err := EvalBool(bad, env)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderTotalOrderAcrossKinds(t *testing.T) {
	lo, err := Order(expr.Literal{Lexical: "1", Datatype: expr.XSDInteger}, expr.Literal{Lexical: "2", Datatype: expr.XSDInteger})
	require.NoError(t, err)
	assert.Negative(t, lo)

	eq, err := Order(expr.IRI("a"), expr.IRI("a"))
	require.NoError(t, err)
	assert.Zero(t, eq)
}

func TestNumericResultTypePromotesToWidestType(t *testing.T) {
	assert.Equal(t, expr.XSDDouble, NumericResultType(expr.XSDInteger, expr.XSDDouble))
	assert.Equal(t, expr.XSDInteger, NumericResultType(expr.XSDInteger, expr.XSDInteger))
}
