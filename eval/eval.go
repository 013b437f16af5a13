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

// Package eval implements the SPARQL filter-expression evaluator (C6):
// it walks an expr.Node over a solution's current bindings and produces
// either an expr.Term or a type error. The evaluator has no knowledge of
// iterators or the store; exec supplies both variable lookups and
// (for EXISTS/NOT EXISTS and subqueries) a callback to re-enter
// execution, the same separation github.com/SnellerInc/sneller draws
// between expr (pure AST) and vm (the thing that actually runs it).
package eval

import (
	"fmt"
	"math"
	"strconv"

	"github.com/bemafred/rdfq/expr"
)

// TypeError reports that an expression could not be evaluated over its
// operands' actual types; SPARQL filters reject (rather than error out)
// a solution whose FILTER expression raises one.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return "eval: " + e.Msg }

func typeErrorf(format string, args ...interface{}) error {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}

// Env supplies variable bindings and re-entrant pattern execution to the
// evaluator.
type Env interface {
	// Lookup returns the term bound to a variable's hash, or ok=false if
	// the variable is unbound in the current solution.
	Lookup(hash uint64) (expr.Term, bool)
	// Exists reports whether pattern has at least one solution given the
	// current bindings as its outer context. Used for EXISTS/NOT EXISTS.
	Exists(pattern expr.Node) (bool, error)
}

// Eval evaluates n against env, returning the resulting term or a
// *TypeError if n's operands don't support the operation.
func Eval(n expr.Node, env Env) (expr.Term, error) {
	switch e := n.(type) {
	case expr.Var:
		t, ok := env.Lookup(e.Hash)
		if !ok {
			return nil, typeErrorf("unbound variable ?%s", e.Name)
		}
		return t, nil
	case *expr.TermNode:
		return e.Term, nil
	case *expr.Logical:
		return evalLogical(e, env)
	case *expr.Not:
		v, err := evalBool(e.Expr, env)
		if err != nil {
			return nil, err
		}
		return boolTerm(!v), nil
	case *expr.Compare:
		return evalCompare(e, env)
	case *expr.Arith:
		return evalArith(e, env)
	case *expr.FuncCall:
		return evalFuncCall(e, env)
	case *expr.Aggregate:
		return nil, typeErrorf("aggregate %s used outside SELECT/HAVING", e.String())
	case *expr.ExistsExpr:
		ok, err := env.Exists(e.Pattern)
		if err != nil {
			return nil, err
		}
		if e.Negate {
			ok = !ok
		}
		return boolTerm(ok), nil
	case *expr.InExpr:
		return evalIn(e, env)
	case *expr.IfExpr:
		c, err := evalBool(e.Cond, env)
		if err != nil {
			return nil, err
		}
		if c {
			return Eval(e.Then, env)
		}
		return Eval(e.Else, env)
	case *expr.BoundExpr:
		_, ok := env.Lookup(e.V.Hash)
		return boolTerm(ok), nil
	case *expr.CoalesceExpr:
		for _, a := range e.Args {
			v, err := Eval(a, env)
			if err == nil {
				return v, nil
			}
		}
		return nil, typeErrorf("COALESCE: all arguments errored")
	default:
		return nil, typeErrorf("unsupported expression node %T", n)
	}
}

func evalLogical(e *expr.Logical, env Env) (expr.Term, error) {
	l, lerr := evalBool(e.Left, env)
	if e.Op == expr.OpOr {
		if lerr == nil && l {
			return boolTerm(true), nil
		}
		r, rerr := evalBool(e.Right, env)
		if rerr == nil && r {
			return boolTerm(true), nil
		}
		if lerr != nil || rerr != nil {
			return nil, typeErrorf("OR: non-boolean operand")
		}
		return boolTerm(false), nil
	}
	// AND short-circuits to false; otherwise an error anywhere is an error.
	if lerr == nil && !l {
		return boolTerm(false), nil
	}
	r, rerr := evalBool(e.Right, env)
	if rerr == nil && !r {
		return boolTerm(false), nil
	}
	if lerr != nil || rerr != nil {
		return nil, typeErrorf("AND: non-boolean operand")
	}
	return boolTerm(true), nil
}

func evalIn(e *expr.InExpr, env Env) (expr.Term, error) {
	v, err := Eval(e.Expr, env)
	if err != nil {
		return nil, err
	}
	found := false
	var anyErr error
	for _, cand := range e.List {
		cv, err := Eval(cand, env)
		if err != nil {
			anyErr = err
			continue
		}
		eq, err := sameTerm(v, cv)
		if err == nil && eq {
			found = true
			break
		}
	}
	if !found && anyErr != nil {
		return nil, anyErr
	}
	if e.Negate {
		found = !found
	}
	return boolTerm(found), nil
}

// EvalBool is the public entry point for FILTER's effective boolean
// value coercion. A *TypeError while evaluating n yields false with a
// nil error; any other error is returned.
func EvalBool(n expr.Node, env Env) (bool, error) {
	v, err := evalBool(n, env)
	if _, isType := err.(*TypeError); isType {
		return false, nil
	}
	return v, err
}

func evalBool(n expr.Node, env Env) (bool, error) {
	v, err := Eval(n, env)
	if err != nil {
		return false, err
	}
	return EffectiveBooleanValue(v)
}

// EffectiveBooleanValue implements SPARQL's EBV coercion: booleans pass
// through, numerics are false only at zero or NaN, strings are false
// only when empty, and every other term type (IRI, non-numeric typed
// literal, blank node) has no EBV.
func EffectiveBooleanValue(t expr.Term) (bool, error) {
	lit, ok := t.(expr.Literal)
	if !ok {
		return false, typeErrorf("EBV: %s has no boolean value", t)
	}
	switch lit.Datatype {
	case expr.XSDBoolean:
		switch lit.Lexical {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		return false, typeErrorf("EBV: %q is not a valid boolean", lit.Lexical)
	case expr.XSDString, "":
		return lit.Lexical != "", nil
	}
	if expr.NumericKind(lit.Datatype) {
		f, err := strconv.ParseFloat(lit.Lexical, 64)
		if err != nil {
			return false, typeErrorf("EBV: %q is not numeric", lit.Lexical)
		}
		return f != 0 && !math.IsNaN(f), nil
	}
	return false, typeErrorf("EBV: literal with datatype %s has no boolean value", lit.Datatype)
}

func boolTerm(b bool) expr.Term {
	lex := "false"
	if b {
		lex = "true"
	}
	return expr.Literal{Lexical: lex, Datatype: expr.XSDBoolean}
}
