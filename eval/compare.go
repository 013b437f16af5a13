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
	"strconv"
	"strings"

	"github.com/bemafred/rdfq/date"
	"github.com/bemafred/rdfq/expr"
)

func evalCompare(e *expr.Compare, env Env) (expr.Term, error) {
	l, err := Eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(e.Right, env)
	if err != nil {
		return nil, err
	}
	if e.Op == expr.CmpEq || e.Op == expr.CmpNe {
		eq, err := sameTerm(l, r)
		if err != nil {
			return nil, err
		}
		if e.Op == expr.CmpNe {
			eq = !eq
		}
		return boolTerm(eq), nil
	}
	c, err := order(l, r)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case expr.CmpLt:
		return boolTerm(c < 0), nil
	case expr.CmpLe:
		return boolTerm(c <= 0), nil
	case expr.CmpGt:
		return boolTerm(c > 0), nil
	case expr.CmpGe:
		return boolTerm(c >= 0), nil
	}
	return nil, typeErrorf("unknown comparison operator")
}

// sameTerm implements SPARQL value equality: numerics compare by value
// across datatypes, plain/lang-string literals and IRIs compare by
// their exact lexical/IRI text, and a term is never equal to one of a
// different RDF node kind.
func sameTerm(a, b expr.Term) (bool, error) {
	if a.Kind() != b.Kind() {
		if al, ok := a.(expr.Literal); ok {
			if bl, ok2 := b.(expr.Literal); ok2 {
				return literalEqual(al, bl)
			}
		}
		return false, nil
	}
	switch av := a.(type) {
	case expr.IRI:
		return av == b.(expr.IRI), nil
	case expr.BlankNode:
		return av == b.(expr.BlankNode), nil
	case expr.Literal:
		return literalEqual(av, b.(expr.Literal))
	default:
		return a.Kind() == b.Kind(), nil
	}
}

func literalEqual(a, b expr.Literal) (bool, error) {
	if expr.NumericKind(effectiveDatatype(a)) && expr.NumericKind(effectiveDatatype(b)) {
		fa, errA := strconv.ParseFloat(a.Lexical, 64)
		fb, errB := strconv.ParseFloat(b.Lexical, 64)
		if errA != nil || errB != nil {
			return false, typeErrorf("invalid numeric literal")
		}
		return fa == fb, nil
	}
	if a.Lang != b.Lang {
		return false, nil
	}
	return a.Lexical == b.Lexical && effectiveDatatype(a) == effectiveDatatype(b), nil
}

func effectiveDatatype(l expr.Literal) string {
	if l.Datatype != "" {
		return l.Datatype
	}
	if l.Lang != "" {
		return expr.RDFLangString
	}
	return expr.XSDString
}

// Order returns -1, 0, or 1 for a relative to b under the total ordering
// used by ORDER BY and MIN/MAX aggregation: pairs that order compares
// are ordered as order does; any other pair is ordered by term kind
// (blank < IRI < literal) and then by the terms' String form, so Order
// never errors on mixed types even though relational comparison (<, >)
// would.
func Order(a, b expr.Term) (int, error) {
	if c, err := order(a, b); err == nil {
		return c, nil
	}
	rank := func(t expr.Term) int {
		switch t.(type) {
		case expr.BlankNode:
			return 0
		case expr.IRI:
			return 1
		}
		return 2
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmpFloat(float64(ra), float64(rb)), nil
	}
	return strings.Compare(a.String(), b.String()), nil
}

// order returns -1, 0, or 1 for literal a relative to literal b:
// numerics by value, strings lexicographically, dateTimes
// chronologically, booleans false < true. Non-literals and literals of
// incomparable datatypes give a type error.
func order(a, b expr.Term) (int, error) {
	al, aIsLit := a.(expr.Literal)
	bl, bIsLit := b.(expr.Literal)
	if aIsLit && bIsLit {
		adt, bdt := effectiveDatatype(al), effectiveDatatype(bl)
		if expr.NumericKind(adt) && expr.NumericKind(bdt) {
			fa, err1 := strconv.ParseFloat(al.Lexical, 64)
			fb, err2 := strconv.ParseFloat(bl.Lexical, 64)
			if err1 != nil || err2 != nil {
				return 0, typeErrorf("invalid numeric literal")
			}
			return cmpFloat(fa, fb), nil
		}
		if adt == expr.XSDDateTime && bdt == expr.XSDDateTime {
			ta, ok1 := date.Parse([]byte(al.Lexical))
			tb, ok2 := date.Parse([]byte(bl.Lexical))
			if !ok1 || !ok2 {
				return 0, typeErrorf("invalid dateTime literal")
			}
			switch {
			case ta.Before(tb):
				return -1, nil
			case ta.After(tb):
				return 1, nil
			default:
				return 0, nil
			}
		}
		if adt == expr.XSDBoolean && bdt == expr.XSDBoolean {
			return strings.Compare(al.Lexical, bl.Lexical), nil
		}
		if adt == bdt || (adt == expr.XSDString && bdt == expr.XSDString) {
			return strings.Compare(al.Lexical, bl.Lexical), nil
		}
		return 0, typeErrorf("cannot order %s against %s", adt, bdt)
	}
	return 0, typeErrorf("cannot order non-literal terms")
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ToFloat coerces t's lexical form to a float64 for arithmetic, failing
// if t is not a numeric literal.
func ToFloat(t expr.Term) (float64, error) {
	lit, ok := t.(expr.Literal)
	if !ok || !expr.NumericKind(effectiveDatatype(lit)) {
		return 0, typeErrorf("%s is not numeric", t)
	}
	f, err := strconv.ParseFloat(lit.Lexical, 64)
	if err != nil {
		return 0, typeErrorf("invalid numeric literal %q", lit.Lexical)
	}
	return f, nil
}

// NumericResultType returns the promoted result datatype of a binary
// arithmetic operation over a and b's datatypes, per XPath's numeric
// type promotion (integer < decimal < float < double).
func NumericResultType(a, b string) string {
	rank := func(dt string) int {
		switch dt {
		case expr.XSDInteger:
			return 0
		case expr.XSDDecimal:
			return 1
		case "http://www.w3.org/2001/XMLSchema#float":
			return 2
		case expr.XSDDouble:
			return 3
		default:
			return 1
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func evalArith(e *expr.Arith, env Env) (expr.Term, error) {
	lv, err := Eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	lf, err := ToFloat(lv)
	if err != nil {
		return nil, err
	}
	if e.Op == expr.ArithNeg {
		return numericTerm(-lf, effectiveDatatype(lv.(expr.Literal))), nil
	}
	rv, err := Eval(e.Right, env)
	if err != nil {
		return nil, err
	}
	rf, err := ToFloat(rv)
	if err != nil {
		return nil, err
	}
	dt := NumericResultType(effectiveDatatype(lv.(expr.Literal)), effectiveDatatype(rv.(expr.Literal)))
	switch e.Op {
	case expr.ArithAdd:
		return numericTerm(lf+rf, dt), nil
	case expr.ArithSub:
		return numericTerm(lf-rf, dt), nil
	case expr.ArithMul:
		return numericTerm(lf*rf, dt), nil
	case expr.ArithDiv:
		if rf == 0 {
			return nil, typeErrorf("division by zero")
		}
		result := lf / rf
		if dt == expr.XSDInteger {
			dt = expr.XSDDecimal
		}
		return numericTerm(result, dt), nil
	}
	return nil, typeErrorf("unknown arithmetic operator")
}

func numericTerm(f float64, datatype string) expr.Term {
	var lex string
	if datatype == expr.XSDInteger && f == float64(int64(f)) {
		lex = strconv.FormatInt(int64(f), 10)
	} else {
		lex = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return expr.Literal{Lexical: lex, Datatype: datatype}
}
