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

package sparql

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/prologue"
)

var parserPool = sync.Pool{
	New: func() interface{} { return &parser{} },
}

type parser struct {
	s    *scanner
	tok  token
	peeked bool
	prologue expr.Prologue
}

func newParser() *parser {
	p := parserPool.Get().(*parser)
	*p = parser{}
	return p
}

func dropParser(p *parser) { parserPool.Put(p) }

// Parse parses a SPARQL 1.1 Query or Update request and returns its
// algebra form. The BASE/PREFIX prologue has already been expanded into
// absolute IRIs by the time Parse returns: term construction inside the
// parser consults p.prologue directly, so plan and exec never see a
// prefixed name.
func Parse(src []byte) (q *expr.Query, err error) {
	p := newParser()
	defer dropParser(p)
	p.s = newScanner(src)
	p.prologue.Prefixes = make(map[string]string)

	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = fmt.Errorf("sparql: %s", string(pe))
				return
			}
			panic(r)
		}
	}()

	p.advance()
	p.parsePrologue()

	switch {
	case p.isKeyword("SELECT"):
		q = p.parseSelect()
	case p.isKeyword("ASK"):
		q = p.parseAsk()
	case p.isKeyword("CONSTRUCT"):
		q = p.parseConstruct()
	case p.isKeyword("DESCRIBE"):
		q = p.parseDescribe()
	case p.isKeyword("INSERT"), p.isKeyword("DELETE"), p.isKeyword("LOAD"),
		p.isKeyword("CLEAR"), p.isKeyword("CREATE"), p.isKeyword("DROP"),
		p.isKeyword("COPY"), p.isKeyword("MOVE"), p.isKeyword("ADD"),
		p.isKeyword("WITH"), p.isKeyword("USING"):
		q = p.parseUpdate()
	default:
		p.fail("expected a query or update form, got %q", p.tok.text)
	}
	if p.tok.kind != tEOF {
		p.fail("unexpected trailing input %q", p.tok.text)
	}
	q.Prologue = p.prologue
	if p.s.err != nil {
		return nil, p.s.err
	}
	return q, nil
}

type parseError string

func (p *parser) fail(format string, args ...interface{}) {
	line, col := p.s.position(p.tok.pos)
	panic(parseError(fmt.Sprintf("%d:%d: %s", line, col, fmt.Sprintf(format, args...))))
}

func (p *parser) advance() {
	p.tok = p.s.next()
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tKeyword && p.tok.text == kw
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tPunct && p.tok.text == s
}

func (p *parser) expectKeyword(kw string) {
	if !p.isKeyword(kw) {
		p.fail("expected %q, got %q", kw, p.tok.text)
	}
	p.advance()
}

func (p *parser) expectPunct(s string) {
	if !p.isPunct(s) {
		p.fail("expected %q, got %q", s, p.tok.text)
	}
	p.advance()
}

// ---- prologue ----

func (p *parser) parsePrologue() {
	for {
		switch {
		case p.isKeyword("BASE"):
			p.advance()
			if p.tok.kind != tIRIRef {
				p.fail("expected IRIREF after BASE")
			}
			p.prologue.Base = p.tok.text
			p.advance()
		case p.isKeyword("PREFIX"):
			p.advance()
			if p.tok.kind != tPNameNS {
				p.fail("expected prefix label after PREFIX")
			}
			label := strings.TrimSuffix(p.tok.text, ":")
			p.advance()
			if p.tok.kind != tIRIRef {
				p.fail("expected IRIREF after PREFIX %s:", label)
			}
			p.prologue.Prefixes[label] = p.tok.text
			p.advance()
		default:
			return
		}
	}
}

func (p *parser) resolveIRI(text string) string {
	return prologue.Default.ExpandRelative(p.prologue.Base, text)
}

func (p *parser) resolvePName(raw string) string {
	iri, ok := prologue.Default.ExpandPrefixed(p.prologue.Prefixes, raw)
	if !ok {
		p.fail("undeclared prefix in %q", raw)
	}
	return iri
}

// ---- query forms ----

func (p *parser) parseSelect() *expr.Query {
	p.advance() // SELECT
	q := &expr.Query{Form: expr.FormSelect, Modifiers: expr.Modifiers{Limit: -1, Offset: 0}}

	if p.isKeyword("DISTINCT") {
		q.Modifiers.Distinct = true
		p.advance()
	} else if p.isKeyword("REDUCED") {
		q.Modifiers.Reduced = true
		p.advance()
	}

	if p.isPunct("*") {
		q.Star = true
		p.advance()
	} else {
		for p.tok.kind == tVar || p.isPunct("(") {
			if p.tok.kind == tVar {
				q.Projection = append(q.Projection, expr.Projection{Var: expr.NewVar(p.tok.text)})
				p.advance()
				continue
			}
			p.advance() // (
			e := p.parseExpression()
			p.expectKeyword("AS")
			if p.tok.kind != tVar {
				p.fail("expected variable after AS")
			}
			v := expr.NewVar(p.tok.text)
			p.advance()
			p.expectPunct(")")
			q.Projection = append(q.Projection, expr.Projection{Var: v, Expr: e})
		}
	}

	p.parseDatasetClauses(q)
	p.expectKeyword("WHERE")
	q.Where = p.parseGroupGraphPattern()
	p.parseSolutionModifiers(&q.Modifiers)
	p.parseValuesClause(q)
	return q
}

func (p *parser) parseAsk() *expr.Query {
	p.advance() // ASK
	q := &expr.Query{Form: expr.FormAsk, Modifiers: expr.Modifiers{Limit: -1}}
	p.parseDatasetClauses(q)
	p.expectKeyword("WHERE")
	q.Where = p.parseGroupGraphPattern()
	p.parseValuesClause(q)
	return q
}

func (p *parser) parseConstruct() *expr.Query {
	p.advance() // CONSTRUCT
	q := &expr.Query{Form: expr.FormConstruct, Modifiers: expr.Modifiers{Limit: -1}}
	p.expectPunct("{")
	q.Template = p.parseTriplesBlock()
	p.expectPunct("}")
	p.parseDatasetClauses(q)
	p.expectKeyword("WHERE")
	q.Where = p.parseGroupGraphPattern()
	p.parseSolutionModifiers(&q.Modifiers)
	p.parseValuesClause(q)
	return q
}

func (p *parser) parseDescribe() *expr.Query {
	p.advance() // DESCRIBE
	q := &expr.Query{Form: expr.FormDescribe, Modifiers: expr.Modifiers{Limit: -1}}
	if p.isPunct("*") {
		q.Star = true
		p.advance()
	} else {
		for p.tok.kind == tVar || p.tok.kind == tIRIRef || p.tok.kind == tPNameLN {
			q.Describe = append(q.Describe, p.parseVarOrTerm())
		}
	}
	p.parseDatasetClauses(q)
	if p.isKeyword("WHERE") {
		p.advance()
		q.Where = p.parseGroupGraphPattern()
	}
	p.parseSolutionModifiers(&q.Modifiers)
	p.parseValuesClause(q)
	return q
}

// parseValuesClause parses SPARQL 1.1's optional post-query ValuesClause
// (a VALUES block following the solution modifiers, rather than inline
// inside WHERE) and folds it into the query's pattern as a join, since
// per the grammar a trailing VALUES block is equivalent to one placed at
// the end of the WHERE group.
func (p *parser) parseValuesClause(q *expr.Query) {
	if !p.isKeyword("VALUES") {
		return
	}
	v := p.parseInlineData()
	if q.Where == nil {
		q.Where = &expr.Group{}
	}
	q.Where.Ops = append(q.Where.Ops, v)
}

func (p *parser) parseDatasetClauses(q *expr.Query) {
	for p.isKeyword("FROM") {
		p.advance()
		named := p.isKeyword("NAMED")
		if named {
			p.advance()
		}
		t := p.parseIRITerm()
		if named {
			q.FromNamed = append(q.FromNamed, t)
		} else {
			q.From = append(q.From, t)
		}
	}
}

func (p *parser) parseSolutionModifiers(m *expr.Modifiers) {
	if p.isKeyword("GROUP") {
		p.advance()
		p.expectKeyword("BY")
		for p.tok.kind == tVar || p.isPunct("(") {
			m.GroupBy = append(m.GroupBy, p.parseExpressionOrBoundVar())
		}
	}
	if p.isKeyword("HAVING") {
		p.advance()
		for p.tok.kind == tVar || p.isPunct("(") || p.tok.kind == tKeyword {
			m.Having = append(m.Having, p.parseBracketedOrPrimaryExpr())
			if !(p.tok.kind == tVar || p.isPunct("(")) {
				break
			}
		}
	}
	if p.isKeyword("ORDER") {
		p.advance()
		p.expectKeyword("BY")
		for {
			desc := false
			if p.isKeyword("ASC") {
				p.advance()
			} else if p.isKeyword("DESC") {
				desc = true
				p.advance()
			} else if p.tok.kind != tVar && !p.isPunct("(") {
				break
			}
			m.OrderBy = append(m.OrderBy, expr.OrderKey{Expr: p.parseBracketedOrPrimaryExpr(), Desc: desc})
			if p.tok.kind != tVar && !p.isPunct("(") && !p.isKeyword("ASC") && !p.isKeyword("DESC") {
				break
			}
		}
	}
	if p.isKeyword("LIMIT") {
		p.advance()
		m.Limit = p.parseIntegerLiteral()
	}
	if p.isKeyword("OFFSET") {
		p.advance()
		m.Offset = p.parseIntegerLiteral()
	}
}

func (p *parser) parseExpressionOrBoundVar() expr.Node {
	if p.tok.kind == tVar {
		v := expr.NewVar(p.tok.text)
		p.advance()
		return v
	}
	return p.parseBracketedOrPrimaryExpr()
}

func (p *parser) parseBracketedOrPrimaryExpr() expr.Node {
	if p.isPunct("(") {
		p.advance()
		e := p.parseExpression()
		if p.isKeyword("AS") {
			p.advance()
			v := expr.NewVar(p.tok.text)
			p.advance()
			p.expectPunct(")")
			return &expr.Bind{Expr: e, As: v}
		}
		p.expectPunct(")")
		return e
	}
	return p.parseExpression()
}

func (p *parser) parseIntegerLiteral() int64 {
	if p.tok.kind != tInteger {
		p.fail("expected integer, got %q", p.tok.text)
	}
	n, err := strconv.ParseInt(p.tok.text, 10, 64)
	if err != nil {
		p.fail("invalid integer %q: %v", p.tok.text, err)
	}
	p.advance()
	return n
}

// ---- group graph pattern ----

func (p *parser) parseGroupGraphPattern() *expr.Group {
	p.expectPunct("{")
	g := &expr.Group{}

	if p.isKeyword("SELECT") {
		sub := p.parseSelect()
		g.Ops = append(g.Ops, &expr.SubSelect{Query: sub})
		p.expectPunct("}")
		return g
	}

	for !p.isPunct("}") {
		switch {
		case p.isKeyword("OPTIONAL"):
			p.advance()
			g.Ops = append(g.Ops, &expr.Optional{Pattern: p.parseGroupGraphPattern()})
		case p.isKeyword("MINUS"):
			p.advance()
			g.Ops = append(g.Ops, &expr.Minus{Pattern: p.parseGroupGraphPattern()})
		case p.isKeyword("FILTER"):
			p.advance()
			g.Ops = append(g.Ops, &expr.Filter{Expr: p.parseConstraint()})
		case p.isKeyword("BIND"):
			p.advance()
			p.expectPunct("(")
			e := p.parseExpression()
			p.expectKeyword("AS")
			v := expr.NewVar(p.tok.text)
			p.advance()
			p.expectPunct(")")
			g.Ops = append(g.Ops, &expr.Bind{Expr: e, As: v})
		case p.isKeyword("VALUES"):
			g.Ops = append(g.Ops, p.parseInlineData())
		case p.isKeyword("GRAPH"):
			p.advance()
			slot := p.parseVarOrTermSlot()
			pat := p.parseGroupGraphPattern()
			g.Ops = append(g.Ops, &expr.GraphClause{Graph: slot, Pattern: pat})
		case p.isKeyword("SERVICE"):
			p.advance()
			silent := p.isKeyword("SILENT")
			if silent {
				p.advance()
			}
			slot := p.parseVarOrTermSlot()
			pat := p.parseGroupGraphPattern()
			g.Ops = append(g.Ops, &expr.Service{Silent: silent, Slot: slot, Pattern: pat})
		case p.isPunct("{"):
			inner := p.parseGroupGraphPattern()
			if p.isKeyword("UNION") {
				p.advance()
				right := p.parseGroupGraphPattern()
				g.Ops = append(g.Ops, &expr.Union{Left: inner, Right: right})
			} else {
				g.Ops = append(g.Ops, wrapGroup(inner))
			}
		case p.isPunct("."):
			p.advance()
		default:
			tp := p.parseTriplesBlock()
			if g.BGP == nil {
				g.BGP = &expr.BGP{}
			}
			g.BGP.Patterns = append(g.BGP.Patterns, tp...)
		}
	}
	p.expectPunct("}")
	return g
}

// wrapGroup returns a bare nested group (not part of a UNION) unchanged,
// to be added as one Ops entry of the enclosing group.
func wrapGroup(inner *expr.Group) expr.Node {
	return inner
}

func (p *parser) parseInlineData() *expr.Values {
	p.advance() // VALUES
	v := &expr.Values{}
	if p.isPunct("(") {
		p.advance()
		for p.tok.kind == tVar {
			v.Vars = append(v.Vars, expr.NewVar(p.tok.text))
			p.advance()
		}
		p.expectPunct(")")
	} else if p.tok.kind == tVar {
		v.Vars = append(v.Vars, expr.NewVar(p.tok.text))
		p.advance()
	}
	p.expectPunct("{")
	for !p.isPunct("}") {
		var row []expr.Term
		if p.isPunct("(") {
			p.advance()
			for !p.isPunct(")") {
				row = append(row, p.parseDataBlockValue())
			}
			p.expectPunct(")")
		} else {
			row = append(row, p.parseDataBlockValue())
		}
		v.Rows = append(v.Rows, row)
	}
	p.expectPunct("}")
	return v
}

func (p *parser) parseDataBlockValue() expr.Term {
	if p.isKeyword("UNDEF") {
		p.advance()
		return nil
	}
	return p.parseTermValue()
}

// ---- triples ----

func (p *parser) parseTriplesBlock() []*expr.TriplePattern {
	var out []*expr.TriplePattern
	for {
		if p.isPunct("}") || p.tok.kind == tEOF {
			break
		}
		subj := p.parseVarOrTermSlot()
		out = append(out, p.parsePredicateObjectList(subj)...)
		if p.isPunct(".") {
			p.advance()
			continue
		}
		break
	}
	return out
}

func (p *parser) parsePredicateObjectList(subj expr.Slot) []*expr.TriplePattern {
	var out []*expr.TriplePattern
	for {
		pred, path := p.parseVerb()
		obj := p.parseVarOrTermSlot()
		out = append(out, &expr.TriplePattern{Subject: subj, Pred: pred, Path: path, Object: obj})
		for p.isPunct(",") {
			p.advance()
			obj2 := p.parseVarOrTermSlot()
			out = append(out, &expr.TriplePattern{Subject: subj, Pred: pred, Path: path, Object: obj2})
		}
		if p.isPunct(";") {
			p.advance()
			for p.isPunct(";") {
				p.advance()
			}
			if p.isPunct(".") || p.isPunct("}") {
				break
			}
			continue
		}
		break
	}
	return out
}

func (p *parser) parseVerb() (expr.Slot, expr.PropertyPath) {
	if p.tok.kind == tA {
		p.advance()
		return expr.TermSlot(expr.IRI(expr.RDFType)), nil
	}
	if p.tok.kind == tVar {
		v := expr.NewVar(p.tok.text)
		p.advance()
		return expr.VarSlot(v), nil
	}
	path := p.parsePropertyPath()
	if iri, ok := path.(*expr.PathIRI); ok {
		return expr.TermSlot(iri.IRI), nil
	}
	return expr.Slot{}, path
}

func (p *parser) parseVarOrTermSlot() expr.Slot {
	if p.tok.kind == tVar {
		v := expr.NewVar(p.tok.text)
		p.advance()
		return expr.VarSlot(v)
	}
	return expr.TermSlot(p.parseTermValue())
}

func (p *parser) parseVarOrTerm() expr.Slot { return p.parseVarOrTermSlot() }

func (p *parser) parseIRITerm() expr.Term {
	switch p.tok.kind {
	case tIRIRef:
		t := expr.IRI(p.resolveIRI(p.tok.text))
		p.advance()
		return t
	case tPNameLN, tPNameNS:
		t := expr.IRI(p.resolvePName(p.tok.text))
		p.advance()
		return t
	}
	p.fail("expected IRI, got %q", p.tok.text)
	return nil
}

func (p *parser) parseTermValue() expr.Term {
	switch p.tok.kind {
	case tIRIRef, tPNameLN, tPNameNS:
		return p.parseIRITerm()
	case tA:
		p.advance()
		return expr.IRI(expr.RDFType)
	case tBlankNode:
		t := expr.BlankNode(p.tok.text)
		p.advance()
		return t
	case tString:
		lex, lang := p.tok.text, p.tok.lang
		p.advance()
		if p.isPunct("^^") {
			p.advance()
			dt := p.parseIRITerm()
			return expr.Literal{Lexical: lex, Datatype: string(dt.(expr.IRI))}
		}
		if lang != "" {
			return expr.Literal{Lexical: lex, Lang: lang}
		}
		return expr.Literal{Lexical: lex}
	case tInteger:
		lex := p.tok.text
		p.advance()
		return expr.Literal{Lexical: lex, Datatype: expr.XSDInteger}
	case tDecimal:
		lex := p.tok.text
		p.advance()
		return expr.Literal{Lexical: lex, Datatype: expr.XSDDecimal}
	case tDouble:
		lex := p.tok.text
		p.advance()
		return expr.Literal{Lexical: lex, Datatype: expr.XSDDouble}
	case tKeyword:
		switch p.tok.text {
		case "TRUE":
			p.advance()
			return expr.Literal{Lexical: "true", Datatype: expr.XSDBoolean}
		case "FALSE":
			p.advance()
			return expr.Literal{Lexical: "false", Datatype: expr.XSDBoolean}
		}
	}
	p.fail("expected a term, got %q", p.tok.text)
	return nil
}

// ---- property paths ----
// precedence, loosest to tightest: Alternative | Sequence / Inverse^ UnaryPostfix*+? Primary

func (p *parser) parsePropertyPath() expr.PropertyPath {
	return p.parsePathAlternative()
}

func (p *parser) parsePathAlternative() expr.PropertyPath {
	left := p.parsePathSequence()
	for p.isPunct("|") {
		p.advance()
		right := p.parsePathSequence()
		left = &expr.PathAlternative{Left: left, Right: right}
	}
	return left
}

func (p *parser) parsePathSequence() expr.PropertyPath {
	left := p.parsePathUnary()
	for p.isPunct("/") {
		p.advance()
		right := p.parsePathUnary()
		left = &expr.PathSequence{Left: left, Right: right}
	}
	return left
}

func (p *parser) parsePathUnary() expr.PropertyPath {
	if p.isPunct("^") {
		p.advance()
		return &expr.PathInverse{Path: p.parsePathPrimary()}
	}
	if p.isPunct("!") {
		p.advance()
		return p.parsePathNegatedSet()
	}
	base := p.parsePathPrimary()
	for {
		switch {
		case p.isPunct("*"):
			p.advance()
			base = &expr.PathZeroOrMore{Path: base}
		case p.isPunct("+"):
			p.advance()
			base = &expr.PathOneOrMore{Path: base}
		case p.isPunct("?"):
			p.advance()
			base = &expr.PathZeroOrOne{Path: base}
		default:
			return base
		}
	}
}

func (p *parser) parsePathPrimary() expr.PropertyPath {
	if p.isPunct("(") {
		p.advance()
		inner := p.parsePropertyPath()
		p.expectPunct(")")
		return inner
	}
	return &expr.PathIRI{IRI: p.parseIRITerm()}
}

func (p *parser) parsePathNegatedSet() expr.PropertyPath {
	neg := &expr.PathNegatedSet{}
	addOne := func() {
		if p.isPunct("^") {
			p.advance()
			neg.Inverse = append(neg.Inverse, p.parseIRITerm())
		} else {
			neg.Forward = append(neg.Forward, p.parseIRITerm())
		}
	}
	if p.isPunct("(") {
		p.advance()
		addOne()
		for p.isPunct("|") {
			p.advance()
			addOne()
		}
		p.expectPunct(")")
	} else {
		addOne()
	}
	return neg
}

// ---- expressions ----
// ConditionalOrExpression -> ConditionalAndExpression -> ValueLogical
// (Relational) -> NumericExpression (Additive -> Multiplicative ->
// Unary) -> PrimaryExpression.

func (p *parser) parseConstraint() expr.Node {
	if p.isPunct("(") {
		p.advance()
		e := p.parseExpression()
		p.expectPunct(")")
		return e
	}
	return p.parsePrimaryExpr()
}

func (p *parser) parseExpression() expr.Node {
	left := p.parseConditionalAnd()
	for p.isPunct("||") {
		p.advance()
		right := p.parseConditionalAnd()
		left = &expr.Logical{Op: expr.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseConditionalAnd() expr.Node {
	left := p.parseValueLogical()
	for p.isPunct("&&") {
		p.advance()
		right := p.parseValueLogical()
		left = &expr.Logical{Op: expr.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseValueLogical() expr.Node {
	left := p.parseNumeric()
	op, ok := p.matchCompareOp()
	if !ok {
		if p.isKeyword("IN") || p.isKeyword("NOT") {
			return p.parseInTail(left)
		}
		return left
	}
	p.advance()
	right := p.parseNumeric()
	return &expr.Compare{Op: op, Left: left, Right: right}
}

func (p *parser) parseInTail(left expr.Node) expr.Node {
	negate := false
	if p.isKeyword("NOT") {
		negate = true
		p.advance()
	}
	p.expectKeyword("IN")
	p.expectPunct("(")
	var list []expr.Node
	for !p.isPunct(")") {
		list = append(list, p.parseExpression())
		if p.isPunct(",") {
			p.advance()
		}
	}
	p.expectPunct(")")
	return &expr.InExpr{Negate: negate, Expr: left, List: list}
}

func (p *parser) matchCompareOp() (expr.CompareOp, bool) {
	if p.tok.kind != tPunct {
		return 0, false
	}
	switch p.tok.text {
	case "=":
		return expr.CmpEq, true
	case "!=":
		return expr.CmpNe, true
	case "<":
		return expr.CmpLt, true
	case "<=":
		return expr.CmpLe, true
	case ">":
		return expr.CmpGt, true
	case ">=":
		return expr.CmpGe, true
	}
	return 0, false
}

func (p *parser) parseNumeric() expr.Node {
	left := p.parseMultiplicative()
	for p.isPunct("+") || p.isPunct("-") {
		op := expr.ArithAdd
		if p.tok.text == "-" {
			op = expr.ArithSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = &expr.Arith{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseMultiplicative() expr.Node {
	left := p.parseUnary()
	for p.isPunct("*") || p.isPunct("/") {
		op := expr.ArithMul
		if p.tok.text == "/" {
			op = expr.ArithDiv
		}
		p.advance()
		right := p.parseUnary()
		left = &expr.Arith{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseUnary() expr.Node {
	switch {
	case p.isPunct("!"):
		p.advance()
		return &expr.Not{Expr: p.parseUnary()}
	case p.isPunct("-"):
		p.advance()
		return &expr.Arith{Op: expr.ArithNeg, Left: p.parseUnary()}
	case p.isPunct("+"):
		p.advance()
		return p.parseUnary()
	}
	return p.parsePrimaryExpr()
}

func (p *parser) parsePrimaryExpr() expr.Node {
	switch {
	case p.isPunct("("):
		p.advance()
		e := p.parseExpression()
		p.expectPunct(")")
		return e
	case p.tok.kind == tVar:
		v := expr.NewVar(p.tok.text)
		p.advance()
		return v
	case p.isKeyword("EXISTS"):
		p.advance()
		return &expr.ExistsExpr{Pattern: p.parseGroupGraphPattern()}
	case p.isKeyword("NOT"):
		p.advance()
		p.expectKeyword("EXISTS")
		return &expr.ExistsExpr{Negate: true, Pattern: p.parseGroupGraphPattern()}
	case p.isKeyword("BOUND"):
		p.advance()
		p.expectPunct("(")
		v := expr.NewVar(p.tok.text)
		p.advance()
		p.expectPunct(")")
		return &expr.BoundExpr{V: v}
	case p.isKeyword("IF"):
		p.advance()
		p.expectPunct("(")
		cond := p.parseExpression()
		p.expectPunct(",")
		then := p.parseExpression()
		p.expectPunct(",")
		els := p.parseExpression()
		p.expectPunct(")")
		return &expr.IfExpr{Cond: cond, Then: then, Else: els}
	case p.isKeyword("COALESCE"):
		p.advance()
		return &expr.CoalesceExpr{Args: p.parseArgList()}
	case p.isKeyword("COUNT"), p.isKeyword("SUM"), p.isKeyword("MIN"),
		p.isKeyword("MAX"), p.isKeyword("AVG"), p.isKeyword("SAMPLE"),
		p.isKeyword("GROUP_CONCAT"):
		return p.parseAggregate()
	case p.tok.kind == tKeyword:
		name := p.tok.text
		p.advance()
		return &expr.FuncCall{Name: name, Args: p.parseArgList()}
	case p.tok.kind == tIRIRef, p.tok.kind == tPNameLN, p.tok.kind == tPNameNS:
		iri := p.parseIRITerm()
		if p.isPunct("(") {
			return &expr.FuncCall{Name: string(iri.(expr.IRI)), Args: p.parseArgList()}
		}
		return &expr.TermNode{Term: iri}
	default:
		return &expr.TermNode{Term: p.parseTermValue()}
	}
}

func (p *parser) parseArgList() []expr.Node {
	p.expectPunct("(")
	var args []expr.Node
	for !p.isPunct(")") {
		args = append(args, p.parseExpression())
		if p.isPunct(",") {
			p.advance()
		}
	}
	p.expectPunct(")")
	return args
}

func (p *parser) parseAggregate() expr.Node {
	kindByName := map[string]expr.AggregateKind{
		"COUNT": expr.AggCount, "SUM": expr.AggSum, "MIN": expr.AggMin,
		"MAX": expr.AggMax, "AVG": expr.AggAvg, "SAMPLE": expr.AggSample,
		"GROUP_CONCAT": expr.AggGroupConcat,
	}
	kind := kindByName[p.tok.text]
	p.advance()
	p.expectPunct("(")
	agg := &expr.Aggregate{Kind: kind}
	if p.isKeyword("DISTINCT") {
		agg.Distinct = true
		p.advance()
	}
	if p.isPunct("*") {
		p.advance()
	} else {
		agg.Expr = p.parseExpression()
	}
	if p.isPunct(";") && kind == expr.AggGroupConcat {
		p.advance()
		p.expectKeyword("SEPARATOR")
		p.expectPunct("=")
		lit := p.parseTermValue().(expr.Literal)
		agg.Separator = lit.Lexical
	}
	p.expectPunct(")")
	return agg
}

func (p *parser) parseVarOrTermSlotOrFunc() expr.Slot { return p.parseVarOrTermSlot() }

// ---- update ----

func (p *parser) parseUpdate() *expr.Query {
	q := &expr.Query{Form: expr.FormUpdate}
	for {
		q.Updates = append(q.Updates, p.parseUpdateOp())
		if p.isPunct(";") {
			p.advance()
			if p.tok.kind == tEOF {
				break
			}
			continue
		}
		break
	}
	return q
}

func (p *parser) parseUpdateOp() expr.UpdateOp {
	switch {
	case p.isKeyword("INSERT") && p.peekIsData():
		p.advance()
		p.expectKeyword("DATA")
		p.expectPunct("{")
		quads := p.parseTriplesBlock()
		p.expectPunct("}")
		return &expr.InsertData{Quads: quads}
	case p.isKeyword("DELETE") && p.peekIsData():
		p.advance()
		p.expectKeyword("DATA")
		p.expectPunct("{")
		quads := p.parseTriplesBlock()
		p.expectPunct("}")
		return &expr.DeleteData{Quads: quads}
	case p.isKeyword("WITH"), p.isKeyword("DELETE"), p.isKeyword("INSERT"):
		return p.parseDeleteInsert()
	case p.isKeyword("LOAD"):
		p.advance()
		silent := p.isKeyword("SILENT")
		if silent {
			p.advance()
		}
		src := p.parseIRITerm()
		u := &expr.Load{Silent: silent, Source: src}
		if p.isKeyword("INTO") {
			p.advance()
			p.expectKeyword("GRAPH")
			g := p.parseIRITerm()
			u.Into = &expr.GraphRef{IRI: g}
		}
		return u
	case p.isKeyword("CLEAR"):
		p.advance()
		silent := p.isKeyword("SILENT")
		if silent {
			p.advance()
		}
		return &expr.Clear{Silent: silent, Target: p.parseGraphRef()}
	case p.isKeyword("CREATE"):
		p.advance()
		silent := p.isKeyword("SILENT")
		if silent {
			p.advance()
		}
		p.expectKeyword("GRAPH")
		return &expr.Create{Silent: silent, Graph: p.parseIRITerm()}
	case p.isKeyword("DROP"):
		p.advance()
		silent := p.isKeyword("SILENT")
		if silent {
			p.advance()
		}
		return &expr.Drop{Silent: silent, Target: p.parseGraphRef()}
	case p.isKeyword("COPY"), p.isKeyword("MOVE"), p.isKeyword("ADD"):
		kind := map[string]expr.GraphUpdateKind{"COPY": expr.GraphCopy, "MOVE": expr.GraphMove, "ADD": expr.GraphAdd}[p.tok.text]
		p.advance()
		silent := p.isKeyword("SILENT")
		if silent {
			p.advance()
		}
		src := p.parseGraphRef()
		p.expectKeyword("TO")
		dst := p.parseGraphRef()
		return &expr.GraphUpdate{Kind: kind, Silent: silent, Source: src, Dest: dst}
	}
	p.fail("expected an update operation, got %q", p.tok.text)
	return nil
}

// peekIsData reports whether the token after the current INSERT or
// DELETE keyword is DATA, which disambiguates `INSERT DATA {...}` and
// `DELETE DATA {...}` from the general DELETE/INSERT/WHERE form.
func (p *parser) peekIsData() bool {
	save := *p.s
	savedTok := p.tok
	p.advance()
	isData := p.isKeyword("DATA")
	*p.s = save
	p.tok = savedTok
	return isData
}

func (p *parser) parseGraphRef() expr.GraphRef {
	switch {
	case p.isKeyword("DEFAULT"):
		p.advance()
		return expr.GraphRef{Default: true}
	case p.isKeyword("NAMED"):
		p.advance()
		return expr.GraphRef{Named: true}
	case p.isKeyword("ALL"):
		p.advance()
		return expr.GraphRef{All: true}
	case p.isKeyword("GRAPH"):
		p.advance()
		return expr.GraphRef{IRI: p.parseIRITerm()}
	default:
		return expr.GraphRef{IRI: p.parseIRITerm()}
	}
}

func (p *parser) parseDeleteInsert() expr.UpdateOp {
	u := &expr.DeleteInsert{}
	if p.isKeyword("WITH") {
		p.advance()
		u.With = p.parseIRITerm()
	}
	if p.isKeyword("DELETE") {
		p.advance()
		p.expectPunct("{")
		u.DeleteTmpl = p.parseTriplesBlock()
		p.expectPunct("}")
	}
	if p.isKeyword("INSERT") {
		p.advance()
		p.expectPunct("{")
		u.InsertTmpl = p.parseTriplesBlock()
		p.expectPunct("}")
	}
	for p.isKeyword("USING") {
		p.advance()
		named := p.isKeyword("NAMED")
		if named {
			p.advance()
		}
		t := p.parseIRITerm()
		if named {
			u.UsingNamed = append(u.UsingNamed, t)
		} else {
			u.Using = append(u.Using, t)
		}
	}
	p.expectKeyword("WHERE")
	u.Where = p.parseGroupGraphPattern()
	return u
}
