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

// Package sparql is a hand-written recursive-descent lexer and parser
// for SPARQL 1.1 Query and Update, producing github.com/bemafred/rdfq/expr
// algebra. The scanner shape (a from []byte plus an integer cursor, with
// a position() helper that turns an offset back into line/column for
// error messages) follows github.com/SnellerInc/sneller's
// expr/partiql/lex.go scanner; unlike partiql's goyacc-generated grammar,
// SPARQL's grammar is walked directly by the parser in this package,
// since hand-rolled recursive descent over SPARQL's EBNF production
// rules is both simpler and easier to keep in sync with the spec grammar
// than a yacc table would be.
package sparql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tIRIRef
	tPNameLN  // prefixed name, e.g. foaf:name
	tPNameNS  // bare prefix, e.g. foaf:
	tBlankNode
	tVar
	tString
	tInteger
	tDecimal
	tDouble
	tLangTag
	tPunct // single/multi-char punctuation: braces, parens, operators
	tKeyword
	tA // the "a" rdf:type shorthand
)

type token struct {
	kind tokenKind
	text string // raw lexeme (decoded for strings)
	pos  int
	lang string // language tag, set only for a lang-tagged tString token
}

type scanner struct {
	from []byte
	pos  int
	err  error
}

func newScanner(src []byte) *scanner {
	return &scanner{from: src}
}

// position turns a byte offset into 1-based line/column coordinates for
// diagnostics.
func (s *scanner) position(p int) (line, column int) {
	line, column = 1, 1
	for i := 0; i < p && i < len(s.from); i++ {
		if s.from[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return
}

func (s *scanner) errorf(pos int, format string, args ...interface{}) {
	if s.err != nil {
		return
	}
	line, col := s.position(pos)
	s.err = fmt.Errorf("sparql: %d:%d: %s", line, col, fmt.Sprintf(format, args...))
}

func isWS(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func (s *scanner) skipWSAndComments() {
	for s.pos < len(s.from) {
		c := s.from[s.pos]
		if isWS(c) {
			s.pos++
			continue
		}
		if c == '#' {
			for s.pos < len(s.from) && s.from[s.pos] != '\n' {
				s.pos++
			}
			continue
		}
		break
	}
}

func isPNCharsBase(r rune) bool {
	return unicode.IsLetter(r) || r > 0xC0
}

func isPNCharsU(r rune) bool {
	return isPNCharsBase(r) || r == '_'
}

func isPNChars(r rune) bool {
	return isPNCharsU(r) || r == '-' || unicode.IsDigit(r) || r == 0xB7
}

func isVarChar(r rune) bool {
	return isPNCharsU(r) || unicode.IsDigit(r) || r == 0xB7
}

// next returns the next token and advances the cursor.
func (s *scanner) next() token {
	s.skipWSAndComments()
	start := s.pos
	if s.pos >= len(s.from) {
		return token{kind: tEOF, pos: start}
	}

	c := s.from[s.pos]
	switch {
	case c == '<':
		return s.scanIRI(start)
	case c == '?' || c == '$':
		return s.scanVar(start)
	case c == '"' || c == '\'':
		return s.scanString(start, c)
	case c == '_' && s.pos+1 < len(s.from) && s.from[s.pos+1] == ':':
		return s.scanBlank(start)
	case c >= '0' && c <= '9', c == '+' || c == '-':
		if tok, ok := s.tryScanNumber(start); ok {
			return tok
		}
		fallthrough
	default:
		r, size := utf8.DecodeRune(s.from[s.pos:])
		if isPNCharsBase(r) {
			return s.scanNameOrKeyword(start)
		}
		return s.scanPunct(start, r, size)
	}
}

func (s *scanner) scanIRI(start int) token {
	s.pos++ // '<'
	for s.pos < len(s.from) && s.from[s.pos] != '>' {
		if s.from[s.pos] == '\\' {
			s.pos++
		}
		s.pos++
	}
	text := string(s.from[start+1 : min(s.pos, len(s.from))])
	if s.pos < len(s.from) {
		s.pos++ // '>'
	} else {
		s.errorf(start, "unterminated IRIREF")
	}
	return token{kind: tIRIRef, text: unescapeIRI(text), pos: start}
}

func (s *scanner) scanVar(start int) token {
	s.pos++ // '?' or '$'
	for s.pos < len(s.from) {
		r, size := utf8.DecodeRune(s.from[s.pos:])
		if !isVarChar(r) {
			break
		}
		s.pos += size
	}
	return token{kind: tVar, text: string(s.from[start+1 : s.pos]), pos: start}
}

func (s *scanner) scanBlank(start int) token {
	s.pos += 2 // "_:"
	for s.pos < len(s.from) {
		r, size := utf8.DecodeRune(s.from[s.pos:])
		if !isPNChars(r) && r != '.' {
			break
		}
		s.pos += size
	}
	return token{kind: tBlankNode, text: string(s.from[start+2 : s.pos]), pos: start}
}

func (s *scanner) scanString(start int, quote byte) token {
	long := s.pos+2 < len(s.from) && s.from[s.pos+1] == quote && s.from[s.pos+2] == quote
	n := 1
	if long {
		n = 3
	}
	s.pos += n
	var b strings.Builder
	for s.pos < len(s.from) {
		if s.from[s.pos] == '\\' && s.pos+1 < len(s.from) {
			b.WriteByte(decodeEscape(s.from[s.pos+1]))
			s.pos += 2
			continue
		}
		if matchQuote(s.from, s.pos, quote, n) {
			s.pos += n
			break
		}
		r, size := utf8.DecodeRune(s.from[s.pos:])
		b.WriteRune(r)
		s.pos += size
	}
	tok := token{kind: tString, text: b.String(), pos: start}

	if s.pos < len(s.from) && s.from[s.pos] == '@' {
		s.pos++
		langStart := s.pos
		for s.pos < len(s.from) && (isAlnum(s.from[s.pos]) || s.from[s.pos] == '-') {
			s.pos++
		}
		tok.lang = string(s.from[langStart:s.pos])
	}
	return tok
}

func matchQuote(b []byte, pos int, quote byte, n int) bool {
	if pos+n > len(b) {
		return false
	}
	for i := 0; i < n; i++ {
		if b[pos+i] != quote {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '"', '\'', '\\':
		return c
	default:
		return c
	}
}

func (s *scanner) tryScanNumber(start int) (token, bool) {
	p := s.pos
	if s.from[p] == '+' || s.from[p] == '-' {
		p++
	}
	digitsBefore := p
	for p < len(s.from) && s.from[p] >= '0' && s.from[p] <= '9' {
		p++
	}
	if p == digitsBefore && (p >= len(s.from) || s.from[p] != '.') {
		return token{}, false
	}
	isDec := false
	if p < len(s.from) && s.from[p] == '.' {
		q := p + 1
		for q < len(s.from) && s.from[q] >= '0' && s.from[q] <= '9' {
			q++
		}
		if q > p+1 {
			isDec = true
			p = q
		} else if p == digitsBefore {
			return token{}, false
		}
	}
	isDouble := false
	if p < len(s.from) && (s.from[p] == 'e' || s.from[p] == 'E') {
		q := p + 1
		if q < len(s.from) && (s.from[q] == '+' || s.from[q] == '-') {
			q++
		}
		digStart := q
		for q < len(s.from) && s.from[q] >= '0' && s.from[q] <= '9' {
			q++
		}
		if q > digStart {
			isDouble = true
			p = q
		}
	}
	s.pos = p
	kind := tInteger
	if isDouble {
		kind = tDouble
	} else if isDec {
		kind = tDecimal
	}
	return token{kind: kind, text: string(s.from[start:p]), pos: start}, true
}

func (s *scanner) scanNameOrKeyword(start int) token {
	for s.pos < len(s.from) {
		r, size := utf8.DecodeRune(s.from[s.pos:])
		if !isPNChars(r) {
			break
		}
		s.pos += size
	}
	word := s.from[start:s.pos]

	if s.pos < len(s.from) && s.from[s.pos] == ':' {
		// prefixed name: PREFIX:local or bare PREFIX:
		s.pos++
		localStart := s.pos
		for s.pos < len(s.from) {
			r, size := utf8.DecodeRune(s.from[s.pos:])
			if !isPNChars(r) && r != '.' && r != '\\' {
				break
			}
			s.pos += size
		}
		full := string(s.from[start:s.pos])
		if s.pos == localStart {
			return token{kind: tPNameNS, text: full, pos: start}
		}
		return token{kind: tPNameLN, text: full, pos: start}
	}

	if len(word) == 1 && (word[0] == 'a' || word[0] == 'A') {
		return token{kind: tA, text: "a", pos: start}
	}
	if isSPARQLKeyword(string(word)) {
		return token{kind: tKeyword, text: strings.ToUpper(string(word)), pos: start}
	}
	return token{kind: tPNameNS, text: string(word) + ":", pos: start}
}

func (s *scanner) scanPunct(start int, r rune, size int) token {
	two := ""
	if s.pos+1 < len(s.from) {
		two = string(s.from[s.pos : s.pos+2])
	}
	switch two {
	case "^^", "!=", "<=", ">=", "&&", "||":
		s.pos += 2
		return token{kind: tPunct, text: two, pos: start}
	}
	s.pos += size
	return token{kind: tPunct, text: string(r), pos: start}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func unescapeIRI(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteByte(decodeEscape(s[i+1]))
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var sparqlKeywords = map[string]bool{}

func init() {
	for _, k := range []string{
		"SELECT", "DISTINCT", "REDUCED", "WHERE", "FROM", "NAMED", "ASK",
		"CONSTRUCT", "DESCRIBE", "OPTIONAL", "UNION", "MINUS", "FILTER",
		"GRAPH", "SERVICE", "SILENT", "BIND", "AS", "VALUES", "UNDEF",
		"GROUP", "BY", "HAVING", "ORDER", "ASC", "DESC", "LIMIT", "OFFSET",
		"PREFIX", "BASE", "BOUND", "EXISTS", "NOT", "IN", "IF", "COALESCE",
		"COUNT", "SUM", "MIN", "MAX", "AVG", "SAMPLE", "GROUP_CONCAT",
		"SEPARATOR", "REGEX", "REPLACE", "STR", "LANG", "LANGMATCHES",
		"DATATYPE", "ISIRI", "ISURI", "ISLITERAL", "ISBLANK", "ISNUMERIC",
		"IRI", "URI", "BNODE", "INSERT", "DELETE", "DATA", "LOAD", "CLEAR",
		"CREATE", "DROP", "COPY", "MOVE", "ADD", "TO", "ALL", "DEFAULT", "INTO",
		"WITH", "USING", "TRUE", "FALSE", "ZERO_OR_MORE",
	} {
		sparqlKeywords[k] = true
	}
}

func isSPARQLKeyword(word string) bool {
	return sparqlKeywords[strings.ToUpper(word)]
}
