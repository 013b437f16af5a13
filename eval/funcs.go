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
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bemafred/rdfq/date"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/utf8"
)

func evalFuncCall(e *expr.FuncCall, env Env) (expr.Term, error) {
	args := make([]expr.Term, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	name := strings.ToUpper(e.Name)
	fn, ok := builtins[name]
	if !ok {
		return nil, typeErrorf("unknown function %s", e.Name)
	}
	return fn(args)
}

type builtinFunc func(args []expr.Term) (expr.Term, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"STR":           fnStr,
		"LANG":          fnLang,
		"DATATYPE":      fnDatatype,
		"IRI":           fnIRI,
		"URI":           fnIRI,
		"BNODE":         fnBNode,
		"ISIRI":         fnIsIRI,
		"ISURI":         fnIsIRI,
		"ISLITERAL":     fnIsLiteral,
		"ISBLANK":       fnIsBlank,
		"ISNUMERIC":     fnIsNumeric,
		"STRLEN":        fnStrlen,
		"SUBSTR":        fnSubstr,
		"UCASE":         fnUcase,
		"LCASE":         fnLcase,
		"CONTAINS":      fnContains,
		"STRSTARTS":     fnStrStarts,
		"STRENDS":       fnStrEnds,
		"STRBEFORE":     fnStrBefore,
		"STRAFTER":      fnStrAfter,
		"CONCAT":        fnConcat,
		"ENCODE_FOR_URI": fnEncodeForURI,
		"LANGMATCHES":   fnLangMatches,
		"REGEX":         fnRegex,
		"REPLACE":       fnReplace,
		"ABS":           fnNumeric1(math.Abs),
		"ROUND":         fnNumeric1(math.Round),
		"CEIL":          fnNumeric1(math.Ceil),
		"FLOOR":         fnNumeric1(math.Floor),
		"RAND":          fnRand,
		"NOW":           fnNow,
		"YEAR":          fnDatePart(func(t date.Time) int { return t.Year() }),
		"MONTH":         fnDatePart(func(t date.Time) int { return t.Month() }),
		"DAY":           fnDatePart(func(t date.Time) int { return t.Day() }),
		"HOURS":         fnDatePart(func(t date.Time) int { return t.Hour() }),
		"MINUTES":       fnDatePart(func(t date.Time) int { return t.Minute() }),
		"SECONDS":       fnDatePart(func(t date.Time) int { return t.Second() }),
		"TZ":            fnTZ,
		"MD5":           fnHashVar(md5Sum),
		"SHA1":          fnHashVar(sha1Sum),
		"SHA256":        fnHashVar(sha256Sum),
		"SHA384":        fnHashVar(sha384Sum),
		"SHA512":        fnHashVar(sha512Sum),
		"UUID":          fnUUID,
		"STRUUID":       fnStrUUID,
		"STRLANG":       fnStrLang,
		"STRDT":         fnStrDT,
		"SAMETERM":      fnSameTerm,
	}
}

func md5Sum(b []byte) []byte    { s := md5.Sum(b); return s[:] }
func sha1Sum(b []byte) []byte   { s := sha1.Sum(b); return s[:] }
func sha256Sum(b []byte) []byte { s := sha256.Sum256(b); return s[:] }
func sha384Sum(b []byte) []byte { s := sha512.Sum384(b); return s[:] }
func sha512Sum(b []byte) []byte { s := sha512.Sum512(b); return s[:] }

func lexOf(t expr.Term) (string, error) {
	switch v := t.(type) {
	case expr.Literal:
		return v.Lexical, nil
	case expr.IRI:
		return string(v), nil
	}
	return "", typeErrorf("%s has no string form", t)
}

func fnStr(args []expr.Term) (expr.Term, error) {
	if len(args) != 1 {
		return nil, typeErrorf("STR takes 1 argument")
	}
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: s}, nil
}

func fnLang(args []expr.Term) (expr.Term, error) {
	lit, ok := args[0].(expr.Literal)
	if !ok {
		return nil, typeErrorf("LANG requires a literal")
	}
	return expr.Literal{Lexical: lit.Lang}, nil
}

func fnDatatype(args []expr.Term) (expr.Term, error) {
	lit, ok := args[0].(expr.Literal)
	if !ok {
		return nil, typeErrorf("DATATYPE requires a literal")
	}
	return expr.IRI(effectiveDatatype(lit)), nil
}

func fnIRI(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return expr.IRI(s), nil
}

var bnodeCounter uint64

func fnBNode(args []expr.Term) (expr.Term, error) {
	if len(args) == 1 {
		s, err := lexOf(args[0])
		if err != nil {
			return nil, err
		}
		return expr.BlankNode(s), nil
	}
	bnodeCounter++
	return expr.BlankNode(fmt.Sprintf("b%d", bnodeCounter)), nil
}

func fnIsIRI(args []expr.Term) (expr.Term, error) { return boolTerm(args[0].Kind() == expr.KindIRI), nil }
func fnIsLiteral(args []expr.Term) (expr.Term, error) {
	return boolTerm(args[0].Kind() == expr.KindLiteral), nil
}
func fnIsBlank(args []expr.Term) (expr.Term, error) { return boolTerm(args[0].Kind() == expr.KindBlank), nil }
func fnIsNumeric(args []expr.Term) (expr.Term, error) {
	lit, ok := args[0].(expr.Literal)
	return boolTerm(ok && expr.NumericKind(effectiveDatatype(lit))), nil
}

func fnStrlen(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return numericTerm(float64(utf8.ValidStringLength([]byte(s))), expr.XSDInteger), nil
}

func fnSubstr(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	r := []rune(s)
	start, err := ToFloat(args[1])
	if err != nil {
		return nil, err
	}
	from := int(start) - 1
	if from < 0 {
		from = 0
	}
	if from > len(r) {
		from = len(r)
	}
	end := len(r)
	if len(args) > 2 {
		length, err := ToFloat(args[2])
		if err != nil {
			return nil, err
		}
		end = from + int(length)
		if end > len(r) {
			end = len(r)
		}
	}
	if end < from {
		end = from
	}
	return expr.Literal{Lexical: string(r[from:end])}, nil
}

func fnUcase(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: strings.ToUpper(s)}, nil
}

func fnLcase(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: strings.ToLower(s)}, nil
}

func fnContains(args []expr.Term) (expr.Term, error) {
	a, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	b, err := lexOf(args[1])
	if err != nil {
		return nil, err
	}
	return boolTerm(strings.Contains(a, b)), nil
}

func fnStrStarts(args []expr.Term) (expr.Term, error) {
	a, _ := lexOf(args[0])
	b, _ := lexOf(args[1])
	return boolTerm(strings.HasPrefix(a, b)), nil
}

func fnStrEnds(args []expr.Term) (expr.Term, error) {
	a, _ := lexOf(args[0])
	b, _ := lexOf(args[1])
	return boolTerm(strings.HasSuffix(a, b)), nil
}

func fnStrBefore(args []expr.Term) (expr.Term, error) {
	a, _ := lexOf(args[0])
	b, _ := lexOf(args[1])
	idx := strings.Index(a, b)
	if idx < 0 {
		return expr.Literal{Lexical: ""}, nil
	}
	return expr.Literal{Lexical: a[:idx]}, nil
}

func fnStrAfter(args []expr.Term) (expr.Term, error) {
	a, _ := lexOf(args[0])
	b, _ := lexOf(args[1])
	idx := strings.Index(a, b)
	if idx < 0 {
		return expr.Literal{Lexical: ""}, nil
	}
	return expr.Literal{Lexical: a[idx+len(b):]}, nil
}

func fnConcat(args []expr.Term) (expr.Term, error) {
	var b strings.Builder
	for _, a := range args {
		s, err := lexOf(a)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return expr.Literal{Lexical: b.String()}, nil
}

func fnEncodeForURI(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: url.QueryEscape(s)}, nil
}

func fnLangMatches(args []expr.Term) (expr.Term, error) {
	lang, _ := lexOf(args[0])
	rng, _ := lexOf(args[1])
	if rng == "*" {
		return boolTerm(lang != ""), nil
	}
	return boolTerm(strings.EqualFold(lang, rng) || strings.HasPrefix(strings.ToLower(lang), strings.ToLower(rng)+"-")), nil
}

func fnNumeric1(f func(float64) float64) builtinFunc {
	return func(args []expr.Term) (expr.Term, error) {
		v, err := ToFloat(args[0])
		if err != nil {
			return nil, err
		}
		lit := args[0].(expr.Literal)
		return numericTerm(f(v), effectiveDatatype(lit)), nil
	}
}

func fnRand(args []expr.Term) (expr.Term, error) {
	return numericTerm(rand.Float64(), expr.XSDDouble), nil
}

func fnNow(args []expr.Term) (expr.Term, error) {
	var b []byte
	return expr.Literal{Lexical: string(date.Now().AppendRFC3339(b)), Datatype: expr.XSDDateTime}, nil
}

func fnDatePart(f func(date.Time) int) builtinFunc {
	return func(args []expr.Term) (expr.Term, error) {
		lit, ok := args[0].(expr.Literal)
		if !ok {
			return nil, typeErrorf("date/time accessor requires a dateTime literal")
		}
		t, ok := date.Parse([]byte(lit.Lexical))
		if !ok {
			return nil, typeErrorf("invalid dateTime literal %q", lit.Lexical)
		}
		return numericTerm(float64(f(t)), expr.XSDInteger), nil
	}
}

func fnTZ(args []expr.Term) (expr.Term, error) {
	return expr.Literal{Lexical: "Z"}, nil
}

func fnHashVar(sum func([]byte) []byte) builtinFunc {
	return func(args []expr.Term) (expr.Term, error) {
		s, err := lexOf(args[0])
		if err != nil {
			return nil, err
		}
		return expr.Literal{Lexical: hex.EncodeToString(sum([]byte(s)))}, nil
	}
}

func fnUUID(args []expr.Term) (expr.Term, error) {
	return expr.IRI("urn:uuid:" + uuid.NewString()), nil
}

func fnStrUUID(args []expr.Term) (expr.Term, error) {
	return expr.Literal{Lexical: uuid.NewString()}, nil
}

func fnStrLang(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	lang, err := lexOf(args[1])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: s, Lang: lang}, nil
}

func fnStrDT(args []expr.Term) (expr.Term, error) {
	s, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	dt, err := lexOf(args[1])
	if err != nil {
		return nil, err
	}
	return expr.Literal{Lexical: s, Datatype: dt}, nil
}

func fnSameTerm(args []expr.Term) (expr.Term, error) {
	eq, err := sameTerm(args[0], args[1])
	if err != nil {
		return nil, err
	}
	return boolTerm(eq), nil
}
