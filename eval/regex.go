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
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dlclark/regexp2"

	"github.com/bemafred/rdfq/expr"
)

// regexCache avoids recompiling the same REGEX/REPLACE pattern on every
// row of a FILTER or REPLACE call; SPARQL's XQuery-flavored regular
// expressions aren't Go-RE2-compatible (backreferences, lookaround), so
// they're compiled with github.com/dlclark/regexp2, whose .NET-style
// engine matches the XQuery F&O regex semantics the spec mandates.
var regexCache *lru.Cache[string, *regexp2.Regexp]

func init() {
	c, err := lru.New[string, *regexp2.Regexp](512)
	if err != nil {
		panic(err)
	}
	regexCache = c
}

func compileRegex(pattern, flags string) (*regexp2.Regexp, error) {
	key := flags + "\x00" + pattern
	if re, ok := regexCache.Get(key); ok {
		return re, nil
	}
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 's':
			opts |= regexp2.Singleline
		case 'm':
			opts |= regexp2.Multiline
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		}
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, typeErrorf("invalid regular expression %q: %v", pattern, err)
	}
	regexCache.Add(key, re)
	return re, nil
}

func fnRegex(args []expr.Term) (expr.Term, error) {
	if len(args) < 2 {
		return nil, typeErrorf("REGEX takes 2 or 3 arguments")
	}
	text, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	pattern, err := lexOf(args[1])
	if err != nil {
		return nil, err
	}
	flags := ""
	if len(args) == 3 {
		flags, err = lexOf(args[2])
		if err != nil {
			return nil, err
		}
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	ok, err := re.MatchString(text)
	if err != nil {
		return nil, typeErrorf("REGEX match failed: %v", err)
	}
	return boolTerm(ok), nil
}

func fnReplace(args []expr.Term) (expr.Term, error) {
	if len(args) < 3 {
		return nil, typeErrorf("REPLACE takes 3 or 4 arguments")
	}
	text, err := lexOf(args[0])
	if err != nil {
		return nil, err
	}
	pattern, err := lexOf(args[1])
	if err != nil {
		return nil, err
	}
	replacement, err := lexOf(args[2])
	if err != nil {
		return nil, err
	}
	flags := ""
	if len(args) == 4 {
		flags, err = lexOf(args[3])
		if err != nil {
			return nil, err
		}
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, err
	}
	out, err := re.Replace(text, dollarToRegexp2(replacement), -1, -1)
	if err != nil {
		return nil, typeErrorf("REPLACE failed: %v", err)
	}
	return expr.Literal{Lexical: out}, nil
}

// dollarToRegexp2 leaves XQuery's $1-style backreferences as-is, since
// regexp2's replacement syntax already uses the same convention.
func dollarToRegexp2(s string) string { return s }
