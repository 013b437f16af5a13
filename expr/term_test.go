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

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Term{
		IRI("http://example.org/s"),
		BlankNode("b0"),
		Literal{Lexical: "hello"},
		Literal{Lexical: "hello", Lang: "en"},
		Literal{Lexical: "42", Datatype: XSDInteger},
		Literal{Lexical: `has "quotes" and \ backslash`},
		Literal{Lexical: "line\nbreak"},
		DefaultGraph,
	}
	for _, want := range cases {
		got, err := Decode(want.Encode())
		require.NoError(t, err, "term %#v", want)
		assert.Equal(t, want, got)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("<unterminated"),
		[]byte("_x"),
		[]byte(`"lex"^^notanIRI`),
		[]byte("garbage"),
	}
	for _, b := range cases {
		_, err := Decode(b)
		assert.Error(t, err, "input %q", b)
	}
}

func TestDistinctTermsEncodeDifferently(t *testing.T) {
	a := IRI("http://example.org/a").Encode()
	b := Literal{Lexical: "http://example.org/a"}.Encode()
	assert.NotEqual(t, a, b)
}

func TestDefaultGraphMarkerNeverCollidesWithARealTerm(t *testing.T) {
	assert.True(t, IsDefaultGraphBytes(DefaultGraph.Encode()))
	assert.False(t, IsDefaultGraphBytes(IRI("x").Encode()))
	assert.False(t, IsDefaultGraphBytes(Literal{Lexical: ""}.Encode()))
}

func TestVarHashIsStableAndDistinct(t *testing.T) {
	a := VarHash("x")
	b := VarHash("x")
	c := VarHash("y")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNumericKind(t *testing.T) {
	assert.True(t, NumericKind(XSDInteger))
	assert.True(t, NumericKind(XSDDouble))
	assert.False(t, NumericKind(XSDString))
	assert.False(t, NumericKind("http://example.org/notNumeric"))
}
