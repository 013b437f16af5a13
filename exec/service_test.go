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

package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/expr"
)

func TestServiceScanMergesCompatibleRemoteRows(t *testing.T) {
	x, y := expr.NewVar("x"), expr.NewVar("y")
	outer := newSliceIter(NewRow().Bind(x, expr.Literal{Lexical: "1"}))
	s := &ServiceScan{
		Input:    outer,
		Endpoint: func(Row) (expr.Term, error) { return expr.IRI("http://example.org/sparql"), nil },
		Pattern:  "{ ?y ?p ?o }",
		Call: func(ctx context.Context, endpoint expr.Term, pattern string, outerRow Row) ([]Row, error) {
			return []Row{NewRow().Bind(y, expr.Literal{Lexical: "2"})}, nil
		},
	}
	out := drain(t, s)
	require.Len(t, out, 1)
	_, ok := out[0].Get(x)
	assert.True(t, ok)
	_, ok = out[0].Get(y)
	assert.True(t, ok)
}

func TestServiceScanSilentFallsBackToOuterRowOnFailure(t *testing.T) {
	x := expr.NewVar("x")
	outer := newSliceIter(NewRow().Bind(x, expr.Literal{Lexical: "1"}))
	s := &ServiceScan{
		Input:    outer,
		Endpoint: func(Row) (expr.Term, error) { return expr.IRI("http://example.org/sparql"), nil },
		Pattern:  "{ ?y ?p ?o }",
		Silent:   true,
		Call: func(ctx context.Context, endpoint expr.Term, pattern string, outerRow Row) ([]Row, error) {
			return nil, assert.AnError
		},
	}
	out := drain(t, s)
	require.Len(t, out, 1)
	_, ok := out[0].Get(x)
	assert.True(t, ok)
}

func TestServiceScanNonSilentPropagatesCallError(t *testing.T) {
	outer := newSliceIter(NewRow())
	s := &ServiceScan{
		Input:    outer,
		Endpoint: func(Row) (expr.Term, error) { return expr.IRI("http://example.org/sparql"), nil },
		Pattern:  "{ ?y ?p ?o }",
		Call: func(ctx context.Context, endpoint expr.Term, pattern string, outerRow Row) ([]Row, error) {
			return nil, assert.AnError
		},
	}
	_, _, err := s.Next(context.Background())
	assert.Error(t, err)
}
