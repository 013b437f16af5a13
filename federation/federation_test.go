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

package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
)

func TestDecodeBindingKinds(t *testing.T) {
	uri, err := decodeBinding(binding{Type: "uri", Value: "http://example.org/s"})
	require.NoError(t, err)
	assert.Equal(t, expr.IRI("http://example.org/s"), uri)

	bnode, err := decodeBinding(binding{Type: "bnode", Value: "b0"})
	require.NoError(t, err)
	assert.Equal(t, expr.BlankNode("b0"), bnode)

	lit, err := decodeBinding(binding{Type: "literal", Value: "hi", Lang: "en"})
	require.NoError(t, err)
	assert.Equal(t, expr.Literal{Lexical: "hi", Lang: "en"}, lit)

	typedLit, err := decodeBinding(binding{Type: "typed-literal", Value: "42", Datatype: "http://www.w3.org/2001/XMLSchema#integer"})
	require.NoError(t, err)
	assert.Equal(t, expr.Literal{Lexical: "42", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}, typedLit)

	_, err = decodeBinding(binding{Type: "mystery"})
	assert.Error(t, err)
}

func TestCallGetsWithQueryParamPreservedAndDecodesBindings(t *testing.T) {
	var gotMethod, gotAccept string
	var gotQuery url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{
			"head": {"vars": ["name"]},
			"results": {"bindings": [{"name": {"type": "literal", "value": "Alice"}}]}
		}`))
	}))
	defer srv.Close()

	c := New()
	endpoint := srv.URL + "?graph=default"
	rows, err := c.Call(context.Background(), expr.IRI(endpoint), "{ ?s ?p ?o }", exec.NewRow())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "application/sparql-results+json", gotAccept)
	assert.Equal(t, "default", gotQuery.Get("graph"), "existing endpoint query params must be preserved")
	assert.NotEmpty(t, gotQuery.Get("query"))

	v, ok := rows[0].Get(expr.NewVar("name"))
	require.True(t, ok)
	assert.Equal(t, expr.Literal{Lexical: "Alice"}, v)
}

func TestCallPropagates4xxWithoutRetrying(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Call(context.Background(), expr.IRI(srv.URL), "{ ?s ?p ?o }", exec.NewRow())
	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "a 4xx is permanent and must not be retried")
}
