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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/expr"
)

func TestParseSimpleSelect(t *testing.T) {
	q, err := Parse([]byte(`SELECT ?s ?p ?o WHERE { ?s ?p ?o }`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormSelect, q.Form)
	require.False(t, q.Star)
	require.Len(t, q.Projection, 3)
	assert.Equal(t, "s", q.Projection[0].Var.Name)
	require.NotNil(t, q.Where)
	require.NotNil(t, q.Where.BGP)
	require.Len(t, q.Where.BGP.Patterns, 1)
}

func TestParseSelectStar(t *testing.T) {
	q, err := Parse([]byte(`SELECT * WHERE { ?s ?p ?o }`))
	require.NoError(t, err)
	assert.True(t, q.Star)
}

func TestParsePrefixExpandsIRIs(t *testing.T) {
	q, err := Parse([]byte(`
		PREFIX ex: <http://example.org/>
		SELECT ?s WHERE { ?s ex:knows ex:bob }
	`))
	require.NoError(t, err)
	require.Len(t, q.Where.BGP.Patterns, 1)
	pat := q.Where.BGP.Patterns[0]
	require.False(t, pat.Pred.IsVar)
	assert.Equal(t, expr.IRI("http://example.org/knows"), pat.Pred.Term)
	require.False(t, pat.Object.IsVar)
	assert.Equal(t, expr.IRI("http://example.org/bob"), pat.Object.Term)
}

func TestParseAsk(t *testing.T) {
	q, err := Parse([]byte(`ASK { ?s ?p ?o }`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormAsk, q.Form)
}

func TestParseConstruct(t *testing.T) {
	q, err := Parse([]byte(`CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormConstruct, q.Form)
	require.Len(t, q.Template, 1)
}

func TestParseDescribe(t *testing.T) {
	q, err := Parse([]byte(`DESCRIBE ?s WHERE { ?s a <http://example.org/Person> }`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormDescribe, q.Form)
	require.Len(t, q.Describe, 1)
	assert.True(t, q.Describe[0].IsVar)
}

func TestParseLoad(t *testing.T) {
	q, err := Parse([]byte(`LOAD <http://example.org/data.nt> INTO GRAPH <http://example.org/g>`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormUpdate, q.Form)
	require.Len(t, q.Updates, 1)
	ld, ok := q.Updates[0].(*expr.Load)
	require.True(t, ok)
	assert.Equal(t, expr.IRI("http://example.org/data.nt"), ld.Source)
	require.NotNil(t, ld.Into)
	assert.Equal(t, expr.IRI("http://example.org/g"), ld.Into.IRI)
}

func TestParseInsertData(t *testing.T) {
	q, err := Parse([]byte(`INSERT DATA { <http://example.org/s> <http://example.org/p> "v" }`))
	require.NoError(t, err)
	assert.Equal(t, expr.FormUpdate, q.Form)
	require.Len(t, q.Updates, 1)
	_, ok := q.Updates[0].(*expr.InsertData)
	assert.True(t, ok)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte(`THIS IS NOT SPARQL`))
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	q, err := Parse([]byte(`SELECT ?s WHERE { ?s <http://example.org/age> ?age . FILTER(?age > 18) }`))
	require.NoError(t, err)
	require.NotNil(t, q.Where)
	assert.NotEmpty(t, q.Where.Ops, "a FILTER clause must produce at least one group operator")
}

func TestParsePostQueryValuesFoldsIntoWhereGroup(t *testing.T) {
	q, err := Parse([]byte(`SELECT ?p ?a WHERE { ?p <http://example.org/age> ?a } VALUES ?a { 25 30 }`))
	require.NoError(t, err)
	require.NotNil(t, q.Where)
	require.NotEmpty(t, q.Where.Ops, "a trailing VALUES clause must be folded into the WHERE group")
	v, ok := q.Where.Ops[len(q.Where.Ops)-1].(*expr.Values)
	require.True(t, ok, "last WHERE op should be the post-query VALUES block")
	require.Len(t, v.Vars, 1)
	assert.Equal(t, "a", v.Vars[0].Name)
	assert.Len(t, v.Rows, 2)
}

func TestParseRejectsTrailingInputAfterQuery(t *testing.T) {
	_, err := Parse([]byte(`SELECT ?s WHERE { ?s ?p ?o } GARBAGE`))
	assert.Error(t, err)
}
