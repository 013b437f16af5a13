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

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/config"
)

// seed loads a handful of FOAF-ish triples via SPARQL Update, the same
// path an external caller uses, so the test never reaches around the
// public API to poke the store directly.
func seed(t *testing.T, e *Engine) {
	t.Helper()
	err := e.Update(context.Background(), `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
			<http://example.org/alice> <http://example.org/age> "30"^^<http://www.w3.org/2001/XMLSchema#integer> .
			<http://example.org/bob> <http://example.org/age> "25"^^<http://www.w3.org/2001/XMLSchema#integer> .
			<http://example.org/bob> <http://example.org/knows> <http://example.org/carol> .
		}
	`)
	require.NoError(t, err)
}

func TestSelectReturnsBoundVariablesInProjectionOrder(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	rows, err := e.Select(context.Background(), `
		SELECT ?p ?o WHERE { <http://example.org/alice> ?p ?o }
	`)
	require.NoError(t, err)
	defer rows.Close()

	assert.Equal(t, []string{"p", "o"}, rows.Variables())

	var got []map[string]Term
	for {
		row, ok, err := rows.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row)
	}
	assert.Len(t, got, 2)
}

func TestSelectStarReportsEveryBoundVariableSorted(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	m, err := e.SelectMaterialized(context.Background(), `SELECT * WHERE { ?s ?p ?o }`)
	require.NoError(t, err)
	assert.Len(t, m.Rows, 4)
	assert.Equal(t, []string{"o", "p", "s"}, m.Variables)
}

func TestAskReportsWhetherAPatternHasASolution(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	ok, err := e.Ask(context.Background(), `ASK { <http://example.org/alice> <http://example.org/knows> <http://example.org/bob> }`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Ask(context.Background(), `ASK { <http://example.org/bob> <http://example.org/knows> <http://example.org/alice> }`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConstructDeduplicatesRepeatedTriples(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	triples, err := e.Construct(context.Background(), `
		CONSTRUCT { ?s <http://example.org/hasAge> ?age } WHERE { ?s <http://example.org/age> ?age . ?s ?p ?o }
	`)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	for _, tr := range triples {
		assert.Equal(t, "http://example.org/hasAge", tr.P.Value)
	}
}

func TestDescribeReturnsEveryTripleAboutTheResource(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	triples, err := e.Describe(context.Background(), `DESCRIBE <http://example.org/alice>`)
	require.NoError(t, err)
	assert.Len(t, triples, 2)
}

func TestUpdateSeesItsOwnEarlierOperationsWithinOneRequest(t *testing.T) {
	e := New(config.Defaults())
	err := e.Update(context.Background(), `
		INSERT DATA { <http://example.org/x> <http://example.org/y> <http://example.org/z> } ;
		DELETE { ?s <http://example.org/y> ?o } INSERT { ?s <http://example.org/y2> ?o } WHERE { ?s <http://example.org/y> ?o }
	`)
	require.NoError(t, err)

	ok, err := e.Ask(context.Background(), `ASK { <http://example.org/x> <http://example.org/y2> <http://example.org/z> }`)
	require.NoError(t, err)
	assert.True(t, ok, "the DELETE/INSERT must see the INSERT DATA that precedes it in the same request")

	ok, err = e.Ask(context.Background(), `ASK { <http://example.org/x> <http://example.org/y> <http://example.org/z> }`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateIsRejectedWhenDisabledByConfiguration(t *testing.T) {
	cfg := config.Defaults()
	cfg.AllowUpdates = false
	e := New(cfg)

	err := e.Update(context.Background(), `INSERT DATA { <http://example.org/x> <http://example.org/y> <http://example.org/z> }`)
	assert.Error(t, err)
}

func TestSelectRejectsNonSelectForm(t *testing.T) {
	e := New(config.Defaults())
	_, err := e.Select(context.Background(), `ASK { ?s ?p ?o }`)
	assert.Error(t, err)
}

func TestFilterNarrowsSolutionsByNumericComparison(t *testing.T) {
	e := New(config.Defaults())
	seed(t, e)

	m, err := e.SelectMaterialized(context.Background(), `
		SELECT ?s WHERE { ?s <http://example.org/age> ?age . FILTER(?age > 26) }
	`)
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)
	assert.Equal(t, "http://example.org/alice", m.Rows[0]["s"].Value)
}
