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

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/sparql"
	"github.com/bemafred/rdfq/store"
)

// newPlanner wires a Planner against a fresh atom table and store, the
// same seam engine.Engine.runtime builds, minus the federation/EXISTS
// callbacks a given test doesn't need.
func newPlanner(t *testing.T) (*Planner, *store.Store, *atom.Table) {
	t.Helper()
	atoms := atom.New()
	st := store.New()
	dflt := atoms.Intern(expr.DefaultGraph.Encode())
	view := st.AcquireRead()
	rt := &exec.Runtime{Atoms: atoms, View: view, DefaultGraph: dflt}
	p := New(rt, nil)
	rt.Exists = func(ctx context.Context, outer exec.Row, pattern interface{}) (bool, error) {
		return p.ExistsSolution(ctx, outer, pattern.(expr.Node))
	}
	return p, st, atoms
}

func insertTriple(t *testing.T, p *Planner, st *store.Store, s, pred, o string) {
	t.Helper()
	q, err := sparql.Parse([]byte(`INSERT DATA { <` + s + `> <` + pred + `> <` + o + `> }`))
	require.NoError(t, err)
	require.NoError(t, p.ExecuteUpdate(context.Background(), st, q))
}

// refreshView re-points the planner's runtime at the store's latest
// snapshot, mirroring engine.Update's per-op view refresh.
func refreshView(p *Planner, st *store.Store) {
	p.RT.View = st.AcquireRead()
}

func TestCompileSelectJoinsTwoPatternsOnSharedVariable(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	insertTriple(t, p, st, "http://ex/bob", "http://ex/age", "http://ex/25")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`SELECT ?friend ?age WHERE { <http://ex/alice> <http://ex/knows> ?friend . ?friend <http://ex/age> ?age }`))
	require.NoError(t, err)

	it, names, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()
	require.Equal(t, []expr.Var{expr.NewVar("friend"), expr.NewVar("age")}, names)

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	friend, _ := rows[0].Get(expr.NewVar("friend"))
	assert.Equal(t, expr.IRI("http://ex/bob"), friend)
}

func TestCompileSelectWithLimitAndOffset(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/1")
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/2")
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/3")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`SELECT ?o WHERE { <http://ex/a> <http://ex/p> ?o } ORDER BY ?o LIMIT 1 OFFSET 1`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	o, _ := rows[0].Get(expr.NewVar("o"))
	assert.Equal(t, expr.IRI("http://ex/2"), o)
}

func TestCompileSelectOptionalKeepsUnmatchedRow(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/alice", "http://ex/name", "http://ex/Alice")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`SELECT ?s ?age WHERE { ?s <http://ex/name> <http://ex/Alice> . OPTIONAL { ?s <http://ex/age> ?age } }`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok := rows[0].Get(expr.NewVar("age"))
	assert.False(t, ok)
}

func TestCompileSelectUnionCombinesBothBranches(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/alice", "http://ex/nick", "http://ex/Al")
	insertTriple(t, p, st, "http://ex/alice", "http://ex/name", "http://ex/Alice")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`
		SELECT ?label WHERE {
			{ <http://ex/alice> <http://ex/name> ?label }
			UNION
			{ <http://ex/alice> <http://ex/nick> ?label }
		}
	`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCompileAskReportsSolutionExistence(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/b")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`ASK { <http://ex/a> <http://ex/p> <http://ex/b> }`))
	require.NoError(t, err)
	ok, err := p.CompileAsk(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, ok)

	q, err = sparql.Parse([]byte(`ASK { <http://ex/a> <http://ex/p> <http://ex/missing> }`))
	require.NoError(t, err)
	ok, err = p.CompileAsk(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileConstructInstantiatesTemplatePerSolution(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/b")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`CONSTRUCT { ?s <http://ex/copy> ?o } WHERE { ?s <http://ex/p> ?o }`))
	require.NoError(t, err)
	quads, err := p.CompileConstruct(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, quads, 1)
	assert.Equal(t, expr.IRI("http://ex/copy"), quads[0].P)
}

func TestExistsSolutionRejectsNonGroupPattern(t *testing.T) {
	p, _, _ := newPlanner(t)
	_, err := p.ExistsSolution(context.Background(), exec.NewRow(), expr.NewVar("x"))
	assert.Error(t, err)
}

func TestExecuteUpdateDeleteInsertWhereRewritesMatchingTriples(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/status", "http://ex/pending")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`
		DELETE { ?s <http://ex/status> <http://ex/pending> }
		INSERT { ?s <http://ex/status> <http://ex/done> }
		WHERE { ?s <http://ex/status> <http://ex/pending> }
	`))
	require.NoError(t, err)
	require.NoError(t, p.ExecuteUpdate(context.Background(), st, q))
	refreshView(p, st)

	ask, err := sparql.Parse([]byte(`ASK { <http://ex/a> <http://ex/status> <http://ex/done> }`))
	require.NoError(t, err)
	ok, err := p.CompileAsk(context.Background(), ask)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileSelectPropertyPathOneOrMoreFollowsTransitiveChain(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/knows", "http://ex/b")
	insertTriple(t, p, st, "http://ex/b", "http://ex/knows", "http://ex/c")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`SELECT ?who WHERE { <http://ex/a> <http://ex/knows>+ ?who }`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	var who []string
	for _, row := range rows {
		v, _ := row.Get(expr.NewVar("who"))
		who = append(who, string(v.(expr.IRI)))
	}
	assert.ElementsMatch(t, []string{"http://ex/b", "http://ex/c"}, who)
}

func TestCompileSelectPropertyPathZeroOrMoreIncludesStart(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/knows", "http://ex/b")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`SELECT ?who WHERE { <http://ex/a> <http://ex/knows>* ?who }`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	var who []string
	for _, row := range rows {
		v, _ := row.Get(expr.NewVar("who"))
		who = append(who, string(v.(expr.IRI)))
	}
	assert.ElementsMatch(t, []string{"http://ex/a", "http://ex/b"}, who)
}

func TestCompileSelectPropertyPathZeroOrMoreRightBoundReachesLeaf(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/knows", "http://ex/b")
	insertTriple(t, p, st, "http://ex/b", "http://ex/knows", "http://ex/leaf")
	refreshView(p, st)

	// <http://ex/leaf> never appears as a subject, so the reflexive
	// (leaf, leaf) pair ZeroOrMore requires can only surface by walking
	// the path backwards from the fixed object.
	q, err := sparql.Parse([]byte(`SELECT ?who WHERE { ?who <http://ex/knows>* <http://ex/leaf> }`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	var who []string
	for _, row := range rows {
		v, _ := row.Get(expr.NewVar("who"))
		who = append(who, string(v.(expr.IRI)))
	}
	assert.ElementsMatch(t, []string{"http://ex/leaf", "http://ex/b", "http://ex/a"}, who)
}

func TestCompileSelectMinusPreservesRowsWhenPatternsShareNoVariables(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/alice", "http://ex/knows", "http://ex/bob")
	insertTriple(t, p, st, "http://ex/carol", "http://ex/knows", "http://ex/dave")
	refreshView(p, st)

	// MINUS's pattern shares no variable with the outer ?a/?b, so per
	// SPARQL 1.1 it must never exclude anything, regardless of whether
	// { ?x <knows> ?y } itself has solutions.
	q, err := sparql.Parse([]byte(`
		SELECT ?a ?b WHERE {
			?a <http://ex/knows> ?b
			MINUS { ?x <http://ex/knows> ?y }
		}
	`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCompileSelectPostQueryValuesNarrowsResults(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/alice", "http://ex/age", "http://ex/30")
	insertTriple(t, p, st, "http://ex/bob", "http://ex/age", "http://ex/25")
	insertTriple(t, p, st, "http://ex/charlie", "http://ex/age", "http://ex/28")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`
		SELECT ?p ?a WHERE { ?p <http://ex/age> ?a } VALUES ?a { <http://ex/25> <http://ex/30> }
	`))
	require.NoError(t, err)
	it, _, err := p.CompileSelect(q)
	require.NoError(t, err)
	defer it.Close()

	rows, err := exec.Drain(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	var people []string
	for _, row := range rows {
		v, _ := row.Get(expr.NewVar("p"))
		people = append(people, string(v.(expr.IRI)))
	}
	assert.ElementsMatch(t, []string{"http://ex/alice", "http://ex/bob"}, people)
}

func TestExecuteUpdateClearRemovesAllMatchingQuads(t *testing.T) {
	p, st, _ := newPlanner(t)
	insertTriple(t, p, st, "http://ex/a", "http://ex/p", "http://ex/b")
	refreshView(p, st)

	q, err := sparql.Parse([]byte(`CLEAR DEFAULT`))
	require.NoError(t, err)
	require.NoError(t, p.ExecuteUpdate(context.Background(), st, q))
	refreshView(p, st)

	ask, err := sparql.Parse([]byte(`ASK { ?s ?p ?o }`))
	require.NoError(t, err)
	ok, err := p.CompileAsk(context.Background(), ask)
	require.NoError(t, err)
	assert.False(t, ok)
}
