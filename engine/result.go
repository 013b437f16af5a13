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
	"sort"

	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/store"
)

// Term is a resolved RDF term value at the engine boundary, per
// spec.md §6's "Term value shape".
type Term struct {
	Kind     string // "iri", "literal", or "bnode"
	Value    string // lexical form, without angle brackets or quotes
	Datatype string // IRI string, for typed literals
	Language string // BCP 47 tag, for lang-tagged literals
}

func termFromExpr(t expr.Term) Term {
	switch v := t.(type) {
	case expr.IRI:
		return Term{Kind: "iri", Value: string(v)}
	case expr.BlankNode:
		return Term{Kind: "bnode", Value: string(v)}
	case expr.Literal:
		return Term{Kind: "literal", Value: v.Lexical, Datatype: v.Datatype, Language: v.Lang}
	default:
		return Term{Kind: "literal", Value: t.String()}
	}
}

// Triple is one resolved (subject, predicate, object) result, emitted by
// Construct and Describe.
type Triple struct {
	S, P, O Term
}

// Rows is a streaming SELECT result. Callers must call Close exactly
// once, on every exit path, to release the read-lock it pins.
type Rows interface {
	// Next advances to the next solution, returning its bindings keyed
	// by variable name (without the leading '?'); a row may omit
	// variables unbound in that solution.
	Next(ctx context.Context) (map[string]Term, bool, error)
	// Variables reports the projected column order. For SELECT *, this
	// is only fully known once every row has been read; it returns the
	// alphabetically sorted set of variables bound in the rows read so far.
	Variables() []string
	Close()
}

type rowsIter struct {
	it    exec.Iterator
	names []expr.Var // nil for SELECT *
	view  store.ReadView
	star  map[string]struct{}
}

func (r *rowsIter) Next(ctx context.Context) (map[string]Term, bool, error) {
	row, ok, err := r.it.Next(ctx)
	if err != nil {
		return nil, false, wrap(KindEvaluation, err)
	}
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]Term)
	if r.names != nil {
		for _, v := range r.names {
			if t, bound := row.Get(v); bound {
				out[v.Name] = termFromExpr(t)
			}
		}
		return out, true, nil
	}
	if r.star == nil {
		r.star = make(map[string]struct{})
	}
	for hash, name := range row.Vars() {
		r.star[name] = struct{}{}
		if t, bound := row.Lookup(hash); bound {
			out[name] = termFromExpr(t)
		}
	}
	return out, true, nil
}

func (r *rowsIter) Variables() []string {
	var names []string
	if r.names != nil {
		for _, v := range r.names {
			names = append(names, v.Name)
		}
		return names
	}
	for name := range r.star {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *rowsIter) Close() {
	r.it.Close()
	r.view.Release()
}

// Materialized is a SELECT result collected wholesale into an owned
// container, for call sites that cannot retain a lifetime-bound Rows
// (spec.md §4.9's materialized-execution variants).
type Materialized struct {
	Variables []string
	Rows      []map[string]Term
}

func drain(ctx context.Context, rows Rows) (*Materialized, error) {
	m := &Materialized{}
	for {
		row, ok, err := rows.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		m.Rows = append(m.Rows, row)
	}
	m.Variables = rows.Variables()
	return m, nil
}
