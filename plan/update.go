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

	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/store"
)

// ExecuteUpdate applies every operation in q.Updates, in order, as a
// single write batch: either every operation commits or, on the first
// error, none of it does (an operation's SILENT flag is not consulted
// here), matching SPARQL 1.1 Update's "a request is a sequence...
// processed in the order given" requirement without exposing partial
// intermediate state to concurrent readers.
func (p *Planner) ExecuteUpdate(ctx context.Context, st *store.Store, q *expr.Query) error {
	batch := st.Begin()
	for _, op := range q.Updates {
		if err := p.applyUpdateOp(ctx, batch, op); err != nil {
			batch.Discard()
			return err
		}
	}
	batch.Commit()
	return nil
}

func (p *Planner) applyUpdateOp(ctx context.Context, batch *store.Batch, op expr.UpdateOp) error {
	switch u := op.(type) {
	case *expr.InsertData:
		return p.insertQuads(batch, u.Quads, u.Graph)
	case *expr.DeleteData:
		return p.deleteQuads(batch, u.Quads, u.Graph)
	case *expr.DeleteInsert:
		return p.applyDeleteInsert(ctx, batch, u)
	case *expr.Load:
		return errors.New("plan: LOAD must be dispatched by the engine (needs an HTTP/file fetch)")
	case *expr.Clear:
		return p.applyClear(batch, u.Target)
	case *expr.Create:
		return nil // a quad store has no separate graph-existence ledger; CREATE is a no-op beyond validating the target
	case *expr.Drop:
		return p.applyClear(batch, u.Target)
	case *expr.GraphUpdate:
		return p.applyGraphUpdate(batch, u)
	default:
		return errors.Errorf("plan: unsupported update operation %T", op)
	}
}

func (p *Planner) insertQuads(batch *store.Batch, quads []*expr.TriplePattern, graph expr.Term) error {
	g := p.graphID(graph)
	for _, t := range quads {
		q, err := p.groundQuad(t, g)
		if err != nil {
			return err
		}
		batch.Add(q)
	}
	return nil
}

func (p *Planner) deleteQuads(batch *store.Batch, quads []*expr.TriplePattern, graph expr.Term) error {
	g := p.graphID(graph)
	for _, t := range quads {
		q, err := p.groundQuad(t, g)
		if err != nil {
			return err
		}
		batch.Remove(q)
	}
	return nil
}

func (p *Planner) graphID(g expr.Term) atom.ID {
	if g == nil {
		return p.RT.DefaultGraph
	}
	return p.RT.Atoms.Intern(g.Encode())
}

// groundQuad interns every position of a ground (variable-free) triple
// from an INSERT/DELETE DATA block; SPARQL forbids variables there, so
// any Slot marked IsVar is a parser or caller bug, not a runtime
// condition to recover from gracefully.
func (p *Planner) groundQuad(t *expr.TriplePattern, g atom.ID) (store.Quad, error) {
	if t.Subject.IsVar || t.Pred.IsVar || t.Object.IsVar {
		return store.Quad{}, errors.New("plan: INSERT/DELETE DATA may not contain variables")
	}
	return store.Quad{
		S: p.RT.Atoms.Intern(t.Subject.Term.Encode()),
		P: p.RT.Atoms.Intern(t.Pred.Term.Encode()),
		O: p.RT.Atoms.Intern(t.Object.Term.Encode()),
		G: g,
	}, nil
}

// applyDeleteInsert evaluates u.Where for every solution, then applies
// DeleteTmpl followed by InsertTmpl to the batch, instantiated against
// that solution, per the SPARQL 1.1 Update algebra for the general
// DELETE/INSERT/WHERE form.
func (p *Planner) applyDeleteInsert(ctx context.Context, batch *store.Batch, u *expr.DeleteInsert) error {
	g := p.defaultGraphSlot()
	if u.With != nil {
		g = exec.SlotPlan{Fixed: p.RT.Atoms.Intern(u.With.Encode())}
	}
	var it exec.Iterator = exec.NewRowsIterator([]exec.Row{exec.NewRow()})
	if u.Where != nil {
		var err error
		it, err = p.compileGroup(u.Where, exec.NewRow(), g)
		if err != nil {
			return err
		}
	}
	defer it.Close()

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for _, tmpl := range u.DeleteTmpl {
			if q, ok := groundedFromRow(p.RT.Atoms, tmpl, row, p.graphID(u.With)); ok {
				batch.Remove(q)
			}
		}
		for _, tmpl := range u.InsertTmpl {
			if q, ok := groundedFromRow(p.RT.Atoms, tmpl, row, p.graphID(u.With)); ok {
				batch.Add(q)
			}
		}
	}
}

func groundedFromRow(atoms *atom.Table, tmpl *expr.TriplePattern, row exec.Row, g atom.ID) (store.Quad, bool) {
	s, ok := slotID(atoms, tmpl.Subject, row)
	if !ok {
		return store.Quad{}, false
	}
	pr, ok := slotID(atoms, tmpl.Pred, row)
	if !ok {
		return store.Quad{}, false
	}
	o, ok := slotID(atoms, tmpl.Object, row)
	if !ok {
		return store.Quad{}, false
	}
	return store.Quad{S: s, P: pr, O: o, G: g}, true
}

func slotID(atoms *atom.Table, sl expr.Slot, row exec.Row) (atom.ID, bool) {
	if !sl.IsVar {
		return atoms.Intern(sl.Term.Encode()), true
	}
	t, ok := row.Get(sl.Var)
	if !ok {
		return atom.Unbound, false
	}
	return atoms.Intern(t.Encode()), true
}

// applyClear removes every quad matching target from the store. CLEAR
// DEFAULT / CLEAR GRAPH g / CLEAR NAMED / CLEAR ALL are all expressed as
// a graph-scoped scan-and-remove. SILENT needs no handling: a graph
// with nothing to clear is never reported as an error, since an empty
// match set is not a failure.
func (p *Planner) applyClear(batch *store.Batch, target expr.GraphRef) error {
	view := p.RT.View
	switch {
	case target.IRI != nil:
		return p.clearPattern(batch, view, store.Pattern{G: p.RT.Atoms.Intern(target.IRI.Encode())})
	case target.Default:
		return p.clearPattern(batch, view, store.Pattern{G: p.RT.DefaultGraph})
	case target.All:
		return p.clearPattern(batch, view, store.Pattern{})
	case target.Named:
		return p.clearNamedGraphs(batch, view)
	default:
		return errors.New("plan: CLEAR/DROP target not recognized")
	}
}

// clearNamedGraphs removes every quad not in the default graph, for
// `CLEAR NAMED` / `DROP NAMED`, which target every named graph but must
// leave the default graph untouched.
func (p *Planner) clearNamedGraphs(batch *store.Batch, view store.ReadView) error {
	var matched []store.Quad
	view.Scan(store.Pattern{}, func(q store.Quad) bool {
		if q.G != p.RT.DefaultGraph {
			matched = append(matched, q)
		}
		return true
	})
	for _, q := range matched {
		batch.Remove(q)
	}
	return nil
}

func (p *Planner) clearPattern(batch *store.Batch, view store.ReadView, pat store.Pattern) error {
	var matched []store.Quad
	view.Scan(pat, func(q store.Quad) bool {
		matched = append(matched, q)
		return true
	})
	for _, q := range matched {
		batch.Remove(q)
	}
	return nil
}

// applyGraphUpdate implements COPY/MOVE/ADD by reading the source
// graph's quads into memory (a quad store has no copy-on-write graph
// aliasing) and writing them back under the destination graph id; MOVE
// additionally clears the source afterward.
func (p *Planner) applyGraphUpdate(batch *store.Batch, u *expr.GraphUpdate) error {
	srcID := p.graphRefID(u.Source)
	dstID := p.graphRefID(u.Dest)
	var quads []store.Quad
	p.RT.View.Scan(store.Pattern{G: srcID}, func(q store.Quad) bool {
		quads = append(quads, q)
		return true
	})
	if u.Kind != expr.GraphAdd {
		_ = p.clearPattern(batch, p.RT.View, store.Pattern{G: dstID})
	}
	for _, q := range quads {
		batch.Add(store.Quad{S: q.S, P: q.P, O: q.O, G: dstID})
	}
	if u.Kind == expr.GraphMove {
		return p.clearPattern(batch, p.RT.View, store.Pattern{G: srcID})
	}
	return nil
}

func (p *Planner) graphRefID(g expr.GraphRef) atom.ID {
	if g.IRI != nil {
		return p.RT.Atoms.Intern(g.IRI.Encode())
	}
	return p.RT.DefaultGraph
}
