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

// Package engine is the executor façade (C9): the one public entry
// point a consumer constructs. It owns the atom table, the quad store,
// the statistics tracker, and the configuration, and exposes
// Select/Ask/Construct/Describe/Update, each taking a context.Context
// for cancellation and returning either a streaming Rows or (via the
// *Materialized variants) an owned in-memory result, mirroring the
// relationship github.com/SnellerInc/sneller draws between its
// top-level package and plan/vm underneath it.
package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/config"
	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/federation"
	"github.com/bemafred/rdfq/plan"
	"github.com/bemafred/rdfq/sparql"
	"github.com/bemafred/rdfq/stats"
	"github.com/bemafred/rdfq/store"
)

// Engine is the top-level object a consumer constructs: one Engine per
// dataset, safe for concurrent queries per spec.md §5's scheduling
// model.
type Engine struct {
	atoms      *atom.Table
	store      *store.Store
	tracker    *stats.Tracker
	cfg        config.Config
	fed        *federation.Client
	readers    *semaphore.Weighted
	log        *zap.Logger
	dflt       atom.ID
	registerer prometheus.Registerer
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the Engine's structured logger; the default is a
// no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRegisterer routes the Engine's Prometheus metrics (quad counts,
// per-predicate cardinalities) to reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

// New returns an Engine configured by cfg, with an empty dataset.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		log: zap.NewNop(),
		fed: federation.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	reg := e.registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e.atoms = atom.New()
	e.store = store.New(store.WithLogger(e.log))
	e.tracker = stats.NewTracker(reg)
	e.dflt = e.atoms.Intern(expr.DefaultGraph.Encode())
	readers := cfg.MaxConcurrentReaders
	if readers <= 0 {
		readers = 1
	}
	e.readers = semaphore.NewWeighted(int64(readers))
	return e
}

// runtime builds a fresh exec.Runtime pinned to view, wiring the
// EXISTS/NOT EXISTS and SERVICE callback seams through a Planner bound
// to the same runtime (the only way to break the exec->plan->exec cycle
// those two features create).
func (e *Engine) runtime(view store.ReadView) (*exec.Runtime, *plan.Planner) {
	rt := &exec.Runtime{
		Atoms:        e.atoms,
		View:         view,
		DefaultGraph: e.dflt,
	}
	p := plan.New(rt, e.tracker)
	rt.Exists = func(ctx context.Context, outer exec.Row, pattern interface{}) (bool, error) {
		node, ok := pattern.(expr.Node)
		if !ok {
			return false, errors.Errorf("engine: EXISTS pattern has unexpected type %T", pattern)
		}
		return p.ExistsSolution(ctx, outer, node)
	}
	rt.Federation = func(ctx context.Context, endpoint expr.Term, pattern string, outer exec.Row) ([]exec.Row, error) {
		if err := e.readers.Acquire(ctx, 1); err != nil {
			return nil, wrap(KindCancelled, err)
		}
		defer e.readers.Release(1)
		rows, err := e.fed.Call(ctx, endpoint, pattern, outer)
		if err != nil {
			return nil, wrap(KindEndpoint, err)
		}
		return rows, nil
	}
	return rt, p
}

func (e *Engine) parse(queryText string) (*expr.Query, error) {
	q, err := sparql.Parse([]byte(queryText))
	if err != nil {
		return nil, wrap(KindParse, err)
	}
	return q, nil
}

// Select executes a SELECT query and returns a streaming Rows. The
// returned Rows pins a read-lock (via the ReadView it was compiled
// against) until Close is called; callers must always Close it,
// including on error paths after a successful Select call.
func (e *Engine) Select(ctx context.Context, queryText string) (Rows, error) {
	q, err := e.parse(queryText)
	if err != nil {
		return nil, err
	}
	if q.Form != expr.FormSelect {
		return nil, wrap(KindNotImplemented, errors.New("Select requires a SELECT query"))
	}
	view := e.store.AcquireRead()
	_, p := e.runtime(view)
	it, names, err := p.CompileSelect(q)
	if err != nil {
		view.Release()
		return nil, wrap(KindEvaluation, err)
	}
	return &rowsIter{it: it, names: names, view: view}, nil
}

// SelectMaterialized runs Select to completion and returns an owned
// Materialized result, for call sites that cannot retain a lifetime-
// bound Rows (e.g. across an RPC boundary).
func (e *Engine) SelectMaterialized(ctx context.Context, queryText string) (*Materialized, error) {
	rows, err := e.Select(ctx, queryText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return drain(ctx, rows)
}

// Ask executes an ASK query, reporting whether its WHERE clause has at
// least one solution.
func (e *Engine) Ask(ctx context.Context, queryText string) (bool, error) {
	q, err := e.parse(queryText)
	if err != nil {
		return false, err
	}
	if q.Form != expr.FormAsk {
		return false, wrap(KindNotImplemented, errors.New("Ask requires an ASK query"))
	}
	view := e.store.AcquireRead()
	defer view.Release()
	_, p := e.runtime(view)
	ok, err := p.CompileAsk(ctx, q)
	if err != nil {
		return false, wrap(KindEvaluation, err)
	}
	return ok, nil
}

// Construct executes a CONSTRUCT query and returns the resulting
// triples, deduplicated per RDF set semantics.
func (e *Engine) Construct(ctx context.Context, queryText string) ([]Triple, error) {
	q, err := e.parse(queryText)
	if err != nil {
		return nil, err
	}
	if q.Form != expr.FormConstruct {
		return nil, wrap(KindNotImplemented, errors.New("Construct requires a CONSTRUCT query"))
	}
	view := e.store.AcquireRead()
	defer view.Release()
	_, p := e.runtime(view)
	quads, err := p.CompileConstruct(ctx, q)
	if err != nil {
		return nil, wrap(KindEvaluation, err)
	}
	return dedupQuads(quads), nil
}

// Describe executes a DESCRIBE query: for each bound resource (the
// DESCRIBE clause's fixed IRIs, plus each WHERE solution's binding for
// any DESCRIBE variable) it emits every triple with that resource in
// subject position, a concise bounded description per spec.md §4.9.
func (e *Engine) Describe(ctx context.Context, queryText string) ([]Triple, error) {
	q, err := e.parse(queryText)
	if err != nil {
		return nil, err
	}
	if q.Form != expr.FormDescribe {
		return nil, wrap(KindNotImplemented, errors.New("Describe requires a DESCRIBE query"))
	}
	view := e.store.AcquireRead()
	defer view.Release()
	rt, p := e.runtime(view)

	resources, err := e.describeResources(ctx, p, q)
	if err != nil {
		return nil, wrap(KindEvaluation, err)
	}

	seen := make(map[atom.ID]struct{}, len(resources))
	var out []Triple
	for _, res := range resources {
		id := rt.Atoms.Intern(res.Encode())
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		view.Scan(store.Pattern{S: id}, func(q store.Quad) bool {
			s, _ := expr.Decode(rt.Atoms.Resolve(q.S))
			p, _ := expr.Decode(rt.Atoms.Resolve(q.P))
			o, _ := expr.Decode(rt.Atoms.Resolve(q.O))
			out = append(out, Triple{S: termFromExpr(s), P: termFromExpr(p), O: termFromExpr(o)})
			return true
		})
	}
	return out, nil
}

// describeResources resolves every DESCRIBE slot to a concrete term: a
// fixed IRI contributes itself once; a variable contributes its binding
// from every WHERE solution.
func (e *Engine) describeResources(ctx context.Context, p *plan.Planner, q *expr.Query) ([]expr.Term, error) {
	var fixed []expr.Term
	var vars []expr.Var
	for _, sl := range q.Describe {
		if sl.IsVar {
			vars = append(vars, sl.Var)
		} else {
			fixed = append(fixed, sl.Term)
		}
	}
	if q.Where == nil || len(vars) == 0 {
		return fixed, nil
	}
	it, _, err := p.CompileSelect(&expr.Query{Form: expr.FormSelect, Star: true, Where: q.Where, Modifiers: expr.Modifiers{Limit: -1}})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := append([]expr.Term(nil), fixed...)
	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, v := range vars {
			if t, bound := row.Get(v); bound {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func dedupQuads(quads []plan.ConstructedQuad) []Triple {
	seen := make(map[string]struct{}, len(quads))
	out := make([]Triple, 0, len(quads))
	for _, q := range quads {
		key := string(q.S.Encode()) + "\x00" + string(q.P.Encode()) + "\x00" + string(q.O.Encode())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Triple{S: termFromExpr(q.S), P: termFromExpr(q.P), O: termFromExpr(q.O)})
	}
	return out
}

// Update executes the operations of a SPARQL Update request in order.
// Each operation is committed on its own, and the next one sees its
// effects.
func (e *Engine) Update(ctx context.Context, updateText string) error {
	if !e.cfg.AllowUpdates {
		return wrap(KindNotImplemented, errors.New("updates are disabled by configuration"))
	}
	q, err := e.parse(updateText)
	if err != nil {
		return err
	}
	if q.Form != expr.FormUpdate {
		return wrap(KindNotImplemented, errors.New("Update requires an update request"))
	}
	rt, p := e.runtime(e.store.AcquireRead())
	defer rt.View.Release()

	// Each operation in the request must see the effects of the ones
	// before it (spec.md §5's "sequence... processed in the order
	// given"), so rt.View is refreshed to the just-published snapshot
	// after every op rather than held fixed for the whole request.
	for _, op := range q.Updates {
		if ld, ok := op.(*expr.Load); ok {
			if err := e.load(ctx, rt, ld); err != nil && !ld.Silent {
				return err
			}
		} else {
			single := &expr.Query{Updates: []expr.UpdateOp{op}}
			if err := p.ExecuteUpdate(ctx, e.store, single); err != nil {
				return wrap(KindStorage, err)
			}
		}
		rt.View.Release()
		rt.View = e.store.AcquireRead()
	}
	return nil
}
