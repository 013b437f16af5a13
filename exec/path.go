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

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/expr"
	"github.com/bemafred/rdfq/store"
)

// PathPlan is a compiled property path pattern: subject and object slots
// (exactly like a PatternPlan's S/O) plus the path expression itself and
// the graph to traverse it in.
type PathPlan struct {
	Subject, Object SlotPlan
	Graph           SlotPlan
	Path            expr.PropertyPath
}

// PathScan evaluates a property path by breadth-first search over the
// quad store, one algebra step (IRI hop, inverse, sequence, alternative,
// or closure) at a time. The visited set per BFS run is a roaring bitmap
// rather than a Go map: ZeroOrMore/OneOrMore over a hub node can touch a
// large fraction of the atom-id space, and a bitmap keeps that bounded
// and dense instead of paying per-entry map bucket overhead. Atom ids
// are truncated to 32 bits for the visited set, which bounds a single
// store to roughly four billion distinct terms; nothing about the path
// algorithm itself depends on that width.
type PathScan struct {
	rt   *Runtime
	plan PathPlan
	base Row

	buf  []Row
	pos  int
	done bool
}

// NewPathScan returns a PathScan operator for plan, extending every
// output row from base.
func NewPathScan(rt *Runtime, plan PathPlan, base Row) *PathScan {
	return &PathScan{rt: rt, plan: plan, base: base}
}

func (p *PathScan) fill() error {
	if p.done {
		return nil
	}
	p.done = true

	graph := resolveFixedWithRuntime(p.rt, p.plan.Graph, p.base)
	subjFixed := resolveFixedWithRuntime(p.rt, p.plan.Subject, p.base)
	objFixed := resolveFixedWithRuntime(p.rt, p.plan.Object, p.base)

	// A right-bound path (subject unbound, object fixed, e.g.
	// `?x <p>* <Leaf>`) walks the path backwards from the object instead
	// of enumerating every subject in the graph: <Leaf> may never appear
	// as a subject, in which case forward enumeration would never visit
	// it and the reflexive (Leaf, Leaf) pair ZeroOrOne/ZeroOrMore require
	// would be lost.
	if subjFixed == atom.Unbound && objFixed != atom.Unbound {
		ends, err := evalPath(p.rt, p.plan.Path, objFixed, graph, true)
		if err != nil {
			return err
		}
		return p.collect(objFixed, ends, true)
	}

	for _, start := range p.startCandidates(graph, subjFixed) {
		ends, err := evalPath(p.rt, p.plan.Path, start, graph, false)
		if err != nil {
			return err
		}
		if err := p.collect(start, ends, false); err != nil {
			return err
		}
	}
	return nil
}

// collect binds every atom in ends against root and buffers the result.
// In the forward direction root is the subject and ends are objects
// reached by the path; reversed (the right-bound case), root is the
// fixed object and ends are the subject candidates that reach it.
func (p *PathScan) collect(root atom.ID, ends *roaring.Bitmap, reversed bool) error {
	var bindErr error
	ends.Iterate(func(x uint32) bool {
		var row Row
		var ok bool
		var err error
		if reversed {
			row, ok, err = p.bindEndpoints(atom.ID(x), root)
		} else {
			row, ok, err = p.bindEndpoints(root, atom.ID(x))
		}
		if err != nil {
			bindErr = err
			return false
		}
		if ok {
			p.buf = append(p.buf, row)
		}
		return true
	})
	return bindErr
}

// startCandidates returns the set of subject atom ids to start a BFS
// from: fixed if the pattern has a bound subject (a fixed term, or a
// variable already bound by an earlier join operand), or every distinct
// subject in graph for the fully unbound case.
func (p *PathScan) startCandidates(graph atom.ID, fixed atom.ID) []atom.ID {
	if fixed != atom.Unbound {
		return []atom.ID{fixed}
	}
	var starts []atom.ID
	seen := map[atom.ID]struct{}{}
	p.rt.View.Scan(store.Pattern{G: graph}, func(q store.Quad) bool {
		if _, dup := seen[q.S]; !dup {
			seen[q.S] = struct{}{}
			starts = append(starts, q.S)
		}
		return true
	})
	return starts
}

// evalPath returns the set of atom ids reachable from start along path
// within graph. inverse flips the traversal direction for every step
// (used to implement PathInverse by recursing with the flag toggled
// instead of duplicating each case).
func evalPath(rt *Runtime, path expr.PropertyPath, start atom.ID, graph atom.ID, inverse bool) (*roaring.Bitmap, error) {
	switch pp := path.(type) {
	case *expr.PathIRI:
		return stepNeighbors(rt, start, graph, pp.IRI, inverse, nil), nil

	case *expr.PathInverse:
		return evalPath(rt, pp.Path, start, graph, !inverse)

	case *expr.PathSequence:
		mid, err := evalPath(rt, pp.Left, start, graph, inverse)
		if err != nil {
			return nil, err
		}
		out := roaring.New()
		var stepErr error
		mid.Iterate(func(x uint32) bool {
			next, err := evalPath(rt, pp.Right, atom.ID(x), graph, inverse)
			if err != nil {
				stepErr = err
				return false
			}
			out.Or(next)
			return true
		})
		return out, stepErr

	case *expr.PathAlternative:
		left, err := evalPath(rt, pp.Left, start, graph, inverse)
		if err != nil {
			return nil, err
		}
		right, err := evalPath(rt, pp.Right, start, graph, inverse)
		if err != nil {
			return nil, err
		}
		left.Or(right)
		return left, nil

	case *expr.PathZeroOrOne:
		inner, err := evalPath(rt, pp.Path, start, graph, inverse)
		if err != nil {
			return nil, err
		}
		inner.Add(uint32(start))
		return inner, nil

	case *expr.PathZeroOrMore:
		return closure(rt, pp.Path, start, graph, inverse, true)

	case *expr.PathOneOrMore:
		return closure(rt, pp.Path, start, graph, inverse, false)

	case *expr.PathNegatedSet:
		return stepNeighbors(rt, start, graph, nil, inverse, pp), nil

	default:
		return nil, errors.Errorf("exec: unsupported property path shape %T", path)
	}
}

// closure computes the transitive closure of path starting at start:
// ZeroOrMore includes start itself in the result, OneOrMore does not
// (unless a cycle routes back to it).
func closure(rt *Runtime, path expr.PropertyPath, start atom.ID, graph atom.ID, inverse bool, includeStart bool) (*roaring.Bitmap, error) {
	visited := roaring.New()
	result := roaring.New()
	if includeStart {
		result.Add(uint32(start))
		visited.Add(uint32(start))
	}
	frontier := []atom.ID{start}
	for len(frontier) > 0 {
		var next []atom.ID
		for _, node := range frontier {
			step, err := evalPath(rt, path, node, graph, inverse)
			if err != nil {
				return nil, err
			}
			step.Iterate(func(x uint32) bool {
				if !visited.Contains(x) {
					visited.Add(x)
					result.Add(x)
					next = append(next, atom.ID(x))
				}
				return true
			})
		}
		frontier = next
	}
	return result, nil
}

// stepNeighbors scans the store for a single hop out of node: along iri
// if non-nil, or along any predicate not excluded by negated.
func stepNeighbors(rt *Runtime, node atom.ID, graph atom.ID, iri expr.Term, inverse bool, negated *expr.PathNegatedSet) *roaring.Bitmap {
	out := roaring.New()
	pat := store.Pattern{G: graph}
	if inverse {
		pat.O = node
	} else {
		pat.S = node
	}
	if iri != nil {
		pat.P = rt.Atoms.Intern(iri.Encode())
	}
	rt.View.Scan(pat, func(q store.Quad) bool {
		if negated != nil && !negatedAllows(rt, negated, q.P, inverse) {
			return true
		}
		if inverse {
			out.Add(uint32(q.S))
		} else {
			out.Add(uint32(q.O))
		}
		return true
	})
	return out
}

func negatedAllows(rt *Runtime, n *expr.PathNegatedSet, pred atom.ID, inverse bool) bool {
	excluded := n.Forward
	if inverse {
		excluded = n.Inverse
	}
	for _, t := range excluded {
		if rt.Atoms.Intern(t.Encode()) == pred {
			return false
		}
	}
	return true
}

func (p *PathScan) bindEndpoints(start, end atom.ID) (Row, bool, error) {
	row, ok, err := bindSlot(p.rt, p.base, p.plan.Subject, start)
	if err != nil || !ok {
		return Row{}, false, err
	}
	row, ok, err = bindSlot(p.rt, row, p.plan.Object, end)
	if err != nil || !ok {
		return Row{}, false, err
	}
	return row, true, nil
}

func (p *PathScan) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	if err := p.fill(); err != nil {
		return Row{}, false, err
	}
	if p.pos >= len(p.buf) {
		return Row{}, false, nil
	}
	row := p.buf[p.pos]
	p.pos++
	return row, true, nil
}

func (p *PathScan) Close() {}
