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

import "context"

// RightBuilder constructs the right-hand iterator for one left row; join
// operators stay agnostic to what the right side actually is (a Scan, a
// nested BGP, a whole subquery) by taking this instead of an Iterator
// value.
type RightBuilder func(left Row) (Iterator, error)

// NestedLoopJoin evaluates, for every row produced by Left, a fresh
// right-hand iterator (built against that row's bindings, so the right
// side can push the left row's bindings down into its own pattern scan)
// and yields the merge of every compatible pair. This is the workhorse
// join for basic graph patterns: with no global statistics forcing a
// smarter strategy, binding the left side's variables into the right
// side's scan before it even runs is what keeps a multi-pattern BGP from
// degrading to a cross product.
type NestedLoopJoin struct {
	Left  Iterator
	Build RightBuilder

	right   Iterator
	leftRow Row
}

func (j *NestedLoopJoin) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		if j.right == nil {
			row, ok, err := j.Left.Next(ctx)
			if err != nil || !ok {
				return Row{}, false, err
			}
			j.leftRow = row
			j.right, err = j.Build(row)
			if err != nil {
				return Row{}, false, err
			}
		}
		rrow, ok, err := j.right.Next(ctx)
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			j.right.Close()
			j.right = nil
			continue
		}
		if !j.leftRow.Compatible(rrow) {
			continue
		}
		return j.leftRow.Merge(rrow), true, nil
	}
}

func (j *NestedLoopJoin) Close() {
	j.Left.Close()
	if j.right != nil {
		j.right.Close()
	}
}

// LeftOuterJoin implements OPTIONAL: every left row is emitted at least
// once, joined with each compatible right row if any exist, or alone
// (its own bindings unchanged) if none do.
type LeftOuterJoin struct {
	Left  Iterator
	Build RightBuilder

	right     Iterator
	leftRow   Row
	matched   bool
}

func (j *LeftOuterJoin) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		if j.right == nil {
			row, ok, err := j.Left.Next(ctx)
			if err != nil || !ok {
				return Row{}, false, err
			}
			j.leftRow = row
			j.matched = false
			j.right, err = j.Build(row)
			if err != nil {
				return Row{}, false, err
			}
		}
		rrow, ok, err := j.right.Next(ctx)
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			j.right.Close()
			j.right = nil
			if !j.matched {
				return j.leftRow, true, nil
			}
			continue
		}
		if !j.leftRow.Compatible(rrow) {
			continue
		}
		j.matched = true
		return j.leftRow.Merge(rrow), true, nil
	}
}

func (j *LeftOuterJoin) Close() {
	j.Left.Close()
	if j.right != nil {
		j.right.Close()
	}
}

// Minus drops every left row for which Build(row) produces at least one
// compatible solution, and for which the two rows share at least one
// variable (SPARQL's MINUS is a no-op against a pattern that shares no
// variables with the outer group).
type Minus struct {
	Left  Iterator
	Build RightBuilder
}

func (m *Minus) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		row, ok, err := m.Left.Next(ctx)
		if err != nil || !ok {
			return Row{}, false, err
		}
		excluded, err := m.excludedBy(ctx, row)
		if err != nil {
			return Row{}, false, err
		}
		if !excluded {
			return row, true, nil
		}
	}
}

func (m *Minus) excludedBy(ctx context.Context, row Row) (bool, error) {
	right, err := m.Build(row)
	if err != nil {
		return false, err
	}
	defer right.Close()
	for {
		rrow, ok, err := right.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		if sharesVariable(row, rrow) && row.Compatible(rrow) {
			return true, nil
		}
	}
}

func sharesVariable(a, b Row) bool {
	for k := range b.vars {
		if _, ok := a.vars[k]; ok {
			return true
		}
	}
	return false
}

func (m *Minus) Close() { m.Left.Close() }
