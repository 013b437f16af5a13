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

// RowsIterator replays an already-materialized solution sequence. Used
// wherever a subtree has to be fully evaluated before its result can be
// joined again (subqueries, which SPARQL defines as self-contained, and
// materialized final result sets handed to a result writer).
type RowsIterator struct {
	Rows []Row
	pos  int
}

func NewRowsIterator(rows []Row) *RowsIterator {
	return &RowsIterator{Rows: rows}
}

func (r *RowsIterator) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	if r.pos >= len(r.Rows) {
		return Row{}, false, nil
	}
	row := r.Rows[r.pos]
	r.pos++
	return row, true, nil
}

func (r *RowsIterator) Close() {}

// Drain pulls every remaining row out of it.
func Drain(ctx context.Context, it Iterator) ([]Row, error) {
	var out []Row
	for {
		if err := checkCtx(ctx); err != nil {
			return out, err
		}
		row, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}
