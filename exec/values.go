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

	"github.com/bemafred/rdfq/expr"
)

// ValuesScan replays an inline VALUES data block as an Iterator. An UNDEF cell (a nil Term) is simply left unbound in the
// emitted row, not bound to a nil placeholder.
type ValuesScan struct {
	Vars []expr.Var
	Rows [][]expr.Term

	pos int
}

func NewValuesScan(vars []expr.Var, rows [][]expr.Term) *ValuesScan {
	return &ValuesScan{Vars: vars, Rows: rows}
}

func (v *ValuesScan) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	if v.pos >= len(v.Rows) {
		return Row{}, false, nil
	}
	cells := v.Rows[v.pos]
	v.pos++
	row := NewRow()
	for i, val := range cells {
		if i >= len(v.Vars) || val == nil {
			continue
		}
		row = row.Bind(v.Vars[i], val)
	}
	return row, true, nil
}

func (v *ValuesScan) Close() {}
