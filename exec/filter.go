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

	"github.com/bemafred/rdfq/eval"
	"github.com/bemafred/rdfq/expr"
)

// Filter drops every row for which Expr's effective boolean value isn't
// true. A type error or unbound variable making the expression
// unevaluable is not a row-aborting error, SPARQL's FILTER semantics
// treat that as "false" and simply excludes the row.
type Filter struct {
	Input Iterator
	Expr  expr.Node
	RT    *Runtime
}

func (f *Filter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		row, ok, err := f.Input.Next(ctx)
		if err != nil || !ok {
			return Row{}, false, err
		}
		keep, err := eval.EvalBool(f.Expr, RowEnv{Ctx: ctx, Row: row, RT: f.RT})
		if err != nil {
			continue
		}
		if keep {
			return row, true, nil
		}
	}
}

func (f *Filter) Close() { f.Input.Close() }

// Bind evaluates Expr once per input row and extends the row with the
// result under As. Per SPARQL 1.1, if As is already bound in the row the
// query is an error at compile time, so Next never needs to check that.
type Bind struct {
	Input Iterator
	Expr  expr.Node
	As    expr.Var
	RT    *Runtime
}

func (b *Bind) Next(ctx context.Context) (Row, bool, error) {
	if err := checkCtx(ctx); err != nil {
		return Row{}, false, err
	}
	row, ok, err := b.Input.Next(ctx)
	if err != nil || !ok {
		return Row{}, false, err
	}
	val, err := eval.Eval(b.Expr, RowEnv{Ctx: ctx, Row: row, RT: b.RT})
	if err != nil {
		return row, true, nil
	}
	return row.Bind(b.As, val), true, nil
}

func (b *Bind) Close() { b.Input.Close() }
