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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemafred/rdfq/expr"
)

func TestGroupByCountStarOverEmptyInputProducesOneRow(t *testing.T) {
	g := &GroupBy{
		Input:   newSliceIter(),
		Columns: []AggregateColumn{{Agg: &expr.Aggregate{Kind: expr.AggCount}, As: expr.NewVar("n")}},
		RT:      &Runtime{},
	}
	out := drain(t, g)
	require.Len(t, out, 1)
	n, ok := out[0].Get(expr.NewVar("n"))
	require.True(t, ok)
	assert.Equal(t, "0", n.(expr.Literal).Lexical)
}

func TestGroupByPartitionsOnKeyAndAggregatesPerGroup(t *testing.T) {
	amount := expr.NewVar("amount")
	category := expr.NewVar("category")
	rows := []Row{
		NewRow().Bind(category, expr.Literal{Lexical: "a"}).Bind(amount, expr.Literal{Lexical: "1", Datatype: expr.XSDInteger}),
		NewRow().Bind(category, expr.Literal{Lexical: "a"}).Bind(amount, expr.Literal{Lexical: "2", Datatype: expr.XSDInteger}),
		NewRow().Bind(category, expr.Literal{Lexical: "b"}).Bind(amount, expr.Literal{Lexical: "5", Datatype: expr.XSDInteger}),
	}
	g := &GroupBy{
		Input:   newSliceIter(rows...),
		Keys:    []expr.Node{category},
		Columns: []AggregateColumn{{Agg: &expr.Aggregate{Kind: expr.AggSum, Expr: amount}, As: expr.NewVar("total")}},
		RT:      &Runtime{},
	}
	out := drain(t, g)
	require.Len(t, out, 2)

	totals := map[string]string{}
	for _, row := range out {
		cat, _ := row.Get(category)
		total, _ := row.Get(expr.NewVar("total"))
		totals[cat.(expr.Literal).Lexical] = total.(expr.Literal).Lexical
	}
	assert.Equal(t, "3", totals["a"])
	assert.Equal(t, "5", totals["b"])
}

func TestGroupByMinMaxAndAvg(t *testing.T) {
	v := expr.NewVar("v")
	rows := []Row{
		NewRow().Bind(v, expr.Literal{Lexical: "1", Datatype: expr.XSDInteger}),
		NewRow().Bind(v, expr.Literal{Lexical: "3", Datatype: expr.XSDInteger}),
		NewRow().Bind(v, expr.Literal{Lexical: "5", Datatype: expr.XSDInteger}),
	}
	g := &GroupBy{
		Input: newSliceIter(rows...),
		Columns: []AggregateColumn{
			{Agg: &expr.Aggregate{Kind: expr.AggMin, Expr: v}, As: expr.NewVar("lo")},
			{Agg: &expr.Aggregate{Kind: expr.AggMax, Expr: v}, As: expr.NewVar("hi")},
			{Agg: &expr.Aggregate{Kind: expr.AggAvg, Expr: v}, As: expr.NewVar("avg")},
		},
		RT: &Runtime{},
	}
	out := drain(t, g)
	require.Len(t, out, 1)
	lo, _ := out[0].Get(expr.NewVar("lo"))
	hi, _ := out[0].Get(expr.NewVar("hi"))
	avg, _ := out[0].Get(expr.NewVar("avg"))
	assert.Equal(t, "1", lo.(expr.Literal).Lexical)
	assert.Equal(t, "5", hi.(expr.Literal).Lexical)
	assert.Equal(t, "3", avg.(expr.Literal).Lexical)
}

func TestGroupByGroupConcatJoinsWithSeparator(t *testing.T) {
	v := expr.NewVar("v")
	rows := []Row{
		NewRow().Bind(v, expr.Literal{Lexical: "a"}),
		NewRow().Bind(v, expr.Literal{Lexical: "b"}),
	}
	g := &GroupBy{
		Input:   newSliceIter(rows...),
		Columns: []AggregateColumn{{Agg: &expr.Aggregate{Kind: expr.AggGroupConcat, Expr: v, Separator: ","}, As: expr.NewVar("all")}},
		RT:      &Runtime{},
	}
	out := drain(t, g)
	require.Len(t, out, 1)
	all, _ := out[0].Get(expr.NewVar("all"))
	assert.Equal(t, "a,b", all.(expr.Literal).Lexical)
}

func TestGroupByCountDistinctDeduplicatesValues(t *testing.T) {
	v := expr.NewVar("v")
	rows := []Row{
		NewRow().Bind(v, expr.Literal{Lexical: "a"}),
		NewRow().Bind(v, expr.Literal{Lexical: "a"}),
		NewRow().Bind(v, expr.Literal{Lexical: "b"}),
	}
	g := &GroupBy{
		Input:   newSliceIter(rows...),
		Columns: []AggregateColumn{{Agg: &expr.Aggregate{Kind: expr.AggCount, Expr: v, Distinct: true}, As: expr.NewVar("n")}},
		RT:      &Runtime{},
	}
	out := drain(t, g)
	require.Len(t, out, 1)
	n, _ := out[0].Get(expr.NewVar("n"))
	assert.Equal(t, "2", n.(expr.Literal).Lexical)
}
