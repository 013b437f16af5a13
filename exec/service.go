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

// ServiceCall is the one point where exec reaches outside the local
// store: it sends the endpoint IRI, the group pattern text, and the
// outer row's current bindings (for SERVICE patterns that share
// variables with the surrounding query) to the federation package and
// gets back solution rows, without exec importing federation directly
// (the same Runtime-supplied-callback shape as Runtime.Exists).
type ServiceCall func(ctx context.Context, endpoint expr.Term, pattern string, outer Row) ([]Row, error)

// ServiceScan executes one SERVICE clause per outer row and yields its
// results joined against that row (or, if Silent is set, yields the
// outer row unchanged when the call fails instead of aborting the whole
// query, per SPARQL 1.1's SERVICE SILENT semantics).
type ServiceScan struct {
	Input    Iterator
	Endpoint func(outer Row) (expr.Term, error)
	Pattern  string
	Silent   bool
	Call     ServiceCall

	buf []Row
	pos int
}

func (s *ServiceScan) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkCtx(ctx); err != nil {
			return Row{}, false, err
		}
		if s.pos < len(s.buf) {
			row := s.buf[s.pos]
			s.pos++
			return row, true, nil
		}
		outer, ok, err := s.Input.Next(ctx)
		if err != nil || !ok {
			return Row{}, false, err
		}
		endpoint, err := s.Endpoint(outer)
		if err != nil {
			if s.Silent {
				s.buf, s.pos = []Row{outer}, 0
				continue
			}
			return Row{}, false, err
		}
		rows, err := s.Call(ctx, endpoint, s.Pattern, outer)
		if err != nil {
			if s.Silent {
				s.buf, s.pos = []Row{outer}, 0
				continue
			}
			return Row{}, false, err
		}
		merged := make([]Row, 0, len(rows))
		for _, r := range rows {
			if outer.Compatible(r) {
				merged = append(merged, outer.Merge(r))
			}
		}
		s.buf, s.pos = merged, 0
	}
}

func (s *ServiceScan) Close() { s.Input.Close() }
