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

	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/atom"
	"github.com/bemafred/rdfq/store"
)

// Iterator is the move_next-protocol contract every operator satisfies:
// repeated calls to Next return one Row at a time until ok is false
// (exhausted) or err is non-nil (aborted). ctx cancellation must be
// checked by any operator that can run for more than one Next call
// without making progress (path traversal, hash build phases).
type Iterator interface {
	Next(ctx context.Context) (Row, bool, error)
	Close()
}

// Runtime carries everything an operator tree needs to resolve atoms,
// scan the store, and evaluate filter expressions, threaded through
// plan.Compile rather than captured in package globals, so a single
// process can run concurrent queries against independent snapshots.
type Runtime struct {
	Atoms *atom.Table
	View  store.ReadView
	// DefaultGraph is the atom id of expr.DefaultGraph's encoding,
	// interned once per store so pattern matching against the unnamed
	// graph doesn't re-intern it on every row.
	DefaultGraph atom.ID
	// Exists is supplied by the engine to let eval.Env.Exists re-enter
	// planning+execution for EXISTS/NOT EXISTS without exec depending on
	// plan (which depends on exec), breaking the import cycle.
	Exists func(ctx context.Context, outer Row, pattern interface{}) (bool, error)
	// Federation is supplied by the engine to let ServiceScan dispatch a
	// SERVICE clause without exec importing the federation package.
	Federation ServiceCall
}

// checkCtx returns ctx.Err() wrapped for diagnostics, or nil.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "exec: cancelled")
	default:
		return nil
	}
}
