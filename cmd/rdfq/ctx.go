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

package main

import (
	"context"
	"os/signal"
	"syscall"
)

// rootCtx is cancelled on SIGINT/SIGTERM, letting a long-running query or
// LOAD unwind through the same ctx.Context cancellation checks the engine
// already threads through every iterator's move_next boundary.
var rootCtx, stopSignals = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
