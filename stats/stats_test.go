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

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bemafred/rdfq/atom"
)

func TestRecordInsertUpdatesTotalsAndPerPredicate(t *testing.T) {
	tr := NewTracker(nil)
	tr.RecordInsert(atom.ID(1), atom.ID(10))
	tr.RecordInsert(atom.ID(1), atom.ID(11))
	tr.RecordInsert(atom.ID(2), atom.ID(10))

	assert.EqualValues(t, 3, tr.Total())
	assert.EqualValues(t, 2, tr.PredicateCount(atom.ID(1)))
	assert.EqualValues(t, 1, tr.PredicateCount(atom.ID(2)))
}

func TestRecordDeleteRemovesPredicateEntryAtZero(t *testing.T) {
	tr := NewTracker(nil)
	tr.RecordInsert(atom.ID(1), atom.ID(10))
	tr.RecordDelete(atom.ID(1), atom.ID(10))

	assert.EqualValues(t, 0, tr.Total())
	assert.EqualValues(t, 0, tr.PredicateCount(atom.ID(1)))
}

func TestSelectivityOnEmptyStoreIsOne(t *testing.T) {
	tr := NewTracker(nil)
	assert.Equal(t, 1.0, tr.Selectivity(atom.ID(1), false))
}

func TestSelectivityOfUnseenPredicateIsPessimisticButNonZero(t *testing.T) {
	tr := NewTracker(nil)
	tr.RecordInsert(atom.ID(1), atom.ID(10))
	got := tr.Selectivity(atom.ID(99), false)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestSelectivityNarrowsWithBoundSubject(t *testing.T) {
	tr := NewTracker(nil)
	for i := 0; i < 10; i++ {
		tr.RecordInsert(atom.ID(1), atom.ID(i))
	}
	unbound := tr.Selectivity(atom.ID(1), false)
	bound := tr.Selectivity(atom.ID(1), true)
	assert.Less(t, bound, unbound, "a bound subject should narrow the estimate given 10 distinct subjects")
}

func TestSelectivityReflectsPredicateShareOfTotal(t *testing.T) {
	tr := NewTracker(nil)
	for i := 0; i < 9; i++ {
		tr.RecordInsert(atom.ID(1), atom.ID(i))
	}
	tr.RecordInsert(atom.ID(2), atom.ID(100))

	common := tr.Selectivity(atom.ID(1), false)
	rare := tr.Selectivity(atom.ID(2), false)
	assert.Greater(t, common, rare)
}
