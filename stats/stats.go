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

// Package stats maintains the per-predicate cardinality estimates (C3)
// that plan uses to order joins and choose an index without a full
// table scan. Counters are exposed both as plain Go state (read by the
// planner on every query, so it must stay lock-cheap) and as Prometheus
// gauges (read by an operator's monitoring stack), mirroring how
// github.com/SnellerInc/sneller's expr/partiql package keeps evaluation
// state in plain structs while db/ separately exports
// prometheus/client_golang counters for segment I/O.
package stats

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bemafred/rdfq/atom"
)

// Tracker accumulates quad counts broken down by predicate, and a
// dataset-wide total. The counts change only through RecordInsert and
// RecordDelete; committing a store.Batch does not call them.
type Tracker struct {
	mu        sync.RWMutex
	total     int64
	byPred    map[atom.ID]int64
	distinctS map[atom.ID]map[atom.ID]struct{} // predicate -> distinct subjects, sampled

	quadsGauge prometheus.Gauge
	predGauge  *prometheus.GaugeVec
}

// NewTracker returns an empty Tracker. reg may be nil to skip Prometheus
// registration (e.g. in unit tests).
func NewTracker(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		byPred:    make(map[atom.ID]int64),
		distinctS: make(map[atom.ID]map[atom.ID]struct{}),
		quadsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdfq",
			Subsystem: "store",
			Name:      "quads_total",
			Help:      "Total number of quads in the store.",
		}),
		predGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rdfq",
			Subsystem: "store",
			Name:      "predicate_quads",
			Help:      "Number of quads per predicate atom id.",
		}, []string{"predicate"}),
	}
	if reg != nil {
		reg.MustRegister(t.quadsGauge, t.predGauge)
	}
	return t
}

// RecordInsert updates counters for a newly inserted quad.
func (t *Tracker) RecordInsert(p, s atom.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.byPred[p]++
	ss, ok := t.distinctS[p]
	if !ok {
		ss = make(map[atom.ID]struct{})
		t.distinctS[p] = ss
	}
	if len(ss) < maxDistinctSample {
		ss[s] = struct{}{}
	}
	t.quadsGauge.Set(float64(t.total))
	t.predGauge.WithLabelValues(predLabel(p)).Set(float64(t.byPred[p]))
}

// RecordDelete updates counters for a removed quad.
func (t *Tracker) RecordDelete(p, s atom.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total--
	if n := t.byPred[p] - 1; n <= 0 {
		delete(t.byPred, p)
		t.predGauge.DeleteLabelValues(predLabel(p))
	} else {
		t.byPred[p] = n
		t.predGauge.WithLabelValues(predLabel(p)).Set(float64(n))
	}
	t.quadsGauge.Set(float64(t.total))
}

// maxDistinctSample caps the per-predicate distinct-subject sketch so a
// high-cardinality predicate can't make Tracker's memory scale with the
// whole store.
const maxDistinctSample = 4096

func predLabel(p atom.ID) string {
	return strconv.FormatUint(uint64(p), 10)
}

// Total returns the current quad count.
func (t *Tracker) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// PredicateCount returns the number of quads using predicate p.
func (t *Tracker) PredicateCount(p atom.ID) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byPred[p]
}

// Selectivity estimates the fraction of the store's quads that a pattern
// with predicate p (and, optionally, a bound subject already known to
// appear under p) would match. It never returns 0, so the planner always
// has a usable (if pessimistic) ordering signal even for unseen
// predicates.
func (t *Tracker) Selectivity(p atom.ID, subjectBound bool) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.total == 0 {
		return 1
	}
	count, ok := t.byPred[p]
	if !ok {
		return 1.0 / float64(t.total+1)
	}
	sel := float64(count) / float64(t.total)
	if subjectBound {
		if distinct := len(t.distinctS[p]); distinct > 0 {
			sel /= float64(distinct)
		}
	}
	return sel
}
