// Copyright 2025 The evm-fork-db Authors
// This file is part of evm-fork-db.
//
// evm-fork-db is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// evm-fork-db is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with evm-fork-db. If not, see <http://www.gnu.org/licenses/>.

package forkdb

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters a SharedBackend exposes about its own
// cache-miss traffic. Callers that don't care can leave it nil: every
// call site that touches it is nil-checked, so metrics are strictly
// opt-in rather than a required wiring step.
type Metrics struct {
	ProviderCalls *prometheus.CounterVec
	CacheHits     *prometheus.CounterVec
}

// NewMetrics builds a fresh Metrics registered under namespace. Callers
// typically register the result with a prometheus.Registry once per
// process and share the *Metrics across every SharedBackend they open.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forkdb",
			Name:      "provider_calls_total",
			Help:      "Outbound fetches issued by the backend event loop, by request kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forkdb",
			Name:      "cache_hits_total",
			Help:      "Lookups satisfied directly from the shared memory store, by request kind.",
		}, []string{"kind"}),
	}
}

// MustRegister registers every collector in m with reg, panicking on a
// duplicate registration exactly like prometheus.MustRegister.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.ProviderCalls, m.CacheHits)
}
