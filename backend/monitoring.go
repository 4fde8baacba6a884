// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Each server gets its own
// registry so tests can run several servers in one process.
type Metrics struct {
	registry *prometheus.Registry

	searchDuration  *prometheus.HistogramVec
	candidates      prometheus.Counter
	cacheLookups    *prometheus.CounterVec
	rosterLoads     prometheus.Counter
	rosterPlayers   prometheus.Gauge
	selectionErrors *prometheus.CounterVec
	activeWS        prometheus.Gauge
	requests        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineupkeeper_search_duration_seconds",
			Help:    "Time spent computing lineups.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"kind"}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineupkeeper_candidates_total",
			Help: "Candidate lineups enumerated by the exhaustive search.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_result_cache_lookups_total",
			Help: "Search result cache lookups by outcome.",
		}, []string{"result"}),
		rosterLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineupkeeper_roster_loads_total",
			Help: "Number of times the roster file was read and parsed.",
		}),
		rosterPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lineupkeeper_roster_players",
			Help: "Players in the current roster snapshot.",
		}),
		selectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_selection_errors_total",
			Help: "Manual selections rejected, by kind.",
		}, []string{"kind"}),
		activeWS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lineupkeeper_websocket_clients",
			Help: "Connected websocket clients.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineupkeeper_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searchDuration,
		m.candidates,
		m.cacheLookups,
		m.rosterLoads,
		m.rosterPlayers,
		m.selectionErrors,
		m.activeWS,
		m.requests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeSearch(kind string, d time.Duration) {
	m.searchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) cacheResult(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}
