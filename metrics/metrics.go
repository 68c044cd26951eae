/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package metrics holds the prometheus collectors shared by the whole
// service, plus the HTTP server that exposes them.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (

	// SERVER

	TreelogInstancesCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "treelog_instances_count",
			Help: "Number of treelog servers currently running",
		},
	)

	// API

	TreelogAPIHealthcheckRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treelog_api_healthcheck_requests_total",
			Help: "The total number of healthcheck api requests",
		},
	)

	// TREE

	TreelogAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treelog_appends_total",
			Help: "Number of leaves appended.",
		},
	)
	TreelogQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "treelog_queries_total",
			Help: "Number of count, root and proof queries.",
		},
	)
	TreelogAppendDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "treelog_append_duration_seconds",
			Help: "Duration of the append operations.",
		},
	)
	TreelogQueryDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "treelog_query_duration_seconds",
			Help: "Duration of the root and proof queries.",
		},
	)

	// PROMETHEUS

	metricsList = []prometheus.Collector{
		TreelogInstancesCount,
		TreelogAPIHealthcheckRequestsTotal,

		TreelogAppendsTotal,
		TreelogQueriesTotal,
		TreelogAppendDurationSeconds,
		TreelogQueryDurationSeconds,
	}

	registerMetrics sync.Once
)

// Register all metrics.
func Register(r *prometheus.Registry) {
	// Register the metrics.
	registerMetrics.Do(
		func() {
			for _, metric := range metricsList {
				r.MustRegister(metric)
			}
		},
	)
}
