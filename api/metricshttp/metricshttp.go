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

// Package metricshttp exposes the treelog Prometheus collectors over HTTP.
package metricshttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsHTTP returns a mux serving the /metrics endpoint. It gathers
// from both the given registry and the default one, so runtime and process
// collectors show up next to the treelog ones.
func NewMetricsHTTP(registry *prometheus.Registry) *http.ServeMux {
	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		registry,
	}
	handler := promhttp.InstrumentMetricHandler(registry,
		promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return mux
}
