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

package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bbva/treelog/api/metricshttp"
	"github.com/bbva/treelog/log"
)

// Server exposes the registered collectors over a dedicated HTTP
// listener.
type Server struct {
	server   *http.Server
	registry *prometheus.Registry
}

func NewServer(addr string) *Server {
	registry := prometheus.NewRegistry()
	Register(registry)

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: metricshttp.NewMetricsHTTP(registry),
		},
		registry: registry,
	}
}

// Start blocks serving the metrics endpoint until Shutdown is called.
func (s *Server) Start() {
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		log.Errorf("Can't start metrics HTTP server: %s", err)
	}
}

func (s *Server) Shutdown() {
	_ = s.server.Shutdown(context.Background())
}
