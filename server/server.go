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

// Package server wires the api.apihttp routes, the two merkle tree
// backends and the storage engine into a runnable service.
package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bbva/treelog/api/apihttp"
	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/log"
	"github.com/bbva/treelog/merkle"
	"github.com/bbva/treelog/metrics"
	"github.com/bbva/treelog/storage"
	"github.com/bbva/treelog/storage/badger"
	"github.com/bbva/treelog/storage/bolt"
)

// Server encapsulates the data and logic to start/stop a treelog server.
type Server struct {
	conf *Config

	store         storage.Store
	memory        *merkle.MemoryTree
	durable       *merkle.DurableTree
	httpServer    *http.Server
	metricsServer *metrics.Server
}

// NewServer opens the storage engine and builds both tree backends plus
// the HTTP and metrics servers. Nothing listens yet; call Start.
func NewServer(conf *Config) (*Server, error) {

	store, err := openStore(conf.Engine, conf.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening storage engine")
	}

	memory := merkle.NewMemoryTree(hashing.NewKeccak256Hasher())
	durable := merkle.NewDurableTree(store, hashing.NewKeccak256Hasher())

	mux := apihttp.NewApiHttp(memory, durable)

	server := &Server{
		conf:          conf,
		store:         store,
		memory:        memory,
		durable:       durable,
		httpServer:    newHTTPServer(conf.HTTPAddr, mux),
		metricsServer: metrics.NewServer(conf.MetricsAddr),
	}

	return server, nil
}

func openStore(engine, path string) (storage.Store, error) {
	switch engine {
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		return bolt.NewBoltStore(path)
	case "badger":
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
		return badger.NewBadgerStore(path)
	default:
		return nil, errors.Errorf("unknown storage engine %q", engine)
	}
}

// Start binds the API listener and serves the API and metrics servers in
// background goroutines. A bind failure on the API address is returned to
// the caller so the process can exit nonzero instead of running without
// its public endpoint; the metrics server binds inside its goroutine and
// a failure there is only logged.
func (s *Server) Start() error {
	metrics.TreelogInstancesCount.Inc()

	listener, err := net.Listen("tcp", s.conf.HTTPAddr)
	if err != nil {
		return errors.Wrapf(err, "binding API address %s", s.conf.HTTPAddr)
	}

	go func() {
		log.Debugf("	* Starting metrics HTTP server in addr: %s", s.conf.MetricsAddr)
		s.metricsServer.Start()
	}()

	go func() {
		log.Debugf("	* Starting treelog API HTTP server in addr: %s", s.conf.HTTPAddr)
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			log.Errorf("Can't start treelog API HTTP server: %s", err)
		}
	}()

	log.Infof("Treelog server ready on %s (durable storage: %s engine at %s)",
		s.conf.HTTPAddr, s.conf.Engine, s.conf.DBPath)
	for _, prefix := range []string{"", "/lmdb"} {
		log.Infof("	* Routes: %s/add-leaf %s/add-leaves %s/get-num-leaves %s/get-root %s/get-proof",
			prefix, prefix, prefix, prefix, prefix)
	}

	return nil
}

// Stop shuts down the HTTP servers and closes the storage engine.
func (s *Server) Stop() error {
	metrics.TreelogInstancesCount.Dec()
	log.Infof("Shutting down treelog server")

	log.Debugf("Stopping metrics server...")
	s.metricsServer.Shutdown()

	log.Debugf("Stopping API HTTP server...")
	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		log.Error(err)
		return err
	}

	log.Debugf("Closing storage engine...")
	if err := s.store.Close(); err != nil {
		log.Error(err)
		return err
	}

	log.Debugf("Done. Exiting...")
	return nil
}

func newHTTPServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: apihttp.LogHandler(apihttp.CorsHandler(mux)),
	}
}
