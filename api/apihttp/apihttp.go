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

// Package apihttp implements the HTTP API public interface: five routes
// per tree backend plus a health check, all speaking strict JSON.
package apihttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/bbva/treelog/codec"
	"github.com/bbva/treelog/crypto/hashing"
	"github.com/bbva/treelog/log"
	"github.com/bbva/treelog/merkle"
	"github.com/bbva/treelog/metrics"
)

// digestLen is the leaf width in bytes every route accepts.
const digestLen = 32

// HealthCheckHandler checks the system status and returns it accordingly.
// The http call it answers is:
//	GET /health-check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	metrics.TreelogAPIHealthcheckRequestsTotal.Inc()
	writeJSON(w, http.StatusOK, HealthCheckResponse{Version: 0, Status: "ok"})
}

// AddLeaf appends a single leaf digest to the tree:
//	POST /add-leaf {"leaf": "<hex64>"}
func AddLeaf(tree merkle.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req AddLeafRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		leaf, err := codec.DecodeDigest(req.Leaf, digestLen)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		timer := time.Now()
		count, err := tree.AddLeaf(leaf)
		if err != nil {
			writeTreeError(w, err)
			return
		}
		metrics.TreelogAppendDurationSeconds.Observe(time.Since(timer).Seconds())
		metrics.TreelogAppendsTotal.Inc()

		writeJSON(w, http.StatusOK, AddResponse{Status: "ok", NumLeaves: count})
	}
}

// AddLeaves appends a batch of leaf digests atomically:
//	POST /add-leaves {"leaves": ["<hex64>", ...]}
func AddLeaves(tree merkle.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req AddLeavesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Leaves == nil {
			writeError(w, http.StatusBadRequest, "missing leaves field")
			return
		}

		leaves := make([]hashing.Digest, 0, len(req.Leaves))
		for _, encoded := range req.Leaves {
			leaf, err := codec.DecodeDigest(encoded, digestLen)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			leaves = append(leaves, leaf)
		}

		timer := time.Now()
		count, err := tree.AddLeaves(leaves)
		if err != nil {
			writeTreeError(w, err)
			return
		}
		metrics.TreelogAppendDurationSeconds.Observe(time.Since(timer).Seconds())
		metrics.TreelogAppendsTotal.Add(float64(len(leaves)))

		writeJSON(w, http.StatusOK, AddResponse{Status: "ok", NumLeaves: count})
	}
}

// NumLeaves returns the current leaf count:
//	GET /get-num-leaves
func NumLeaves(tree merkle.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		count, err := tree.NumLeaves()
		if err != nil {
			writeTreeError(w, err)
			return
		}
		metrics.TreelogQueriesTotal.Inc()

		writeJSON(w, http.StatusOK, NumLeavesResponse{NumLeaves: count})
	}
}

// Root returns the current root digest:
//	GET /get-root
func Root(tree merkle.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		timer := time.Now()
		root, err := tree.Root()
		if err != nil {
			writeTreeError(w, err)
			return
		}
		metrics.TreelogQueryDurationSeconds.Observe(time.Since(timer).Seconds())
		metrics.TreelogQueriesTotal.Inc()

		writeJSON(w, http.StatusOK, RootResponse{Root: codec.EncodeDigest(root)})
	}
}

// ProofHandler returns a membership proof for a leaf index:
//	POST /get-proof {"index": <u64>}
func ProofHandler(tree merkle.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req ProofRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Index == nil {
			writeError(w, http.StatusBadRequest, "missing index field")
			return
		}

		timer := time.Now()
		proof, err := tree.ProveMembership(*req.Index)
		if err != nil {
			writeTreeError(w, err)
			return
		}
		metrics.TreelogQueryDurationSeconds.Observe(time.Since(timer).Seconds())
		metrics.TreelogQueriesTotal.Inc()

		writeJSON(w, http.StatusOK, ToProofResponse(proof))
	}
}

// NewApiHttp returns a new *http.ServeMux containing all the API handlers
// already configured: memory tree routes at the root, durable tree routes
// under /lmdb, plus the health check.
func NewApiHttp(memory, durable merkle.Tree) *http.ServeMux {

	api := http.NewServeMux()
	api.HandleFunc("/health-check", HealthCheckHandler)
	mountTree(api, "", memory)
	mountTree(api, "/lmdb", durable)

	return api
}

func mountTree(mux *http.ServeMux, prefix string, tree merkle.Tree) {
	mux.HandleFunc(prefix+"/add-leaf", AddLeaf(tree))
	mux.HandleFunc(prefix+"/add-leaves", AddLeaves(tree))
	mux.HandleFunc(prefix+"/get-num-leaves", NumLeaves(tree))
	mux.HandleFunc(prefix+"/get-root", Root(tree))
	mux.HandleFunc(prefix+"/get-proof", ProofHandler(tree))
}

// LogHandler wraps a handler logging the method, path, status and
// latency of every request.
func LogHandler(handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(writer, r)
		log.Debugf("%s %s %d %v", r.Method, r.URL.Path, writer.status, time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// CorsHandler wraps a handler with permissive cross-origin headers and
// answers preflight requests directly.
func CorsHandler(handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	out, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeTreeError maps tree failures to their HTTP status: client errors
// keep their message, everything else surfaces as an opaque storage
// failure.
func writeTreeError(w http.ResponseWriter, err error) {
	switch errors.Cause(err) {
	case merkle.ErrEmptyTree, merkle.ErrIndexOutOfRange, merkle.ErrTreeFull:
		writeError(w, http.StatusBadRequest, errors.Cause(err).Error())
	default:
		log.Errorf("Tree operation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}
