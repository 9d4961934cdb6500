// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes FairQueue over HTTP, the same shape as the teacher's
// ratelimiter/api.Server: a thin handler layer over the core scheduler, with
// no business logic of its own.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"vsa/fairqueue"
	"vsa/internal/queueservice/audit"
)

// Queue is satisfied by *fairqueue.FairQueue[string] and
// *fairqueue.ShardedFairQueue[string].
type Queue interface {
	Acquire(ctx context.Context, flowID string, weight uint32) (*fairqueue.Guard[string], error)
}

// Server adapts a Queue to HTTP. The zero value is not usable; construct
// with NewServer.
type Server struct {
	queue          Queue
	defaultTimeout time.Duration
	recorder       *audit.Recorder // optional; nil disables auditing

	mu     sync.Mutex
	guards map[string]*fairqueue.Guard[string]
}

// NewServer builds a Server over queue. defaultTimeout bounds how long an
// /acquire call will wait for a slot when the caller doesn't supply
// timeout_ms; recorder may be nil to disable audit logging.
func NewServer(queue Queue, defaultTimeout time.Duration, recorder *audit.Recorder) *Server {
	return &Server{
		queue:          queue,
		defaultTimeout: defaultTimeout,
		recorder:       recorder,
		guards:         make(map[string]*fairqueue.Guard[string]),
	}
}

// RegisterRoutes wires this server's handlers onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/acquire", s.handleAcquire)
	mux.HandleFunc("/release", s.handleRelease)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

type acquireResponse struct {
	Token  string `json:"token"`
	FlowID string `json:"flow_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleAcquire admits flow_id into the scheduler, parking the issued Guard
// server-side under a token the caller must present to /release. This
// token indirection exists because a Guard's lifetime is a Go value's
// lifetime, not an HTTP request's: the HTTP surface has no other way to let
// a caller hold a slot across two round trips.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed"})
		return
	}
	flowID := r.URL.Query().Get("flow_id")
	if flowID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"flow_id is required"})
		return
	}
	weight, err := parseUintParam(r, "weight", 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"weight must be a non-negative integer"})
		return
	}
	timeout := s.defaultTimeout
	if ms := r.URL.Query().Get("timeout_ms"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{"timeout_ms must be a non-negative integer"})
			return
		}
		timeout = time.Duration(n) * time.Millisecond
	}

	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, err := s.queue.Acquire(ctx, flowID, uint32(weight))
	if err != nil {
		switch {
		case errors.Is(err, fairqueue.ErrOverloaded):
			s.audit(flowID, audit.DecisionOverloaded)
			writeJSON(w, http.StatusTooManyRequests, errorResponse{err.Error()})
		case errors.Is(err, fairqueue.ErrCanceled):
			s.audit(flowID, audit.DecisionEvicted)
			writeJSON(w, http.StatusRequestTimeout, errorResponse{err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		}
		return
	}

	token := newToken()
	s.mu.Lock()
	s.guards[token] = g
	s.mu.Unlock()

	s.audit(flowID, audit.DecisionAdmitted)
	writeJSON(w, http.StatusOK, acquireResponse{Token: token, FlowID: flowID})
}

// handleRelease closes the Guard held under token, returning its slot to
// the scheduler.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{"method not allowed"})
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"token is required"})
		return
	}

	s.mu.Lock()
	g, ok := s.guards[token]
	if ok {
		delete(s.guards, token)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{"unknown token"})
		return
	}
	flowID := g.FlowID()
	g.Close()
	s.audit(flowID, audit.DecisionCompleted)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) audit(flowID string, decision audit.Decision) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(audit.Event{
		EventID:  newToken(),
		FlowID:   flowID,
		Decision: decision,
	})
}

// ListenAndServe starts an http.Server with the same conservative timeouts
// as the teacher's ratelimiter/api.Server.ListenAndServe.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseUint(v, 10, 32)
}

func newToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	dst := make([]byte, 32)
	hex.Encode(dst, b[:])
	return string(dst)
}
