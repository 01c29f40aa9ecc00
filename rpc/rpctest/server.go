// Copyright 2025 Poiesic Systems
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

// Package rpctest provides an in-process server speaking the rpc call
// protocol, for tests of components built on rpc.Transport.
package rpctest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// HandlerFunc serves one remote function. args holds the raw JSON arguments.
// The returned value is sent as the function result. A returned error is sent
// as an "event: error" stream unless it is a *StatusFailure or *RawStream.
type HandlerFunc func(args []json.RawMessage) (any, error)

// StatusFailure makes the initiating POST fail with Code.
type StatusFailure struct {
	Code int
}

func (f *StatusFailure) Error() string {
	return "status " + strconv.Itoa(f.Code)
}

// RawStream makes the result fetch return Body verbatim.
type RawStream struct {
	Body string
}

func (r *RawStream) Error() string {
	return "raw stream"
}

type pending struct {
	result any
	err    error
}

// Server is an httptest.Server implementing the call protocol.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	handlers   map[string]HandlerFunc
	calls      map[string]int
	results    map[string]pending
	seq        int
	headStatus int
	heads      int
}

// NewServer starts a server with no registered functions.
// Callers must Close it.
func NewServer() *Server {
	s := &Server{
		handlers:   make(map[string]HandlerFunc),
		calls:      make(map[string]int),
		results:    make(map[string]pending),
		headStatus: http.StatusOK,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Handle registers h for function, replacing any previous handler.
func (s *Server) Handle(function string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[function] = h
}

// SetHeadStatus sets the status answered to liveness probes.
func (s *Server) SetHeadStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headStatus = code
}

// Calls returns how many times function was invoked.
func (s *Server) Calls(function string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[function]
}

// TotalCalls returns the number of function invocations across all functions.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Probes returns how many liveness probes were received.
func (s *Server) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		s.mu.Lock()
		s.heads++
		code := s.headStatus
		s.mu.Unlock()
		w.WriteHeader(code)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "call" {
		http.NotFound(w, r)
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		s.initiate(w, r, parts[1])
	case r.Method == http.MethodGet && len(parts) == 3:
		s.result(w, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request, function string) {
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	h, ok := s.handlers[function]
	s.calls[function]++
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	result, err := h(body.Data)

	var sf *StatusFailure
	if errors.As(err, &sf) {
		http.Error(w, "failure", sf.Code)
		return
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("evt-%d", s.seq)
	s.results[id] = pending{result: result, err: err}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": id})
}

func (s *Server) result(w http.ResponseWriter, id string) {
	s.mu.Lock()
	p, ok := s.results[id]
	delete(s.results, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown event", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")

	var raw *RawStream
	switch {
	case errors.As(p.err, &raw):
		_, _ = w.Write([]byte(raw.Body))
	case p.err != nil:
		msg, _ := json.Marshal(p.err.Error())
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
	default:
		payload, err := json.Marshal([]any{p.result})
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: null\n\n")
			return
		}
		fmt.Fprintf(w, "event: generating\n\nevent: complete\ndata: %s\n\n", payload)
	}
}

// DecodeArg decodes args[i] into v.
func DecodeArg(args []json.RawMessage, i int, v any) error {
	if i >= len(args) {
		return fmt.Errorf("missing argument %d", i)
	}
	return json.Unmarshal(args[i], v)
}
