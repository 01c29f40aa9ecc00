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

// Package remotetest serves the remote cache functions from memory on an
// rpctest.Server.
package remotetest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/poiesic/embedsync/rpc/rpctest"
)

// Store keeps rows keyed by record id as the proxy would store them.
type Store struct {
	mu       sync.Mutex
	rows     map[string]map[string]any
	order    []string
	failing  bool
	rejectID map[string]bool
}

// Install registers the cache functions on srv and returns the backing store.
func Install(srv *rpctest.Server) *Store {
	s := &Store{
		rows:     make(map[string]map[string]any),
		rejectID: make(map[string]bool),
	}
	srv.Handle("db_check_connection", s.checkConnection)
	srv.Handle("db_get_all_embeddings", s.getAll)
	srv.Handle("db_get_embedding", s.get)
	srv.Handle("db_save_embedding", s.save)
	return s
}

// SetFailing makes every function report a database error.
func (s *Store) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Reject makes saves for id report failure.
func (s *Store) Reject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectID[id] = true
}

// PutRow stores a raw row, bypassing validation.
func (s *Store) PutRow(row map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(row)
}

// Row returns the stored row for id.
func (s *Store) Row(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return row, ok
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) putLocked(row map[string]any) {
	id, _ := row["nim"].(string)
	if _, exists := s.rows[id]; !exists {
		s.order = append(s.order, id)
	}
	s.rows[id] = row
}

func (s *Store) checkConnection(args []json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return map[string]any{"connected": false, "error": "database unavailable"}, nil
	}
	return map[string]any{"connected": true}, nil
}

func (s *Store) getAll(args []json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return map[string]any{"error": "database unavailable"}, nil
	}
	data := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		data = append(data, s.rows[id])
	}
	return map[string]any{"data": data}, nil
}

func (s *Store) get(args []json.RawMessage) (any, error) {
	var id, hash string
	if err := rpctest.DecodeArg(args, 0, &id); err != nil {
		return nil, err
	}
	if err := rpctest.DecodeArg(args, 1, &hash); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return map[string]any{"found": false, "error": "database unavailable"}, nil
	}
	row, ok := s.rows[id]
	if !ok || row["content_hash"] != hash {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "data": row}, nil
}

func (s *Store) save(args []json.RawMessage) (any, error) {
	var payload string
	if err := rpctest.DecodeArg(args, 0, &payload); err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, errors.New("payload is not a json object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := row["nim"].(string)
	if s.failing || s.rejectID[id] {
		return map[string]any{"success": false, "error": "write rejected"}, nil
	}
	s.putLocked(row)
	return map[string]any{"success": true}, nil
}
