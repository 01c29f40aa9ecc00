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

package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/rpc"
	"github.com/poiesic/embedsync/storage"
)

// Remote function names exposed by the proxy.
const (
	FunctionCheckConnection = "db_check_connection"
	FunctionGetAll          = "db_get_all_embeddings"
	FunctionGet             = "db_get_embedding"
	FunctionSave            = "db_save_embedding"
)

const (
	DefaultBulkTimeout  = 60 * time.Second
	DefaultPointTimeout = 30 * time.Second
)

// Client implements storage.RemoteCache.
type Client struct {
	transport    rpc.Transport
	bulkTimeout  time.Duration
	pointTimeout time.Duration
	logger       *slog.Logger
}

var _ storage.RemoteCache = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeouts sets the timeout of GetAll (bulk) and of every other call (point).
func WithTimeouts(bulk, point time.Duration) Option {
	return func(c *Client) {
		if bulk > 0 {
			c.bulkTimeout = bulk
		}
		if point > 0 {
			c.pointTimeout = point
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a remote cache client over transport.
func NewClient(transport rpc.Transport, opts ...Option) *Client {
	c := &Client{
		transport:    transport,
		bulkTimeout:  DefaultBulkTimeout,
		pointTimeout: DefaultPointTimeout,
		logger:       slog.Default().With("component", "remote-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type connectionResult struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error"`
}

// CheckConnection implements storage.RemoteCache.
func (c *Client) CheckConnection(ctx context.Context) storage.ConnectionStatus {
	var res connectionResult
	if err := c.call(ctx, FunctionCheckConnection, c.pointTimeout, &res); err != nil {
		return storage.ConnectionStatus{Connected: false, Error: err.Error()}
	}
	return storage.ConnectionStatus{Connected: res.Connected, Error: res.Error}
}

type getAllResult struct {
	Data  []json.RawMessage `json:"data"`
	Error string            `json:"error"`
}

// GetAll implements storage.RemoteCache. Rows that cannot be decoded or
// carry no combined embedding are skipped.
func (c *Client) GetAll(ctx context.Context) []core.CacheEntry {
	var res getAllResult
	if err := c.call(ctx, FunctionGetAll, c.bulkTimeout, &res); err != nil {
		return []core.CacheEntry{}
	}
	if res.Error != "" {
		c.logger.Error("remote cache reported error", "function", FunctionGetAll, "err", res.Error)
		return []core.CacheEntry{}
	}

	entries := make([]core.CacheEntry, 0, len(res.Data))
	for i, raw := range res.Data {
		entry, err := decodeEntry(raw)
		if err != nil {
			c.logger.Warn("skipping undecodable remote cache row", "row", i, "err", err)
			continue
		}
		if err := core.ValidateCacheEntry(entry); err != nil {
			c.logger.Warn("skipping invalid remote cache row", "record_id", entry.RecordID, "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	c.logger.Debug("loaded remote cache", "rows", len(res.Data), "entries", len(entries))
	return entries
}

type getResult struct {
	Found bool            `json:"found"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Get implements storage.RemoteCache.
func (c *Client) Get(ctx context.Context, id string, fp core.Fingerprint) (*core.CacheEntry, bool) {
	var res getResult
	if err := c.call(ctx, FunctionGet, c.pointTimeout, &res, id, string(fp)); err != nil {
		return nil, false
	}
	if res.Error != "" {
		c.logger.Error("remote cache reported error", "function", FunctionGet, "record_id", id, "err", res.Error)
		return nil, false
	}
	if !res.Found || len(res.Data) == 0 {
		return nil, false
	}

	entry, err := decodeEntry(res.Data)
	if err != nil {
		c.logger.Warn("undecodable remote cache entry", "record_id", id, "err", err)
		return nil, false
	}
	if entry.RecordID == "" {
		entry.RecordID = id
	}
	if entry.Fingerprint == "" {
		entry.Fingerprint = fp
	}
	if !entry.Matches(fp) || core.ValidateCacheEntry(entry) != nil {
		return nil, false
	}
	return &entry, true
}

type saveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Put implements storage.RemoteCache. The row is sent as a JSON string
// argument.
func (c *Client) Put(ctx context.Context, entry core.CacheEntry) bool {
	if err := core.ValidateCacheEntry(entry); err != nil {
		c.logger.Warn("refusing to store invalid entry", "record_id", entry.RecordID, "err", err)
		return false
	}

	payload, err := encodeEntry(entry)
	if err != nil {
		c.logger.Error("failed to encode entry", "record_id", entry.RecordID, "err", err)
		return false
	}

	var res saveResult
	if err := c.call(ctx, FunctionSave, c.pointTimeout, &res, string(payload)); err != nil {
		return false
	}
	if !res.Success {
		c.logger.Warn("remote cache rejected entry", "record_id", entry.RecordID, "err", res.Error)
		return false
	}
	return true
}

// call invokes function and decodes its result into out. Failures are
// logged here so callers only decide what to return.
func (c *Client) call(ctx context.Context, function string, timeout time.Duration, out any, args ...any) error {
	raw, err := c.transport.Call(ctx, function, timeout, args...)
	if err != nil {
		c.logger.Error("remote cache call failed", "function", function, "err", err)
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("failed to decode remote cache result", "function", function, "err", err)
		return err
	}
	return nil
}
