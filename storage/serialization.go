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

package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/poiesic/embedsync/core"
)

const snapshotVersion = 1

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type snapshotPayload struct {
	Version int               `json:"version"`
	Entries []core.CacheEntry `json:"entries"`
}

// MarshalSnapshotEntries encodes entries as zstd-compressed JSON.
// Entries are written in record ID order so equal inputs give equal output.
func MarshalSnapshotEntries(entries map[string]core.CacheEntry) ([]byte, error) {
	payload := snapshotPayload{
		Version: snapshotVersion,
		Entries: make([]core.CacheEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		payload.Entries = append(payload.Entries, entry)
	}
	slices.SortFunc(payload.Entries, func(a, b core.CacheEntry) int {
		return strings.Compare(a.RecordID, b.RecordID)
	})

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// UnmarshalSnapshotEntries decodes data written by MarshalSnapshotEntries,
// keyed by record ID.
func UnmarshalSnapshotEntries(data []byte) (map[string]core.CacheEntry, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrSerializationFailed, err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if payload.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrSerializationFailed, payload.Version)
	}

	entries := make(map[string]core.CacheEntry, len(payload.Entries))
	for _, entry := range payload.Entries {
		entries[entry.RecordID] = entry
	}
	return entries, nil
}

// MarshalTimestamp encodes t as big-endian unix milliseconds.
func MarshalTimestamp(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixMilli()))
	return buf
}

// UnmarshalTimestamp decodes a timestamp written by MarshalTimestamp.
func UnmarshalTimestamp(data []byte) (time.Time, error) {
	if len(data) != 8 {
		return time.Time{}, fmt.Errorf("%w: timestamp has %d bytes", ErrTruncatedData, len(data))
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(data))).UTC(), nil
}
