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
	"encoding/json"
	"fmt"

	"github.com/poiesic/embedsync/core"
)

// Column names match the table served by the proxy. Rows are keyed on
// (nim, content_hash); nama and judul are display metadata only.
const (
	columnID          = "nim"
	columnContentHash = "content_hash"
	columnOwnerName   = "nama"
	columnTitle       = "judul"
)

var slotColumns = map[core.Slot]string{
	core.SlotCombined:         "embedding_combined",
	core.SlotTitle:            "embedding_judul",
	core.SlotDescription:      "embedding_deskripsi",
	core.SlotProblemStatement: "embedding_problem",
	core.SlotMethod:           "embedding_metode",
}

func slotColumn(slot core.Slot) string {
	return slotColumns[slot]
}

// encodeEntry builds a save row. Missing per-field slots and empty
// metadata are sent as null.
func encodeEntry(entry core.CacheEntry) ([]byte, error) {
	row := map[string]any{
		columnID:                      entry.RecordID,
		columnContentHash:             string(entry.Fingerprint),
		slotColumn(core.SlotCombined): entry.Embeddings.Combined(),
		columnOwnerName:               nullable(entry.OwnerName),
		columnTitle:                   nullable(entry.Title),
	}
	for _, slot := range core.FieldSlots {
		if vec, ok := entry.Embeddings[slot]; ok && len(vec) > 0 {
			row[slotColumn(slot)] = vec
		} else {
			row[slotColumn(slot)] = nil
		}
	}
	return json.Marshal(row)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decodeEntry(raw json.RawMessage) (core.CacheEntry, error) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return core.CacheEntry{}, err
	}

	var entry core.CacheEntry
	if err := decodeColumn(row, columnID, &entry.RecordID); err != nil {
		return core.CacheEntry{}, err
	}
	var hash string
	if err := decodeColumn(row, columnContentHash, &hash); err != nil {
		return core.CacheEntry{}, err
	}
	entry.Fingerprint = core.Fingerprint(hash)
	if err := decodeColumn(row, columnOwnerName, &entry.OwnerName); err != nil {
		return core.CacheEntry{}, err
	}
	if err := decodeColumn(row, columnTitle, &entry.Title); err != nil {
		return core.CacheEntry{}, err
	}

	entry.Embeddings = make(core.EmbeddingSet)
	slots := append([]core.Slot{core.SlotCombined}, core.FieldSlots...)
	for _, slot := range slots {
		var vec core.Vector
		if err := decodeColumn(row, slotColumn(slot), &vec); err != nil {
			return core.CacheEntry{}, err
		}
		if len(vec) > 0 {
			entry.Embeddings[slot] = vec
		}
	}
	return entry, nil
}

// decodeColumn leaves v untouched when the column is missing or null.
func decodeColumn(row map[string]json.RawMessage, column string, v any) error {
	raw, ok := row[column]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("column %s: %w", column, err)
	}
	return nil
}
