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

package core

import "fmt"

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//
// Text fields may all be empty; such a record simply has nothing to embed.
func ValidateRecord(record Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}
	return nil
}

// ValidateEmbeddingSet checks that a set may be written to a cache tier.
//
// Validation rules:
//   - the combined slot must be present and non-empty
//   - every slot must be a known slot
func ValidateEmbeddingSet(set EmbeddingSet) error {
	if len(set.Combined()) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingSet, ErrMissingCombined)
	}
	for slot := range set {
		if !IsKnownSlot(slot) {
			return fmt.Errorf("%w: %w %q", ErrInvalidEmbeddingSet, ErrUnknownSlot, slot)
		}
	}
	return nil
}

// ValidateCacheEntry validates an entry before it is persisted or accepted.
func ValidateCacheEntry(entry CacheEntry) error {
	if entry.RecordID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCacheEntry, ErrEmptyID)
	}
	if entry.Fingerprint == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCacheEntry, ErrEmptyFingerprint)
	}
	if err := ValidateEmbeddingSet(entry.Embeddings); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCacheEntry, err)
	}
	return nil
}

// IsKnownSlot reports whether slot is SlotCombined or one of FieldSlots.
func IsKnownSlot(slot Slot) bool {
	if slot == SlotCombined {
		return true
	}
	for _, s := range FieldSlots {
		if s == slot {
			return true
		}
	}
	return false
}
