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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyID indicates the record ID is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrInvalidEmbeddingSet indicates an EmbeddingSet failed validation.
	ErrInvalidEmbeddingSet = errors.New("invalid embedding set")

	// ErrMissingCombined indicates the combined slot is absent or empty.
	ErrMissingCombined = errors.New("combined embedding is missing")

	// ErrUnknownSlot indicates a slot name outside the known set.
	ErrUnknownSlot = errors.New("unknown embedding slot")

	// ErrInvalidCacheEntry indicates a CacheEntry failed validation.
	ErrInvalidCacheEntry = errors.New("invalid cache entry")

	// ErrEmptyFingerprint indicates a cache entry has no fingerprint.
	ErrEmptyFingerprint = errors.New("fingerprint cannot be empty")
)
