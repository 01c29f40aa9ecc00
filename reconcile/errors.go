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

package reconcile

import "errors"

var (
	// ErrEmbedderRequired is returned when an Engine is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrRemoteCacheRequired is returned when an Engine is created without a remote cache.
	ErrRemoteCacheRequired = errors.New("remote cache is required")

	// ErrNothingToEmbed indicates a record with no text in any field.
	ErrNothingToEmbed = errors.New("record has no text to embed")

	// ErrInvalidConfig indicates an engine configuration failed validation.
	ErrInvalidConfig = errors.New("invalid reconcile config")
)
