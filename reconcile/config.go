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

import (
	"fmt"
	"time"
)

// Config holds the tunables of an Engine.
type Config struct {
	// FieldTextLimit caps, in runes, the text sent for each per-field slot.
	FieldTextLimit int

	// CombinedTextLimit caps, in runes, the text sent for the combined slot.
	CombinedTextLimit int

	// CallDelay is the minimum spacing between compute calls, both between
	// slots of one record and between records.
	CallDelay time.Duration

	// FieldEmbeddings enables per-field slots in addition to combined.
	FieldEmbeddings bool

	// LocalCache enables reading and saving the local snapshot.
	LocalCache bool

	// WriteBackWorkers is the number of concurrent remote cache writes.
	WriteBackWorkers int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FieldTextLimit:    500,
		CombinedTextLimit: 1000,
		CallDelay:         100 * time.Millisecond,
		FieldEmbeddings:   true,
		LocalCache:        true,
		WriteBackWorkers:  1,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.FieldTextLimit < 1 || c.CombinedTextLimit < 1 {
		return fmt.Errorf("%w: text limits must be positive", ErrInvalidConfig)
	}
	if c.CallDelay < 0 {
		return fmt.Errorf("%w: call delay cannot be negative", ErrInvalidConfig)
	}
	if c.WriteBackWorkers < 1 {
		return fmt.Errorf("%w: write-back workers must be at least 1", ErrInvalidConfig)
	}
	return nil
}
