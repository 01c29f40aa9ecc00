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
	"log/slog"
	"time"

	"github.com/poiesic/embedsync/observability"
)

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the whole configuration. Options applied after it
// adjust the copy.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) error {
		if cfg != nil {
			e.cfg = *cfg
		}
		return nil
	}
}

// WithStats sets the counters the engine records into.
func WithStats(stats *observability.Stats) Option {
	return func(e *Engine) error {
		if stats != nil {
			e.stats = stats
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithLocalCache enables or disables the local snapshot tier.
func WithLocalCache(enabled bool) Option {
	return func(e *Engine) error {
		e.cfg.LocalCache = enabled
		return nil
	}
}

// WithFieldEmbeddings enables or disables per-field slots.
func WithFieldEmbeddings(enabled bool) Option {
	return func(e *Engine) error {
		e.cfg.FieldEmbeddings = enabled
		return nil
	}
}

// WithCallDelay sets the minimum spacing between compute calls.
func WithCallDelay(d time.Duration) Option {
	return func(e *Engine) error {
		e.cfg.CallDelay = d
		return nil
	}
}

// WithTextLimits sets the rune caps for per-field and combined texts.
func WithTextLimits(field, combined int) Option {
	return func(e *Engine) error {
		e.cfg.FieldTextLimit = field
		e.cfg.CombinedTextLimit = combined
		return nil
	}
}

// WithWriteBackPool sets how many remote cache writes may run at once.
func WithWriteBackPool(size int) Option {
	return func(e *Engine) error {
		e.cfg.WriteBackWorkers = size
		return nil
	}
}
