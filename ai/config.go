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

package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the compute backend.
type Config struct {
	// Host is the base URL of the RPC proxy fronting both the compute
	// function and the remote cache.
	// Example: "https://example-embedding-api.hf.space"
	Host string

	// Model is the embedding model identifier. Only used by OpenAI-compatible
	// backends; the RPC proxy picks its own model.
	Model string

	// ComputeTimeout bounds the first attempt of a single embedding call.
	// Later attempts escalate from it.
	// Default: 30s
	ComputeTimeout time.Duration

	// BulkTimeout bounds bulk reads from the remote cache.
	// Default: 60s
	BulkTimeout time.Duration

	// PointTimeout bounds single-entry remote cache calls.
	// Default: 30s
	PointTimeout time.Duration

	// WakeTimeout bounds each wake-up round.
	// Default: 60s
	WakeTimeout time.Duration

	// ProbeTimeout bounds the liveness probe.
	// Default: 5s
	ProbeTimeout time.Duration

	// MaxRetries is the number of retries after the first embedding attempt.
	// Default: 3
	MaxRetries int

	// RetryDelay is the fixed pause between embedding attempts.
	// Default: 2s
	RetryDelay time.Duration

	// WakeAttempts is the number of wake-up rounds.
	// Default: 5
	WakeAttempts int

	// WakeDelay is the pause between wake-up rounds.
	// Default: 10s
	WakeDelay time.Duration

	// TransportRetries is the number of HTTP-level retries performed by the
	// transport underneath every call. Default: 0
	TransportRetries int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the RPC proxy base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithComputeTimeout sets the base timeout of an embedding call.
func WithComputeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ComputeTimeout = d
	}
}

// WithCacheTimeouts sets the bulk and point timeouts for remote cache calls.
func WithCacheTimeouts(bulk, point time.Duration) ConfigOption {
	return func(c *Config) {
		c.BulkTimeout = bulk
		c.PointTimeout = point
	}
}

// WithRetries sets the embedding retry count and fixed delay.
func WithRetries(maxRetries int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithWake sets the wake-up protocol parameters.
func WithWake(attempts int, timeout, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.WakeAttempts = attempts
		c.WakeTimeout = timeout
		c.WakeDelay = delay
	}
}

// WithProbeTimeout sets the liveness probe timeout.
func WithProbeTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ProbeTimeout = d
	}
}

// WithTransportRetries sets the HTTP-level retry count.
func WithTransportRetries(n int) ConfigOption {
	return func(c *Config) {
		c.TransportRetries = n
	}
}

// DefaultConfig returns a Config with the timings the hosted proxy needs
// to survive cold starts.
func DefaultConfig() *Config {
	return &Config{
		Host:             "http://127.0.0.1:7860",
		Model:            "embeddinggemma",
		ComputeTimeout:   30 * time.Second,
		BulkTimeout:      60 * time.Second,
		PointTimeout:     30 * time.Second,
		WakeTimeout:      60 * time.Second,
		ProbeTimeout:     5 * time.Second,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		WakeAttempts:     5,
		WakeDelay:        10 * time.Second,
		TransportRetries: 0,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://example-embedding-api.hf.space"),
//	    WithRetries(5, time.Second),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims whitespace and trailing slashes from Host.
func (c *Config) Normalize() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return ErrHostRequired
	}
	if c.ComputeTimeout <= 0 {
		return errors.New("ai config: ComputeTimeout must be positive")
	}
	if c.BulkTimeout <= 0 || c.PointTimeout <= 0 {
		return errors.New("ai config: cache timeouts must be positive")
	}
	if c.WakeTimeout <= 0 || c.ProbeTimeout <= 0 {
		return errors.New("ai config: wake and probe timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("ai config: MaxRetries cannot be negative")
	}
	if c.RetryDelay < 0 || c.WakeDelay < 0 {
		return errors.New("ai config: delays cannot be negative")
	}
	if c.WakeAttempts < 1 {
		return errors.New("ai config: WakeAttempts must be at least 1")
	}
	if c.TransportRetries < 0 {
		return errors.New("ai config: TransportRetries cannot be negative")
	}
	return nil
}
