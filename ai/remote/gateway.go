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
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/rpc"
)

// FunctionEmbed is the remote function computing a single embedding.
const FunctionEmbed = "get_embedding"

const wakeText = "wake"

// Gateway calls the hosted compute function through an rpc.Transport.
// It performs no caching and no deduplication.
type Gateway struct {
	transport rpc.Transport
	cfg       ai.Config
	logger    *slog.Logger
	wakes     singleflight.Group
	awake     atomic.Bool
}

var (
	_ ai.Embedder = (*Gateway)(nil)
	_ ai.Warmer   = (*Gateway)(nil)
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used by the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a gateway. A nil cfg uses ai.DefaultConfig.
// The config is copied; later changes to cfg have no effect.
func NewGateway(transport rpc.Transport, cfg *ai.Config, opts ...Option) *Gateway {
	if cfg == nil {
		cfg = ai.DefaultConfig()
	}
	g := &Gateway{
		transport: transport,
		cfg:       *cfg,
		logger:    slog.Default().With("component", "compute-gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type embedResult struct {
	Embedding core.Vector `json:"embedding"`
	Error     string      `json:"error"`
}

// EmbedText implements ai.Embedder. Each attempt gets a longer timeout than
// the previous one. Malformed responses are not retried. Once attempts are
// exhausted the error is a *ComputeError.
func (g *Gateway) EmbedText(ctx context.Context, text string) (core.Vector, error) {
	var (
		vec   core.Vector
		tries int
	)
	err := retryFixed(ctx, g.cfg.MaxRetries+1, g.cfg.RetryDelay, func(attempt int) error {
		tries++
		v, err := g.embedOnce(ctx, text, g.attemptTimeout(attempt))
		if err != nil {
			if rpc.IsMalformed(err) {
				return Permanent(err)
			}
			g.logger.Debug("embedding attempt failed", "attempt", attempt+1, "err", err)
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &ComputeError{Attempts: tries, Err: err}
	}

	g.awake.Store(true)
	return vec, nil
}

// attemptTimeout grows the base timeout by half of itself per retry.
func (g *Gateway) attemptTimeout(attempt int) time.Duration {
	base := g.cfg.ComputeTimeout
	return base + time.Duration(attempt)*(base/2)
}

func (g *Gateway) embedOnce(ctx context.Context, text string, timeout time.Duration) (core.Vector, error) {
	raw, err := g.transport.Call(ctx, FunctionEmbed, timeout, text)
	if err != nil {
		return nil, err
	}

	var res embedResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", rpc.ErrMalformedResponse, FunctionEmbed, err)
	}
	if res.Error != "" {
		return nil, &RemoteFunctionError{Function: FunctionEmbed, Message: res.Error}
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("%s: %w", FunctionEmbed, ai.ErrEmptyEmbedding)
	}
	return res.Embedding, nil
}

// Alive implements ai.Warmer with a liveness probe bounded by ProbeTimeout.
func (g *Gateway) Alive(ctx context.Context) bool {
	if err := g.transport.Ping(ctx, g.cfg.ProbeTimeout); err != nil {
		g.logger.Debug("liveness probe failed", "err", err)
		return false
	}
	return true
}

// Awake reports whether the gateway has answered since it was created.
func (g *Gateway) Awake() bool {
	return g.awake.Load()
}

// Wake implements ai.Warmer. Concurrent callers share a single wake-up; only
// the caller that started it receives status updates. The shared wake-up is
// detached from any one caller's context and ends on its own attempt limits;
// a caller whose ctx is done stops waiting and gets false.
func (g *Gateway) Wake(ctx context.Context, onStatus ai.StatusFunc) bool {
	shared := context.WithoutCancel(ctx)
	ch := g.wakes.DoChan("wake", func() (any, error) {
		return g.wake(shared, onStatus), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (g *Gateway) wake(ctx context.Context, onStatus ai.StatusFunc) bool {
	status := func(format string, args ...any) {
		if onStatus != nil {
			onStatus(fmt.Sprintf(format, args...))
		}
	}

	rounds := g.cfg.WakeAttempts
	for round := 1; round <= rounds; round++ {
		status("Waking compute backend (attempt %d/%d)", round, rounds)

		_, err := g.transport.Call(ctx, FunctionEmbed, g.cfg.WakeTimeout, wakeText)
		var eventErr *rpc.EventError
		if err == nil || errors.As(err, &eventErr) {
			g.awake.Store(true)
			g.logger.Info("compute backend is awake", "round", round)
			status("Compute backend is awake")
			return true
		}

		g.logger.Warn("wake round failed", "round", round, "rounds", rounds, "err", err)
		if ctx.Err() != nil {
			break
		}
		if round < rounds {
			status("Backend may be cold starting, waiting %s before retrying", g.cfg.WakeDelay)
			if err := sleepCtx(ctx, g.cfg.WakeDelay); err != nil {
				break
			}
		}
	}

	status("Compute backend is not responding")
	return false
}
