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

package rpc

import (
	"context"
	"encoding/json"
	"time"
)

// Transport is the low-level channel to the remote proxy.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Call invokes function with args and returns its raw return value.
	// The whole exchange is bounded by timeout.
	Call(ctx context.Context, function string, timeout time.Duration, args ...any) (json.RawMessage, error)

	// Ping issues a plain liveness probe against the base URL.
	Ping(ctx context.Context, timeout time.Duration) error
}
