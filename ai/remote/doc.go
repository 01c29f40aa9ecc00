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

// Package remote implements ai.Embedder and ai.Warmer against the hosted
// compute gateway reached through an rpc.Transport.
//
// The gateway is slow to start and rate limited. Wake drives it out of a
// cold start with a bounded number of long rounds, and EmbedText retries
// each call with a fixed delay while growing the per-attempt timeout.
package remote
