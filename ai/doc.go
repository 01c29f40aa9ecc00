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

// Package ai provides abstractions for the compute backend that turns
// record text into embeddings.
//
// The package defines two small interfaces:
//
//   - Embedder: generates a vector embedding from text
//   - Warmer: probes and wakes a backend that may be cold
//
// # Implementation Packages
//
//   - ai/remote: the hosted compute gateway reached through the rpc proxy
//   - ai/openai: an OpenAI-compatible embeddings API
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors of production backends return interface types.
// Test constructors return concrete types so tests can inspect call counts
// and inject failures:
//
//	mockEmbed := mock.NewMockEmbedder()
//	mockEmbed.FailOn("bad text", errors.New("boom"))
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithHost("https://example-embedding-api.hf.space"))
//	transport, err := rpc.NewHTTPTransport(cfg.Host)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gateway := remote.NewGateway(transport, cfg)
//	if !gateway.Alive(ctx) {
//	    gateway.Wake(ctx, func(s string) { fmt.Println(s) })
//	}
//	vec, err := gateway.EmbedText(ctx, "Hello world")
package ai
