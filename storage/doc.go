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

// Package storage defines the two cache tiers consulted before computing
// embeddings, and the codec used to persist the local one.
//
// RemoteCache is the authoritative store shared across clients. It is
// reached through the rpc proxy and implemented in storage/remote.
// LocalCache is a per-machine snapshot that expires as a whole, implemented
// on BadgerDB in storage/badger.
//
// Neither tier checks fingerprints against records. Callers compare an
// entry's fingerprint with core.FingerprintOf of the current record before
// using it.
package storage
