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

// Package reconcile resolves embeddings for a batch of records from the
// cheapest tier that holds a valid copy.
//
// Tiers are consulted in order: the local snapshot, the remote cache (one
// bulk read per batch) and finally the compute backend, called one text at
// a time with a rate limit. An entry is only valid for a record while its
// fingerprint matches core.FingerprintOf of that record. Computed sets are
// written back to the remote cache, and the whole result is saved as the new
// local snapshot.
//
// A record whose combined embedding cannot be computed is left out of the
// result and counted as an error; the rest of the batch continues.
package reconcile
