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

// Package remote implements storage.RemoteCache on top of the rpc proxy.
//
// The proxy exposes four functions backed by a hosted database:
// db_check_connection, db_get_all_embeddings, db_get_embedding and
// db_save_embedding. Every failure is logged and reported as an empty
// result, so a miss and an outage look the same to callers.
package remote
