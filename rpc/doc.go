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

// Package rpc implements the request/response channel shared by the compute
// gateway and the remote cache client.
//
// A remote function is invoked in two steps:
//
//	POST {base}/call/{function}            body {"data": [args...]} -> {"event_id": "..."}
//	GET  {base}/call/{function}/{event_id} -> event stream with "data: [...]" lines
//
// The first "data:" line carries a JSON array whose first element is the
// function's return value. Transport hides both steps behind a single Call.
package rpc
