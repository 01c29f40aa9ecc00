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
	"errors"
	"fmt"

	"github.com/poiesic/embedsync/ai"
)

// ComputeError is returned by EmbedText once every attempt has failed.
// It matches ai.ErrComputeFailed and the last underlying failure.
type ComputeError struct {
	Attempts int
	Err      error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ComputeError) Unwrap() []error {
	return []error{ai.ErrComputeFailed, e.Err}
}

// RemoteFunctionError reports an explicit error field in a function result.
type RemoteFunctionError struct {
	Function string
	Message  string
}

func (e *RemoteFunctionError) Error() string {
	return fmt.Sprintf("%s returned error: %s", e.Function, e.Message)
}

// ErrInvalidAttempts is returned when a retry loop is asked for no attempts.
var ErrInvalidAttempts = errors.New("attempts must be greater than 0")
