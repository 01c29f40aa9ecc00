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
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse indicates the server answered but the payload could
	// not be interpreted (missing event id, no data line, invalid JSON).
	// Callers should not retry on it.
	ErrMalformedResponse = errors.New("malformed rpc response")

	// ErrBaseURLRequired is returned when a transport is created without a base URL.
	ErrBaseURLRequired = errors.New("rpc base url required")
)

// StatusError reports a non-success HTTP status from either call step.
type StatusError struct {
	Function   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rpc %s: unexpected status %d", e.Function, e.StatusCode)
	}
	return fmt.Sprintf("rpc %s: unexpected status %d: %s", e.Function, e.StatusCode, e.Body)
}

// IsMalformed reports whether err stems from an uninterpretable response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// EventError is reported when the event stream signals a server-side failure
// instead of a result.
type EventError struct {
	Function string
	Message  string
}

func (e *EventError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Function, e.Message)
}
