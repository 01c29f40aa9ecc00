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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"

	// Bulk reads return every stored vector in a single data line.
	maxLineSize = 64 << 20

	maxErrorBody = 4 << 10
)

// HTTPTransport implements Transport over HTTP using a retrying client.
type HTTPTransport struct {
	baseURL string
	client  *retryablehttp.Client
	logger  *slog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithRetryMax sets how many times a single HTTP request is retried by the
// transport itself on connection errors and 5xx responses.
func WithRetryMax(n int) Option {
	return func(t *HTTPTransport) {
		if n < 0 {
			n = 0
		}
		t.client.RetryMax = n
	}
}

// WithRetryWait bounds the wait between transport-level retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(t *HTTPTransport) {
		t.client.RetryWaitMin = minWait
		t.client.RetryWaitMax = maxWait
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client.HTTPClient = c
		}
	}
}

// WithLogger sets the logger. It is also handed to the retrying client.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport for the proxy at baseURL.
func NewHTTPTransport(baseURL string, opts ...Option) (*HTTPTransport, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	t := &HTTPTransport{
		baseURL: baseURL,
		client:  client,
		logger:  slog.Default().With("component", "rpc-transport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	// *slog.Logger satisfies retryablehttp.LeveledLogger.
	t.client.Logger = t.logger

	return t, nil
}

// BaseURL returns the normalized base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

type callRequest struct {
	Data []any `json:"data"`
}

type callResponse struct {
	EventID string `json:"event_id"`
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, function string, timeout time.Duration, args ...any) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if args == nil {
		args = []any{}
	}

	eventID, err := t.initiate(ctx, function, args)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("rpc call initiated", "function", function, "event_id", eventID)

	return t.fetch(ctx, function, eventID)
}

func (t *HTTPTransport) initiate(ctx context.Context, function string, args []any) (string, error) {
	body, err := json.Marshal(callRequest{Data: args})
	if err != nil {
		return "", fmt.Errorf("rpc %s: failed to encode arguments: %w", function, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.callURL(function), body)
	if err != nil {
		return "", fmt.Errorf("rpc %s: failed to create request: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.do(req)
	if err != nil {
		return "", fmt.Errorf("rpc %s: failed to execute request: %w", function, err)
	}
	defer t.closeBody(resp)

	if err := checkStatus(function, resp); err != nil {
		return "", err
	}

	var cr callResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: %s: failed to decode event id: %v", ErrMalformedResponse, function, err)
	}
	if cr.EventID == "" {
		return "", fmt.Errorf("%w: %s: empty event id", ErrMalformedResponse, function)
	}
	return cr.EventID, nil
}

func (t *HTTPTransport) fetch(ctx context.Context, function, eventID string) (json.RawMessage, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, t.callURL(function)+"/"+eventID, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: failed to create request: %w", function, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: failed to execute request: %w", function, err)
	}
	defer t.closeBody(resp)

	if err := checkStatus(function, resp); err != nil {
		return nil, err
	}

	return ReadEventStream(function, resp.Body)
}

// Ping implements Transport.
func (t *HTTPTransport) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, t.baseURL, nil)
	if err != nil {
		return fmt.Errorf("rpc ping: failed to create request: %w", err)
	}

	resp, err := t.do(req)
	if err != nil {
		return fmt.Errorf("rpc ping: %w", err)
	}
	defer t.closeBody(resp)

	return checkStatus("ping", resp)
}

// do runs req and guarantees a nil response whenever an error is returned.
func (t *HTTPTransport) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		if resp != nil {
			t.closeBody(resp)
		}
		return nil, err
	}
	return resp, nil
}

func (t *HTTPTransport) callURL(function string) string {
	return t.baseURL + "/call/" + function
}

func (t *HTTPTransport) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		t.logger.Error("failed to close response body", "err", err)
	}
}

func checkStatus(function string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Function:   function,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// ReadEventStream scans an event stream and returns the first element of the
// array carried by the first "data:" line. A data line preceded by an
// "event: error" line is reported as an *EventError.
func ReadEventStream(function string, r io.Reader) (json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	var event string
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(bytes.TrimSpace(line)) == 0:
			event = ""
		case bytes.HasPrefix(line, []byte(eventPrefix)):
			event = strings.TrimSpace(string(line[len(eventPrefix):]))
		case bytes.HasPrefix(line, []byte(dataPrefix)):
			payload := bytes.TrimSpace(line[len(dataPrefix):])
			if event == "error" {
				return nil, &EventError{Function: function, Message: eventErrorMessage(payload)}
			}
			return firstElement(function, payload)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("rpc %s: failed to read event stream: %w", function, err)
	}
	return nil, fmt.Errorf("%w: %s: no data line in event stream", ErrMalformedResponse, function)
}

func firstElement(function string, payload []byte) (json.RawMessage, error) {
	var values []json.RawMessage
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, function, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s: empty result array", ErrMalformedResponse, function)
	}
	return values[0], nil
}

func eventErrorMessage(payload []byte) string {
	var msg string
	if err := json.Unmarshal(payload, &msg); err == nil && msg != "" {
		return msg
	}
	if len(payload) == 0 || string(payload) == "null" {
		return "remote function raised an error"
	}
	return string(payload)
}
