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

package reconcile

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is one progress update of a batch.
type Progress struct {
	// Percent is between 0 and 100 and never decreases within a batch.
	Percent int
	// Status is a human-readable description of the current step.
	Status string
	// Current names the record being processed, or is empty.
	Current string
}

// ProgressFunc receives progress updates. It is called synchronously from
// Reconcile and should return quickly.
type ProgressFunc func(Progress)

// progressReporter clamps updates so callers see a non-decreasing percentage.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

func (r *progressReporter) report(percent int, status, current string) {
	if percent > 100 {
		percent = 100
	}
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	if r.fn != nil {
		r.fn(Progress{Percent: percent, Status: status, Current: current})
	}
}

// reportCount reports done out of total as a percentage.
func (r *progressReporter) reportCount(done, total int, status, current string) {
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	r.report(percent, status, current)
}

// ProgressTracker writes progress updates to a terminal-style writer.
type ProgressTracker struct {
	writer    io.Writer
	last      Progress
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
func NewProgressTracker(writer io.Writer) *ProgressTracker {
	return &ProgressTracker{writer: writer}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.last = Progress{}
}

// Update records and prints an update. Updates before Start are ignored.
func (p *ProgressTracker) Update(progress Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.last = progress
	p.report()
}

// Func adapts the tracker to a ProgressFunc.
func (p *ProgressTracker) Func() ProgressFunc {
	return p.Update
}

// Last returns the most recent update.
func (p *ProgressTracker) Last() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Finish prints a final newline and elapsed time.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	fmt.Fprintf(p.writer, "\nDone in %v\n", time.Since(p.startTime).Round(time.Millisecond))
	p.started = false
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	line := fmt.Sprintf("\r[%3d%%] %s", p.last.Percent, p.last.Status)
	if p.last.Current != "" {
		line += " - " + p.last.Current
	}
	// Clear leftovers from a longer previous line.
	fmt.Fprintf(p.writer, "%-80s", line)
}
