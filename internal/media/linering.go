// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"strings"
	"sync"
)

// LineRing is a thread-safe ring buffer for capturing the last N lines of
// encoder stderr. Partial lines are carried over to the next Write.
type LineRing struct {
	mu      sync.RWMutex
	lines   []string
	head    int
	size    int
	partial string
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{
		lines: make([]string, capacity),
		size:  capacity,
	}
}

// Write implements io.Writer.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.partial + string(p)
	parts := strings.Split(s, "\n")
	r.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		r.push(line)
	}
	return len(p), nil
}

func (r *LineRing) push(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % r.size
}

// LastN returns the last N lines in chronological order, including an
// unterminated trailing line.
func (r *LineRing) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]string, 0, r.size+1)
	for i := 0; i < r.size; i++ {
		if line := r.lines[(r.head+i)%r.size]; line != "" {
			ordered = append(ordered, line)
		}
	}
	if r.partial != "" {
		ordered = append(ordered, r.partial)
	}
	if n > len(ordered) || n < 0 {
		n = len(ordered)
	}
	return ordered[len(ordered)-n:]
}

// Tail joins the last n lines for error messages.
func (r *LineRing) Tail(n int) string {
	return strings.Join(r.LastN(n), " | ")
}
