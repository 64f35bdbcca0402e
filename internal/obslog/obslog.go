// Package obslog builds the process-wide structured logger and the rolling
// buffer the dashboard reads transient messages from.
package obslog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ringBuffer is the retained-lines state shared by a RingHandler and every
// handler derived from it via WithAttrs/WithGroup, so all of them append
// under one mutex.
type ringBuffer struct {
	mu      sync.Mutex
	entries []string
	cap     int
	pos     int
	full    bool
}

func (rb *ringBuffer) append(line string) {
	rb.mu.Lock()
	rb.entries[rb.pos] = line
	rb.pos = (rb.pos + 1) % rb.cap
	if rb.pos == 0 {
		rb.full = true
	}
	rb.mu.Unlock()
}

func (rb *ringBuffer) recent() []string {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		out := make([]string, rb.pos)
		copy(out, rb.entries[:rb.pos])
		return out
	}

	out := make([]string, rb.cap)
	copy(out, rb.entries[rb.pos:])
	copy(out[rb.cap-rb.pos:], rb.entries[:rb.pos])
	return out
}

// RingHandler wraps another slog.Handler and additionally retains the last N
// formatted records in memory, so a UI reading shared state can display
// recent log lines without scraping stderr.
type RingHandler struct {
	next slog.Handler
	ring *ringBuffer
}

// NewRingHandler wraps next and retains up to capacity records.
func NewRingHandler(next slog.Handler, capacity int) *RingHandler {
	if capacity <= 0 {
		capacity = 128
	}
	return &RingHandler{
		next: next,
		ring: &ringBuffer{
			entries: make([]string, capacity),
			cap:     capacity,
		},
	}
}

func (r *RingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return r.next.Enabled(ctx, level)
}

func (r *RingHandler) Handle(ctx context.Context, record slog.Record) error {
	line := record.Level.String() + " " + record.Message
	record.Attrs(func(a slog.Attr) bool {
		line += " " + a.String()
		return true
	})

	r.ring.append(line)

	return r.next.Handle(ctx, record)
}

// WithAttrs and WithGroup derive handlers that keep feeding the same ring,
// so lines logged through logger.With(...) still reach the dashboard.
func (r *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RingHandler{next: r.next.WithAttrs(attrs), ring: r.ring}
}

func (r *RingHandler) WithGroup(name string) slog.Handler {
	return &RingHandler{next: r.next.WithGroup(name), ring: r.ring}
}

// Recent returns the retained lines, oldest first.
func (r *RingHandler) Recent() []string {
	return r.ring.recent()
}

// New builds the process logger: a text handler to w (stderr in production)
// wrapped in a 128-entry RingHandler, or a JSON handler when debug is set.
func New(w io.Writer, debug bool) (*slog.Logger, *RingHandler) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var base slog.Handler
	if debug {
		base = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		base = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	ring := NewRingHandler(base, 128)
	return slog.New(ring), ring
}

// Default is a convenience constructor writing to os.Stderr.
func Default(debug bool) (*slog.Logger, *RingHandler) {
	return New(os.Stderr, debug)
}
