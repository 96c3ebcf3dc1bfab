// Package diag implements the diagnostic disposition table of spec.md §7:
// directive-validation and table-consistency diagnostics are reported and
// the offending directive discarded; alignment diagnostics are reported
// once across the whole stream; view-number mismatches are deferred and
// reported once at final_check. Structural bugs are not routed through
// here — they panic at the call site.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Kind classifies a diagnostic, matching the rows of spec.md §7's table.
type Kind int

const (
	// DirectiveValidation covers malformed .file/.loc operands.
	DirectiveValidation Kind = iota
	// TableConsistency covers file/dir table conflicts.
	TableConsistency
	// Alignment covers the one-shot "unaligned opcodes" diagnostic.
	Alignment
	// ViewMismatch covers the deferred view-number assertion failure.
	ViewMismatch
)

func (k Kind) String() string {
	switch k {
	case DirectiveValidation:
		return "directive"
	case TableConsistency:
		return "table"
	case Alignment:
		return "alignment"
	case ViewMismatch:
		return "view"
	default:
		return "diag"
	}
}

// Sink is the encoder context's diagnostic output. It fans every record out
// to a console handler and an in-memory ring handler, the way the teacher's
// terminal debugger (cmd/cpu/debug.go) combines colorized console output
// with state it keeps around for later inspection.
type Sink struct {
	log *slog.Logger

	mu     sync.Mutex
	once   map[string]bool
	ring   *ringHandler
}

// New creates a Sink that writes human-readable lines to w and keeps the
// last capacity records available via Records.
func New(w io.Writer, capacity int) *Sink {
	ring := newRingHandler(capacity)
	console := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	fanout := slogmulti.Fanout(console, ring)

	return &Sink{
		log:  slog.New(fanout),
		once: make(map[string]bool),
		ring: ring,
	}
}

// Warn reports a directive-validation or table-consistency diagnostic. The
// directive is assumed to have already been discarded by the caller.
func (s *Sink) Warn(kind Kind, format string, args ...any) {
	s.log.Warn(fmt.Sprintf(format, args...), slog.String("kind", kind.String()))
}

// Once reports a diagnostic at most once per key for the lifetime of the
// sink, used for the alignment diagnostic and the deferred view-mismatch
// report, both of which spec.md says are issued a single time across the
// whole stream.
func (s *Sink) Once(key string, kind Kind, format string, args ...any) {
	s.mu.Lock()
	if s.once[key] {
		s.mu.Unlock()
		return
	}
	s.once[key] = true
	s.mu.Unlock()

	s.log.Warn(fmt.Sprintf(format, args...), slog.String("kind", kind.String()))
}

// Records returns a copy of every record the sink has seen so far, oldest
// first. Intended for tests and for a CLI driver's end-of-run summary.
func (s *Sink) Records() []string {
	return s.ring.snapshot()
}

// ringHandler is a bounded, in-memory slog.Handler used to retain recent
// diagnostics for Sink.Records.
type ringHandler struct {
	mu       sync.Mutex
	capacity int
	lines    []string
}

func newRingHandler(capacity int) *ringHandler {
	if capacity <= 0 {
		capacity = 256
	}
	return &ringHandler{capacity: capacity}
}

func (h *ringHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines = append(h.lines, r.Message)
	if len(h.lines) > h.capacity {
		h.lines = h.lines[len(h.lines)-h.capacity:]
	}
	return nil
}

func (h *ringHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *ringHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *ringHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}
