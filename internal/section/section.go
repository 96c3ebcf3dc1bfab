// Package section is a minimal stand-in for the assembler's fragment and
// section/subsegment machinery. The real implementation (append-byte,
// reserve-bytes-with-fixup, last-known-size queries over a live fragment
// chain) is out of scope for the line-table encoder per the specification;
// this package implements just enough of the contract — a byte sequence
// that can contain reserved "variant" regions whose final size is not known
// until the assembler's relaxation pass converges — to exercise the encoder
// end to end.
package section

import (
	"fmt"

	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// Writer accumulates the bytes of one output section (e.g. .debug_line).
// It supports both immediately-known bytes and reserved variant regions
// whose exact contents are only known once Convert is called on them.
type Writer struct {
	pieces []piece
}

type piece struct {
	fixed   []byte
	variant *Variant
}

// Variant is a reservation handle for a region of a Writer whose final
// length cannot be known until the symbols it depends on converge. It
// mirrors the contract of spec.md §4.F: estimate_before_relax, relax, and
// convert.
type Variant struct {
	maxChars int
	subtype  int
	estimate func() int
	emit     func(suppressFinal bool) []byte
	final    []byte
	done     bool
}

// NewWriter creates an empty section writer.
func NewWriter() *Writer {
	return &Writer{}
}

// AppendByte appends a single fixed byte.
func (w *Writer) AppendByte(b byte) {
	w.pieces = append(w.pieces, piece{fixed: []byte{b}})
}

// AppendBytes appends a run of fixed bytes.
func (w *Writer) AppendBytes(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	w.pieces = append(w.pieces, piece{fixed: cp})
}

// ReserveVariant reserves a worst-case maxChars bytes in the output and
// returns a handle used to re-estimate the size as symbol values converge
// and finally to rewrite it to its exact minimal encoding.
//
// estimate must return the current best-known size of the region (it will
// be called repeatedly, as symbol values resolve). emit produces the final
// exact bytes once called from Convert; it must never produce more than
// maxChars bytes.
func (w *Writer) ReserveVariant(maxChars int, estimate func() int, emit func(suppressFinal bool) []byte) *Variant {
	v := &Variant{maxChars: maxChars, estimate: estimate, emit: emit}
	w.pieces = append(w.pieces, piece{variant: v})
	return v
}

// LastKnownSize returns the variant's current best-known size, without
// forcing a fresh estimate.
func (v *Variant) LastKnownSize() int {
	return v.subtype
}

// EstimateBeforeRelax resolves the expression and recomputes the size,
// storing and returning it. Corresponds to estimate_before_relax(frag).
func (v *Variant) EstimateBeforeRelax() int {
	v.subtype = v.estimate()
	return v.subtype
}

// Relax re-estimates the size and returns the delta from the previous
// estimate. Corresponds to relax(frag).
func (v *Variant) Relax() int {
	old := v.subtype
	v.subtype = v.estimate()
	return v.subtype - old
}

// Convert performs the final pass: it resolves the expression (optionally
// suppressing symbol finalization, so a linker fixup can be left behind
// under fixed-advance/linkrelax mode), emits the matching bytes, and
// freezes the region. Corresponds to convert(frag).
func (v *Variant) Convert(suppressFinal bool) {
	final := v.emit(suppressFinal)
	if len(final) > v.maxChars {
		panic(fmt.Sprintf("section: variant fragment overflowed reservation: max_chars=%d got=%d", v.maxChars, len(final)))
	}
	v.final = final
	v.subtype = len(final)
	v.done = true
}

// Bytes concatenates the writer's contents. It panics if any reserved
// variant has not yet been converted — a duplicate/unterminated section is
// a structural bug, not a recoverable condition.
func (w *Writer) Bytes() []byte {
	var out []byte
	for _, p := range w.pieces {
		if p.variant != nil {
			if !p.variant.done {
				panic("section: variant fragment never converted")
			}
			out = append(out, p.variant.final...)
			continue
		}
		out = append(out, p.fixed...)
	}
	return out
}

// Len returns the writer's current best-known length: fixed pieces count
// exactly, unconverted variants count at their last known estimate (or
// maxChars if never estimated).
func (w *Writer) Len() int {
	n := 0
	for _, p := range w.pieces {
		if p.variant != nil {
			if p.variant.done {
				n += len(p.variant.final)
			} else if p.variant.subtype > 0 {
				n += p.variant.subtype
			} else {
				n += p.variant.maxChars
			}
			continue
		}
		n += len(p.fixed)
	}
	return n
}

// CodeSegment is a minimal stand-in for a target code section's fragment
// chain: an append-only stream of instruction bytes that line entries bind
// labels into. MarkPending lets a test harness simulate a cross-fragment
// address that is not resolved until relaxation converges, the way a real
// assembler's fragments behave before their neighbours are laid out.
type CodeSegment struct {
	Name   string
	cursor int64
}

// NewCodeSegment creates an empty code segment.
func NewCodeSegment(name string) *CodeSegment {
	return &CodeSegment{Name: name}
}

// Mark returns a symbol bound immediately to the segment's current offset,
// the equivalent of frag_now_fix().
func (c *CodeSegment) Mark() *symbols.Symbol {
	s := symbols.NewSymbol(fmt.Sprintf("%s+%d", c.Name, c.cursor))
	s.SetValue(c.cursor)
	return s
}

// MarkPending returns an unresolved symbol for the segment's current
// offset; the caller is responsible for calling SetValue on it once the
// surrounding fragments have been laid out.
func (c *CodeSegment) MarkPending() *symbols.Symbol {
	return symbols.NewSymbol(fmt.Sprintf("%s+%d (pending)", c.Name, c.cursor))
}

// Advance appends n bytes of (unspecified) instruction content to the
// segment, advancing the cursor that Mark reads.
func (c *CodeSegment) Advance(n int) {
	c.cursor += int64(n)
}

// Offset returns the segment's current cursor.
func (c *CodeSegment) Offset() int64 {
	return c.cursor
}
