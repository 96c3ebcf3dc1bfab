package lineprog

import (
	"fmt"

	"github.com/cucaracha-toolchain/casm/internal/addr"
	"github.com/cucaracha-toolchain/casm/internal/diag"
	"github.com/cucaracha-toolchain/casm/internal/section"
)

// Header carries the line-number program header fields a host needs to
// pick (component G), all defaulted to gas's own defaults.
type Header struct {
	AddrSize      int // bytes per target address; byte order/size policy is a host decision
	DefaultIsStmt bool
	LinkRelax     bool // leave final row advances to the linker (see relax.go)
	MinInsnLength int  // DWARF2_LINE_MIN_INSN_LENGTH; 0 means defaultMinInsnLength
	Dwarf64       bool // emit the 64-bit DWARF initial-length/offset format (spec.md §6)
}

// DefaultHeader returns the header gas itself defaults to for a freshly
// started translation unit.
func DefaultHeader() Header {
	return Header{AddrSize: 8, DefaultIsStmt: true, MinInsnLength: defaultMinInsnLength}
}

// minInsnLength returns hdr's effective min_insn_length, defaulting an
// unset (zero) field to gas's own default.
func (hdr Header) minInsnLength() int {
	if hdr.MinInsnLength <= 0 {
		return defaultMinInsnLength
	}
	return hdr.MinInsnLength
}

// rowState tracks the DWARF line-number state machine's registers as the
// emitter walks a sequence, so it only emits the opcodes needed to move
// from one entry to the next.
type rowState struct {
	file          int
	line          int
	column        uint64
	isStmt        bool
	isa           uint64
	discriminator uint64
}

// BuildLineProgram is component G: it renders ctx's accumulated segments
// into a .debug_line section writer, returning the row-advance variants
// it reserved so the caller can relax/convert them once every label in
// the program has a final address (the same two-step dance the assembler
// itself performs for ordinary code).
func (ctx *Context) BuildLineProgram(hdr Header) (*section.Writer, []*section.Variant) {
	w := section.NewWriter()
	ctx.writeHeader(w, hdr)

	var variants []*section.Variant
	for _, name := range ctx.sortedSegmentNames() {
		variants = append(variants, ctx.writeSequence(w, ctx.segs[name], hdr)...)
	}
	return w, variants
}

// Emit is the common case: build the program, immediately relax and
// convert every row (assuming every label already has a final address,
// true once FinalCheck has run at the end of assembly), and wrap the
// result in its unit_length prefix to produce a complete .debug_line
// section body.
func (ctx *Context) Emit(hdr Header) []byte {
	if !ctx.HasLineInfo() {
		return nil
	}
	w, variants := ctx.BuildLineProgram(hdr)
	for _, v := range variants {
		v.EstimateBeforeRelax()
	}
	for _, v := range variants {
		v.Convert(hdr.LinkRelax)
	}

	payload := w.Bytes()
	return append(put64InitialLength(nil, uint64(len(payload)), hdr.Dwarf64), payload...)
}

// put64InitialLength writes a DWARF initial-length field: a plain 4-byte
// value for the 32-bit format, or the 0xffffffff escape followed by an
// 8-byte value for the 64-bit format (spec.md §6's "DWARF format selector
// per section"; the IRIX64 variant is not distinguished from the standard
// 64-bit format here, a narrowing this build makes explicitly).
func put64InitialLength(buf []byte, v uint64, dwarf64 bool) []byte {
	if !dwarf64 {
		return put32(buf, uint32(v))
	}
	buf = put32(buf, 0xffffffff)
	return put64(buf, v)
}

func put64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

func (ctx *Context) writeHeader(w *section.Writer, hdr Header) {
	body := []byte{}

	body = append(body, byte(hdr.minInsnLength()))
	if hdr.DefaultIsStmt {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	signedLineBase := int8(lineBase)
	body = append(body, byte(signedLineBase))
	body = append(body, byte(lineRange))
	body = append(body, byte(opcodeBase))

	stdOpcodeLengths := []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}
	body = append(body, stdOpcodeLengths...)

	for _, d := range ctx.Files.Dirs() {
		body = append(body, []byte(d)...)
		body = append(body, 0)
	}
	body = append(body, 0) // end of include_directories

	for i, f := range ctx.Files.Files() {
		if f == nil {
			// A sparse hole: an entry with an empty name and zero dir,
			// mtime and length is written in its place. A DWARF 2 reader
			// takes an empty name as the end of the file list, so it does
			// not see the entries that follow the first hole.
			slot := i + 1
			ctx.Diag.Once(fmt.Sprintf("empty-file-slot-%d", slot), diag.TableConsistency,
				"unassigned file number %d", slot)
			body = append(body, 0)
			body = PutULEB128(body, 0)
			body = PutULEB128(body, 0)
			body = PutULEB128(body, 0)
			continue
		}
		body = append(body, []byte(f.Name)...)
		body = append(body, 0)
		body = PutULEB128(body, uint64(f.Dir))
		body = PutULEB128(body, f.Mtime)
		body = PutULEB128(body, f.Length)
	}
	body = append(body, 0) // end of file_names

	// Note: the unit_length field itself is NOT written here. It covers the
	// whole line-number program, including the sequences that follow, and
	// isn't known until every row variant has converted; Emit prepends it
	// once the section's final byte length is known.
	headerLength := len(body)
	full := make([]byte, 0, 10+headerLength)
	full = put16(full, 2) // version
	if hdr.Dwarf64 {
		full = put64(full, uint64(headerLength))
	} else {
		full = put32(full, uint32(headerLength))
	}
	full = append(full, body...)

	w.AppendBytes(full)
}

func put32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func put16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// PutULEB128FixedWidth4 is unused by the final header encoding (headerLength
// is written as a fixed 4-byte field, or 8 bytes under Dwarf64, not LEB128,
// per the DWARF2 line program header layout) but kept as the documented
// alternative some DWARF producers use for forward compatibility
// experiments: v padded out to exactly four ULEB128 bytes. Only the low 28
// bits of v fit in four bytes.
func PutULEB128FixedWidth4(buf []byte, v uint32) []byte {
	return append(buf, byte(v&0x7f|0x80), byte(v>>7&0x7f|0x80), byte(v>>14&0x7f|0x80), byte(v>>21&0x7f))
}

func (ctx *Context) writeSequence(w *section.Writer, seg *LineSeg, hdr Header) []*section.Variant {
	entries := seg.flatten()
	if len(entries) == 0 {
		return nil
	}

	state := rowState{file: 1, line: 1, isStmt: hdr.DefaultIsStmt}
	var variants []*section.Variant

	first := entries[0]
	addr, _ := first.Label.Value()
	w.AppendBytes(SetAddress(uint64(addr), hdr.AddrSize))
	emitStateChanges(w, &state, first)
	// The address is already exact (just set), so only the line needs
	// advancing from the state machine's default of 1 before the first row.
	if deltaLine := int64(first.Loc.Line) - int64(state.line); deltaLine != 0 {
		w.AppendByte(byte(DW_LNS_advance_line))
		w.AppendBytes(PutSLEB128(nil, deltaLine))
		state.line = first.Loc.Line
	}
	w.AppendByte(byte(DW_LNS_copy))

	prev := first
	for _, cur := range entries[1:] {
		emitStateChanges(w, &state, cur)

		forceSetAddr := forcedResetNeedsSetAddress(ctx.view, prev, cur)

		switch {
		case forceSetAddr:
			addr, _ := cur.Label.Value()
			if prevAddr, ok := prev.Label.Value(); ok && addr < prevAddr {
				panic(fmt.Sprintf("lineprog: negative address delta: %d -> %d", prevAddr, addr))
			}
			w.AppendBytes(SetAddress(uint64(addr), hdr.AddrSize))
			if deltaLine := int64(cur.Loc.Line) - int64(state.line); deltaLine != 0 {
				w.AppendByte(byte(DW_LNS_advance_line))
				w.AppendBytes(PutSLEB128(nil, deltaLine))
			}
			w.AppendByte(byte(DW_LNS_copy))
		default:
			variants = append(variants, reserveRow(w, prev, cur, hdr.AddrSize, hdr.minInsnLength(), hdr.LinkRelax, ctx.Diag))
		}
		state.line = cur.Loc.Line
		prev = cur
	}

	endAddr := seg.TextEnd
	if endAddr != nil {
		if v, ok := endAddr.Value(); ok {
			w.AppendBytes(advanceAndEnd(prev, v, hdr.minInsnLength(), ctx.Diag))
			return variants
		}
	}
	w.AppendBytes(EndSequence())
	return variants
}

// forcedResetNeedsSetAddress reports whether cur's forced view reset
// ("view -0") must be emitted through an explicit set_address rather than
// a same-fragment direct pack or a relaxed cross-fragment advance
// (dwarf2dbg.c:1619-1628). A forced reset only needs forcing when the PC
// is not already known to advance past prev: same frag/same offset, or a
// new fragment starting right where the previous one ended, both collapse,
// once both labels resolve, to prev and cur sharing the same absolute
// address.
func forcedResetNeedsSetAddress(view *viewAlgebra, prev, cur *LineEntry) bool {
	if cur.Loc.View != view.forceResetView {
		return false
	}
	prevAddr, ok := prev.Label.Value()
	if !ok {
		return false
	}
	curAddr, ok := cur.Label.Value()
	if !ok {
		return false
	}
	return curAddr == prevAddr
}

// advanceAndEnd advances the address to final and terminates the
// sequence, used when the segment's end symbol resolves to an address
// past the last entry. Mirrors gas's out_end_sequence -> out_inc_line_addr
// (INT_MAX, ...): the raw byte delta is scaled by minInsnLength before
// it becomes an advance_pc operand (a consumer multiplies the operand back
// by min_insn_length), and the result is routed through
// EmitEndSequenceAdvance so a const_add_pc is preferred over advance_pc
// when the scaled advance exactly fills one (spec.md §4.E step 2), the
// same minimality decideRow gives every other row for free but
// end-of-sequence never reaches.
func advanceAndEnd(prev *LineEntry, final int64, minInsnLength int, d *diag.Sink) []byte {
	prevAddr, _ := prev.Label.Value()
	if final < prevAddr {
		panic(fmt.Sprintf("lineprog: negative address delta: %d -> %d", prevAddr, final))
	}
	byteDelta := final - prevAddr
	if aligned := addr.Align(byteDelta, int64(minInsnLength)); aligned != byteDelta && d != nil {
		d.Once("unaligned-opcode", diag.Alignment, "unaligned opcodes detected in executable segment")
	}
	opAdvance := uint64(byteDelta) / uint64(minInsnLength)
	return EmitEndSequenceAdvance(opAdvance)
}

// emitStateChanges writes the standard opcodes needed to move the line
// number state machine's registers (file, column, isa, is_stmt, flags,
// discriminator) to match e's location, leaving the line/address advance
// itself to the caller.
func emitStateChanges(w *section.Writer, state *rowState, e *LineEntry) {
	loc := e.Loc
	if loc.File != state.file {
		w.AppendBytes(SetFile(loc.File))
		state.file = loc.File
	}
	if loc.Column != state.column {
		w.AppendBytes(SetColumn(loc.Column))
		state.column = loc.Column
	}
	if loc.ISA != state.isa {
		w.AppendBytes(SetISA(loc.ISA))
		state.isa = loc.ISA
	}
	wantStmt := loc.Flags.has(FlagIsStmt)
	if wantStmt != state.isStmt {
		w.AppendBytes(NegateStmt())
		state.isStmt = wantStmt
	}
	if loc.Flags.has(FlagBasicBlock) {
		w.AppendBytes(SetBasicBlock())
	}
	if loc.Flags.has(FlagPrologueEnd) {
		w.AppendBytes(SetPrologueEnd())
	}
	if loc.Flags.has(FlagEpilogueBegin) {
		w.AppendBytes(SetEpilogueBegin())
	}
	if loc.Discriminator != state.discriminator {
		w.AppendBytes(SetDiscriminator(loc.Discriminator))
		state.discriminator = loc.Discriminator
	}
}
