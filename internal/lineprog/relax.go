package lineprog

import (
	"fmt"

	"github.com/cucaracha-toolchain/casm/internal/addr"
	"github.com/cucaracha-toolchain/casm/internal/diag"
	"github.com/cucaracha-toolchain/casm/internal/section"
)

// rowVariant is component F: a reservation for one row's opcode encoding,
// whose exact size depends on an address delta that may not be known
// until the assembler's relaxation pass converges (the previous or
// current entry's label may sit in a fragment the relaxer hasn't sized
// yet).
type rowVariant struct {
	prev, cur     *LineEntry
	addrSize      int
	linkRelax     bool
	minInsnLength int
	d             *diag.Sink
}

// maxRowChars is the worst case a single row can expand to: advance_line
// (1 opcode + 10-byte sleb128 worst case) + advance_pc (1 + 10-byte
// uleb128 worst case) + copy (1), comfortably above any real delta.
const maxRowChars = 23

// reserveRow reserves a variant region for the row transitioning from
// prev to cur, registering it with w.
func reserveRow(w *section.Writer, prev, cur *LineEntry, addrSize, minInsnLength int, linkRelax bool, d *diag.Sink) *section.Variant {
	if minInsnLength <= 0 {
		minInsnLength = defaultMinInsnLength
	}
	rv := &rowVariant{prev: prev, cur: cur, addrSize: addrSize, linkRelax: linkRelax, minInsnLength: minInsnLength, d: d}
	return w.ReserveVariant(maxRowChars, rv.estimate, rv.emit)
}

// fixedAdvancePcLimit is the operand ceiling of the 16-bit fixed_advance_pc
// opcode; beyond it the fixed-advance variant falls back to an extended
// set_address, per spec.md §4.E.
const fixedAdvancePcLimit = 50000

func (rv *rowVariant) deltas() (deltaLine int64, opAdvance uint64, ok bool) {
	curAddr, ok1 := rv.cur.Label.Value()
	prevAddr, ok2 := rv.prev.Label.Value()
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	byteDelta := curAddr - prevAddr
	if byteDelta < 0 {
		// spec.md §3/§8 property 4: address must be non-decreasing once
		// symbols resolve. A negative delta means the caller generated
		// entries out of order — a structural bug in the accumulator, not
		// a recoverable diagnostic (spec.md §7's "Structural bug" row).
		panic(fmt.Sprintf("lineprog: negative address delta: %d -> %d", prevAddr, curAddr))
	}
	if aligned := addr.Align(byteDelta, int64(rv.minInsnLength)); aligned != byteDelta && rv.d != nil {
		// spec.md §4.E step 1: a Δaddr that isn't a multiple of
		// min_insn_length is a one-shot diagnostic across the whole stream,
		// not a per-row one (gas's dwarf2_gen_line_info warns exactly once).
		rv.d.Once("unaligned-opcode", diag.Alignment, "unaligned opcodes detected in executable segment")
	}
	curLine, prevLine := int64(rv.cur.Loc.Line), int64(rv.prev.Loc.Line)
	return curLine - prevLine, uint64(byteDelta) / uint64(rv.minInsnLength), true
}

func (rv *rowVariant) estimate() int {
	deltaLine, opAdvance, ok := rv.deltas()
	if !ok {
		return maxRowChars
	}
	return SizeRow(deltaLine, opAdvance)
}

func (rv *rowVariant) emit(suppressFinal bool) []byte {
	deltaLine, opAdvance, ok := rv.deltas()
	if !ok {
		panic("lineprog: row variant converted before its labels resolved")
	}
	if rv.linkRelax && suppressFinal {
		// Under linkrelax, leave the final address advance to the linker:
		// emit a fixed_advance_pc whose relocation the linker fixes up,
		// rather than baking in our own (possibly stale) estimate. Past
		// the 16-bit operand's range, fall back to an absolute
		// extended set_address instead.
		var buf []byte
		if deltaLine != 0 {
			buf = append(buf, byte(DW_LNS_advance_line))
			buf = PutSLEB128(buf, deltaLine)
		}
		if opAdvance > fixedAdvancePcLimit {
			curAddr, _ := rv.cur.Label.Value()
			buf = append(buf, SetAddress(uint64(curAddr), rv.addrSize)...)
		} else {
			buf = append(buf, FixedAdvancePC(uint16(opAdvance))...)
		}
		buf = append(buf, byte(DW_LNS_copy))
		return buf
	}
	return EmitRow(nil, deltaLine, opAdvance)
}
