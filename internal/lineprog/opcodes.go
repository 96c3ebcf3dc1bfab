package lineprog

import "encoding/binary"

// DWARF2 line number program header constants, per gas's dwarf2dbg.c
// defaults (DWARF2_LINE_BASE/_LINE_RANGE/_LINE_OPCODE_BASE): gas's opcode
// base of 13 reserves the three GNU-vendor-turned-DWARF3 standard opcodes
// (set_prologue_end/set_epilogue_begin/set_isa) as standard opcodes rather
// than vendor extensions, even when the header claims version 2.
const (
	lineBase   = -5
	lineRange  = 14
	opcodeBase = 13

	// defaultMinInsnLength is gas's own default for DWARF2_LINE_MIN_INSN_LENGTH;
	// Header.MinInsnLength overrides it per spec.md §6's host hooks.
	defaultMinInsnLength = 1
)

// Standard opcodes (1..opcodeBase-1).
const (
	DW_LNS_copy = iota + 1
	DW_LNS_advance_pc
	DW_LNS_advance_line
	DW_LNS_set_file
	DW_LNS_set_column
	DW_LNS_negate_stmt
	DW_LNS_set_basic_block
	DW_LNS_const_add_pc
	DW_LNS_fixed_advance_pc
	DW_LNS_set_prologue_end
	DW_LNS_set_epilogue_begin
	DW_LNS_set_isa
)

// Extended opcodes.
const (
	DW_LNE_end_sequence = iota + 1
	DW_LNE_set_address
	DW_LNE_define_file
	DW_LNE_set_discriminator
)

// PutULEB128 appends v to buf in unsigned LEB128 form.
func PutULEB128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}

// SizeULEB128 returns the encoded size of v without emitting it.
func SizeULEB128(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// PutSLEB128 appends v to buf in signed LEB128 form.
func PutSLEB128(buf []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// SizeSLEB128 returns the encoded size of v without emitting it.
func SizeSLEB128(v int64) int {
	n := 0
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		}
		n++
	}
	return n
}

// constAddPcAdvance is the op-advance produced by a single DW_LNS_const_add_pc,
// i.e. the address advance of special opcode 255 with a zero line delta.
func constAddPcAdvance() uint64 {
	return uint64((255 - opcodeBase) / lineRange)
}

// rowDecision is the outcome of the same one-shot decision tree gas's
// size_inc_line_addr/emit_inc_line_addr walk (spec.md §4.E steps 3-7):
// bias the line delta, fall back to advance_line when it doesn't fit a
// special opcode's range, try a plain special opcode, then a
// const_add_pc-prefixed one, and only then fall back to a general
// advance_pc. SizeRow and EmitRow both consult this single function so
// their outputs can never disagree — spec.md §4.E's "matched size/emit
// pair" requirement.
type rowDecision struct {
	advanceLine bool // emit DW_LNS_advance_line first, with origLine as operand
	origLine    int64

	justCopy bool // both deltas are now zero: a bare DW_LNS_copy closes the row

	special    bool // emit a single special opcode (optionally const_add_pc-prefixed)
	constAddPc bool
	opcode     byte

	advancePc   bool // fall back to a general DW_LNS_advance_pc
	closeOpcode byte // byte to close with after advance_pc: DW_LNS_copy, or a Δaddr=0 special opcode
}

func decideRow(deltaLine int64, opAdvance uint64) rowDecision {
	var d rowDecision

	tmp := deltaLine - lineBase
	if tmp < 0 || tmp >= lineRange {
		d.advanceLine = true
		d.origLine = deltaLine
		deltaLine = 0
		tmp = -lineBase
	}

	if deltaLine == 0 && opAdvance == 0 {
		d.justCopy = true
		return d
	}

	tmp += opcodeBase

	// Avoid overflow when opAdvance is huge: past this ceiling neither a
	// plain nor a const_add_pc-prefixed special opcode can possibly fit,
	// so there's no point computing either candidate opcode.
	if opAdvance < 256+constAddPcAdvance() {
		if opcode := tmp + lineRange*int64(opAdvance); opcode <= 255 {
			d.special = true
			d.opcode = byte(opcode)
			return d
		}
		if opcode := tmp + lineRange*(int64(opAdvance)-int64(constAddPcAdvance())); opAdvance >= constAddPcAdvance() && opcode >= opcodeBase && opcode <= 255 {
			d.special = true
			d.constAddPc = true
			d.opcode = byte(opcode)
			return d
		}
	}

	d.advancePc = true
	if d.advanceLine {
		d.closeOpcode = byte(DW_LNS_copy)
	} else {
		d.closeOpcode = byte(tmp)
	}
	return d
}

// EmitRow appends the bytes needed to advance by (deltaLine, opAdvance)
// and copy a new row into the matrix.
func EmitRow(buf []byte, deltaLine int64, opAdvance uint64) []byte {
	d := decideRow(deltaLine, opAdvance)
	if d.advanceLine {
		buf = append(buf, byte(DW_LNS_advance_line))
		buf = PutSLEB128(buf, d.origLine)
	}
	switch {
	case d.justCopy:
		buf = append(buf, byte(DW_LNS_copy))
	case d.special:
		if d.constAddPc {
			buf = append(buf, byte(DW_LNS_const_add_pc))
		}
		buf = append(buf, d.opcode)
	case d.advancePc:
		buf = append(buf, byte(DW_LNS_advance_pc))
		buf = PutULEB128(buf, opAdvance)
		buf = append(buf, d.closeOpcode)
	}
	return buf
}

// SizeRow returns len(EmitRow(nil, deltaLine, opAdvance)) without building
// the bytes.
func SizeRow(deltaLine int64, opAdvance uint64) int {
	d := decideRow(deltaLine, opAdvance)
	n := 0
	if d.advanceLine {
		n += 1 + SizeSLEB128(d.origLine)
	}
	switch {
	case d.justCopy:
		n++
	case d.special:
		if d.constAddPc {
			n++
		}
		n++
	case d.advancePc:
		n += 1 + SizeULEB128(opAdvance) + 1
	}
	return n
}

// FixedAdvancePC encodes DW_LNS_fixed_advance_pc, whose operand is a raw
// 2-byte halfword rather than LEB128 so a linker relocation can target it
// directly (used when linkrelax mode leaves a variant's final address
// advance to the linker).
func FixedAdvancePC(delta uint16) []byte {
	buf := []byte{byte(DW_LNS_fixed_advance_pc), 0, 0}
	binary.LittleEndian.PutUint16(buf[1:], delta)
	return buf
}

// EndSequence encodes the extended DW_LNE_end_sequence opcode.
func EndSequence() []byte {
	return []byte{0x00, 0x01, byte(DW_LNE_end_sequence)}
}

// EmitEndSequenceAdvance implements spec.md §4.E step 2, the Δline ==
// INT_MAX sentinel: the line delta never matters for end_sequence, only
// the address advance needs encoding first, preferring a single
// DW_LNS_const_add_pc over a general DW_LNS_advance_pc when opAdvance
// exactly matches the op-advance a const_add_pc contributes on its own.
func EmitEndSequenceAdvance(opAdvance uint64) []byte {
	var buf []byte
	switch {
	case opAdvance == 0:
	case opAdvance == constAddPcAdvance():
		buf = append(buf, byte(DW_LNS_const_add_pc))
	default:
		buf = append(buf, byte(DW_LNS_advance_pc))
		buf = PutULEB128(buf, opAdvance)
	}
	return append(buf, EndSequence()...)
}

// SetAddress encodes the extended DW_LNE_set_address opcode for an
// addrSize-byte little-endian address.
func SetAddress(addr uint64, addrSize int) []byte {
	payload := make([]byte, addrSize)
	v := addr
	for i := 0; i < addrSize; i++ {
		payload[i] = byte(v)
		v >>= 8
	}
	buf := []byte{0x00}
	buf = PutULEB128(buf, uint64(1+addrSize))
	buf = append(buf, byte(DW_LNE_set_address))
	buf = append(buf, payload...)
	return buf
}

// SetDiscriminator encodes the extended DW_LNE_set_discriminator opcode.
func SetDiscriminator(v uint64) []byte {
	operand := PutULEB128(nil, v)
	buf := []byte{0x00}
	buf = PutULEB128(buf, uint64(1+len(operand)))
	buf = append(buf, byte(DW_LNE_set_discriminator))
	buf = append(buf, operand...)
	return buf
}

// SetFile encodes DW_LNS_set_file.
func SetFile(file int) []byte {
	buf := []byte{byte(DW_LNS_set_file)}
	return PutULEB128(buf, uint64(file))
}

// SetColumn encodes DW_LNS_set_column.
func SetColumn(col uint64) []byte {
	buf := []byte{byte(DW_LNS_set_column)}
	return PutULEB128(buf, col)
}

// SetISA encodes DW_LNS_set_isa.
func SetISA(isa uint64) []byte {
	buf := []byte{byte(DW_LNS_set_isa)}
	return PutULEB128(buf, isa)
}

// NegateStmt, SetBasicBlock, SetPrologueEnd and SetEpilogueBegin are the
// bare, operand-less standard opcodes.
func NegateStmt() []byte      { return []byte{byte(DW_LNS_negate_stmt)} }
func SetBasicBlock() []byte   { return []byte{byte(DW_LNS_set_basic_block)} }
func SetPrologueEnd() []byte  { return []byte{byte(DW_LNS_set_prologue_end)} }
func SetEpilogueBegin() []byte { return []byte{byte(DW_LNS_set_epilogue_begin)} }
