package lineprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeRow_MatchesEmitRow(t *testing.T) {
	cases := []struct {
		deltaLine int64
		opAdvance uint64
	}{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {-5, 0}, {8, 0},
		{2, 300}, {-5, 1000}, {0, 5000}, {-1, 1}, {3, 17},
	}
	for _, c := range cases {
		size := SizeRow(c.deltaLine, c.opAdvance)
		emitted := EmitRow(nil, c.deltaLine, c.opAdvance)
		assert.Equalf(t, size, len(emitted), "deltaLine=%d opAdvance=%d: size=%d emitted=%d",
			c.deltaLine, c.opAdvance, size, len(emitted))
	}
}

func TestEmitRow_UsesPlainCopyForZeroDeltas(t *testing.T) {
	// deltaLine=0, opAdvance=0: gas prefers a bare DW_LNS_copy over the
	// equivalent "line+0, addr+0" special opcode (dwarf2dbg.c's own
	// comment: "Prettier, I think, ...").
	emitted := EmitRow(nil, 0, 0)
	assert.Equal(t, []byte{byte(DW_LNS_copy)}, emitted)
}

func TestEmitRow_UsesSpecialOpcodeWhenRepresentable(t *testing.T) {
	// A small, non-zero (deltaLine, opAdvance) pair fits a single special
	// opcode: this is spec.md §8 property 2's minimality condition.
	emitted := EmitRow(nil, 1, 1)
	assert.Len(t, emitted, 1)
	assert.GreaterOrEqual(t, emitted[0], byte(opcodeBase))
}

// TestEmitRow_ConstAddPcBeforeAdvancePc covers spec.md §8 property 2's
// second clause: a (Δline, Δaddr) pair encodable via const_add_pc plus a
// special opcode must prefer that two-byte form over falling back to
// advance_pc.
func TestEmitRow_ConstAddPcBeforeAdvancePc(t *testing.T) {
	// constAddPcAdvance() + 1 is just past the plain special-opcode range
	// (max_special_Δaddr) but still well inside the "< 256 + const_add_pc
	// advance" window size_inc_line_addr checks, so it must resolve to
	// DW_LNS_const_add_pc + one special-opcode byte.
	opAdvance := constAddPcAdvance() + 1
	emitted := EmitRow(nil, 1, opAdvance)
	require.Len(t, emitted, 2)
	assert.Equal(t, byte(DW_LNS_const_add_pc), emitted[0])
	assert.GreaterOrEqual(t, emitted[1], byte(opcodeBase))
}

// TestEmitRow_LargeAdvanceUsesSingleAdvancePc covers the pathological
// case a looping const_add_pc implementation would get wrong: a huge
// cross-fragment address delta must fall straight back to one
// DW_LNS_advance_pc (LEB128-encoded) rather than a chain of
// DW_LNS_const_add_pc bytes, and must stay within the packer's
// worst-case byte budget.
func TestEmitRow_LargeAdvanceUsesSingleAdvancePc(t *testing.T) {
	const huge = 1 << 20
	// A line delta too big for a special opcode forces DW_LNS_advance_line
	// first, which in turn means the row must close with a bare
	// DW_LNS_copy rather than a Δaddr=0 special opcode.
	emitted := EmitRow(nil, 1000, huge)
	require.LessOrEqual(t, len(emitted), maxRowChars)
	assert.Equal(t, byte(DW_LNS_advance_line), emitted[0])
	assert.Contains(t, emitted, byte(DW_LNS_advance_pc))
	assert.Equal(t, byte(DW_LNS_copy), emitted[len(emitted)-1])
}

func TestEmitRow_FallsBackOutsideSpecialRange(t *testing.T) {
	// A huge line delta can never fit a special opcode.
	emitted := EmitRow(nil, 1000, 0)
	assert.Greater(t, len(emitted), 1)
	assert.Equal(t, byte(DW_LNS_copy), emitted[len(emitted)-1])
}

func TestULEB128RoundTripsSize(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40} {
		assert.Equal(t, SizeULEB128(v), len(PutULEB128(nil, v)))
	}
}

func TestSLEB128RoundTripsSize(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, 64, -65, 1000, -1000} {
		assert.Equal(t, SizeSLEB128(v), len(PutSLEB128(nil, v)))
	}
}

func TestEndSequence_FixedEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x01, byte(DW_LNE_end_sequence)}, EndSequence())
}

func TestSetAddress_EncodesLittleEndianPayload(t *testing.T) {
	buf := SetAddress(0x1122, 4)
	// extended opcode marker, uleb128 length, sub-opcode, then 4 address bytes.
	require := assert.New(t)
	require.Equal(byte(0x00), buf[0])
	require.Equal(byte(DW_LNE_set_address), buf[2])
	addrBytes := buf[3:]
	require.Equal([]byte{0x22, 0x11, 0x00, 0x00}, addrBytes)
}
