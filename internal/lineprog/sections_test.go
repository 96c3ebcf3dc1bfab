package lineprog

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDebugAranges_SingleSegment covers scenario S6: one contiguous
// segment renders as a single (start, length) pair plus the terminator.
func TestDebugAranges_SingleSegment(t *testing.T) {
	cu := CompileUnit{AddrSize: 8, LowPC: 0, HighPC: 100}
	out := DebugAranges(cu)

	const headerSize = 4 + 2 + 4 + 1 + 1
	alignment := cu.AddrSize * 2
	padding := (alignment - headerSize%alignment) % alignment
	body := out[4:]
	entries := body[2+4+1+1+padding:]

	// One real pair plus the zero terminator pair, 8 bytes per address.
	require.Len(t, entries, 4*8)
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[0:8]))
	assert.EqualValues(t, 100, binary.LittleEndian.Uint64(entries[8:16]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[16:24]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[24:32]))
}

// TestDebugAranges_TwoSegments covers scenario S2: a second code segment
// contributes its own (start, length) pair ahead of the terminator.
func TestDebugAranges_TwoSegments(t *testing.T) {
	cu := CompileUnit{AddrSize: 8, LowPC: 0, HighPC: 10}
	out := DebugAranges(cu, [2]uint64{1000, 20})

	const headerSize = 4 + 2 + 4 + 1 + 1
	alignment := cu.AddrSize * 2
	padding := (alignment - headerSize%alignment) % alignment
	body := out[4:]
	entries := body[2+4+1+1+padding:]

	// Two real pairs plus the zero terminator pair.
	require.Len(t, entries, 6*8)
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[0:8]))
	assert.EqualValues(t, 10, binary.LittleEndian.Uint64(entries[8:16]))
	assert.EqualValues(t, 1000, binary.LittleEndian.Uint64(entries[16:24]))
	assert.EqualValues(t, 20, binary.LittleEndian.Uint64(entries[24:32]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[32:40]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(entries[40:48]))
}

// TestDebugRanges_Terminator covers the zero-pair terminator DebugRanges
// always appends after the caller's entries.
func TestDebugRanges_Terminator(t *testing.T) {
	out := DebugRanges([][2]uint64{{0, 10}, {1000, 1020}}, 8)
	require.Len(t, out, 4*16)
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(out[48:56]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint64(out[56:64]))
}
