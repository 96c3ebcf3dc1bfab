package lineprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cucaracha-toolchain/casm/internal/diag"
)

// TestMoveInsn_ShiftsEntriesAtCurrentAddress covers spec.md §4.C's
// move_insn: entries whose label currently sits at "now" are shifted by
// delta, the way the assembler relocates a line entry after moving the
// instruction it was generated for into a delay slot.
func TestMoveInsn_ShiftsEntriesAtCurrentAddress(t *testing.T) {
	ctx := NewContext(diag.New(nullWriter{}, 16))

	stale := labelAt("l0", 10) // not at "now": must be left alone
	moved := labelAt("l1", 20) // at "now": must shift by delta

	ctx.Gen(stale, Location{File: 1, Line: 1})
	e1 := ctx.Gen(moved, Location{File: 1, Line: 2})

	ctx.MoveInsn(20, 4)

	v0, ok := stale.Sym.Value()
	require.True(t, ok)
	assert.EqualValues(t, 10, v0)

	v1, ok := e1.Label.Sym.Value()
	require.True(t, ok)
	assert.EqualValues(t, 24, v1)
}

// TestMoveInsn_NotIdempotent covers the "must not be invoked twice for
// the same entries" clause: a second call over the same range, with
// pmove_tail already advanced past it, is a no-op even though the
// entry's address once again happens to equal the new "now".
func TestMoveInsn_NotIdempotent(t *testing.T) {
	ctx := NewContext(diag.New(nullWriter{}, 16))

	e := ctx.Gen(labelAt("l0", 20), Location{File: 1, Line: 1})
	ctx.MoveInsn(20, 4)
	v, ok := e.Label.Sym.Value()
	require.True(t, ok)
	require.EqualValues(t, 24, v)

	// Second call, same "now" as the entry's *new* value: must not shift
	// again, since pmove_tail already passed this entry.
	ctx.MoveInsn(24, 4)
	v, ok = e.Label.Sym.Value()
	require.True(t, ok)
	assert.EqualValues(t, 24, v)
}

// TestMoveInsn_ZeroDeltaIsNoop mirrors the original's early return on
// delta == 0.
func TestMoveInsn_ZeroDeltaIsNoop(t *testing.T) {
	ctx := NewContext(diag.New(nullWriter{}, 16))
	e := ctx.Gen(labelAt("l0", 0), Location{File: 1, Line: 1})
	ctx.MoveInsn(0, 0)
	v, ok := e.Label.Sym.Value()
	require.True(t, ok)
	assert.EqualValues(t, 0, v)
}

// TestEmitLabel_SetsBasicBlockFlag covers spec.md §4.C: a label emitted
// under "mark labels as basic blocks" mode must carry FlagBasicBlock
// (dwarf2dbg.c:649's loc.flags |= DWARF2_FLAG_BASIC_BLOCK), not just reuse
// whatever flags the current .loc happened to leave set.
func TestEmitLabel_SetsBasicBlockFlag(t *testing.T) {
	ctx := NewContext(diag.New(nullWriter{}, 16))
	ctx.Loc.Loc(1, 10, 0)

	e := ctx.EmitLabel(labelAt("l0", 0))
	require.NotNil(t, e)
	assert.True(t, e.Loc.Flags.has(FlagBasicBlock))
}
