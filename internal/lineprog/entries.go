package lineprog

// Gen is component C's core operation: append a new entry bound to label
// carrying loc, running the view algebra against the subseg's current
// tail before linking. It always succeeds; callers are responsible for
// only calling it with a Complete location.
func (c *Context) Gen(label Label, loc Location) *LineEntry {
	sub := c.seg().subseg(c.curSub)

	e := &LineEntry{Label: label, Loc: loc}
	c.view.link(e, sub.tail)

	if sub.tail == nil {
		sub.head = e
	} else {
		sub.tail.Next = e
	}
	sub.tail = e
	return e
}

// MarkDirty flags that the accumulated location has changed since the
// last emitted instruction, the way a .loc directive does. EmitInsn only
// generates an entry when this flag is set, so repeated instructions at
// an unchanged location don't produce redundant rows.
func (c *Context) MarkDirty() {
	c.locDirty = true
}

// EmitInsn is the per-instruction emission hook: if the location has
// changed since the last row and is complete, it snapshots it into a new
// entry bound to label and clears the dirty flag. It returns nil if no
// entry was generated.
func (c *Context) EmitInsn(label Label) *LineEntry {
	if !c.locDirty || !c.Loc.Valid || !c.Loc.Current.Complete() {
		return nil
	}
	loc := c.Loc.Snapshot()
	c.locDirty = false
	return c.Gen(label, loc)
}

// EmitLabel records a user-defined label as a forced emission point, the
// .loc_mark_labels behaviour: even if the location hasn't changed, a
// labelled instruction gets its own row, marked as a basic_block entry
// (dwarf2dbg.c:649's loc.flags |= DWARF2_FLAG_BASIC_BLOCK) so consumers can
// resolve the label's address to a source line.
func (c *Context) EmitLabel(label Label) *LineEntry {
	if !c.Loc.Valid || !c.Loc.Current.Complete() {
		return nil
	}
	c.Loc.Current.Flags |= FlagBasicBlock
	loc := c.Loc.Snapshot()
	c.locDirty = false
	return c.Gen(label, loc)
}

// MoveInsn shifts every entry in the current subseg whose label currently
// resolves to now, by delta bytes — the equivalent of the assembler
// relocating an instruction (e.g. filling a delay slot) after its line
// entry was already generated at the instruction's original address.
// now is the fragment offset the shifted instruction used to sit at
// (the caller's frag_now_fix() equivalent); delta is the byte shift.
//
// It walks the subseg's entry chain starting just past pmove_tail, shifts
// matching entries, and always advances pmove_tail past everything it
// walks — so a second call over the same range is a no-op, matching
// spec.md §4.C's "not idempotent, must not be invoked twice for the same
// entries" by making a repeat call see nothing left to walk.
func (c *Context) MoveInsn(now, delta int64) {
	if delta == 0 {
		return
	}
	sub := c.seg().subseg(c.curSub)

	start := sub.head
	if sub.moveTail != nil {
		start = sub.moveTail.Next
	}
	for e := start; e != nil; e = e.Next {
		if v, ok := e.Label.Value(); ok && v == now {
			e.Label.Sym.SetValue(v + delta)
		}
		sub.moveTail = e
	}
}
