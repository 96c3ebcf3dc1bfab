package lineprog

import (
	"sort"

	"github.com/cucaracha-toolchain/casm/internal/diag"
	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// Context is the explicit, single-owner encoder state that replaces the
// original tool's global mutable state (spec.md §9's redesign note): one
// Context is created per assembly run and threaded through directive
// handling and per-instruction hooks for that run only.
type Context struct {
	Files *FileTable
	Loc   LocationState
	Diag  *diag.Sink

	view *viewAlgebra

	segs     map[string]*LineSeg
	segOrder []string
	curSeg   string
	curSub   int
	curFrag  int
	locDirty bool

	seenFile bool // whether any .file directive named a real source path
}

// NewContext creates a fresh encoder context.
func NewContext(d *diag.Sink) *Context {
	c := &Context{
		Files: NewFileTable(),
		Diag:  d,
		view:  newViewAlgebra(),
		segs:  make(map[string]*LineSeg),
	}
	c.Loc.Current.Flags |= FlagIsStmt // matches DWARF's default_is_stmt = true
	return c
}

// SwitchSegment sets the code segment subsequent Gen calls attach entries
// to, creating it on first use.
func (c *Context) SwitchSegment(name string) {
	if _, ok := c.segs[name]; !ok {
		c.segs[name] = &LineSeg{
			Name:      name,
			TextStart: symbols.NewSymbol(name + "+start"),
			TextEnd:   symbols.NewSymbol(name + "+end"),
		}
		c.segOrder = append(c.segOrder, name)
	}
	c.curSeg = name
}

// SwitchSubseg sets the subsegment number subsequent Gen calls attach
// entries to within the current segment.
func (c *Context) SwitchSubseg(number int) {
	c.curSub = number
}

// StartFragment marks the beginning of a new code fragment in the current
// segment, for the purposes of Label.Frag equality tests later (the
// emitter uses this to decide whether two adjacent entries are
// provably in the same fragment without consulting the opaque section
// writer's internals).
func (c *Context) StartFragment() {
	c.curFrag++
}

// Fragment returns the id of the fragment currently open for labelling.
func (c *Context) Fragment() int {
	return c.curFrag
}

// seg returns the current LineSeg, creating ".text" lazily if nothing has
// switched segments yet.
func (c *Context) seg() *LineSeg {
	if c.curSeg == "" {
		c.SwitchSegment(".text")
	}
	return c.segs[c.curSeg]
}

// Segments returns every known segment's name, in first-use order.
func (c *Context) Segments() []string {
	out := make([]string, len(c.segOrder))
	copy(out, c.segOrder)
	return out
}

// Segment returns the named segment, or nil if it was never switched to.
func (c *Context) Segment(name string) *LineSeg {
	return c.segs[name]
}

// sortedSegmentNames returns segment names sorted lexically, used by the
// line-program emitter (component G) to walk segments in a stable but
// name-keyed order rather than first-use order.
func (c *Context) sortedSegmentNames() []string {
	out := c.Segments()
	sort.Strings(out)
	return out
}

// FinalCheck runs the end-of-assembly consistency checks: the deferred
// view-number assertions. It must be called exactly once, after every
// label in the program has its final address.
func (c *Context) FinalCheck() {
	if c.view.checkAssertions() {
		c.Diag.Once("view-mismatch", diag.ViewMismatch, "view number mismatch")
	}
}

// HasLineInfo reports whether the assembler ever produced a line entry.
// Emit consults this to tolerate an empty run (no .file/.loc ever seen)
// by returning without emission, per spec.md §7's "finalize is
// defensive" clause, rather than writing a header with no sequences.
func (c *Context) HasLineInfo() bool {
	for _, name := range c.segOrder {
		if c.segs[name].nonEmpty() {
			return true
		}
	}
	return false
}

// LocDirty reports whether a .loc has been accumulated since the last row
// was emitted — the pending-row flag a new .loc or an EmitInsn/EmitLabel
// call must flush before proceeding (spec.md §9's "coroutine-like
// directive flow" note).
func (c *Context) LocDirty() bool {
	return c.locDirty
}

// ViewRequested reports whether the current (not yet consumed) location
// carries an explicit view request, which spec.md §6 says forces
// immediate emission of its row rather than waiting for the next
// instruction.
func (c *Context) ViewRequested() bool {
	return c.Loc.Current.View != nil || c.Loc.Current.AssertedView
}
