// Package lineprog implements the DWARF 2 debug-line encoder: the
// directory/file table, the per-(segment,subsegment) line-entry
// accumulator, the view-number algebra, the special-opcode packer, the
// relaxation-aware variant fragment machinery, the line-program emitter,
// and the minimal companion sections. See SPEC_FULL.md §4 for the
// component-to-file mapping.
package lineprog

import (
	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// Flag is a bitset of the one-shot/sticky boolean attributes a Location
// can carry.
type Flag uint8

const (
	FlagIsStmt Flag = 1 << iota
	FlagBasicBlock
	FlagPrologueEnd
	FlagEpilogueBegin
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// Location is a row of the DWARF line-number matrix as the assembler sees
// it, before it has been bound to a final address. File and Line are
// 1-based; zero means "incomplete — do not emit" for either.
type Location struct {
	File          int
	Line          int
	Column        uint64
	ISA           uint64
	Discriminator uint64
	Flags         Flag

	// AssertedView and ForceReset record an explicit "view" sub-directive,
	// consumed by the view algebra (view.go) and then cleared: they are
	// one-shot, like View itself.
	AssertedView bool
	ForceReset   bool

	// View holds the entry's view-number symbol once the view algebra has
	// run. Nil until Gen assigns it, unless WithViewSymbol already set it,
	// in which case the algebra keeps the caller's symbol.
	View *symbols.Symbol
}

// Complete reports whether the location has enough information to be
// emitted: both File and Line must be known.
func (l Location) Complete() bool {
	return l.File != 0 && l.Line != 0
}

// consumeOneShot clears the one-shot fields after the location has been
// captured into an entry (or discarded). IsStmt and ISA are sticky and are
// left untouched.
func (l *Location) consumeOneShot() {
	l.Flags &^= FlagBasicBlock | FlagPrologueEnd | FlagEpilogueBegin
	l.Discriminator = 0
	l.View = nil
	l.AssertedView = false
	l.ForceReset = false
}

// FileEntry is a source file referenced by a DWARF line table entry.
type FileEntry struct {
	Name string
	Dir  int
	// Mtime and Length default to zero: the DWARF2_FILE_NAME/_TIME/_SIZE
	// host hooks are out of this core's contract (spec.md §9).
	Mtime  uint64
	Length uint64
}

// Label identifies the fragment-relative position a line entry is bound
// to. Sym is the position symbol (possibly still unresolved); Frag
// distinguishes which code fragment Sym was bound in, so the line-program
// emitter (emitter.go) can tell whether two labels share a fragment without
// needing the opaque section writer's internals.
type Label struct {
	Sym  *symbols.Symbol
	Frag int
}

// Value resolves the label's address, if possible.
func (l Label) Value() (int64, bool) {
	if l.Sym == nil {
		return 0, false
	}
	return l.Sym.Value()
}

// LineEntry is one row awaiting emission: a label plus the location
// snapshot captured at that label.
type LineEntry struct {
	Next  *LineEntry
	Label Label
	Loc   Location
}

// LineSubseg is the per-(segment,subsegment) entry accumulator of
// spec.md §3.
type LineSubseg struct {
	Number int

	head     *LineEntry
	tail     *LineEntry
	moveTail *LineEntry // entries at or before this one are frozen against move_insn
}

// LineSeg is the per-segment list of subsegs plus the segment's start/end
// symbols, bound at finalize.
type LineSeg struct {
	Name      string
	Subsegs   []*LineSubseg // kept sorted by Number
	TextStart *symbols.Symbol
	TextEnd   *symbols.Symbol
}

// subseg returns the subseg with the given number, creating and inserting
// it in order if it doesn't exist yet.
func (s *LineSeg) subseg(number int) *LineSubseg {
	for _, sub := range s.Subsegs {
		if sub.Number == number {
			return sub
		}
	}
	sub := &LineSubseg{Number: number}
	i := 0
	for ; i < len(s.Subsegs); i++ {
		if s.Subsegs[i].Number > number {
			break
		}
	}
	s.Subsegs = append(s.Subsegs, nil)
	copy(s.Subsegs[i+1:], s.Subsegs[i:])
	s.Subsegs[i] = sub
	return sub
}

// nonEmpty reports whether any subseg in the segment holds at least one
// entry, without allocating the flattened slice flatten() would build.
func (s *LineSeg) nonEmpty() bool {
	for _, sub := range s.Subsegs {
		if sub.head != nil {
			return true
		}
	}
	return false
}

// flatten concatenates every subseg's entries, in ascending subseg-number
// order, into a single chain. The subsegs themselves are left untouched.
func (s *LineSeg) flatten() []*LineEntry {
	var all []*LineEntry
	for _, sub := range s.Subsegs {
		for e := sub.head; e != nil; e = e.Next {
			all = append(all, e)
		}
	}
	return all
}
