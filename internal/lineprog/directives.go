package lineprog

import (
	"fmt"

	"github.com/cucaracha-toolchain/casm/internal/diag"
	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// DotFile implements the explicitly numbered ".file N \"path\"" form.
// Errors are reported through Diag per spec.md §7's table-consistency
// row and the offending directive is discarded — the file table is left
// exactly as it was before the call.
func (c *Context) DotFile(num int, path string) error {
	if _, err := c.Files.Intern(path, num); err != nil {
		c.Diag.Warn(diag.TableConsistency, "%s", err.Error())
		return err
	}
	c.seenFile = true
	return nil
}

// DotFileAuto implements the legacy, unnumbered ".file \"path\"" form: it
// always succeeds, assigning path the next free slot.
func (c *Context) DotFileAuto(path string) int {
	c.seenFile = true
	return c.Files.InternAuto(path)
}

// LocOption configures the one-shot/sticky attributes of a .loc directive
// beyond the mandatory file/line/column triple.
type LocOption func(*Location)

func WithISA(v uint64) LocOption { return func(l *Location) { l.ISA = v } }

func WithDiscriminator(v uint64) LocOption { return func(l *Location) { l.Discriminator = v } }

func WithBasicBlock() LocOption { return func(l *Location) { l.Flags |= FlagBasicBlock } }

func WithPrologueEnd() LocOption { return func(l *Location) { l.Flags |= FlagPrologueEnd } }

func WithEpilogueBegin() LocOption { return func(l *Location) { l.Flags |= FlagEpilogueBegin } }

func WithIsStmt(v bool) LocOption {
	return func(l *Location) {
		if v {
			l.Flags |= FlagIsStmt
		} else {
			l.Flags &^= FlagIsStmt
		}
	}
}

// WithViewAssert records an explicit "view 0" (forceReset=false) or
// "view -0" (forceReset=true) assertion, consumed by the view algebra.
func WithViewAssert(forceReset bool) LocOption {
	return func(l *Location) {
		l.AssertedView = true
		l.ForceReset = forceReset
	}
}

// WithViewSymbol binds the entry's view directly to a caller-supplied
// symbol (the "view <ident>" form), bypassing the algebra's own
// reset computation entirely — the caller is asserting the relationship
// themselves, typically via a label defined earlier in the same
// subsegment.
func WithViewSymbol(sym *symbols.Symbol) LocOption {
	return func(l *Location) { l.View = sym }
}

// DotLoc implements the .loc directive: validate the file reference, then
// fold the new state into the location being accumulated and mark it
// dirty so the next EmitInsn call produces a row.
func (c *Context) DotLoc(file, line int, column uint64, opts ...LocOption) error {
	if file != 0 && c.Files.Get(file) == nil {
		c.Diag.Warn(diag.DirectiveValidation, "unassigned file number %d", file)
		return fmt.Errorf("lineprog: unassigned file number %d", file)
	}
	if line < 0 {
		c.Diag.Warn(diag.DirectiveValidation, "invalid line number %d", line)
		return fmt.Errorf("lineprog: invalid line number %d", line)
	}

	c.Loc.Loc(file, line, column, opts...)
	c.MarkDirty()
	return nil
}
