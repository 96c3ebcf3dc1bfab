package directive

import (
	"fmt"
	"strings"

	"github.com/cucaracha-toolchain/casm/internal/lineprog"
	"github.com/cucaracha-toolchain/casm/internal/section"
	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// Driver plays a stream of Ops into a lineprog.Context, standing in for
// the assembler's directive dispatcher and per-instruction emission hook.
// It owns the CodeSegment labels are bound against and the symbol table
// named "view <ident>" forms reference.
type Driver struct {
	Ctx        *lineprog.Context
	Seg        *section.CodeSegment
	markLabels bool
	symtab     map[string]*symbols.Symbol
}

// NewDriver creates a driver over an already-constructed context and code
// segment.
func NewDriver(ctx *lineprog.Context, seg *section.CodeSegment) *Driver {
	ctx.SwitchSegment(seg.Name)
	return &Driver{Ctx: ctx, Seg: seg, symtab: make(map[string]*symbols.Symbol)}
}

// SetMarkLabels sets the initial "emit basic-block row per label" state
// (the --mark-labels host flag), equivalently to a leading
// ".loc_mark_labels on"/"off" line.
func (d *Driver) SetMarkLabels(v bool) {
	d.markLabels = v
}

// Run executes every op in order, stopping at the first error a
// directive-validation or structural problem raises. Table-consistency
// and directive-validation diagnostics are already reported by the
// Context itself (via Diag); Run also returns those errors, along with
// the driver's own (unknown mnemonics, malformed operands).
func (d *Driver) Run(ops []Op) error {
	for _, op := range ops {
		if err := d.one(op); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) one(op Op) error {
	switch op.Kind {
	case ".file":
		return d.dotFile(op)
	case ".loc":
		return d.dotLoc(op)
	case ".loc_mark_labels":
		if len(op.Args) != 1 {
			return fmt.Errorf("directive: line %d: .loc_mark_labels wants 0|1 or on|off", op.Line)
		}
		d.markLabels = op.Args[0] == "1" || op.Args[0] == "on"
		return nil
	case "insn":
		return d.insn(op)
	case "label":
		return d.label(op)
	case "move_insn":
		return d.moveInsn(op)
	default:
		return fmt.Errorf("directive: line %d: unknown mnemonic %q", op.Line, op.Kind)
	}
}

func (d *Driver) dotFile(op Op) error {
	if len(op.Args) == 1 {
		d.Ctx.DotFileAuto(Quoted(op.Args[0]))
		return nil
	}
	if len(op.Args) != 2 {
		return fmt.Errorf("directive: line %d: .file wants [num] \"path\"", op.Line)
	}
	num, err := ParseInt(op.Line, op.Args[0])
	if err != nil {
		return err
	}
	return d.Ctx.DotFile(num, Quoted(op.Args[1]))
}

func (d *Driver) dotLoc(op Op) error {
	// Any previously pending .loc is flushed via a zero-size emit before
	// the new one is accepted (spec.md §6).
	if d.Ctx.LocDirty() {
		d.Ctx.EmitInsn(d.here())
	}
	if len(op.Args) < 2 {
		return fmt.Errorf("directive: line %d: .loc wants file line [column] [flags...]", op.Line)
	}
	file, err := ParseInt(op.Line, op.Args[0])
	if err != nil {
		return err
	}
	line, err := ParseInt(op.Line, op.Args[1])
	if err != nil {
		return err
	}

	var column uint64
	rest := op.Args[2:]
	if len(rest) > 0 {
		if v, err := ParseUint(op.Line, rest[0]); err == nil {
			column = v
			rest = rest[1:]
		}
	}

	var opts []lineprog.LocOption
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "basic_block":
			opts = append(opts, lineprog.WithBasicBlock())
		case "prologue_end":
			opts = append(opts, lineprog.WithPrologueEnd())
		case "epilogue_begin":
			opts = append(opts, lineprog.WithEpilogueBegin())
		case "is_stmt":
			i++
			if i >= len(rest) {
				return fmt.Errorf("directive: line %d: is_stmt wants 0|1", op.Line)
			}
			opts = append(opts, lineprog.WithIsStmt(rest[i] == "1"))
		case "isa":
			i++
			if i >= len(rest) {
				return fmt.Errorf("directive: line %d: isa wants a number", op.Line)
			}
			v, err := ParseUint(op.Line, rest[i])
			if err != nil {
				return err
			}
			opts = append(opts, lineprog.WithISA(v))
		case "discriminator":
			i++
			if i >= len(rest) {
				return fmt.Errorf("directive: line %d: discriminator wants a number", op.Line)
			}
			v, err := ParseUint(op.Line, rest[i])
			if err != nil {
				return err
			}
			opts = append(opts, lineprog.WithDiscriminator(v))
		case "view":
			i++
			if i >= len(rest) {
				return fmt.Errorf("directive: line %d: view wants 0|-0|ident", op.Line)
			}
			tok := rest[i]
			switch {
			case tok == "0":
				opts = append(opts, lineprog.WithViewAssert(false))
			case tok == "-0":
				opts = append(opts, lineprog.WithViewAssert(true))
			default:
				sym, ok := d.symtab[tok]
				if !ok {
					return fmt.Errorf("directive: line %d: unknown view symbol %q", op.Line, tok)
				}
				opts = append(opts, lineprog.WithViewSymbol(sym))
			}
		default:
			return fmt.Errorf("directive: line %d: unknown .loc option %q", op.Line, rest[i])
		}
	}

	if err := d.Ctx.DotLoc(file, line, column, opts...); err != nil {
		return err
	}
	// If view is set, the row is emitted immediately rather than waiting
	// for the next instruction (spec.md §6).
	if d.Ctx.ViewRequested() {
		d.Ctx.EmitInsn(d.here())
	}
	return nil
}

func (d *Driver) insn(op Op) error {
	n := 1
	if len(op.Args) == 1 {
		v, err := ParseInt(op.Line, op.Args[0])
		if err != nil {
			return err
		}
		n = v
	}
	label := d.here()
	d.Ctx.EmitInsn(label)
	d.Seg.Advance(n)
	return nil
}

func (d *Driver) label(op Op) error {
	if len(op.Args) != 1 {
		return fmt.Errorf("directive: line %d: label wants a name", op.Line)
	}
	name := strings.TrimSuffix(op.Args[0], ":")
	sym := d.Seg.Mark()
	d.symtab[name] = sym
	if d.markLabels {
		d.Ctx.EmitLabel(lineprog.Label{Sym: sym, Frag: d.Ctx.Fragment()})
	}
	return nil
}

// moveInsn stands in for the assembler calling dwarf2_move_insn after
// shifting an already-emitted instruction (e.g. to fill a delay slot):
// "move_insn <delta>" shifts every line entry still sitting at the
// segment's current offset by delta bytes.
func (d *Driver) moveInsn(op Op) error {
	if len(op.Args) != 1 {
		return fmt.Errorf("directive: line %d: move_insn wants a delta", op.Line)
	}
	delta, err := ParseInt(op.Line, op.Args[0])
	if err != nil {
		return err
	}
	d.Ctx.MoveInsn(d.Seg.Offset(), int64(delta))
	return nil
}

func (d *Driver) here() lineprog.Label {
	return lineprog.Label{Sym: d.Seg.Mark(), Frag: d.Ctx.Fragment()}
}
