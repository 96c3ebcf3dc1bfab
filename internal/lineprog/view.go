package lineprog

import (
	"github.com/cucaracha-toolchain/casm/internal/symbols"
)

// viewAlgebra is component D. It assigns every entry a view-number symbol
// as it is linked into its subseg, and accumulates deferred assertions for
// forced "view -0" resets, to be checked once addresses have converged
// (FinalCheck). A plain "view 0" adds no deferred assertion.
//
// The accumulator is itself built as a chain of O_add nodes (symbols.Add),
// matching the "acc = acc + deferred" construction of spec.md §4.D: each
// deferred check is the right-hand child of one Add node, so FinalCheck
// can walk the chain by repeatedly unwrapping Add and inspecting its B.
type viewAlgebra struct {
	forceResetView *symbols.Symbol
	assertChain    symbols.Expr
}

func newViewAlgebra() *viewAlgebra {
	sentinel := symbols.NewSymbol("force_reset_view")
	sentinel.SetValue(0)
	return &viewAlgebra{
		forceResetView: sentinel,
		assertChain:    symbols.Const(0),
	}
}

// link assigns e.Loc.View given the previous entry p in the same subseg
// (nil if e is first). It must be called exactly once per entry, in
// append order, before e is linked into the subseg.
func (a *viewAlgebra) link(e *LineEntry, p *LineEntry) {
	if e.Loc.View != nil {
		// WithViewSymbol already bound this entry's view directly; the
		// caller is asserting the relationship themselves.
		return
	}

	if p == nil {
		e.Loc.View = zeroSymbol()
		return
	}

	if e.Loc.ForceReset {
		// force_reset_view: E's view is 0 unconditionally, the same as if
		// p were absent. The deferred assertion still chains the natural
		// reset condition, so a forced reset asserted at a PC that in
		// fact did not advance is caught at FinalCheck.
		a.assertChain = symbolOfChain(a.assertChain, symbolOfReset(e, p))
		e.Loc.View = a.forceResetView
		return
	}

	e.Loc.View = a.defineView(symbolOfReset(e, p), p)
}

// defineView builds the view symbol for an entry whose reset condition is
// `reset` (true when the address did not strictly advance past p),
// chaining onto the previous entry's view symbol when needed.
func (a *viewAlgebra) defineView(reset symbols.Expr, p *LineEntry) *symbols.Symbol {
	if v, ok := reset.Eval(); ok {
		if v == 0 {
			// address strictly advanced: view resets to 0.
			return zeroSymbol()
		}
		// address did not advance: view continues counting from p's,
		// which may itself still be pending — bind lazily via a Ref so
		// later resolution of p's view transparently resolves this one.
		s := symbols.NewSymbol("view")
		s.SetExpr(symbolOfInc(p))
		return s
	}

	// reset can't be evaluated yet (labels not yet resolved): store the
	// full symbolic product, resolved lazily once addresses converge.
	s := symbols.NewSymbol("view")
	s.SetExpr(symbolOfProduct(reset, symbolOfInc(p)))
	return s
}

// zeroSymbol returns a fresh view symbol bound to the literal value 0.
func zeroSymbol() *symbols.Symbol {
	s := symbols.NewSymbol("view")
	s.SetValue(0)
	return s
}

// symbolOfReset builds "NOT(e.label > p.label)": true (1) when the new
// entry's address did not strictly advance past the previous one, i.e.
// the view number must continue counting up rather than reset to 0.
func symbolOfReset(e, p *LineEntry) symbols.Expr {
	return symbols.Not{A: symbols.GreaterThan{
		A: symbols.Ref{Sym: e.Label.Sym},
		B: symbols.Ref{Sym: p.Label.Sym},
	}}
}

// symbolOfInc builds "prev.view + 1".
func symbolOfInc(prev *LineEntry) symbols.Expr {
	return symbols.Add{A: symbols.Ref{Sym: prev.Loc.View}, B: symbols.Const(1)}
}

// symbolOfProduct builds "reset * inc": since reset is 0 or 1, this
// selects between a hard reset to 0 and prev.view + 1 without branching
// the expression tree.
func symbolOfProduct(reset, inc symbols.Expr) symbols.Expr {
	return symbols.Multiply{A: reset, B: inc}
}

// symbolOfChain appends one deferred assertion to the accumulator.
func symbolOfChain(acc, deferred symbols.Expr) symbols.Expr {
	return symbols.Add{A: acc, B: deferred}
}

// checkAssertions walks the assertion chain and reports whether any
// deferred "view -0" assertion failed: its check evaluated non-zero, i.e.
// the forced entry's address did not strictly advance past the previous
// entry's. It returns false (nothing to report) if any check is
// still unresolved, which should not happen once all labels are bound.
func (a *viewAlgebra) checkAssertions() bool {
	for _, check := range a.flattenChain(a.assertChain) {
		v, ok := check.Eval()
		if ok && v != 0 {
			return true
		}
	}
	return false
}

func (a *viewAlgebra) flattenChain(e symbols.Expr) []symbols.Expr {
	var out []symbols.Expr
	for {
		add, ok := e.(symbols.Add)
		if !ok {
			break
		}
		out = append(out, add.B)
		e = add.A
	}
	if c, ok := e.(symbols.Const); !ok || c != 0 {
		out = append(out, e)
	}
	return out
}
