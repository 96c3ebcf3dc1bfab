// Package symbols is a small stand-in for the assembler's expression
// evaluator and symbol table. The real collaborator (resolve_symbol_value,
// make_expr_symbol, and the rest of the expression/fragment machinery) is
// out of scope for the line-table encoder; this package implements just
// enough of it — symbols with either a directly bound value or a lazily
// evaluated expression tree — for the encoder to be exercised end to end.
package symbols

// Symbol is a mutable cell holding either a directly bound absolute value
// (set once a fragment/label address is known) or a pending expression that
// may become resolvable once other symbols are bound.
//
// A Symbol with neither a value nor an expression is undefined.
type Symbol struct {
	Name string

	value    int64
	hasValue bool
	expr     Expr
}

// NewSymbol creates an undefined symbol, optionally named for debugging.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name}
}

// SetValue binds the symbol directly to an absolute value, discarding any
// pending expression.
func (s *Symbol) SetValue(v int64) {
	s.value = v
	s.hasValue = true
	s.expr = nil
}

// SetExpr attaches a pending expression to the symbol. The symbol stays
// undefined until the expression evaluates cleanly.
func (s *Symbol) SetExpr(e Expr) {
	s.expr = e
	s.hasValue = false
}

// Defined reports whether the symbol has either a bound value or a pending
// expression (i.e. it is not a bare undefined placeholder).
func (s *Symbol) Defined() bool {
	return s.hasValue || s.expr != nil
}

// Value attempts to resolve the symbol, caching the result once the
// underlying expression (if any) evaluates cleanly. The second return value
// is false if the symbol is undefined or its expression cannot yet be
// evaluated.
func (s *Symbol) Value() (int64, bool) {
	if s.hasValue {
		return s.value, true
	}
	if s.expr == nil {
		return 0, false
	}
	if v, ok := s.expr.Eval(); ok {
		s.value = v
		s.hasValue = true
		s.expr = nil
		return v, true
	}
	return 0, false
}

// Expr is a node in the tagged-union expression algebra the view number
// machinery builds: O_symbol, O_constant, O_subtract, O_gt, O_multiply,
// O_logical_not and O_add.
type Expr interface {
	Eval() (int64, bool)
}

// Const is O_constant.
type Const int64

func (c Const) Eval() (int64, bool) { return int64(c), true }

// Ref is O_symbol: a reference to another symbol's (possibly still pending)
// value.
type Ref struct{ Sym *Symbol }

func (r Ref) Eval() (int64, bool) { return r.Sym.Value() }

// Subtract is O_subtract: A - B.
type Subtract struct{ A, B Expr }

func (s Subtract) Eval() (int64, bool) {
	a, ok := s.A.Eval()
	if !ok {
		return 0, false
	}
	b, ok := s.B.Eval()
	if !ok {
		return 0, false
	}
	return a - b, true
}

// GreaterThan is O_gt: 1 if A > B, else 0.
type GreaterThan struct{ A, B Expr }

func (g GreaterThan) Eval() (int64, bool) {
	a, ok := g.A.Eval()
	if !ok {
		return 0, false
	}
	b, ok := g.B.Eval()
	if !ok {
		return 0, false
	}
	if a > b {
		return 1, true
	}
	return 0, true
}

// Multiply is O_multiply.
type Multiply struct{ A, B Expr }

func (m Multiply) Eval() (int64, bool) {
	a, ok := m.A.Eval()
	if !ok {
		return 0, false
	}
	b, ok := m.B.Eval()
	if !ok {
		return 0, false
	}
	return a * b, true
}

// Not is O_logical_not: 1 if A == 0, else 0.
type Not struct{ A Expr }

func (n Not) Eval() (int64, bool) {
	a, ok := n.A.Eval()
	if !ok {
		return 0, false
	}
	if a == 0 {
		return 1, true
	}
	return 0, true
}

// Add is O_add.
type Add struct{ A, B Expr }

func (a Add) Eval() (int64, bool) {
	x, ok := a.A.Eval()
	if !ok {
		return 0, false
	}
	y, ok := a.B.Eval()
	if !ok {
		return 0, false
	}
	return x + y, true
}
