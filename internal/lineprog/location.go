package lineprog

// LocationState is component B: the location the assembler is currently
// accumulating as it walks instructions, updated by .loc directives and
// consulted (then partially reset) on each emitted instruction.
type LocationState struct {
	Current Location
	Valid   bool // true once the first .loc has been seen
}

// Loc replaces the current location's File/Line/Column and applies the
// supplied option functions (for ISA, discriminator, flags, view), leaving
// everything else sticky from the previous .loc.
func (s *LocationState) Loc(file, line int, column uint64, opts ...LocOption) {
	s.Current.File = file
	s.Current.Line = line
	s.Current.Column = column
	for _, opt := range opts {
		opt(&s.Current)
	}
	s.Valid = true
}

// Snapshot captures the current location for binding into a new entry and
// clears the one-shot fields, leaving sticky ones (File, Line, Column,
// ISA, IsStmt) in place for the next instruction.
func (s *LocationState) Snapshot() Location {
	loc := s.Current
	s.Current.consumeOneShot()
	return loc
}
