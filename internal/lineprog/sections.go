package lineprog

import "github.com/cucaracha-toolchain/casm/internal/addr"

// Component H: the minimal companion sections a consumer needs to make
// sense of .debug_line — a single compile unit's .debug_info/.debug_abbrev
// referencing it, plus .debug_aranges/.debug_ranges covering the segments
// the line program describes, and .debug_str backing the producer/name/
// comp_dir strings. None of this reaches for the real symbol-table/DIE
// tree the assembler would otherwise need; it is just enough structure
// for debug_line to be locatable and attributable to a CU.

const (
	dwAttrName      = 0x03
	dwAttrStmtList  = 0x10
	dwAttrLowPC     = 0x11
	dwAttrHighPC    = 0x12
	dwAttrLanguage  = 0x13
	dwAttrCompDir   = 0x1b
	dwAttrProducer  = 0x25
	dwAttrRanges    = 0x55

	dwFormAddr     = 0x01
	dwFormData2    = 0x05
	dwFormData4    = 0x06
	dwFormData8    = 0x07
	dwFormStrp     = 0x0e

	dwTagCompileUnit = 0x11

	dwChildrenNo = 0x00

	// dwLangMipsAssembler is the DWARF2 convention for assembler input
	// (spec.md §4.H), reused by every target regardless of architecture.
	dwLangMipsAssembler = 0x8001
)

// StrTable interns strings for .debug_str, tracking each one's byte
// offset for use from other sections' DW_FORM_strp attributes.
type StrTable struct {
	buf     []byte
	offsets map[string]uint32
}

// NewStrTable creates an empty string table.
func NewStrTable() *StrTable {
	return &StrTable{offsets: make(map[string]uint32)}
}

// Intern returns s's offset into .debug_str, appending it (NUL-terminated)
// the first time it is seen.
func (t *StrTable) Intern(s string) uint32 {
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, []byte(s)...)
	t.buf = append(t.buf, 0)
	t.offsets[s] = off
	return off
}

// Bytes returns the accumulated .debug_str contents.
func (t *StrTable) Bytes() []byte {
	return t.buf
}

// DebugAbbrev returns the fixed single-entry .debug_abbrev table this
// encoder's one compile_unit DIE uses. dwarf64 selects DW_FORM_data8 over
// DW_FORM_data4 for the two offset-sized attributes (stmt_list, high_pc),
// matching whichever DWARF format DebugInfo/DebugAranges were built with
// (spec.md §6's "DWARF format selector per section"; this build does not
// distinguish the IRIX64 variant from the standard 64-bit one).
func DebugAbbrev(dwarf64 bool) []byte {
	offsetForm := uint64(dwFormData4)
	if dwarf64 {
		offsetForm = dwFormData8
	}
	var b []byte
	b = PutULEB128(b, 1) // abbrev code 1
	b = PutULEB128(b, dwTagCompileUnit)
	b = append(b, dwChildrenNo)
	attrs := []struct{ attr, form uint64 }{
		{dwAttrName, dwFormStrp},
		{dwAttrCompDir, dwFormStrp},
		{dwAttrProducer, dwFormStrp},
		{dwAttrLowPC, dwFormAddr},
		{dwAttrHighPC, offsetForm},
		{dwAttrStmtList, offsetForm},
		{dwAttrLanguage, dwFormData2},
	}
	for _, a := range attrs {
		b = PutULEB128(b, a.attr)
		b = PutULEB128(b, a.form)
	}
	b = PutULEB128(b, 0)
	b = PutULEB128(b, 0) // attribute list terminator
	b = PutULEB128(b, 0) // abbrev table terminator
	return b
}

// CompileUnit describes the single translation unit this encoder's
// .debug_info/.debug_aranges describe.
type CompileUnit struct {
	Name     string
	CompDir  string
	Producer string
	AddrSize int
	LowPC    uint64
	HighPC   uint32 // length; DW_FORM_data4 unless Dwarf64
	StmtList uint64 // .debug_line offset; DW_FORM_data4 unless Dwarf64
	Dwarf64  bool   // use the 64-bit DWARF initial-length/offset format
}

// DebugInfo renders the single compile_unit DIE referencing cu.StmtList
// into .debug_line, using str to intern its string attributes.
func DebugInfo(cu CompileUnit, str *StrTable) []byte {
	putOffset := put32Offset
	offsetSize := 4
	if cu.Dwarf64 {
		putOffset = put64
		offsetSize = 8
	}

	var body []byte
	body = PutULEB128(body, 1) // abbrev code 1
	// DW_FORM_strp is an offset into .debug_str: 4 bytes in 32-bit DWARF,
	// 8 in 64-bit, the same width putOffset already uses for stmt_list/
	// high_pc (spec.md §6's "DWARF format selector per section").
	body = putOffset(body, uint64(str.Intern(cu.Name)))
	body = putOffset(body, uint64(str.Intern(cu.CompDir)))
	body = putOffset(body, uint64(str.Intern(cu.Producer)))
	body = putAddr(body, cu.LowPC, cu.AddrSize)
	body = putOffset(body, uint64(cu.HighPC))
	body = putOffset(body, cu.StmtList)
	body = put16(body, dwLangMipsAssembler)

	unitLength := 2 + offsetSize + 1 + len(body) // version + abbrev_offset + addr_size + DIE
	out := put64InitialLength(nil, uint64(unitLength), cu.Dwarf64)
	out = put16(out, 2) // DWARF version
	out = putOffset(out, 0) // debug_abbrev_offset: single abbrev table at offset 0
	out = append(out, byte(cu.AddrSize))
	out = append(out, body...)
	return out
}

func put32Offset(buf []byte, v uint64) []byte { return put32(buf, uint32(v)) }

func putAddr(buf []byte, addr uint64, addrSize int) []byte {
	v := addr
	for i := 0; i < addrSize; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

// DebugAranges renders an address-range table covering [cu.LowPC,
// cu.LowPC+cu.HighPC) plus one (start, length) pair per entry in extra —
// used when the module has more than one code segment (spec.md §8
// scenario S2) — pointing back at the compile unit's .debug_info offset
// (always 0: one CU per module).
func DebugAranges(cu CompileUnit, extra ...[2]uint64) []byte {
	putOffset := put32Offset
	offsetSize := 4
	initialLengthSize := 4
	if cu.Dwarf64 {
		putOffset = put64
		offsetSize = 8
		initialLengthSize = 12 // 0xffffffff escape + 8-byte length
	}
	headerSize := initialLengthSize + 2 + offsetSize + 1 + 1
	alignment := cu.AddrSize * 2
	padding := int(addr.Align(int64(headerSize), int64(alignment))) - headerSize

	var body []byte
	body = put16(body, 2)
	body = putOffset(body, 0) // debug_info_offset
	body = append(body, byte(cu.AddrSize))
	body = append(body, 0) // segment_selector_size
	body = append(body, make([]byte, padding)...)
	body = putAddr(body, cu.LowPC, cu.AddrSize)
	body = putAddr(body, uint64(cu.HighPC), cu.AddrSize)
	for _, r := range extra {
		body = putAddr(body, r[0], cu.AddrSize)
		body = putAddr(body, r[1], cu.AddrSize)
	}
	body = putAddr(body, 0, cu.AddrSize) // terminating zero entry
	body = putAddr(body, 0, cu.AddrSize)

	return append(put64InitialLength(nil, uint64(len(body)), cu.Dwarf64), body...)
}

// DebugRanges renders a single range list: a base-address entry (~0, 0)
// followed by one (start, end) pair per element of ranges, in order, and
// terminated by a (0, 0) pair. Each address is addrSize bytes. It returns
// only the rendered bytes; the list starts at offset 0 of the section.
func DebugRanges(ranges [][2]uint64, addrSize int) []byte {
	allOnes := uint64(1)<<(8*uint(addrSize)) - 1
	if addrSize >= 8 {
		allOnes = ^uint64(0)
	}
	buf := putAddr(nil, allOnes, addrSize)
	buf = putAddr(buf, 0, addrSize)
	for _, r := range ranges {
		buf = putAddr(buf, r[0], addrSize)
		buf = putAddr(buf, r[1], addrSize)
	}
	buf = putAddr(buf, 0, addrSize)
	buf = putAddr(buf, 0, addrSize)
	return buf
}
