package bytecode

// DebugInfo carries the original source path and text, plus a sparse map
// from instruction index to the token index (ast.Node.Pos) of the node that
// emitted it, populated only for opcodes where NeedsDebugInfo is true
// (spec.md §3). The map holds token indices, not byte offsets; the module
// does not keep the token slice needed to turn one into a line and column.
type DebugInfo struct {
	Path   string
	Source string
	Lines  map[int]int // instruction index -> token index of its AST node
}

// NewDebugInfo returns an empty DebugInfo for the given source.
func NewDebugInfo(path, source string) *DebugInfo {
	return &DebugInfo{Path: path, Source: source, Lines: make(map[int]int)}
}

// Set records the source position for instruction index k.
func (d *DebugInfo) Set(k int, offset int) {
	d.Lines[k] = offset
}

// Offset reports the source position for instruction index k, if any.
func (d *DebugInfo) Offset(k int) (int, bool) {
	off, ok := d.Lines[k]
	return off, ok
}

// LineCol converts a byte offset into 1-based line/column within Source.
func (d *DebugInfo) LineCol(offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(d.Source); i++ {
		if d.Source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// Module is the compiled bytecode intermediate representation produced by
// the compiler and executed by the VM (spec.md §3 "Bytecode module").
//
// Code and Data are parallel arrays (array-of-structures split into
// structure-of-arrays) so that a VM dispatch loop scans two flat slices
// instead of chasing Instruction pointers.
type Module struct {
	Code []OpCode
	Data []Data

	// Extra is the pool of 32-bit words backing variable-length operands:
	// function bodies, call argument lists, map key/value pairs, destructure
	// targets, captures.
	Extra []uint32

	// Main lists, in execution order, the top-level body instruction
	// indices (a slice into Extra by convention: Main itself is just a
	// []uint32 of instruction indices, materialised directly rather than
	// via an Extra offset since the module owns exactly one top level).
	Main []uint32

	// Strings is the contiguous byte buffer string Refs slice into.
	Strings []byte

	Debug *DebugInfo

	// NativeNames lists, in registration order, the host-FFI names the
	// compiler predeclared (spec.md §6 Host FFI). The module frame reserves
	// one register per entry as if it were a parameter of the top level;
	// the VM fills registers 0..len(NativeNames)-1 from its native
	// registry before running Main.
	NativeNames []string

	// Funcs holds every function literal's compiled body, referenced by
	// index from OpBuildFunc/OpBuildFuncCapture data (the module's flat
	// Code/Data arrays hold every function's instructions side by side;
	// FuncDef.Instrs names which slice is this function's own body, the
	// nested-body analogue of Main for the top level).
	Funcs []FuncDef
}

// FuncDef is one compiled function body: its parameter count (needed to
// compute instruction-as-register offsets) and the module-code indices
// making up its body, stored as an offset/length pair into Extra.
type FuncDef struct {
	Params      int
	NumCaptures int
	Instrs      ExtraData
}

// AddFunc registers a compiled function body and returns its index.
func (m *Module) AddFunc(params, numCaptures int, instrs []uint32) uint32 {
	off := m.PushExtraSlice(instrs)
	idx := uint32(len(m.Funcs))
	m.Funcs = append(m.Funcs, FuncDef{Params: params, NumCaptures: numCaptures, Instrs: ExtraData{Offset: off, Len: uint32(len(instrs))}})
	return idx
}

// FuncInstrs returns the module-code indices making up function f's body.
func (m *Module) FuncInstrs(f FuncDef) []uint32 {
	return m.ExtraSlice(f.Instrs.Offset, f.Instrs.Len)
}

// NewModule returns an empty Module ready for incremental compilation
// (the REPL's "compile more into this module" entry point appends to Code/
// Data/Extra/Strings and extends Main).
func NewModule(path, source string) *Module {
	return &Module{
		Debug: NewDebugInfo(path, source),
	}
}

// Len returns the number of instructions in Code.
func (m *Module) Len() int { return len(m.Code) }

// At returns the Instruction at index k.
func (m *Module) At(k int) Instruction {
	return Instruction{Op: m.Code[k], Data: m.Data[k]}
}

// Emit appends an instruction and returns its index, which under the
// instruction-as-register scheme also names its result register (offset by
// the enclosing function's parameter count).
func (m *Module) Emit(op OpCode, data Data) int {
	idx := len(m.Code)
	m.Code = append(m.Code, op)
	m.Data = append(m.Data, data)
	return idx
}

// PushExtra appends a single word to the extra pool and returns its offset.
func (m *Module) PushExtra(word uint32) uint32 {
	off := uint32(len(m.Extra))
	m.Extra = append(m.Extra, word)
	return off
}

// PushExtraSlice appends a slice of words to the extra pool and returns the
// offset of its first word.
func (m *Module) PushExtraSlice(words []uint32) uint32 {
	off := uint32(len(m.Extra))
	m.Extra = append(m.Extra, words...)
	return off
}

// ExtraSlice returns the words at [offset, offset+length).
func (m *Module) ExtraSlice(offset, length uint32) []uint32 {
	return m.Extra[offset : offset+length]
}

// InternString appends s to the string pool and returns its {offset,len}.
// Unlike a deduplicating interner, repeated constants are simply appended
// again: string identity never matters to the VM, only content (spec.md §4.3
// comparisons are structural), so dedup would only save pool bytes at
// compile-time cost this CORE does not need to pay.
func (m *Module) InternString(s string) StrData {
	off := uint32(len(m.Strings))
	m.Strings = append(m.Strings, s...)
	return StrData{Offset: off, Len: uint32(len(s))}
}

// String returns the string named by a StrData operand.
func (m *Module) String(s StrData) string {
	return string(m.Strings[s.Offset : s.Offset+s.Len])
}
