package vm

import "quill/internal/bytecode"

// errHandler is one entry of a frame's error-handler stack (spec.md §4.2's
// push_err_handler/pop_err_handler, balanced at return — spec.md §8).
type errHandler struct {
	targetIP int // body-local index into Frame.Instrs to jump to on catch
	dst      bytecode.Ref
}

// Frame is one activation record: a register file sized to the body's
// parameter count plus instruction count (every instruction reserves a
// register slot, spec.md §4.1's instruction-as-register scheme, whether or
// not it writes one), the flat module-code indices making up this body, and
// the running instruction pointer into that slice.
type Frame struct {
	Instrs    []uint32
	Params    int
	Registers []Value
	IP        int
	Handlers  []errHandler
	Captures  []Value
	FuncName  string
}

func newFrame(instrs []uint32, params int, captures []Value, name string) *Frame {
	return &Frame{
		Instrs:    instrs,
		Params:    params,
		Registers: make([]Value, params+len(instrs)),
		Captures:  captures,
		FuncName:  name,
	}
}

func (f *Frame) get(r bytecode.Ref) Value   { return f.Registers[r] }
func (f *Frame) set(r bytecode.Ref, v Value) { f.Registers[r] = v }

// Grow appends newInstrs to the frame's body and extends its register file
// to match, preserving every already-computed register value. This is the
// REPL's persistent top-level frame growing by one incrementally-compiled
// line at a time (spec.md §9 "REPL state").
func (f *Frame) Grow(newInstrs []uint32) {
	f.Instrs = append(f.Instrs, newInstrs...)
	grown := make([]Value, f.Params+len(f.Instrs))
	copy(grown, f.Registers)
	f.Registers = grown
}

// resultRef is the register the instruction at body-local position ip
// writes its result to, under the instruction-as-register convention.
func (f *Frame) resultRef(ip int) bytecode.Ref { return bytecode.Ref(f.Params + ip) }
