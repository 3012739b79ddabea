package vm

import (
	"fmt"

	"quill/internal/bytecode"
)

// Importer resolves `import "path"` (spec.md §6): the VM has no file-system
// or module-cache opinion of its own, so it delegates entirely to whatever
// the embedding host wires in (internal/repl and cmd/quill register one;
// tests typically don't).
type Importer interface {
	Import(path string) (Value, error)
}

// VM executes one compiled bytecode.Module to completion. It owns the heap
// and the module-level (global) frame, and recurses through Go's own call
// stack for quill function calls (spec.md §4.3 leaves call-stack
// representation unspecified; Go's stack is the simplest correct choice for
// a CORE this size).
type VM struct {
	Mod      *bytecode.Module
	Heap     *Heap
	Natives  map[string]NativeFn
	Importer Importer

	Global    *Frame
	callStack []*Frame
}

// New returns a VM ready to run mod, with natives supplying every name in
// mod.NativeNames (spec.md §6 Host FFI).
func New(mod *bytecode.Module, natives map[string]NativeFn, importer Importer) *VM {
	return &VM{
		Mod:      mod,
		Heap:     NewHeap(0),
		Natives:  natives,
		Importer: importer,
	}
}

// newTopFrame allocates the module-level frame and fills its reserved
// native registers (spec.md §6 Host FFI: the module frame reserves one
// register per NativeNames entry as if it were a parameter of the top
// level). Shared by Run and the REPL's initial frame, so both set up the
// native registers identically.
func (vm *VM) newTopFrame(instrs []uint32, name string) (*Frame, error) {
	fr := newFrame(instrs, len(vm.Mod.NativeNames), nil, name)
	for i, n := range vm.Mod.NativeNames {
		fn, ok := vm.Natives[n]
		if !ok {
			return nil, fmt.Errorf("quill: unresolved native %q", n)
		}
		fr.Registers[i] = FuncValue(&FuncVal{Native: fn, Name: n}, vm.Heap)
	}
	return fr, nil
}

// Run resolves natives into the module frame's reserved registers and
// executes Main, returning the script's final value. A final value that is
// an error is reported as an uncaught error, the same as a raised one.
func (vm *VM) Run() (Value, error) {
	fr, err := vm.newTopFrame(vm.Mod.Main, "<module>")
	if err != nil {
		return Value{}, err
	}
	vm.Global = fr
	v, err := vm.runFrame(fr, 0)
	if err != nil {
		if t, ok := err.(*thrown); ok {
			return Value{}, fmt.Errorf("quill: uncaught error: %s", vm.display(t.val))
		}
		return Value{}, err
	}
	if v.Kind == bytecode.TypeError {
		return Value{}, fmt.Errorf("quill: uncaught error: %s", vm.display(v))
	}
	return v, nil
}

// NewReplFrame returns an empty, growable top-level frame with its native
// registers filled but no body instructions yet, and installs it as the
// module frame (spec.md §9 "REPL state": a persistent module frame, reified
// as a GC root, that each incrementally-compiled line grows and resumes).
func (vm *VM) NewReplFrame() (*Frame, error) {
	fr, err := vm.newTopFrame(nil, "<repl>")
	if err != nil {
		return nil, err
	}
	vm.Global = fr
	return fr, nil
}

// Resume executes fr starting at body-local instruction fromIP, for the
// REPL: fr already holds every register computed by earlier lines, and
// fromIP is the start of the instructions the latest line just appended
// (internal/compiler's incremental "compile more" entry point, Continue).
func (vm *VM) Resume(fr *Frame, fromIP int) (Value, error) {
	v, err := vm.runFrame(fr, fromIP)
	if t, ok := err.(*thrown); ok {
		return Value{}, fmt.Errorf("quill: uncaught error: %s", vm.display(t.val))
	}
	return v, err
}

func (vm *VM) runFrame(fr *Frame, fromIP int) (Value, error) {
	vm.callStack = append(vm.callStack, fr)
	v, err := vm.execFrame(fr, fromIP)
	vm.callStack = vm.callStack[:len(vm.callStack)-1]
	return v, err
}

// call invokes a TypeFunc value, recursing into execFrame for a quill
// function or dispatching straight through for a host native.
func (vm *VM) call(callee Value, args []Value) (Value, error) {
	if callee.Kind != bytecode.TypeFunc {
		return Value{}, vm.typeErr("value is not callable")
	}
	fv := callee.Obj.Func
	if fv.Native != nil {
		return fv.Native(vm, args)
	}
	fd := fv.Def
	if len(args) != fd.Params {
		return Value{}, vm.typeErr(fmt.Sprintf("function expects %d argument(s), got %d", fd.Params, len(args)))
	}
	fr := newFrame(vm.Mod.FuncInstrs(fd), fd.Params, fv.Captures, fv.Name)
	copy(fr.Registers, args)
	return vm.runFrame(fr, 0)
}

func (vm *VM) doImport(path string) (Value, error) {
	if vm.Importer == nil {
		return Value{}, vm.typeErr("this host does not support import")
	}
	return vm.Importer.Import(path)
}

// Call invokes a quill callable from host code (a native reaching back into
// a script-provided callback, spec.md §6 Host FFI). It is the exported
// entry point onto the same call path OpCall/OpThisCall use internally.
func (vm *VM) Call(callee Value, args []Value) (Value, error) {
	return vm.call(callee, args)
}

// Display renders v the way `as str` and an uncaught error's message do
// (ops.go's display), exported for natives that need to print a value.
func (vm *VM) Display(v Value) string {
	return vm.display(v)
}

// TypeName returns the quill type name for v's kind, matching the names
// `is`/`as` accept (spec.md §4.3).
func (vm *VM) TypeName(v Value) string {
	switch v.Kind {
	case bytecode.TypeNull:
		return "null"
	case bytecode.TypeBool:
		return "bool"
	case bytecode.TypeInt:
		return "int"
	case bytecode.TypeNum:
		return "num"
	case bytecode.TypeStr:
		return "str"
	case bytecode.TypeTuple:
		return "tuple"
	case bytecode.TypeList:
		return "list"
	case bytecode.TypeMap:
		return "map"
	case bytecode.TypeRange:
		return "range"
	case bytecode.TypeError:
		return "error"
	case bytecode.TypeTagged:
		return "tagged"
	case bytecode.TypeFunc:
		return "function"
	case bytecode.TypeIter:
		return "iterator"
	default:
		return "unknown"
	}
}

// Roots implements RootProvider: every register of every live frame, plus
// the module frame that outlives the current call (spec.md §4.4).
func (vm *VM) Roots(yield func(Value)) {
	if vm.Global != nil {
		for _, v := range vm.Global.Registers {
			yield(v)
		}
	}
	for _, fr := range vm.callStack {
		for _, v := range fr.Registers {
			yield(v)
		}
	}
}

// execFrame is the opcode dispatch loop for one activation record (spec.md
// §4.1-§4.3), starting at body-local instruction startIP. Jump offsets are
// deltas between instruction-as-register Refs, which — since every Ref in
// one body shares the same Params offset — equal deltas between body-local
// indices directly, so no register/ip translation is needed at jump sites.
//
// A normal function or module body always ends in OpRet/OpRetNull, which
// returns directly out of the switch below; running off the end of
// fr.Instrs only happens for the REPL's frame, which has no such
// terminator after the line it just appended, so that case returns the
// last instruction's result rather than panicking on an out-of-range ip.
func (vm *VM) execFrame(fr *Frame, startIP int) (Value, error) {
	ip := startIP
	last := Null()
	for {
		if ip >= len(fr.Instrs) {
			return last, nil
		}
		idx := fr.Instrs[ip]
		op := vm.Mod.Code[idx]
		d := vm.Mod.Data[idx]

		var result Value
		var err error
		jumped := false

		switch op {
		case bytecode.OpNop:

		case bytecode.OpPrimitive:
			switch d.Primitive {
			case bytecode.PrimitiveNull:
				result = Null()
			case bytecode.PrimitiveTrue:
				result = Bool(true)
			case bytecode.PrimitiveFalse:
				result = Bool(false)
			}
		case bytecode.OpInt:
			result = Int(d.Int)
		case bytecode.OpNum:
			result = Num(d.Num)
		case bytecode.OpStr:
			result = StrValue(vm.Mod.String(d.Str), vm.Heap)

		case bytecode.OpBuildTuple:
			result = TupleValue(vm.readRefs(fr, d.Extra), vm.Heap)
		case bytecode.OpBuildList:
			result = ListValue(vm.readRefs(fr, d.Extra), vm.Heap)
		case bytecode.OpBuildMap:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, d.Extra.Len*2)
			n := int(d.Extra.Len)
			var keys, vals []Value
			for i := 0; i < n; i++ {
				k := fr.get(bytecode.Ref(words[i*2]))
				v := fr.get(bytecode.Ref(words[i*2+1]))
				if j := mapFindKeys(keys, k); j >= 0 {
					vals[j] = v
				} else {
					keys = append(keys, k)
					vals = append(vals, v)
				}
			}
			result = MapValue(keys, vals, vm.Heap)
		case bytecode.OpBuildError:
			v := fr.get(d.Un.Operand)
			result = ErrorValue(&v, vm.Heap)
		case bytecode.OpBuildErrorNull:
			result = ErrorValue(nil, vm.Heap)
		case bytecode.OpBuildTagged:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, 3)
			v := fr.get(bytecode.Ref(words[0]))
			name := vm.Mod.String(bytecode.StrData{Offset: words[1], Len: words[2]})
			result = TaggedValue(name, &v, vm.Heap)
		case bytecode.OpBuildTaggedNull:
			result = TaggedValue(vm.Mod.String(d.Str), nil, vm.Heap)
		case bytecode.OpBuildRange:
			start := fr.get(d.Range.Start)
			endWord := vm.Mod.ExtraSlice(d.Range.Extra, 1)
			end := fr.get(bytecode.Ref(endWord[0]))
			result = RangeValue(RangeVal{Start: start.I, End: end.I, Step: 1, Inclusive: false}, vm.Heap)
		case bytecode.OpBuildRangeStep:
			start := fr.get(d.Range.Start)
			words := vm.Mod.ExtraSlice(d.Range.Extra, 2)
			end := fr.get(bytecode.Ref(words[0]))
			step := fr.get(bytecode.Ref(words[1]))
			result = RangeValue(RangeVal{Start: start.I, End: end.I, Step: step.I, Inclusive: true}, vm.Heap)
		case bytecode.OpBuildFunc:
			fd := vm.Mod.Funcs[d.Un.Operand]
			result = FuncValue(&FuncVal{Def: fd}, vm.Heap)
		case bytecode.OpBuildFuncCapture:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, d.Extra.Len)
			fd := vm.Mod.Funcs[words[0]]
			caps := make([]Value, len(words)-1)
			for i, w := range words[1:] {
				caps[i] = fr.get(bytecode.Ref(w))
			}
			result = FuncValue(&FuncVal{Def: fd, Captures: caps}, vm.Heap)

		case bytecode.OpDiscard:
			// Discarding an error value raises it; any other value is dropped.
			if v := fr.get(d.Un.Operand); v.Kind == bytecode.TypeError {
				err = &thrown{val: v}
			}
		case bytecode.OpCopyUn:
			result = fr.get(d.Un.Operand)
		case bytecode.OpCopy, bytecode.OpMove:
			fr.set(d.Bin.Lhs, fr.get(d.Bin.Rhs))
		case bytecode.OpLoadGlobal:
			result = vm.Global.get(d.Un.Operand)
		case bytecode.OpLoadCapture:
			result = fr.Captures[d.Un.Operand]
		case bytecode.OpLoadThis:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, 3)
			obj := fr.get(bytecode.Ref(words[0]))
			name := vm.Mod.String(bytecode.StrData{Offset: words[1], Len: words[2]})
			result, err = vm.loadProperty(obj, name)
		case bytecode.OpImport:
			result, err = vm.doImport(vm.Mod.String(d.Str))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpDivFloor, bytecode.OpPow, bytecode.OpRem:
			result, err = vm.arith(op, fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))
		case bytecode.OpLShift, bytecode.OpRShift, bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor:
			result, err = vm.bitwise(op, fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))
		case bytecode.OpEqual, bytecode.OpNotEqual:
			eq := valuesEqual(fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))
			if op == bytecode.OpNotEqual {
				eq = !eq
			}
			result = Bool(eq)
		case bytecode.OpLessThan, bytecode.OpLessThanEqual, bytecode.OpGreaterThan, bytecode.OpGreaterThanEqual:
			result, err = vm.compare(op, fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))
		case bytecode.OpIn:
			result, err = vm.inOp(fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))

		case bytecode.OpAppend:
			err = vm.appendList(fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs))

		case bytecode.OpAs:
			result, err = vm.asType(fr.get(d.BinTy.Operand), d.BinTy.Ty)
		case bytecode.OpIs:
			result = Bool(fr.get(d.BinTy.Operand).Kind == d.BinTy.Ty)

		case bytecode.OpNegate:
			result, err = vm.negate(fr.get(d.Un.Operand))
		case bytecode.OpBoolNot:
			result = Bool(!fr.get(d.Un.Operand).Truthy())
		case bytecode.OpBitNot:
			v := fr.get(d.Un.Operand)
			if v.Kind != bytecode.TypeInt {
				err = vm.typeErr("bit_not requires an int")
			} else {
				result = Int(^v.I)
			}

		case bytecode.OpUnwrapError:
			v := fr.get(d.Un.Operand)
			if v.Kind != bytecode.TypeError {
				err = vm.typeErr("unwrap_error requires an error value")
			} else if v.Obj.ErrVal == nil {
				result = Null()
			} else {
				result = *v.Obj.ErrVal
			}
		case bytecode.OpUnwrapTagged, bytecode.OpUnwrapTaggedOrNull:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, 3)
			v := fr.get(bytecode.Ref(words[0]))
			name := vm.Mod.String(bytecode.StrData{Offset: words[1], Len: words[2]})
			if v.Kind == bytecode.TypeTagged && v.Obj.Tag == name {
				if v.Obj.TagVal == nil {
					result = Null()
				} else {
					result = *v.Obj.TagVal
				}
			} else if op == bytecode.OpUnwrapTaggedOrNull {
				result = Null()
			} else {
				err = vm.typeErr("tagged value does not match " + name)
			}

		case bytecode.OpCheckLen:
			n, lerr := vm.seqLen(fr.get(d.Bin.Lhs))
			if lerr != nil {
				err = lerr
			} else if int64(n) < int64(d.Bin.Rhs) {
				err = vm.typeErr("list pattern expects at least that many elements")
			}
		case bytecode.OpAssertLen:
			n, lerr := vm.seqLen(fr.get(d.Bin.Lhs))
			if lerr != nil {
				err = lerr
			} else if int64(n) != int64(d.Bin.Rhs) {
				err = vm.typeErr("tuple pattern length mismatch")
			}

		case bytecode.OpGet:
			result, err = vm.getIndex(fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs), false)
		case bytecode.OpGetOrNull:
			result, err = vm.getIndex(fr.get(d.Bin.Lhs), fr.get(d.Bin.Rhs), true)
		case bytecode.OpSet:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, 3)
			err = vm.setIndex(fr.get(bytecode.Ref(words[0])), fr.get(bytecode.Ref(words[1])), fr.get(bytecode.Ref(words[2])))

		case bytecode.OpPushErrHandler:
			fr.Handlers = append(fr.Handlers, errHandler{targetIP: ip + int(d.Jump.Offset), dst: fr.resultRef(ip + 1)})
		case bytecode.OpPopErrHandler:
			fr.Handlers = fr.Handlers[:len(fr.Handlers)-1]

		case bytecode.OpJump:
			ip += int(d.Jump.Offset)
			jumped = true
		case bytecode.OpJumpIfTrue:
			if fr.get(d.JumpCond.Operand).Truthy() {
				ip += int(d.JumpCond.Offset)
				jumped = true
			}
		case bytecode.OpJumpIfFalse:
			if !fr.get(d.JumpCond.Operand).Truthy() {
				ip += int(d.JumpCond.Offset)
				jumped = true
			}
		case bytecode.OpJumpIfNull:
			if fr.get(d.JumpCond.Operand).IsNull() {
				ip += int(d.JumpCond.Offset)
				jumped = true
			}
		case bytecode.OpUnwrapErrorOrJump:
			v := fr.get(d.JumpCond.Operand)
			if v.Kind == bytecode.TypeError {
				ip += int(d.JumpCond.Offset)
				jumped = true
			} else {
				result = v
			}

		case bytecode.OpIterInit:
			it, ierr := vm.newIter(fr.get(d.Un.Operand))
			if ierr != nil {
				err = ierr
			} else {
				result = IterValue(it, vm.Heap)
			}
		case bytecode.OpIterNext:
			itv := fr.get(d.IterNext.Iter)
			v, ok := vm.iterNext(itv)
			if ok {
				fr.set(d.IterNext.Dst, v)
			} else {
				ip += int(d.IterNext.Offset)
				jumped = true
			}

		case bytecode.OpCall:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, d.Extra.Len)
			callee := fr.get(bytecode.Ref(words[0]))
			args := make([]Value, len(words)-1)
			for i, w := range words[1:] {
				args[i] = fr.get(bytecode.Ref(w))
			}
			result, err = vm.call(callee, args)
		case bytecode.OpCallOne:
			result, err = vm.call(fr.get(d.Bin.Lhs), []Value{fr.get(d.Bin.Rhs)})
		case bytecode.OpCallZero:
			result, err = vm.call(fr.get(d.Un.Operand), nil)
		case bytecode.OpThisCall:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, d.Extra.Len)
			obj := fr.get(bytecode.Ref(words[0]))
			name := vm.Mod.String(bytecode.StrData{Offset: words[1], Len: words[2]})
			args := make([]Value, 0, len(words)-3)
			for _, w := range words[3:] {
				args = append(args, fr.get(bytecode.Ref(w)))
			}
			result, err = vm.thisCall(obj, name, args)
		case bytecode.OpThisCallZero:
			words := vm.Mod.ExtraSlice(d.Extra.Offset, 3)
			obj := fr.get(bytecode.Ref(words[0]))
			name := vm.Mod.String(bytecode.StrData{Offset: words[1], Len: words[2]})
			result, err = vm.thisCall(obj, name, nil)

		case bytecode.OpRet:
			return fr.get(d.Un.Operand), nil
		case bytecode.OpRetNull:
			return Null(), nil
		case bytecode.OpThrow:
			err = &thrown{val: fr.get(d.Un.Operand)}

		default:
			err = fmt.Errorf("quill: unimplemented opcode %s", op)
		}

		if err != nil {
			raised, ok := err.(*thrown)
			if !ok {
				raised = &thrown{val: vm.newErrV(err.Error())}
			}
			if n := len(fr.Handlers); n > 0 {
				h := fr.Handlers[n-1]
				fr.Handlers = fr.Handlers[:n-1]
				fr.set(h.dst, raised.val)
				ip = h.targetIP
				continue
			}
			return Value{}, raised
		}

		if !jumped {
			if bytecode.HasResult(op) {
				fr.set(fr.resultRef(ip), result)
				last = result
			}
			ip++
		}

		if vm.Heap.ShouldCollect() {
			vm.Heap.Collect(vm)
		}
	}
}
