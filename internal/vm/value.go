// Package vm executes a compiled bytecode.Module: the register file per
// frame, the explicit heap and its mark-and-sweep collector, and the opcode
// dispatch loop (spec.md §4.3, §4.4).
//
// Grounded on internal/vmregister/value.go's Object header and heap-object
// shapes; this implementation deliberately does not carry over the donor's
// NaN-boxing (see DESIGN.md's "VM + value model + GC" section) and instead gives every
// Value an explicit Kind tag plus, for heap kinds, a pointer to an Object
// the collector can trace.
package vm

import "quill/internal/bytecode"

// Kind is a Value's run-time type tag, mirroring bytecode.TypeTag exactly so
// `is`/`as` checks are a single comparison.
type Kind = bytecode.TypeTag

// Value is the VM's universal run-time representation: an immediate (null,
// bool, int, num) carried inline, or a heap kind carrying a pointer to an
// Object the collector traces.
type Value struct {
	Kind Kind
	I    int64   // Int, Bool (0/1)
	F    float64 // Num
	Obj  *Object // Str, Tuple, List, Map, Range, Error, Tagged, Func, Iter
}

func Null() Value                { return Value{Kind: bytecode.TypeNull} }
func Bool(b bool) Value          { if b { return Value{Kind: bytecode.TypeBool, I: 1} }; return Value{Kind: bytecode.TypeBool} }
func Int(i int64) Value          { return Value{Kind: bytecode.TypeInt, I: i} }
func Num(f float64) Value        { return Value{Kind: bytecode.TypeNum, F: f} }

func (v Value) IsNull() bool { return v.Kind == bytecode.TypeNull }
func (v Value) IsBool() bool { return v.Kind == bytecode.TypeBool }
func (v Value) IsInt() bool  { return v.Kind == bytecode.TypeInt }
func (v Value) IsNum() bool  { return v.Kind == bytecode.TypeNum }
func (v Value) IsStr() bool  { return v.Kind == bytecode.TypeStr }
func (v Value) IsList() bool { return v.Kind == bytecode.TypeList }
func (v Value) IsMap() bool  { return v.Kind == bytecode.TypeMap }
func (v Value) IsFunc() bool { return v.Kind == bytecode.TypeFunc }

// Str returns the underlying Go string of a Str-kind value; callers must
// check IsStr first, same contract as every other Value accessor here.
func (v Value) Str() string { return v.Obj.Str }

// Int64 returns the underlying int64 of an Int-kind value.
func (v Value) Int64() int64 { return v.I }

// AsTagged reports whether v is a Tagged value with the given tag name and,
// if so, returns its wrapped inner value (or Null if the tag carries none).
// Used by natives that represent an opaque host handle as a tagged value
// (spec.md's value model has no host-pointer kind).
func (v Value) AsTagged(tag string) (Value, bool) {
	if v.Kind != bytecode.TypeTagged || v.Obj.Tag != tag {
		return Value{}, false
	}
	if v.Obj.TagVal == nil {
		return Null(), true
	}
	return *v.Obj.TagVal, true
}
func (v Value) Truthy() bool {
	switch v.Kind {
	case bytecode.TypeNull:
		return false
	case bytecode.TypeBool:
		return v.I != 0
	default:
		return true
	}
}

// ObjectType distinguishes the heap-allocated payload kinds, matching
// Kind's heap-carrying variants one-to-one.
type ObjectType uint8

const (
	ObjString ObjectType = iota
	ObjTuple
	ObjList
	ObjMap
	ObjRange
	ObjError
	ObjTagged
	ObjFunc
	ObjIter
)

// Object is the header every heap value embeds, carrying exactly the
// mark bit and the next-pointer the collector's sweep phase needs
// (spec.md §4.4, grounded on internal/vmregister/value.go's Object header).
type Object struct {
	Type   ObjectType
	Marked bool
	Next   *Object

	Str     string
	Tuple   []Value
	List    *[]Value // boxed so append mutates every alias (spec.md "append mutates a list in place")
	MapKeys []Value
	MapVals []Value
	Range   RangeVal
	ErrVal  *Value // nil for bare `error`
	Tag     string
	TagVal  *Value // nil for a bare tagged value
	Func    *FuncVal
	Iter    *IterVal
}

// RangeVal is a lazily-stepped numeric range; Inclusive distinguishes
// `..=` (build_range_step) from `..` (build_range).
type RangeVal struct {
	Start, End, Step int64
	Inclusive        bool
}

// FuncVal is a callable: either a plain function (NumCaptures == 0) or a
// closure carrying the values captured at build_func_capture time (spec.md
// §9: captures are snapshotted by value at closure-creation, not live
// upvalue cells — this module has no opcode to mutate a capture after
// creation, so a snapshot is observationally identical to a live reference).
type FuncVal struct {
	Def      bytecode.FuncDef
	Captures []Value
	Native   NativeFn // non-nil for a host-FFI callable; Def is zero in that case
	Name     string
}

// NativeFn is a host function registered into the VM's native table
// (spec.md §6 Host FFI).
type NativeFn func(vm *VM, args []Value) (Value, error)

// IterVal is the running state of an in-progress iteration (spec.md
// Iteration: list/tuple/range/string/map all iterate through the same
// iter_init/iter_next pair).
type IterVal struct {
	Source  Value
	Pos     int
	RangeI  int64
	started bool // distinguishes "not yet begun" from RangeI having reached 0
}

func newObject(t ObjectType) *Object { return &Object{Type: t} }

func StrValue(s string, h *Heap) Value {
	o := newObject(ObjString)
	o.Str = s
	h.register(o)
	return Value{Kind: bytecode.TypeStr, Obj: o}
}

func TupleValue(elems []Value, h *Heap) Value {
	o := newObject(ObjTuple)
	o.Tuple = elems
	h.register(o)
	return Value{Kind: bytecode.TypeTuple, Obj: o}
}

func ListValue(elems []Value, h *Heap) Value {
	o := newObject(ObjList)
	l := append([]Value(nil), elems...)
	o.List = &l
	h.register(o)
	return Value{Kind: bytecode.TypeList, Obj: o}
}

func MapValue(keys, vals []Value, h *Heap) Value {
	o := newObject(ObjMap)
	o.MapKeys = keys
	o.MapVals = vals
	h.register(o)
	return Value{Kind: bytecode.TypeMap, Obj: o}
}

func RangeValue(r RangeVal, h *Heap) Value {
	o := newObject(ObjRange)
	o.Range = r
	h.register(o)
	return Value{Kind: bytecode.TypeRange, Obj: o}
}

func ErrorValue(inner *Value, h *Heap) Value {
	o := newObject(ObjError)
	o.ErrVal = inner
	h.register(o)
	return Value{Kind: bytecode.TypeError, Obj: o}
}

func TaggedValue(name string, inner *Value, h *Heap) Value {
	o := newObject(ObjTagged)
	o.Tag = name
	o.TagVal = inner
	h.register(o)
	return Value{Kind: bytecode.TypeTagged, Obj: o}
}

func FuncValue(f *FuncVal, h *Heap) Value {
	o := newObject(ObjFunc)
	o.Func = f
	h.register(o)
	return Value{Kind: bytecode.TypeFunc, Obj: o}
}

func IterValue(it *IterVal, h *Heap) Value {
	o := newObject(ObjIter)
	o.Iter = it
	h.register(o)
	return Value{Kind: bytecode.TypeIter, Obj: o}
}
