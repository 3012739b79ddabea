package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"quill/internal/bytecode"
)

// thrown is the value carried by a raised quill error as it unwinds Go's own
// call stack; execFrame intercepts it at every fallible instruction to check
// the current frame's handler stack before letting it propagate further
// (spec.md §4.2's "error-handler stack" scan).
type thrown struct{ val Value }

func (t *thrown) Error() string { return "quill: uncaught error" }

func (vm *VM) newErrV(msg string) Value {
	s := StrValue(msg, vm.Heap)
	return ErrorValue(&s, vm.Heap)
}

// typeErr raises a catchable error carrying msg, the VM's uniform response
// to a run-time type/shape mismatch (spec.md §7's non-fatal error path).
func (vm *VM) typeErr(msg string) error {
	return &thrown{val: vm.newErrV(msg)}
}

func addOverflowVM(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func subOverflowVM(a, b int64) (int64, bool) {
	s := a - b
	if (b < 0 && s < a) || (b > 0 && s > a) {
		return 0, false
	}
	return s, true
}

func mulOverflowVM(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (vm *VM) asFloats(l, r Value) (float64, float64, bool) {
	lf, ok1 := asFloat(l)
	rf, ok2 := asFloat(r)
	return lf, rf, ok1 && ok2
}

func asFloat(v Value) (float64, bool) {
	switch v.Kind {
	case bytecode.TypeInt:
		return float64(v.I), true
	case bytecode.TypeNum:
		return v.F, true
	}
	return 0, false
}

func (vm *VM) numericOp(l, r Value, ints func(a, b int64) (int64, bool), nums func(a, b float64) float64) (Value, error) {
	switch {
	case l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeInt:
		v, ok := ints(l.I, r.I)
		if !ok {
			return Value{}, vm.typeErr("integer overflow")
		}
		return Int(v), nil
	case l.Kind == bytecode.TypeNum && r.Kind == bytecode.TypeNum:
		return Num(nums(l.F, r.F)), nil
	case l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeNum:
		return Num(nums(float64(l.I), r.F)), nil
	case l.Kind == bytecode.TypeNum && r.Kind == bytecode.TypeInt:
		return Num(nums(l.F, float64(r.I))), nil
	}
	return Value{}, vm.typeErr("arithmetic requires two numbers")
}

// arith implements spec.md §4.3's arithmetic family, mirroring
// internal/compiler/fold.go's checked-overflow semantics exactly so a folded
// constant expression and its unfolded run-time equivalent always agree.
func (vm *VM) arith(op bytecode.OpCode, l, r Value) (Value, error) {
	switch op {
	case bytecode.OpAdd:
		if l.Kind == bytecode.TypeStr && r.Kind == bytecode.TypeStr {
			return StrValue(l.Obj.Str+r.Obj.Str, vm.Heap), nil
		}
		if l.Kind == bytecode.TypeList && r.Kind == bytecode.TypeList {
			out := append(append([]Value(nil), *l.Obj.List...), *r.Obj.List...)
			return ListValue(out, vm.Heap), nil
		}
		return vm.numericOp(l, r, addOverflowVM, func(a, b float64) float64 { return a + b })
	case bytecode.OpSub:
		return vm.numericOp(l, r, subOverflowVM, func(a, b float64) float64 { return a - b })
	case bytecode.OpMul:
		return vm.numericOp(l, r, mulOverflowVM, func(a, b float64) float64 { return a * b })
	case bytecode.OpDiv:
		lf, rf, ok := vm.asFloats(l, r)
		if !ok {
			return Value{}, vm.typeErr("/ requires numbers")
		}
		if rf == 0 {
			return Value{}, vm.typeErr("division by zero")
		}
		return Num(lf / rf), nil
	case bytecode.OpDivFloor:
		if l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeInt {
			if r.I == 0 {
				return Value{}, vm.typeErr("division by zero")
			}
			return Int(floorDiv(l.I, r.I)), nil
		}
		lf, rf, ok := vm.asFloats(l, r)
		if !ok {
			return Value{}, vm.typeErr("// requires numbers")
		}
		if rf == 0 {
			return Value{}, vm.typeErr("division by zero")
		}
		return Num(math.Floor(lf / rf)), nil
	case bytecode.OpRem:
		if l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeInt {
			if r.I == 0 {
				return Value{}, vm.typeErr("division by zero")
			}
			return Int(l.I % r.I), nil
		}
		lf, rf, ok := vm.asFloats(l, r)
		if !ok {
			return Value{}, vm.typeErr("%% requires numbers")
		}
		return Num(math.Mod(lf, rf)), nil
	case bytecode.OpPow:
		lf, rf, ok := vm.asFloats(l, r)
		if !ok {
			return Value{}, vm.typeErr("** requires numbers")
		}
		return Num(math.Pow(lf, rf)), nil
	}
	return Value{}, vm.typeErr("unsupported arithmetic operator")
}

func (vm *VM) bitwise(op bytecode.OpCode, l, r Value) (Value, error) {
	if l.Kind != bytecode.TypeInt || r.Kind != bytecode.TypeInt {
		return Value{}, vm.typeErr("bitwise operators require ints")
	}
	switch op {
	case bytecode.OpLShift:
		return Int(l.I << uint(r.I)), nil
	case bytecode.OpRShift:
		return Int(l.I >> uint(r.I)), nil
	case bytecode.OpBitAnd:
		return Int(l.I & r.I), nil
	case bytecode.OpBitOr:
		return Int(l.I | r.I), nil
	case bytecode.OpBitXor:
		return Int(l.I ^ r.I), nil
	}
	return Value{}, vm.typeErr("unsupported bitwise operator")
}

func (vm *VM) compare(op bytecode.OpCode, l, r Value) (Value, error) {
	var cmp int
	switch {
	case (l.Kind == bytecode.TypeInt || l.Kind == bytecode.TypeNum) && (r.Kind == bytecode.TypeInt || r.Kind == bytecode.TypeNum):
		lf, _ := asFloat(l)
		rf, _ := asFloat(r)
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case l.Kind == bytecode.TypeStr && r.Kind == bytecode.TypeStr:
		cmp = strings.Compare(l.Obj.Str, r.Obj.Str)
	default:
		return Value{}, vm.typeErr("comparison requires two numbers or two strings")
	}
	switch op {
	case bytecode.OpLessThan:
		return Bool(cmp < 0), nil
	case bytecode.OpLessThanEqual:
		return Bool(cmp <= 0), nil
	case bytecode.OpGreaterThan:
		return Bool(cmp > 0), nil
	case bytecode.OpGreaterThanEqual:
		return Bool(cmp >= 0), nil
	}
	return Value{}, vm.typeErr("unsupported comparison operator")
}

// valuesEqual implements spec.md §4.3's structural equality: aggregates
// compare element-by-element rather than by identity.
func valuesEqual(l, r Value) bool {
	switch {
	case l.Kind == bytecode.TypeNull && r.Kind == bytecode.TypeNull:
		return true
	case l.Kind == bytecode.TypeBool && r.Kind == bytecode.TypeBool:
		return l.I == r.I
	case l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeInt:
		return l.I == r.I
	case l.Kind == bytecode.TypeNum && r.Kind == bytecode.TypeNum:
		return l.F == r.F
	case l.Kind == bytecode.TypeInt && r.Kind == bytecode.TypeNum:
		return float64(l.I) == r.F
	case l.Kind == bytecode.TypeNum && r.Kind == bytecode.TypeInt:
		return l.F == float64(r.I)
	case l.Kind == bytecode.TypeStr && r.Kind == bytecode.TypeStr:
		return l.Obj.Str == r.Obj.Str
	case l.Kind == bytecode.TypeTuple && r.Kind == bytecode.TypeTuple:
		return sliceEqual(l.Obj.Tuple, r.Obj.Tuple)
	case l.Kind == bytecode.TypeList && r.Kind == bytecode.TypeList:
		return sliceEqual(*l.Obj.List, *r.Obj.List)
	case l.Kind == bytecode.TypeMap && r.Kind == bytecode.TypeMap:
		return mapEqual(l.Obj, r.Obj)
	case l.Kind == bytecode.TypeTagged && r.Kind == bytecode.TypeTagged:
		if l.Obj.Tag != r.Obj.Tag {
			return false
		}
		return optValueEqual(l.Obj.TagVal, r.Obj.TagVal)
	case l.Kind == bytecode.TypeError && r.Kind == bytecode.TypeError:
		return optValueEqual(l.Obj.ErrVal, r.Obj.ErrVal)
	case l.Kind == bytecode.TypeRange && r.Kind == bytecode.TypeRange:
		return l.Obj.Range == r.Obj.Range
	case l.Kind == bytecode.TypeFunc && r.Kind == bytecode.TypeFunc:
		return l.Obj == r.Obj
	}
	return false
}

func optValueEqual(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return valuesEqual(*a, *b)
}

func sliceEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func mapEqual(a, b *Object) bool {
	if len(a.MapKeys) != len(b.MapKeys) {
		return false
	}
	for i, k := range a.MapKeys {
		j := mapFind(b, k)
		if j < 0 || !valuesEqual(a.MapVals[i], b.MapVals[j]) {
			return false
		}
	}
	return true
}

func mapFind(o *Object, key Value) int {
	return mapFindKeys(o.MapKeys, key)
}

// mapFindKeys returns the index of key within keys, or -1. Used by
// build_map to dedup a map literal's pairs: duplicate keys resolve to the
// last write while keeping the first occurrence's position (spec.md:143).
func mapFindKeys(keys []Value, key Value) int {
	for i, k := range keys {
		if valuesEqual(k, key) {
			return i
		}
	}
	return -1
}

func (vm *VM) inOp(needle, hay Value) (Value, error) {
	switch hay.Kind {
	case bytecode.TypeList:
		for _, v := range *hay.Obj.List {
			if valuesEqual(v, needle) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case bytecode.TypeTuple:
		for _, v := range hay.Obj.Tuple {
			if valuesEqual(v, needle) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case bytecode.TypeMap:
		return Bool(mapFind(hay.Obj, needle) >= 0), nil
	case bytecode.TypeStr:
		if needle.Kind != bytecode.TypeStr {
			return Value{}, vm.typeErr("in on a string requires a string needle")
		}
		return Bool(strings.Contains(hay.Obj.Str, needle.Obj.Str)), nil
	case bytecode.TypeRange:
		if needle.Kind != bytecode.TypeInt {
			return Value{}, vm.typeErr("in on a range requires an int needle")
		}
		return Bool(rangeContains(hay.Obj.Range, needle.I)), nil
	}
	return Value{}, vm.typeErr("in requires a list, tuple, map, string, or range")
}

func rangeContains(r RangeVal, n int64) bool {
	if r.Step == 0 {
		return false
	}
	if r.Step > 0 {
		if n < r.Start {
			return false
		}
		if r.Inclusive {
			if n > r.End {
				return false
			}
		} else if n >= r.End {
			return false
		}
	} else {
		if n > r.Start {
			return false
		}
		if r.Inclusive {
			if n < r.End {
				return false
			}
		} else if n <= r.End {
			return false
		}
	}
	return (n-r.Start)%r.Step == 0
}

func (vm *VM) seqLen(v Value) (int, error) {
	switch v.Kind {
	case bytecode.TypeList:
		return len(*v.Obj.List), nil
	case bytecode.TypeTuple:
		return len(v.Obj.Tuple), nil
	}
	return 0, vm.typeErr("destructuring requires a list or tuple")
}

func (vm *VM) readRefs(fr *Frame, ed bytecode.ExtraData) []Value {
	words := vm.Mod.ExtraSlice(ed.Offset, ed.Len)
	out := make([]Value, len(words))
	for i, w := range words {
		out[i] = fr.get(bytecode.Ref(w))
	}
	return out
}

func (vm *VM) getIndex(obj, idx Value, orNull bool) (Value, error) {
	miss := func() (Value, error) {
		if orNull {
			return Null(), nil
		}
		return Value{}, vm.typeErr("index out of range or key not found")
	}
	switch obj.Kind {
	case bytecode.TypeList:
		if idx.Kind != bytecode.TypeInt {
			return Value{}, vm.typeErr("list index must be an int")
		}
		l := *obj.Obj.List
		if idx.I < 0 || idx.I >= int64(len(l)) {
			return miss()
		}
		return l[idx.I], nil
	case bytecode.TypeTuple:
		if idx.Kind != bytecode.TypeInt {
			return Value{}, vm.typeErr("tuple index must be an int")
		}
		t := obj.Obj.Tuple
		if idx.I < 0 || idx.I >= int64(len(t)) {
			return miss()
		}
		return t[idx.I], nil
	case bytecode.TypeMap:
		if j := mapFind(obj.Obj, idx); j >= 0 {
			return obj.Obj.MapVals[j], nil
		}
		return miss()
	case bytecode.TypeStr:
		if idx.Kind != bytecode.TypeInt {
			return Value{}, vm.typeErr("string index must be an int")
		}
		runes := []rune(obj.Obj.Str)
		if idx.I < 0 || idx.I >= int64(len(runes)) {
			return miss()
		}
		return StrValue(string(runes[idx.I]), vm.Heap), nil
	case bytecode.TypeRange:
		if idx.Kind != bytecode.TypeInt {
			return Value{}, vm.typeErr("range index must be an int")
		}
		n, ok := rangeNth(obj.Obj.Range, idx.I)
		if !ok {
			return miss()
		}
		return Int(n), nil
	}
	return Value{}, vm.typeErr("value is not indexable")
}

func rangeNth(r RangeVal, i int64) (int64, bool) {
	if r.Step == 0 || i < 0 {
		return 0, false
	}
	v := r.Start + i*r.Step
	if !rangeContains(r, v) {
		return 0, false
	}
	return v, true
}

func (vm *VM) setIndex(obj, idx, val Value) error {
	switch obj.Kind {
	case bytecode.TypeList:
		if idx.Kind != bytecode.TypeInt {
			return vm.typeErr("list index must be an int")
		}
		l := *obj.Obj.List
		if idx.I < 0 || idx.I >= int64(len(l)) {
			return vm.typeErr("list index out of range")
		}
		l[idx.I] = val
		return nil
	case bytecode.TypeMap:
		if j := mapFind(obj.Obj, idx); j >= 0 {
			obj.Obj.MapVals[j] = val
			return nil
		}
		obj.Obj.MapKeys = append(obj.Obj.MapKeys, idx)
		obj.Obj.MapVals = append(obj.Obj.MapVals, val)
		return nil
	}
	return vm.typeErr("value does not support indexed assignment")
}

func (vm *VM) appendList(listV, val Value) error {
	if listV.Kind != bytecode.TypeList {
		return vm.typeErr("append requires a list")
	}
	*listV.Obj.List = append(*listV.Obj.List, val)
	return nil
}

func (vm *VM) negate(v Value) (Value, error) {
	switch v.Kind {
	case bytecode.TypeInt:
		if v.I == math.MinInt64 {
			return Value{}, vm.typeErr("integer overflow")
		}
		return Int(-v.I), nil
	case bytecode.TypeNum:
		return Num(-v.F), nil
	}
	return Value{}, vm.typeErr("negation requires a number")
}

// asType implements spec.md's `as` conversions; unreachable conversions
// raise a catchable error rather than a zero value, so a failed parse is
// observable to `try`/`catch`.
func (vm *VM) asType(v Value, ty bytecode.TypeTag) (Value, error) {
	if v.Kind == ty {
		return v, nil
	}
	switch ty {
	case bytecode.TypeInt:
		switch v.Kind {
		case bytecode.TypeNum:
			return Int(int64(v.F)), nil
		case bytecode.TypeBool:
			return Int(v.I), nil
		case bytecode.TypeStr:
			n, err := strconv.ParseInt(strings.TrimSpace(v.Obj.Str), 10, 64)
			if err != nil {
				return Value{}, vm.typeErr(fmt.Sprintf("cannot convert %q to int", v.Obj.Str))
			}
			return Int(n), nil
		}
	case bytecode.TypeNum:
		switch v.Kind {
		case bytecode.TypeInt:
			return Num(float64(v.I)), nil
		case bytecode.TypeStr:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Obj.Str), 64)
			if err != nil {
				return Value{}, vm.typeErr(fmt.Sprintf("cannot convert %q to num", v.Obj.Str))
			}
			return Num(f), nil
		}
	case bytecode.TypeStr:
		return StrValue(vm.display(v), vm.Heap), nil
	case bytecode.TypeBool:
		return Bool(v.Truthy()), nil
	}
	return Value{}, vm.typeErr(fmt.Sprintf("cannot convert value to the requested type"))
}

// display renders v for `as str` and for uncaught-error reporting
// (internal/diag formats the final message; this is the value-to-text core).
func (vm *VM) display(v Value) string {
	switch v.Kind {
	case bytecode.TypeNull:
		return "null"
	case bytecode.TypeBool:
		return strconv.FormatBool(v.I != 0)
	case bytecode.TypeInt:
		return strconv.FormatInt(v.I, 10)
	case bytecode.TypeNum:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case bytecode.TypeStr:
		return v.Obj.Str
	case bytecode.TypeTuple:
		parts := make([]string, len(v.Obj.Tuple))
		for i, e := range v.Obj.Tuple {
			parts[i] = vm.display(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case bytecode.TypeList:
		parts := make([]string, len(*v.Obj.List))
		for i, e := range *v.Obj.List {
			parts[i] = vm.display(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case bytecode.TypeMap:
		parts := make([]string, len(v.Obj.MapKeys))
		for i, k := range v.Obj.MapKeys {
			parts[i] = vm.display(k) + ": " + vm.display(v.Obj.MapVals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case bytecode.TypeRange:
		sym := ".."
		if v.Obj.Range.Inclusive {
			sym = "..="
		}
		return fmt.Sprintf("%d%s%d", v.Obj.Range.Start, sym, v.Obj.Range.End)
	case bytecode.TypeError:
		if v.Obj.ErrVal == nil {
			return "error"
		}
		return "error(" + vm.display(*v.Obj.ErrVal) + ")"
	case bytecode.TypeTagged:
		if v.Obj.TagVal == nil {
			return v.Obj.Tag
		}
		return v.Obj.Tag + "(" + vm.display(*v.Obj.TagVal) + ")"
	case bytecode.TypeFunc:
		return "<function>"
	case bytecode.TypeIter:
		return "<iterator>"
	}
	return "<unknown>"
}

func (vm *VM) newIter(src Value) (*IterVal, error) {
	switch src.Kind {
	case bytecode.TypeList, bytecode.TypeTuple, bytecode.TypeRange, bytecode.TypeStr, bytecode.TypeMap:
		return &IterVal{Source: src}, nil
	}
	return nil, vm.typeErr("value is not iterable")
}

// iterNext advances it in place and reports whether a value was produced.
func (vm *VM) iterNext(itv Value) (Value, bool) {
	it := itv.Obj.Iter
	switch it.Source.Kind {
	case bytecode.TypeList:
		l := *it.Source.Obj.List
		if it.Pos >= len(l) {
			return Value{}, false
		}
		v := l[it.Pos]
		it.Pos++
		return v, true
	case bytecode.TypeTuple:
		t := it.Source.Obj.Tuple
		if it.Pos >= len(t) {
			return Value{}, false
		}
		v := t[it.Pos]
		it.Pos++
		return v, true
	case bytecode.TypeMap:
		if it.Pos >= len(it.Source.Obj.MapKeys) {
			return Value{}, false
		}
		k := it.Source.Obj.MapKeys[it.Pos]
		v := it.Source.Obj.MapVals[it.Pos]
		it.Pos++
		return TupleValue([]Value{k, v}, vm.Heap), true
	case bytecode.TypeStr:
		runes := []rune(it.Source.Obj.Str)
		if it.Pos >= len(runes) {
			return Value{}, false
		}
		v := StrValue(string(runes[it.Pos]), vm.Heap)
		it.Pos++
		return v, true
	case bytecode.TypeRange:
		r := it.Source.Obj.Range
		if !it.started {
			it.started = true
			it.RangeI = r.Start
			if !rangeContains(r, it.RangeI) {
				return Value{}, false
			}
			v := it.RangeI
			it.RangeI += r.Step
			return Int(v), true
		}
		if r.Step == 0 || !rangeContains(r, it.RangeI) {
			return Value{}, false
		}
		v := it.RangeI
		it.RangeI += r.Step
		return Int(v), true
	}
	return Value{}, false
}

// thisCall dispatches the small set of built-in methods this CORE predefines
// on its aggregate kinds (spec.md leaves "standard library" to the host, but
// a handful of shape operations — len, push, keys — are needed by any
// non-trivial script and have no other opcode to reach them).
func (vm *VM) thisCall(obj Value, method string, args []Value) (Value, error) {
	switch obj.Kind {
	case bytecode.TypeList:
		return vm.listMethod(obj, method, args)
	case bytecode.TypeMap:
		return vm.mapMethod(obj, method, args)
	case bytecode.TypeStr:
		return vm.strMethod(obj, method, args)
	case bytecode.TypeRange:
		if method == "len" {
			return Int(rangeLen(obj.Obj.Range)), nil
		}
	case bytecode.TypeError:
		if method == "message" || method == "unwrap" {
			if obj.Obj.ErrVal == nil {
				return Null(), nil
			}
			return *obj.Obj.ErrVal, nil
		}
	case bytecode.TypeTagged:
		switch method {
		case "tag":
			return StrValue(obj.Obj.Tag, vm.Heap), nil
		case "unwrap":
			if obj.Obj.TagVal == nil {
				return Null(), nil
			}
			return *obj.Obj.TagVal, nil
		}
	}
	return Value{}, vm.typeErr(fmt.Sprintf("no method %q on this value", method))
}

func rangeLen(r RangeVal) int64 {
	if r.Step == 0 {
		return 0
	}
	span := r.End - r.Start
	if r.Inclusive {
		n := span/r.Step + 1
		if n < 0 {
			return 0
		}
		return n
	}
	n := span / r.Step
	if span%r.Step != 0 && (span > 0) == (r.Step > 0) {
		n++
	}
	if n < 0 {
		return 0
	}
	return n
}

func (vm *VM) listMethod(obj Value, method string, args []Value) (Value, error) {
	l := obj.Obj.List
	switch method {
	case "len", "length":
		return Int(int64(len(*l))), nil
	case "push", "append":
		*l = append(*l, args...)
		return Null(), nil
	case "pop":
		if len(*l) == 0 {
			return Value{}, vm.typeErr("pop on an empty list")
		}
		v := (*l)[len(*l)-1]
		*l = (*l)[:len(*l)-1]
		return v, nil
	case "sort":
		sorted := append([]Value(nil), *l...)
		sort.SliceStable(sorted, func(i, j int) bool {
			v, _ := vm.compare(bytecode.OpLessThan, sorted[i], sorted[j])
			return v.Truthy()
		})
		return ListValue(sorted, vm.Heap), nil
	case "reverse":
		out := make([]Value, len(*l))
		for i, v := range *l {
			out[len(out)-1-i] = v
		}
		return ListValue(out, vm.Heap), nil
	}
	return Value{}, vm.typeErr(fmt.Sprintf("no list method %q", method))
}

func (vm *VM) mapMethod(obj Value, method string, args []Value) (Value, error) {
	switch method {
	case "len", "length":
		return Int(int64(len(obj.Obj.MapKeys))), nil
	case "keys":
		return ListValue(append([]Value(nil), obj.Obj.MapKeys...), vm.Heap), nil
	case "values":
		return ListValue(append([]Value(nil), obj.Obj.MapVals...), vm.Heap), nil
	case "has":
		if len(args) != 1 {
			return Value{}, vm.typeErr("has requires one argument")
		}
		return Bool(mapFind(obj.Obj, args[0]) >= 0), nil
	}
	if j := mapFind(obj.Obj, StrValue(method, vm.Heap)); j >= 0 && obj.Obj.MapVals[j].Kind == bytecode.TypeFunc {
		return vm.call(obj.Obj.MapVals[j], args)
	}
	return Value{}, vm.typeErr(fmt.Sprintf("no map method %q", method))
}

func (vm *VM) strMethod(obj Value, method string, args []Value) (Value, error) {
	s := obj.Obj.Str
	switch method {
	case "len", "length":
		return Int(int64(utf8.RuneCountInString(s))), nil
	case "upper":
		return StrValue(strings.ToUpper(s), vm.Heap), nil
	case "lower":
		return StrValue(strings.ToLower(s), vm.Heap), nil
	case "trim":
		return StrValue(strings.TrimSpace(s), vm.Heap), nil
	case "contains":
		if len(args) != 1 || args[0].Kind != bytecode.TypeStr {
			return Value{}, vm.typeErr("contains requires a string argument")
		}
		return Bool(strings.Contains(s, args[0].Obj.Str)), nil
	case "split":
		if len(args) != 1 || args[0].Kind != bytecode.TypeStr {
			return Value{}, vm.typeErr("split requires a string argument")
		}
		parts := strings.Split(s, args[0].Obj.Str)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = StrValue(p, vm.Heap)
		}
		return ListValue(out, vm.Heap), nil
	}
	return Value{}, vm.typeErr(fmt.Sprintf("no string method %q", method))
}

func (vm *VM) loadProperty(obj Value, name string) (Value, error) {
	switch obj.Kind {
	case bytecode.TypeMap:
		if j := mapFind(obj.Obj, StrValue(name, vm.Heap)); j >= 0 {
			return obj.Obj.MapVals[j], nil
		}
		return Null(), nil
	case bytecode.TypeTagged:
		switch name {
		case "tag":
			return StrValue(obj.Obj.Tag, vm.Heap), nil
		case "value":
			if obj.Obj.TagVal == nil {
				return Null(), nil
			}
			return *obj.Obj.TagVal, nil
		}
	case bytecode.TypeError:
		if name == "message" {
			if obj.Obj.ErrVal == nil {
				return Null(), nil
			}
			return *obj.Obj.ErrVal, nil
		}
	case bytecode.TypeRange:
		switch name {
		case "start":
			return Int(obj.Obj.Range.Start), nil
		case "end":
			return Int(obj.Obj.Range.End), nil
		case "step":
			return Int(obj.Obj.Range.Step), nil
		}
	}
	return Value{}, vm.typeErr(fmt.Sprintf("no property %q on this value", name))
}
