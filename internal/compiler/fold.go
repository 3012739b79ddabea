package compiler

import "math"

// foldUnary implements spec.md §4.2's compile-time law: constant folding
// must compute exactly what the VM would compute at run time, including
// overflow behaviour, so a folded program and an unfolded one always agree.
func foldUnary(op string, v CValue) (CValue, bool) {
	switch op {
	case "-":
		switch v.kind {
		case cvInt:
			if v.i == math.MinInt64 {
				return CValue{}, false // the VM's negate raises on this overflow
			}
			return cvIntValue(-v.i), true
		case cvNum:
			return cvNumValue(-v.f), true
		}
	case "!":
		if v.kind == cvBool {
			return cvBoolValue(!v.b), true
		}
	case "~":
		if v.kind == cvInt {
			return cvIntValue(^v.i), true
		}
	}
	return CValue{}, false
}

// foldBinary folds a constant binary operation, returning ok=false for any
// combination the compiler should leave to the VM (type mismatches, or
// operations whose run-time error behaviour the compiler does not want to
// duplicate, e.g. division that may trap).
func foldBinary(op string, l, r CValue) (CValue, bool) {
	switch op {
	case "+":
		return foldArith(l, r, func(a, b int64) (int64, bool) { return addOverflow(a, b) }, func(a, b float64) float64 { return a + b })
	case "-":
		return foldArith(l, r, func(a, b int64) (int64, bool) { return subOverflow(a, b) }, func(a, b float64) float64 { return a - b })
	case "*":
		return foldArith(l, r, func(a, b int64) (int64, bool) { return mulOverflow(a, b) }, func(a, b float64) float64 { return a * b })
	case "and":
		if l.kind == cvBool && r.kind == cvBool {
			return cvBoolValue(l.b && r.b), true
		}
	case "or":
		if l.kind == cvBool && r.kind == cvBool {
			return cvBoolValue(l.b || r.b), true
		}
	case "==":
		if ok, eq := foldEquality(l, r); ok {
			return cvBoolValue(eq), true
		}
	case "!=":
		if ok, eq := foldEquality(l, r); ok {
			return cvBoolValue(!eq), true
		}
	}
	return CValue{}, false
}

func foldArith(l, r CValue, ints func(a, b int64) (int64, bool), nums func(a, b float64) float64) (CValue, bool) {
	switch {
	case l.kind == cvInt && r.kind == cvInt:
		if v, ok := ints(l.i, r.i); ok {
			return cvIntValue(v), true
		}
		return CValue{}, false // would overflow; let the VM raise the run-time error
	case l.kind == cvNum && r.kind == cvNum:
		return cvNumValue(nums(l.f, r.f)), true
	case l.kind == cvInt && r.kind == cvNum:
		return cvNumValue(nums(float64(l.i), r.f)), true
	case l.kind == cvNum && r.kind == cvInt:
		return cvNumValue(nums(l.f, float64(r.i))), true
	}
	return CValue{}, false
}

func foldEquality(l, r CValue) (ok bool, eq bool) {
	if !l.isConst() || !r.isConst() {
		return false, false
	}
	switch {
	case l.kind == cvNull && r.kind == cvNull:
		return true, true
	case l.kind == cvBool && r.kind == cvBool:
		return true, l.b == r.b
	case l.kind == cvInt && r.kind == cvInt:
		return true, l.i == r.i
	case l.kind == cvNum && r.kind == cvNum:
		return true, l.f == r.f
	case l.kind == cvInt && r.kind == cvNum:
		return true, float64(l.i) == r.f
	case l.kind == cvNum && r.kind == cvInt:
		return true, l.f == float64(r.i)
	case l.kind == cvStr && r.kind == cvStr:
		return true, l.s == r.s
	}
	return false, false
}

func addOverflow(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func subOverflow(a, b int64) (int64, bool) {
	s := a - b
	if (b < 0 && s < a) || (b > 0 && s > a) {
		return 0, false
	}
	return s, true
}

func mulOverflow(a, b int64) (int64, bool) {
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
