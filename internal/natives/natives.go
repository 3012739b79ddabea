// Package natives is the Host FFI registry spec.md §6 describes: "a
// registry maps names to host callables ... native nodes compile to calls
// into this registry." The compiler predeclares every registered name as a
// reserved low register in the module's top-level frame; the VM fills those
// registers from this registry's Map() before running a module (see
// internal/vm.VM.Run).
//
// Grounded on internal/vmregister/stdlib.go's registerGlobal/NativeFnObj
// pattern: one name, one arity-checked Go closure, registered into an
// ordered table the VM consults at startup.
package natives

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"quill/internal/vm"
)

// Registry collects native callables in registration order: order matters
// because it is also compile-register order (spec.md §6 Host FFI), so the
// same Registry built twice from the same registration calls must produce
// the same Names() order for a compiled module to keep matching its
// natives on reload.
type Registry struct {
	names []string
	fns   map[string]vm.NativeFn
}

// New returns a Registry populated with this module's base callables
// (println/print/the math and type-introspection set the teacher exposes
// as globals) plus whatever domain registrars the caller wires in.
func New() *Registry {
	r := &Registry{fns: make(map[string]vm.NativeFn)}
	registerBase(r)
	return r
}

// Register adds name -> fn, panicking on a duplicate name: natives are
// wired once at startup by this module's own code, never by scripts, so a
// collision is a programming error, not a runtime condition to recover from.
func (r *Registry) Register(name string, fn vm.NativeFn) {
	if _, exists := r.fns[name]; exists {
		panic(fmt.Sprintf("natives: duplicate registration for %q", name))
	}
	r.names = append(r.names, name)
	r.fns[name] = fn
}

// Names returns every registered name in registration order, the slice
// internal/bytecode.Module.NativeNames is built from.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Map returns the name -> callable table vm.VM.Natives is built from.
func (r *Registry) Map() map[string]vm.NativeFn {
	return r.fns
}

// Sorted reports the registered names in alphabetical order, used only by
// `quill debug:dump` and similar introspection surfaces that want a stable
// listing independent of registration order.
func (r *Registry) Sorted() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}

func registerBase(r *Registry) {
	r.Register("print", nativePrint)
	r.Register("println", nativePrintln)
	r.Register("typeof", nativeTypeof)

	r.Register("abs", mathFn1(math.Abs))
	r.Register("sqrt", mathFn1(math.Sqrt))
	r.Register("floor", mathFn1(math.Floor))
	r.Register("ceil", mathFn1(math.Ceil))
	r.Register("round", mathFn1(math.Round))

	r.Register("pow", func(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
		a, b, err := num2(args)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Num(math.Pow(a, b)), nil
	})
	r.Register("min", func(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
		a, b, err := num2(args)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Num(math.Min(a, b)), nil
	})
	r.Register("max", func(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
		a, b, err := num2(args)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Num(math.Max(a, b)), nil
	})
}

func mathFn1(fn func(float64) float64) vm.NativeFn {
	return func(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
		n, err := num1(args)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Num(fn(n)), nil
	}
}

func asFloat(v vm.Value) (float64, bool) {
	switch {
	case v.IsInt():
		return float64(v.I), true
	case v.IsNum():
		return v.F, true
	default:
		return 0, false
	}
}

func num1(args []vm.Value) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expects 1 argument, got %d", len(args))
	}
	n, ok := asFloat(args[0])
	if !ok {
		return 0, fmt.Errorf("expects a numeric argument")
	}
	return n, nil
}

func num2(args []vm.Value) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expects 2 arguments, got %d", len(args))
	}
	a, ok := asFloat(args[0])
	if !ok {
		return 0, 0, fmt.Errorf("expects a numeric argument")
	}
	b, ok := asFloat(args[1])
	if !ok {
		return 0, 0, fmt.Errorf("expects a numeric argument")
	}
	return a, b, nil
}

func nativePrint(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vmRef.Display(a)
	}
	fmt.Print(strings.Join(parts, " "))
	return vm.Null(), nil
}

func nativePrintln(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vmRef.Display(a)
	}
	fmt.Println(strings.Join(parts, " "))
	return vm.Null(), nil
}

func nativeTypeof(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		return vm.Value{}, fmt.Errorf("typeof expects 1 argument, got %d", len(args))
	}
	return vm.StrValue(vmRef.TypeName(args[0]), vmRef.Heap), nil
}
