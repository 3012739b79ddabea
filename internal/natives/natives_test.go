package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/bytecode"
	"quill/internal/vm"
)

func newTestVM() *vm.VM {
	mod := bytecode.NewModule("test.ql", "")
	mod.Main = []uint32{}
	return vm.New(mod, New().Map(), nil)
}

func TestNewRegistersBaseSet(t *testing.T) {
	r := New()
	names := r.Names()
	assert.Contains(t, names, "print")
	assert.Contains(t, names, "println")
	assert.Contains(t, names, "typeof")
	assert.Contains(t, names, "sqrt")
	assert.Contains(t, names, "pow")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	assert.Panics(t, func() {
		r.Register("print", func(vmRef *vm.VM, args []vm.Value) (vm.Value, error) {
			return vm.Null(), nil
		})
	})
}

func TestNamesOrderMatchesRegistration(t *testing.T) {
	r := &Registry{fns: make(map[string]vm.NativeFn)}
	r.Register("a", func(*vm.VM, []vm.Value) (vm.Value, error) { return vm.Null(), nil })
	r.Register("b", func(*vm.VM, []vm.Value) (vm.Value, error) { return vm.Null(), nil })
	r.Register("c", func(*vm.VM, []vm.Value) (vm.Value, error) { return vm.Null(), nil })
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, []string{"a", "b", "c"}, r.Sorted())
}

func TestSortedIsAlphabeticalRegardlessOfRegistrationOrder(t *testing.T) {
	r := &Registry{fns: make(map[string]vm.NativeFn)}
	r.Register("zeta", func(*vm.VM, []vm.Value) (vm.Value, error) { return vm.Null(), nil })
	r.Register("alpha", func(*vm.VM, []vm.Value) (vm.Value, error) { return vm.Null(), nil })
	assert.Equal(t, []string{"zeta", "alpha"}, r.Names())
	assert.Equal(t, []string{"alpha", "zeta"}, r.Sorted())
}

func TestMathNatives(t *testing.T) {
	r := New()
	fn, ok := r.Map()["sqrt"]
	require.True(t, ok)
	v, err := fn(nil, []vm.Value{vm.Num(16)})
	require.NoError(t, err)
	assert.Equal(t, float64(4), v.F)

	pow, ok := r.Map()["pow"]
	require.True(t, ok)
	v, err = pow(nil, []vm.Value{vm.Num(2), vm.Num(10)})
	require.NoError(t, err)
	assert.Equal(t, float64(1024), v.F)
}

func TestMathNativesRejectWrongArity(t *testing.T) {
	r := New()
	fn := r.Map()["sqrt"]
	_, err := fn(nil, []vm.Value{vm.Num(1), vm.Num(2)})
	assert.Error(t, err)
}

func TestTypeofNative(t *testing.T) {
	machine := newTestVM()
	fn := New().Map()["typeof"]
	v, err := fn(machine, []vm.Value{vm.Int(5)})
	require.NoError(t, err)
	require.True(t, v.IsStr())
	assert.Equal(t, "int", v.Str())
}
