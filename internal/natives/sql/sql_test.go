package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/bytecode"
	"quill/internal/vm"
)

func newTestVM() *vm.VM {
	mod := bytecode.NewModule("test.ql", "")
	return vm.New(mod, map[string]vm.NativeFn{}, nil)
}

func TestValueToGoConversions(t *testing.T) {
	assert.Nil(t, valueToGo(vm.Null()))
	assert.Equal(t, true, valueToGo(vm.Bool(true)))
	assert.Equal(t, int64(7), valueToGo(vm.Int(7)))
	assert.Equal(t, float64(1.5), valueToGo(vm.Num(1.5)))

	machine := newTestVM()
	assert.Equal(t, "hi", valueToGo(vm.StrValue("hi", machine.Heap)))
}

func TestGoToValueConversions(t *testing.T) {
	machine := newTestVM()
	assert.True(t, goToValue(nil, machine).IsNull())

	b := goToValue(true, machine)
	require.True(t, b.IsBool())

	i := goToValue(int64(42), machine)
	require.True(t, i.IsInt())
	assert.Equal(t, int64(42), i.Int64())

	s := goToValue("hello", machine)
	require.True(t, s.IsStr())
	assert.Equal(t, "hello", s.Str())

	bs := goToValue([]byte("bytes"), machine)
	require.True(t, bs.IsStr())
	assert.Equal(t, "bytes", bs.Str())
}

func TestArgStrAndArgIntValidateKind(t *testing.T) {
	machine := newTestVM()
	args := []vm.Value{vm.StrValue("sqlite3", machine.Heap), vm.Int(5)}

	s, err := argStr(args, 0)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", s)

	_, err = argStr(args, 1)
	assert.Error(t, err, "argStr must reject a non-str value")

	n, err := argInt(args, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = argInt(args, 0)
	assert.Error(t, err, "argInt must reject a non-int value")

	_, err = argStr(args, 5)
	assert.Error(t, err, "argStr must reject an out-of-range index")
}

func TestDbOpenQueryExecCloseAgainstSQLite(t *testing.T) {
	machine := newTestVM()

	openV, err := dbOpen(machine, []vm.Value{
		vm.StrValue("sqlite3", machine.Heap),
		vm.StrValue(":memory:", machine.Heap),
	})
	require.NoError(t, err)
	require.True(t, openV.IsInt())

	_, err = dbExec(machine, []vm.Value{openV, vm.StrValue("create table t (id integer, name text)", machine.Heap)})
	require.NoError(t, err)

	n, err := dbExec(machine, []vm.Value{
		openV,
		vm.StrValue("insert into t (id, name) values (?, ?)", machine.Heap),
		vm.Int(1),
		vm.StrValue("quill", machine.Heap),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Int64())

	rows, err := dbQuery(machine, []vm.Value{openV, vm.StrValue("select id, name from t", machine.Heap)})
	require.NoError(t, err)
	require.True(t, rows.IsList())

	_, err = dbClose(machine, []vm.Value{openV})
	require.NoError(t, err)
}
