package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleEmitAssignsSequentialIndices(t *testing.T) {
	m := NewModule("test.ql", "")
	i0 := m.Emit(OpInt, Data{Int: 7})
	i1 := m.Emit(OpAdd, Data{Bin: BinData{Lhs: 0, Rhs: 1}})
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Len(t, m.Code, 2)
	assert.Len(t, m.Data, 2)
}

func TestAddFuncRoundTripsInstrsThroughExtra(t *testing.T) {
	m := NewModule("test.ql", "")
	body := []uint32{3, 1, 4, 1, 5}
	idx := m.AddFunc(2, 0, body)
	assert.Equal(t, uint32(0), idx)
	got := m.FuncInstrs(m.Funcs[idx])
	assert.Equal(t, body, got)
}

func TestDebugInfoLineCol(t *testing.T) {
	d := NewDebugInfo("test.ql", "let x = 1\nlet y = 2\n")
	line, col := d.LineCol(0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, col = d.LineCol(10)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)
}

func TestDebugInfoSetAndOffset(t *testing.T) {
	d := NewDebugInfo("test.ql", "")
	_, ok := d.Offset(3)
	assert.False(t, ok)

	d.Set(3, 42)
	off, ok := d.Offset(3)
	require.True(t, ok)
	assert.Equal(t, 42, off)
}

func TestValidateAcceptsWellFormedBody(t *testing.T) {
	m := NewModule("test.ql", "")
	// two params (registers 0, 1), then one instruction adding them.
	idx := m.Emit(OpAdd, Data{Bin: BinData{Lhs: 0, Rhs: 1}})
	m.Debug.Set(idx, 0)
	idx2 := m.Emit(OpRet, Data{Un: UnData{Operand: Ref(2)}})
	err := m.Validate(Body{Instrs: []uint32{uint32(idx), uint32(idx2)}, Params: 2})
	assert.NoError(t, err)
}

func TestValidateRejectsForwardReferenceWithoutAJump(t *testing.T) {
	m := NewModule("test.ql", "")
	// OpAdd referencing a register produced by an instruction that comes
	// AFTER it in the body: not yet computed, must be rejected.
	idx0 := m.Emit(OpAdd, Data{Bin: BinData{Lhs: 2, Rhs: 0}})
	m.Debug.Set(idx0, 0)
	idx1 := m.Emit(OpRet, Data{Un: UnData{Operand: Ref(0)}})
	err := m.Validate(Body{Instrs: []uint32{uint32(idx0), uint32(idx1)}, Params: 1})
	assert.Error(t, err)
}
