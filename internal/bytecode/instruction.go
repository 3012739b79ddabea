package bytecode

// Ref is an opaque 32-bit identifier naming either a VM register in the
// current frame, or (by convention at the use site) an offset into the
// shared extra-operand pool. See spec.md §3.
type Ref uint32

// TypeTag enumerates the type-check targets of `is`/`as` (data.bin_ty.ty).
// The VM's value-kind tag enumeration (internal/vm) must match this exactly.
type TypeTag uint8

const (
	TypeNull TypeTag = iota
	TypeBool
	TypeInt
	TypeNum
	TypeStr
	TypeTuple
	TypeList
	TypeMap
	TypeRange
	TypeError
	TypeTagged
	TypeFunc
	TypeIter
)

// StrData is the `str{offset,len}` operand variant: a slice into the
// module's string pool.
type StrData struct {
	Offset uint32
	Len    uint32
}

// ExtraData is the `extra{offset,len}` operand variant: a slice into the
// module's extra-operand pool.
type ExtraData struct {
	Offset uint32
	Len    uint32
}

// RangeData is the `range{start,extra}` operand variant. The end and step
// Refs live at extra[0] and extra[1].
type RangeData struct {
	Start Ref
	Extra uint32
}

// BinData is the `bin{lhs,rhs}` operand variant used by binary operators.
type BinData struct {
	Lhs Ref
	Rhs Ref
}

// BinTyData is the `bin_ty{operand,ty}` operand variant used by `is`/`as`.
type BinTyData struct {
	Operand Ref
	Ty      TypeTag
}

// UnData is the `un{operand}` operand variant used by unary operators and
// single-operand ops (unwraps, discard, copy_un, ret, throw, ...).
type UnData struct {
	Operand Ref
}

// JumpData is the unconditional jump operand: a relative instruction offset
// (signed, but stored as the delta already resolved by the compiler).
type JumpData struct {
	Offset int32
}

// JumpCondData is the conditional-jump operand: test a Ref, then jump by
// Offset if the condition matches the opcode's polarity.
type JumpCondData struct {
	Operand Ref
	Offset  int32
}

// IterNextData carries the iterator Ref, exhaustion-jump offset, and
// destination register for OpIterNext.
type IterNextData struct {
	Iter   Ref
	Offset int32
	Dst    Ref
}

// Data is the single-variant union described in spec.md §3: exactly one
// accessor is legal per opcode, the opcode alone decides which. Keeping this
// as one struct (rather than an interface) mirrors the donor's 8-byte packed
// union while staying idiomatic Go; the struct is larger than 8 bytes but
// every instruction's `code.data` slot holds exactly one of these, which is
// the part of the design spec.md §3 actually constrains (accessor legality,
// not byte size) for a non-C target.
type Data struct {
	Primitive byte // 0=null 1=true 2=false, for OpPrimitive
	Int       int64
	Num       float64
	Str       StrData
	Extra     ExtraData
	Range     RangeData
	Bin       BinData
	BinTy     BinTyData
	Un        UnData
	Jump      JumpData
	JumpCond  JumpCondData
	IterNext  IterNextData
}

// Instruction is one (op, data) pair. Instructions are stored as parallel
// arrays in Module.Code/Module.Data for cache-friendly scans (spec.md §3);
// Instruction itself is the convenient per-index view used by the compiler
// and disassembler.
type Instruction struct {
	Op   OpCode
	Data Data
}

const (
	PrimitiveNull  byte = 0
	PrimitiveTrue  byte = 1
	PrimitiveFalse byte = 2
)
