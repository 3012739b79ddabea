// Package modfmt implements the on-disk bytecode module format, spec.md §6:
// a little-endian binary of a 4-byte magic, a version byte, the length of
// every parallel array, then those arrays verbatim.
//
// Grounded on internal/module/module.go's loader/cache pattern (the shape
// of "read a module header, then its bodies, off disk"), rewritten against
// encoding/binary for the exact layout spec.md §6 specifies. Two sections —
// NativeNames and Funcs — are appended after the six spec.md §6 names
// (main, code.op, code.data, extra, strings, debug_info.lines): both fields
// were added to Module after spec.md's on-disk format was written, but the
// VM cannot run a loaded module without them (native resolution, nested
// function bodies), so Write/Read carry them as a documented extension
// rather than silently dropping them on a round trip.
package modfmt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"quill/internal/bytecode"
)

var magic = [4]byte{'Q', 'L', 'B', 'C'}

const version byte = 1

var byteOrder = binary.LittleEndian

// Write serialises m to w in the spec.md §6 layout.
func Write(w io.Writer, m *bytecode.Module) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := bw.WriteByte(version); err != nil {
		return err
	}

	lengths := [8]uint32{
		uint32(len(m.Main)),
		uint32(len(m.Code)),
		uint32(len(m.Data)),
		uint32(len(m.Extra)),
		uint32(len(m.Strings)),
		uint32(len(m.Debug.Lines)),
		uint32(len(m.NativeNames)),
		uint32(len(m.Funcs)),
	}
	for _, n := range lengths {
		if err := binary.Write(bw, byteOrder, n); err != nil {
			return err
		}
	}

	if err := writeDebugHeader(bw, m); err != nil {
		return err
	}

	for _, idx := range m.Main {
		if err := binary.Write(bw, byteOrder, idx); err != nil {
			return err
		}
	}

	for _, op := range m.Code {
		if err := bw.WriteByte(byte(op)); err != nil {
			return err
		}
	}

	for _, d := range m.Data {
		if err := writeData(bw, d); err != nil {
			return err
		}
	}

	for _, w32 := range m.Extra {
		if err := binary.Write(bw, byteOrder, w32); err != nil {
			return err
		}
	}

	if _, err := bw.Write(m.Strings); err != nil {
		return err
	}

	if err := writeDebugLines(bw, m); err != nil {
		return err
	}

	for _, name := range m.NativeNames {
		if err := writeString(bw, name); err != nil {
			return err
		}
	}

	for _, f := range m.Funcs {
		if err := writeFuncDef(bw, f); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeDebugHeader(w io.Writer, m *bytecode.Module) error {
	if err := writeString(w, m.Debug.Path); err != nil {
		return err
	}
	return writeString(w, m.Debug.Source)
}

// writeDebugLines serialises Debug.Lines in sorted key order so that
// Compile → Write → Read → Write produces the same bytes both times, even
// though map iteration order in the first Write's source module is
// unspecified.
func writeDebugLines(w io.Writer, m *bytecode.Module) error {
	keys := make([]int, 0, len(m.Debug.Lines))
	for k := range m.Debug.Lines {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		if err := binary.Write(w, byteOrder, uint32(k)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint32(m.Debug.Lines[k])); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, byteOrder, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeFuncDef(w io.Writer, f bytecode.FuncDef) error {
	fields := [4]uint32{uint32(f.Params), uint32(f.NumCaptures), f.Instrs.Offset, f.Instrs.Len}
	for _, n := range fields {
		if err := binary.Write(w, byteOrder, n); err != nil {
			return err
		}
	}
	return nil
}

// writeData serialises every field of Data, in fixed order, regardless of
// which fields the instruction's opcode actually uses: Data is a flat
// struct holding every operand variant rather than a tagged union (see
// internal/bytecode/instruction.go), so there is no per-opcode shape to
// switch on at this layer — a uniform fixed-width record keeps Write/Read
// a straight field-by-field mirror of the struct and keeps the round trip
// exact without the module format needing to know opcode semantics.
func writeData(w io.Writer, d bytecode.Data) error {
	if err := binary.Write(w, byteOrder, d.Primitive); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Int); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Num); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Str.Offset); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Str.Len); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Extra.Offset); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Extra.Len); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Range.Start); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Range.Extra); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Bin.Lhs); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Bin.Rhs); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.BinTy.Operand); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.BinTy.Ty); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Un.Operand); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.Jump.Offset); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.JumpCond.Operand); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.JumpCond.Offset); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.IterNext.Iter); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, d.IterNext.Offset); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, d.IterNext.Dst)
}

// Read deserialises a module previously written by Write.
func Read(r io.Reader) (*bytecode.Module, error) {
	br := bufio.NewReader(r)

	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("modfmt: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("modfmt: bad magic %q, want %q", gotMagic, magic)
	}
	gotVersion, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("modfmt: %w", err)
	}
	if gotVersion != version {
		return nil, fmt.Errorf("modfmt: version %d, want %d (format compatibility requires an exact match)", gotVersion, version)
	}

	var lengths [8]uint32
	for i := range lengths {
		if err := binary.Read(br, byteOrder, &lengths[i]); err != nil {
			return nil, fmt.Errorf("modfmt: %w", err)
		}
	}
	nMain, nCode, nData, nExtra, nStrings, nDebugLines, nNatives, nFuncs := lengths[0], lengths[1], lengths[2], lengths[3], lengths[4], lengths[5], lengths[6], lengths[7]

	path, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("modfmt: %w", err)
	}
	source, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("modfmt: %w", err)
	}
	m := bytecode.NewModule(path, source)

	m.Main = make([]uint32, nMain)
	for i := range m.Main {
		if err := binary.Read(br, byteOrder, &m.Main[i]); err != nil {
			return nil, fmt.Errorf("modfmt: main[%d]: %w", i, err)
		}
	}

	m.Code = make([]bytecode.OpCode, nCode)
	for i := range m.Code {
		b, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("modfmt: code[%d]: %w", i, err)
		}
		m.Code[i] = bytecode.OpCode(b)
	}

	m.Data = make([]bytecode.Data, nData)
	for i := range m.Data {
		d, err := readData(br)
		if err != nil {
			return nil, fmt.Errorf("modfmt: data[%d]: %w", i, err)
		}
		m.Data[i] = d
	}

	m.Extra = make([]uint32, nExtra)
	for i := range m.Extra {
		if err := binary.Read(br, byteOrder, &m.Extra[i]); err != nil {
			return nil, fmt.Errorf("modfmt: extra[%d]: %w", i, err)
		}
	}

	m.Strings = make([]byte, nStrings)
	if _, err := io.ReadFull(br, m.Strings); err != nil {
		return nil, fmt.Errorf("modfmt: strings: %w", err)
	}

	for i := uint32(0); i < nDebugLines; i++ {
		var k, v uint32
		if err := binary.Read(br, byteOrder, &k); err != nil {
			return nil, fmt.Errorf("modfmt: debug line %d: %w", i, err)
		}
		if err := binary.Read(br, byteOrder, &v); err != nil {
			return nil, fmt.Errorf("modfmt: debug line %d: %w", i, err)
		}
		m.Debug.Lines[int(k)] = int(v)
	}

	m.NativeNames = make([]string, nNatives)
	for i := range m.NativeNames {
		s, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("modfmt: native[%d]: %w", i, err)
		}
		m.NativeNames[i] = s
	}

	m.Funcs = make([]bytecode.FuncDef, nFuncs)
	for i := range m.Funcs {
		f, err := readFuncDef(br)
		if err != nil {
			return nil, fmt.Errorf("modfmt: func[%d]: %w", i, err)
		}
		m.Funcs[i] = f
	}

	return m, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readFuncDef(r io.Reader) (bytecode.FuncDef, error) {
	var fields [4]uint32
	for i := range fields {
		if err := binary.Read(r, byteOrder, &fields[i]); err != nil {
			return bytecode.FuncDef{}, err
		}
	}
	return bytecode.FuncDef{
		Params:      int(fields[0]),
		NumCaptures: int(fields[1]),
		Instrs:      bytecode.ExtraData{Offset: fields[2], Len: fields[3]},
	}, nil
}

func readData(r io.Reader) (bytecode.Data, error) {
	var d bytecode.Data
	fields := []interface{}{
		&d.Primitive,
		&d.Int,
		&d.Num,
		&d.Str.Offset, &d.Str.Len,
		&d.Extra.Offset, &d.Extra.Len,
		&d.Range.Start, &d.Range.Extra,
		&d.Bin.Lhs, &d.Bin.Rhs,
		&d.BinTy.Operand, &d.BinTy.Ty,
		&d.Un.Operand,
		&d.Jump.Offset,
		&d.JumpCond.Operand, &d.JumpCond.Offset,
		&d.IterNext.Iter, &d.IterNext.Offset, &d.IterNext.Dst,
	}
	for _, f := range fields {
		if err := binary.Read(r, byteOrder, f); err != nil {
			return bytecode.Data{}, err
		}
	}
	return d, nil
}
