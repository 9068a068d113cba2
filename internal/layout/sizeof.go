package layout

import "github.com/llir/llvm/ir/types"

// PointerSize is the assumed pointer width in bytes. The transform targets
// an LP64-like data layout; a real deployment would thread this in from the
// host module's "target datalayout" string, but llir/llvm does not parse
// that string into a queryable model, so a fixed width is used here (see
// DESIGN.md).
const PointerSize = 8

// SizeOf returns the allocation size, in bytes, of t under the assumed data
// layout. Returns 0 for opaque structs and other unsized types.
func SizeOf(t types.Type) int {
	switch v := t.(type) {
	case *types.VoidType:
		return 0
	case *types.IntType:
		return int((v.BitSize + 7) / 8)
	case *types.FloatType:
		switch v.Kind {
		case types.FloatKindFloat:
			return 4
		case types.FloatKindDouble:
			return 8
		default:
			return 8
		}
	case *types.PointerType:
		return PointerSize
	case *types.ArrayType:
		return int(v.Len) * SizeOf(v.ElemType)
	case *types.StructType:
		return structSize(v)
	case *types.FuncType:
		return 0
	default:
		return 0
	}
}

// AlignOf returns the natural alignment, in bytes, of t.
func AlignOf(t types.Type) int {
	switch v := t.(type) {
	case *types.IntType:
		n := int((v.BitSize + 7) / 8)
		return nextPow2Cap(n, PointerSize)
	case *types.FloatType:
		return SizeOf(t)
	case *types.PointerType:
		return PointerSize
	case *types.ArrayType:
		return AlignOf(v.ElemType)
	case *types.StructType:
		return structAlign(v)
	default:
		return 1
	}
}

func nextPow2Cap(n, cap int) int {
	if n <= 1 {
		return 1
	}
	a := 1
	for a < n {
		a = a * 2
	}
	if a > cap {
		return cap
	}
	return a
}

// structAlign is the alignment of the widest member, or 1 for an empty or
// opaque struct.
func structAlign(st *types.StructType) int {
	if st.Opaque || len(st.Fields) == 0 {
		return 1
	}
	align := 1
	for _, f := range st.Fields {
		if a := AlignOf(f); a > align {
			align = a
		}
	}
	return align
}

// structSize walks fields in order, inserting alignment padding before each
// field and rounding the final size up to the struct's own alignment.
// Opaque structs have no known size and report 0 (see spec §9).
func structSize(st *types.StructType) int {
	if st.Opaque {
		return 0
	}
	offset := 0
	for _, f := range st.Fields {
		a := AlignOf(f)
		offset = alignUp(offset, a)
		offset += SizeOf(f)
	}
	return alignUp(offset, structAlign(st))
}

func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	rem := n % a
	if rem == 0 {
		return n
	}
	return n + (a - rem)
}

// FieldOffset returns the byte offset of field index i within st's original
// (un-inflated) layout, computed with the same padding rule as structSize.
func FieldOffset(st *types.StructType, i int) int {
	offset := 0
	for idx, f := range st.Fields {
		a := AlignOf(f)
		offset = alignUp(offset, a)
		if idx == i {
			return offset
		}
		offset += SizeOf(f)
	}
	return offset
}
