// Package layout builds the per-module struct layout model: for every named
// struct type reachable from the module, a StructInfo describing its
// original field layout, its inflated (redzoned) counterpart, and the
// offset mapping between the two.
package layout

import (
	"github.com/llir/llvm/ir/types"
)

// InflatedSuffix is appended to an original struct's type name to produce
// the reserved name of its inflated counterpart.
const InflatedSuffix = ".inflated"

// DefaultRedzoneSize is REDZONE_SIZE when the CLI does not override it.
const DefaultRedzoneSize = 1

// FieldInfo describes one field of an original struct.
type FieldInfo struct {
	// Type is the field's type in the original (deflated) layout.
	Type types.Type
	// Inner is set when Type transitively contains a struct type, found by
	// following arrays and a single pointer layer.
	Inner *StructInfo
	// Size is the field's allocation size in bytes, or 0 for an opaque or
	// unsized type.
	Size int
}

// StructInfo is the complete layout record for one named struct type.
type StructInfo struct {
	// Name is the original struct's declared name, without any package
	// qualifier mangling beyond what the IR already carries.
	Name string
	// OriginalType is the struct as it appears in the input module.
	OriginalType *types.StructType
	// InflatedType is the synthesized redzoned counterpart, named
	// Name+InflatedSuffix.
	InflatedType *types.StructType
	// Fields holds one entry per original field, in declaration order.
	Fields []FieldInfo
	// OriginalSize and InflatedSize are the two layouts' allocation sizes.
	OriginalSize  int
	InflatedSize  int
	RedzoneSize   int
	// OffsetMap maps original field index -> inflated member index.
	// Invariant: OffsetMap[i] == 2*i+1.
	OffsetMap map[int]int
	// RedzoneIndices is the set of inflated-layout member indices that are
	// redzone byte arrays: {0, 2, 4, ..., 2*len(Fields)}.
	RedzoneIndices map[int]bool
	// Opaque is true for a forward-declared struct with no known body; such
	// structs get an empty Fields slice and no redzones.
	Opaque bool
}

// InflatedIndex returns the inflated-layout member index for original field
// index i.
func (si *StructInfo) InflatedIndex(i int) int {
	return 2*i + 1
}

// NumMembers returns the number of members the inflated struct has:
// 2*len(Fields)+1.
func (si *StructInfo) NumMembers() int {
	return 2*len(si.Fields) + 1
}
