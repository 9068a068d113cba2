package layout

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// BuildRegistry runs the shallow and deep construction passes of spec §4.3
// over every named struct type in module, and appends the resulting
// inflated named types to the module's type table.
func BuildRegistry(module *ir.Module, redzoneSize int) *Registry {
	reg := newRegistry(redzoneSize)

	for _, t := range module.TypeDefs {
		if st, ok := t.(*types.StructType); ok && st.TypeName != "" {
			shallowBuild(reg, st)
		}
	}
	for _, si := range reg.All() {
		deepRebuild(reg, si)
	}
	for _, si := range reg.All() {
		module.TypeDefs = append(module.TypeDefs, si.InflatedType)
	}
	return reg
}

func redzoneArrayType(n int) types.Type {
	return types.NewArray(uint64(n), types.I8)
}

// shallowBuild constructs the StructInfo for st without dereferencing
// pointer fields, per §4.3's shallow pass. It registers the StructInfo
// before recursing into field types so that re-entry through a shared
// inner struct is idempotent.
func shallowBuild(reg *Registry, st *types.StructType) *StructInfo {
	if si, ok := reg.Lookup(st); ok {
		return si
	}

	si := &StructInfo{
		Name:         st.TypeName,
		OriginalType: st,
		RedzoneSize:  reg.redzoneSize,
	}
	reg.register(si)

	if st.Opaque {
		si.Opaque = true
		si.InflatedType = &types.StructType{TypeName: st.TypeName + InflatedSuffix, Opaque: true}
		return si
	}

	members := make([]types.Type, 0, 2*len(st.Fields)+1)
	fields := make([]FieldInfo, 0, len(st.Fields))
	members = append(members, redzoneArrayType(reg.redzoneSize))

	for _, ft := range st.Fields {
		inner := followShallow(reg, ft)
		fields = append(fields, FieldInfo{
			Type:  ft,
			Inner: inner,
			Size:  SizeOf(ft),
		})
		members = append(members, shallowInflateFieldType(ft, inner))
		members = append(members, redzoneArrayType(reg.redzoneSize))
	}

	si.Fields = fields
	si.InflatedType = &types.StructType{TypeName: st.TypeName + InflatedSuffix, Fields: members}
	si.OriginalSize = SizeOf(st)
	si.InflatedSize = SizeOf(si.InflatedType)
	si.OffsetMap = make(map[int]int, len(fields))
	si.RedzoneIndices = make(map[int]bool, len(members))
	for i := range fields {
		si.OffsetMap[i] = si.InflatedIndex(i)
	}
	for i := 0; i <= len(fields); i++ {
		si.RedzoneIndices[2*i] = true
	}
	return si
}

// followShallow returns the inner StructInfo for a field type during the
// shallow pass: structs and arrays-of-structs are followed, pointers are
// not dereferenced (to avoid infinite recursion on self-reference).
func followShallow(reg *Registry, t types.Type) *StructInfo {
	switch v := t.(type) {
	case *types.StructType:
		if v.TypeName == "" {
			return nil
		}
		return shallowBuild(reg, v)
	case *types.ArrayType:
		return followShallow(reg, v.ElemType)
	default:
		return nil
	}
}

func shallowInflateFieldType(t types.Type, inner *StructInfo) types.Type {
	if inner == nil {
		return t
	}
	switch v := t.(type) {
	case *types.StructType:
		return inner.InflatedType
	case *types.ArrayType:
		return types.NewArray(v.Len, shallowInflateFieldType(v.ElemType, inner))
	default:
		return t
	}
}
