package layout

import "github.com/llir/llvm/ir/types"

// deepRebuild revisits si and rebuilds its inflated body following pointer
// and array layers, so pointer-to-struct fields reference the inflated
// struct type. Self-references resolve through the registry's name table.
func deepRebuild(reg *Registry, si *StructInfo) {
	if si.Opaque {
		return
	}

	members := make([]types.Type, 0, si.NumMembers())
	members = append(members, redzoneArrayType(reg.redzoneSize))

	for i, f := range si.Fields {
		inner := followDeep(reg, f.Type)
		si.Fields[i].Inner = inner
		members = append(members, deepInflateFieldType(f.Type, inner))
		members = append(members, redzoneArrayType(reg.redzoneSize))
	}

	si.InflatedType.Fields = members
	si.InflatedSize = SizeOf(si.InflatedType)
}

// followDeep resolves the inner StructInfo for a field type, dereferencing
// exactly one pointer layer (spec §4.3's "deep pass"), following arrays at
// any depth on either side of that single pointer layer.
func followDeep(reg *Registry, t types.Type) *StructInfo {
	return followDeepRec(reg, t, true)
}

func followDeepRec(reg *Registry, t types.Type, allowPointer bool) *StructInfo {
	switch v := t.(type) {
	case *types.StructType:
		if si, ok := reg.Lookup(v); ok {
			return si
		}
		if si, ok := reg.LookupByName(v.TypeName); ok {
			return si
		}
		return nil
	case *types.ArrayType:
		return followDeepRec(reg, v.ElemType, allowPointer)
	case *types.PointerType:
		if !allowPointer {
			return nil
		}
		return followDeepRec(reg, v.ElemType, false)
	default:
		return nil
	}
}

func deepInflateFieldType(t types.Type, inner *StructInfo) types.Type {
	if inner == nil {
		return t
	}
	switch v := t.(type) {
	case *types.StructType:
		return inner.InflatedType
	case *types.ArrayType:
		return types.NewArray(v.Len, deepInflateFieldType(v.ElemType, inner))
	case *types.PointerType:
		return types.NewPointer(deepInflateFieldType(v.ElemType, inner))
	default:
		return t
	}
}
