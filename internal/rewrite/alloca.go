package rewrite

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"j5.nz/structzone/internal/inflate"
)

// Alloca handles one stack allocation instruction per spec §4.5's "alloca"
// rule: a known struct is replaced with its inflated type; an array of a
// known struct has its element type inflated, count preserved; a pointer
// that transitively contains a struct is rewritten via C4.
func Alloca(st *State, inst *ir.InstAlloca, q *Queue) error {
	switch elem := inst.ElemType.(type) {
	case *types.StructType:
		si, ok := st.Reg.Lookup(elem)
		if !ok {
			return nil
		}
		q.Defer(func() {
			inst.ElemType = si.InflatedType
			inst.Typ = types.NewPointer(si.InflatedType)
		})

	case *types.ArrayType:
		inner, ok := elem.ElemType.(*types.StructType)
		if !ok {
			return nil
		}
		si, ok := st.Reg.Lookup(inner)
		if !ok {
			return nil
		}
		q.Defer(func() {
			newArr := types.NewArray(elem.Len, si.InflatedType)
			inst.ElemType = newArr
			inst.Typ = types.NewPointer(newArr)
		})

	case *types.PointerType:
		newType, changed, err := inflate.Type(st.Reg, elem)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		q.Defer(func() {
			inst.ElemType = newType
			inst.Typ = types.NewPointer(newType)
		})
	}
	return nil
}
