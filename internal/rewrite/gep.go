package rewrite

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"j5.nz/structzone/internal/inflate"
)

// GEP handles one getelementptr instruction per spec §4.5's walk: indices
// are tracked left-to-right against a "current type" starting at the
// pointed-to source element type. Struct steps must use a constant index,
// which is remapped to 2*i+1 via the struct's offset map; array and pointer
// steps pass the index through unchanged.
func GEP(st *State, inst *ir.InstGetElementPtr, q *Queue) error {
	curType := inst.ElemType
	newIndices := append([]value.Value(nil), inst.Indices...)

	for i := 1; i < len(inst.Indices); i++ {
		switch t := curType.(type) {
		case *types.ArrayType:
			curType = t.ElemType
		case *types.PointerType:
			curType = t.ElemType
		case *types.StructType:
			ci, ok := inst.Indices[i].(*constant.Int)
			if !ok {
				return ErrNonConstantIndex
			}
			fi := int(ci.X.Int64())
			si, ok := st.Reg.Lookup(t)
			if !ok {
				return ErrUnknownStruct
			}
			if fi < 0 || fi >= len(si.Fields) {
				return ErrUnknownStruct
			}
			newIndices[i] = constant.NewInt(ci.Typ, int64(si.InflatedIndex(fi)))
			curType = si.Fields[fi].Type
		default:
			return ErrUnsupportedGEP
		}
	}

	// Per spec §4.5: the instruction is rewritten whenever its source
	// element type inflates to something different, independent of whether
	// any struct-field index step occurred in this particular instruction —
	// pure array/pointer arithmetic over a struct type (e.g. `e[1]` with no
	// field index in the same GEP) still needs its type updated to stay
	// consistent with every other rewritten use of the same pointer.
	newElemType, elemChanged, err := inflate.Type(st.Reg, inst.ElemType)
	if err != nil {
		return err
	}
	if !elemChanged {
		return nil
	}
	newResultElem, _, err := inflate.Type(st.Reg, curType)
	if err != nil {
		return err
	}

	q.Defer(func() {
		inst.ElemType = newElemType
		inst.Indices = newIndices
		inst.Typ = types.NewPointer(newResultElem)
	})
	return nil
}
