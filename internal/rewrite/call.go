package rewrite

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"j5.nz/structzone/internal/inflate"
)

// Call handles one call instruction per spec §4.5's "call" rule. When the
// callee is a function value rather than a known symbol, the call's result
// type is rebuilt from the operand's (already-rewritten) function type. When
// the callee is a direct function and an argument is a constant bitcast of
// a function pointer, that bitcast is rebuilt with an inflated function
// type so it still matches the callee's rewritten parameter type.
func Call(st *State, call *ir.InstCall, q *Queue) error {
	if _, ok := call.Callee.(*ir.Func); !ok {
		q.Defer(func() {
			if ptr, ok := call.Callee.Type().(*types.PointerType); ok {
				if ft, ok := ptr.ElemType.(*types.FuncType); ok {
					call.Typ = ft.RetType
				}
			}
		})
		return nil
	}

	for i, arg := range call.Args {
		bc, ok := arg.(*constant.ExprBitCast)
		if !ok {
			continue
		}
		fromPtr, ok := bc.From.Type().(*types.PointerType)
		if !ok {
			continue
		}
		if _, ok := fromPtr.ElemType.(*types.FuncType); !ok {
			continue
		}
		newTo, changed, err := inflate.Type(st.Reg, bc.To)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		idx, from := i, bc.From
		q.Defer(func() {
			call.Args[idx] = constant.NewBitCast(from, newTo)
		})
	}
	return nil
}
