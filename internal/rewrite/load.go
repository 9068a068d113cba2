package rewrite

import (
	"github.com/llir/llvm/ir"

	"j5.nz/structzone/internal/inflate"
)

// Load handles one load instruction per spec §4.5's "load" rule: if the
// loaded type transitively contains a struct, the instruction is rewritten
// to load the inflated type from the same pointer.
func Load(st *State, inst *ir.InstLoad, q *Queue) error {
	newType, changed, err := inflate.Type(st.Reg, inst.ElemType)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	q.Defer(func() {
		inst.ElemType = newType
		inst.Typ = newType
	})
	return nil
}
