package hooks

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Width emits the access-width idiom found in the original implementation's
// insertMemAccessCheck: a typed null pointer, GEP-indexed by one, cast to an
// integer. This yields sizeof(t) without consulting any data-layout table,
// so a hook's notion of width never diverges from the host's real layout.
// The instructions are appended to *insts, which the caller splices into the
// block ahead of the load/store being checked.
func Width(insts *[]ir.Instruction, t types.Type) value.Value {
	null := constant.NewNull(types.NewPointer(t))
	gep := ir.NewGetElementPtr(t, null, constant.NewInt(types.I32, 1))
	*insts = append(*insts, gep)
	asInt := ir.NewPtrToInt(gep, types.I64)
	*insts = append(*insts, asInt)
	return asInt
}
