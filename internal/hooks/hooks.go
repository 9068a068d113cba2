// Package hooks implements the redzone hook emitter (spec §4.7): once the
// instruction rewriter and signature transformer have run, every live
// aggregate creation gets an rz_add per redzone member, every function
// return gets a matching rz_rm for its stack-allocated aggregates, every
// deallocator call gets an rz_heap_free, and every load/store gets an
// rz_check guarding the access.
package hooks

import (
	"sort"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"j5.nz/structzone/internal/layout"
	"j5.nz/structzone/internal/rewrite"
)

var deallocatorNames = map[string]bool{
	"free": true,
}

// externs holds the four runtime entry points a transformed module calls
// into, declared on demand in the module being instrumented.
type externs struct {
	Add      *ir.Func
	Remove   *ir.Func
	Check    *ir.Func
	HeapFree *ir.Func
}

// stackAggregate records one stack alloca of a known inflated aggregate so
// its redzones can be re-walked and deregistered at every return site.
type stackAggregate struct {
	ptr      value.Value
	elemType types.Type
	si       *layout.StructInfo
	n        int
}

func i8Ptr() *types.PointerType {
	return types.NewPointer(types.I8)
}

func i32(n int64) value.Value {
	return constant.NewInt(types.I32, n)
}

func declareExterns(module *ir.Module) *externs {
	e := &externs{
		Add:      findOrDeclare(module, "rz_add", types.Void, i8Ptr(), types.I64),
		Remove:   findOrDeclare(module, "rz_rm", types.Void, i8Ptr()),
		Check:    findOrDeclare(module, "rz_check", types.Void, i8Ptr(), types.I64),
		HeapFree: findOrDeclare(module, "rz_heap_free", types.Void, i8Ptr()),
	}
	return e
}

func findOrDeclare(module *ir.Module, name string, retType types.Type, paramTypes ...types.Type) *ir.Func {
	for _, f := range module.Funcs {
		if f.Name() == name {
			return f
		}
	}
	params := make([]*ir.Param, len(paramTypes))
	for i, pt := range paramTypes {
		params[i] = ir.NewParam("", pt)
	}
	f := ir.NewFunc(name, retType, params...)
	module.Funcs = append(module.Funcs, f)
	return f
}

// Insert runs the hook emitter over every defined function in module, using
// st's registry for struct lookups and st's recorded allocation sites to
// size heap-aggregate registrations.
func Insert(module *ir.Module, st *rewrite.State) {
	ext := declareExterns(module)
	allocSites := make(map[*ir.InstCall]*rewrite.AllocSite, len(st.AllocSites))
	for _, site := range st.AllocSites {
		allocSites[site.Call] = site
	}
	for _, f := range module.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		Func(st.Reg, ext, allocSites, f)
	}
}

// Func instruments one function body in place.
func Func(reg *layout.Registry, ext *externs, allocSites map[*ir.InstCall]*rewrite.AllocSite, f *ir.Func) {
	var stackAllocs []stackAggregate

	for _, b := range f.Blocks {
		newInsts := make([]ir.Instruction, 0, len(b.Insts))

		for _, inst := range b.Insts {
			switch v := inst.(type) {
			case *ir.InstAlloca:
				newInsts = append(newInsts, v)
				if si, n, ok := inflatedAggregate(reg, v.ElemType); ok {
					emitRedzoneAdds(&newInsts, ext, v, v.ElemType, si, n)
					stackAllocs = append(stackAllocs, stackAggregate{ptr: v, elemType: v.ElemType, si: si, n: n})
				}

			case *ir.InstCall:
				if isDeallocatorCall(v) {
					if ptr, ok := firstPointerArg(v); ok {
						bc := ir.NewBitCast(ptr, i8Ptr())
						newInsts = append(newInsts, bc)
						newInsts = append(newInsts, ir.NewCall(ext.HeapFree, bc))
					}
				}
				newInsts = append(newInsts, v)
				if site, ok := allocSites[v]; ok {
					arrType := types.NewArray(uint64(site.NumElems), site.Struct.InflatedType)
					basePtr := ir.NewBitCast(v, types.NewPointer(arrType))
					newInsts = append(newInsts, basePtr)
					emitRedzoneAdds(&newInsts, ext, basePtr, arrType, site.Struct, site.NumElems)
				}

			case *ir.InstLoad:
				bc := ir.NewBitCast(v.Src, i8Ptr())
				newInsts = append(newInsts, bc)
				w := Width(&newInsts, v.ElemType)
				newInsts = append(newInsts, ir.NewCall(ext.Check, bc, w))
				newInsts = append(newInsts, v)

			case *ir.InstStore:
				bc := ir.NewBitCast(v.Dst, i8Ptr())
				newInsts = append(newInsts, bc)
				w := Width(&newInsts, v.Src.Type())
				newInsts = append(newInsts, ir.NewCall(ext.Check, bc, w))
				newInsts = append(newInsts, v)

			default:
				newInsts = append(newInsts, inst)
			}
		}

		b.Insts = newInsts
	}

	if len(stackAllocs) == 0 {
		return
	}
	for _, b := range f.Blocks {
		if _, ok := b.Term.(*ir.TermRet); !ok {
			continue
		}
		for _, sa := range stackAllocs {
			emitRedzoneRemoves(&b.Insts, ext, sa.ptr, sa.elemType, sa.si, sa.n)
		}
	}
}

// emitRedzoneAdds walks every element of an n-element aggregate of si and,
// per spec §4.7, synthesizes a pointer to each individual redzone member
// (recursing into nested struct fields) and emits rz_add(ptr, REDZONE_SIZE)
// for each one — never a single rz_add spanning the whole object, which
// would flag every legitimate field access inside it.
func emitRedzoneAdds(insts *[]ir.Instruction, ext *externs, base value.Value, baseElemType types.Type, si *layout.StructInfo, n int) {
	walkAggregateRedzones(insts, base, baseElemType, si, n, func(insts *[]ir.Instruction, rzSize int, ptr value.Value) {
		*insts = append(*insts, ir.NewCall(ext.Add, ptr, sizeConst(rzSize)))
	})
}

// emitRedzoneRemoves mirrors emitRedzoneAdds, emitting rz_rm(ptr) for every
// individual redzone pointer instead of rz_add.
func emitRedzoneRemoves(insts *[]ir.Instruction, ext *externs, base value.Value, baseElemType types.Type, si *layout.StructInfo, n int) {
	walkAggregateRedzones(insts, base, baseElemType, si, n, func(insts *[]ir.Instruction, rzSize int, ptr value.Value) {
		*insts = append(*insts, ir.NewCall(ext.Remove, ptr))
	})
}

// walkAggregateRedzones visits every redzone pointer in an n-element
// aggregate of si, calling visit once per redzone with a bitcast i8* to it.
// baseElemType is the element type of base's pointer: either si's plain
// inflated struct type (a single, non-array aggregate; n == 1) or an array
// of it (n == array length).
func walkAggregateRedzones(insts *[]ir.Instruction, base value.Value, baseElemType types.Type, si *layout.StructInfo, n int, visit func(insts *[]ir.Instruction, rzSize int, ptr value.Value)) {
	_, isArray := baseElemType.(*types.ArrayType)
	for e := 0; e < n; e++ {
		var prefix []value.Value
		if isArray {
			prefix = []value.Value{i32(0), i32(int64(e))}
		} else {
			prefix = []value.Value{i32(0)}
		}
		walkStructRedzones(insts, base, baseElemType, si, prefix, visit)
	}
}

// walkStructRedzones emits, for one struct instance reached by prefix, a
// GEP+bitcast+visit for each of its own redzone members, then recurses into
// every field that transitively contains a struct (per spec §4.7's "recurse
// into nested struct fields using identical GEP indexing").
func walkStructRedzones(insts *[]ir.Instruction, base value.Value, baseElemType types.Type, si *layout.StructInfo, prefix []value.Value, visit func(insts *[]ir.Instruction, rzSize int, ptr value.Value)) {
	for _, r := range sortedRedzoneIndices(si) {
		idxs := appendIdx(prefix, int64(r))
		gep := ir.NewGetElementPtr(baseElemType, base, idxs...)
		*insts = append(*insts, gep)
		bc := ir.NewBitCast(gep, i8Ptr())
		*insts = append(*insts, bc)
		visit(insts, si.RedzoneSize, bc)
	}

	for fi, field := range si.Fields {
		if field.Inner == nil {
			continue
		}
		fieldPrefix := appendIdx(prefix, int64(si.OffsetMap[fi]))
		walkFieldRedzones(insts, base, baseElemType, field.Type, field.Inner, fieldPrefix, visit)
	}
}

// walkFieldRedzones descends through any array-of-struct nesting on a field
// before recursing into the inner struct's own redzones, so a field like
// `struct S grid[3][2]` (an array of a redzoned struct type) is fully walked.
func walkFieldRedzones(insts *[]ir.Instruction, base value.Value, baseElemType types.Type, fieldType types.Type, inner *layout.StructInfo, prefix []value.Value, visit func(insts *[]ir.Instruction, rzSize int, ptr value.Value)) {
	switch t := fieldType.(type) {
	case *types.ArrayType:
		for j := 0; j < int(t.Len); j++ {
			walkFieldRedzones(insts, base, baseElemType, t.ElemType, inner, appendIdx(prefix, int64(j)), visit)
		}
	case *types.StructType:
		walkStructRedzones(insts, base, baseElemType, inner, prefix, visit)
	}
}

func appendIdx(prefix []value.Value, idx int64) []value.Value {
	out := make([]value.Value, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, i32(idx))
}

func sortedRedzoneIndices(si *layout.StructInfo) []int {
	idxs := make([]int, 0, len(si.RedzoneIndices))
	for i := range si.RedzoneIndices {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

// inflatedAggregate reports whether t (an alloca's element type, already
// rewritten by C5) is a known inflated struct, or an array of one, together
// with the element count.
func inflatedAggregate(reg *layout.Registry, t types.Type) (*layout.StructInfo, int, bool) {
	switch v := t.(type) {
	case *types.StructType:
		si, ok := reg.LookupInflated(v.TypeName)
		return si, 1, ok
	case *types.ArrayType:
		st, ok := v.ElemType.(*types.StructType)
		if !ok {
			return nil, 0, false
		}
		si, ok := reg.LookupInflated(st.TypeName)
		return si, int(v.Len), ok
	default:
		return nil, 0, false
	}
}

func isDeallocatorCall(call *ir.InstCall) bool {
	f, ok := call.Callee.(*ir.Func)
	if !ok {
		return false
	}
	return deallocatorNames[strings.TrimSuffix(f.Name(), layout.InflatedSuffix)]
}

func firstPointerArg(call *ir.InstCall) (value.Value, bool) {
	if len(call.Args) == 0 {
		return nil, false
	}
	if _, ok := call.Args[0].Type().(*types.PointerType); !ok {
		return nil, false
	}
	return call.Args[0], true
}

func sizeConst(n int) value.Value {
	return constant.NewInt(types.I64, int64(n))
}
