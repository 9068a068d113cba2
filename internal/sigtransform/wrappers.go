package sigtransform

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"j5.nz/structzone/internal/layout"
)

// GenerateWrappers synthesizes the two kinds of boundary wrapper described
// in spec §4.6, once the instruction rewriter has finished with every
// function body.
func GenerateWrappers(reg *layout.Registry, res *Result) error {
	for _, b := range res.Declared {
		inflateDeflateWrapper(reg, b.Orig, b.Clone)
	}
	if res.Main != nil {
		deflateInflateWrapper(reg, res.Main.Orig, res.Main.Clone)
	}
	return nil
}

// inflateDeflateWrapper fills stub's body (stub is `<name>.inflated`, the
// symbol instrumented code actually calls) so it deflates every
// pointer-to-struct argument onto the stack, calls the real external
// function, writes the deflated fields back into the inflated argument so
// out-parameters propagate, and re-inflates a pointer-to-struct return
// value.
func inflateDeflateWrapper(reg *layout.Registry, external, stub *ir.Func) {
	entry := ir.NewBlock("")
	stub.Blocks = []*ir.Block{entry}

	type outParam struct {
		si          *layout.StructInfo
		inflatedArg value.Value
		deflatedPtr value.Value
	}
	var outParams []outParam

	callArgs := make([]value.Value, len(stub.Params))
	for i, p := range stub.Params {
		si, ok := structInfoOfInflatedPointer(reg, p.Type())
		if !ok {
			callArgs[i] = p
			continue
		}
		deflated := ir.NewAlloca(si.OriginalType)
		entry.Insts = append(entry.Insts, deflated)
		copyFields(entry, si, p, deflated, true)
		callArgs[i] = deflated
		outParams = append(outParams, outParam{si: si, inflatedArg: p, deflatedPtr: deflated})
	}

	call := ir.NewCall(external, callArgs...)
	entry.Insts = append(entry.Insts, call)

	for _, op := range outParams {
		copyFields(entry, op.si, op.deflatedPtr, op.inflatedArg, false)
	}

	if si, ok := structInfoOfInflatedPointer(reg, stub.Sig.RetType); ok {
		inflatedRet := ir.NewAlloca(si.InflatedType)
		entry.Insts = append(entry.Insts, inflatedRet)
		copyFields(entry, si, call, inflatedRet, false)
		entry.Term = ir.NewRet(inflatedRet)
		return
	}
	entry.Term = retTerm(stub.Sig.RetType, call)
}

// deflateInflateWrapper fills shell's body (shell is the original `main`
// symbol, now an empty shell) so it inflates every pointer-to-struct
// argument, calls the inflated clone holding the real logic, and deflates
// a pointer-to-struct return value, giving the host its standard ABI.
func deflateInflateWrapper(reg *layout.Registry, shell, clone *ir.Func) {
	entry := ir.NewBlock("")
	shell.Blocks = []*ir.Block{entry}

	callArgs := make([]value.Value, len(shell.Params))
	for i, p := range shell.Params {
		si, ok := structInfoOfStructPointer(reg, p.Type())
		if !ok {
			callArgs[i] = p
			continue
		}
		inflated := ir.NewAlloca(si.InflatedType)
		entry.Insts = append(entry.Insts, inflated)
		copyFields(entry, si, p, inflated, false)
		callArgs[i] = inflated
	}

	call := ir.NewCall(clone, callArgs...)
	entry.Insts = append(entry.Insts, call)

	if si, ok := structInfoOfInflatedPointer(reg, clone.Sig.RetType); ok {
		deflatedRet := ir.NewAlloca(si.OriginalType)
		entry.Insts = append(entry.Insts, deflatedRet)
		copyFields(entry, si, call, deflatedRet, true)
		entry.Term = ir.NewRet(deflatedRet)
		return
	}
	entry.Term = retTerm(clone.Sig.RetType, call)
}

func retTerm(retType types.Type, call value.Value) ir.Terminator {
	if _, ok := retType.(*types.VoidType); ok {
		return ir.NewRet(nil)
	}
	return ir.NewRet(call)
}

func structInfoOfStructPointer(reg *layout.Registry, t types.Type) (*layout.StructInfo, bool) {
	ptr, ok := t.(*types.PointerType)
	if !ok {
		return nil, false
	}
	st, ok := ptr.ElemType.(*types.StructType)
	if !ok {
		return nil, false
	}
	return reg.Lookup(st)
}

func structInfoOfInflatedPointer(reg *layout.Registry, t types.Type) (*layout.StructInfo, bool) {
	ptr, ok := t.(*types.PointerType)
	if !ok {
		return nil, false
	}
	st, ok := ptr.ElemType.(*types.StructType)
	if !ok {
		return nil, false
	}
	return reg.LookupInflated(st.TypeName)
}

// copyFields emits one GEP+load+GEP+store pair per struct field, copying
// between the deflated and inflated layouts via the offset map.
// srcIsInflated selects which side src is on.
func copyFields(b *ir.Block, si *layout.StructInfo, src, dst value.Value, srcIsInflated bool) {
	for i := range si.Fields {
		srcIdx, dstIdx := i, i
		var srcType, dstType types.Type
		if srcIsInflated {
			srcIdx = si.InflatedIndex(i)
			srcType = si.InflatedType.Fields[srcIdx]
			dstType = si.Fields[i].Type
		} else {
			dstIdx = si.InflatedIndex(i)
			srcType = si.Fields[i].Type
			dstType = si.InflatedType.Fields[dstIdx]
		}

		srcGEP := ir.NewGetElementPtr(elemTypeOf(src), src, i32(0), i32(int64(srcIdx)))
		b.Insts = append(b.Insts, srcGEP)
		load := ir.NewLoad(srcType, srcGEP)
		b.Insts = append(b.Insts, load)

		dstGEP := ir.NewGetElementPtr(elemTypeOf(dst), dst, i32(0), i32(int64(dstIdx)))
		b.Insts = append(b.Insts, dstGEP)
		store := ir.NewStore(load, dstGEP)
		b.Insts = append(b.Insts, store)
		_ = dstType
	}
}

func elemTypeOf(v value.Value) types.Type {
	return v.Type().(*types.PointerType).ElemType
}

func i32(n int64) value.Value {
	return constant.NewInt(types.I32, n)
}
