package rewrite

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j5.nz/structzone/internal/layout"
)

func newTestRegistry(t *testing.T) (*layout.Registry, *types.StructType) {
	t.Helper()
	module := &ir.Module{}
	st := types.NewStruct(types.I32, types.I64)
	st.TypeName = "Pair"
	module.TypeDefs = append(module.TypeDefs, st)
	reg := layout.BuildRegistry(module, layout.DefaultRedzoneSize)
	return reg, st
}

func TestAlloca_StructRewritesToInflatedType(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	inst := ir.NewAlloca(st)
	require.NoError(t, Alloca(state, inst, q))
	q.Drain()

	assert.Same(t, si.InflatedType, inst.ElemType)
	ptrType, ok := inst.Typ.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, ptrType.ElemType)
}

func TestAlloca_ArrayOfStructPreservesLength(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	arr := types.NewArray(4, st)
	inst := ir.NewAlloca(arr)
	require.NoError(t, Alloca(state, inst, q))
	q.Drain()

	newArr, ok := inst.ElemType.(*types.ArrayType)
	require.True(t, ok)
	assert.Equal(t, uint64(4), newArr.Len)
	assert.Same(t, si.InflatedType, newArr.ElemType)
}

func TestGEP_StructFieldIndexRemapped(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	src := ir.NewAlloca(st)
	inst := ir.NewGetElementPtr(st, src,
		constant.NewInt(types.I32, 0),
		constant.NewInt(types.I32, 1), // field 1 (the i64)
	)
	require.NoError(t, GEP(state, inst, q))
	q.Drain()

	assert.Same(t, si.InflatedType, inst.ElemType)
	idx, ok := inst.Indices[1].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(si.InflatedIndex(1)), idx.X.Int64())
}

func TestGEP_ArrayElementStepWithNoFieldIndexStillInflates(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	// e[1]: selects the second element of an array-of-struct with no
	// struct-field index in this instruction at all (a legal split of
	// e[1].one[i] across two chained GEPs).
	src := ir.NewAlloca(types.NewArray(4, st))
	inst := ir.NewGetElementPtr(types.NewArray(4, st), src,
		constant.NewInt(types.I32, 0),
		constant.NewInt(types.I64, 1),
	)
	require.NoError(t, GEP(state, inst, q))
	q.Drain()

	newArr, ok := inst.ElemType.(*types.ArrayType)
	require.True(t, ok, "ElemType must be rewritten even without a struct-field index step")
	assert.Same(t, si.InflatedType, newArr.ElemType)

	ptrType, ok := inst.Typ.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, ptrType.ElemType)
}

func TestGEP_NonConstantStructIndexErrors(t *testing.T) {
	reg, st := newTestRegistry(t)
	state := NewState(reg)
	q := &Queue{}

	src := ir.NewAlloca(st)
	badIdx := ir.NewLoad(types.I32, ir.NewAlloca(types.I32))
	inst := ir.NewGetElementPtr(st, src, constant.NewInt(types.I32, 0), badIdx)

	err := GEP(state, inst, q)
	assert.ErrorIs(t, err, ErrNonConstantIndex)
}

func TestBitCast_ScalesAllocatorCallSize(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	mallocFn := ir.NewFunc("malloc", types.NewPointer(types.I8), ir.NewParam("", types.I64))
	call := ir.NewCall(mallocFn, constant.NewInt(types.I64, int64(3*si.OriginalSize)))
	bc := ir.NewBitCast(call, types.NewPointer(st))

	require.NoError(t, BitCast(state, bc, q))
	q.Drain()

	sizeArg, ok := call.Args[0].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(3*si.InflatedSize), sizeArg.X.Int64())
	require.Len(t, state.AllocSites, 1)
	assert.Equal(t, 3, state.AllocSites[0].NumElems)

	ptrType, ok := bc.To.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, ptrType.ElemType)
}

func TestBitCast_CallocScalesSizeArgNotNmemb(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	callocFn := ir.NewFunc("calloc", types.NewPointer(types.I8),
		ir.NewParam("", types.I64), ir.NewParam("", types.I64))
	call := ir.NewCall(callocFn, constant.NewInt(types.I64, 1), constant.NewInt(types.I64, int64(si.OriginalSize)))
	bc := ir.NewBitCast(call, types.NewPointer(st))

	require.NoError(t, BitCast(state, bc, q))
	q.Drain()

	nmembArg, ok := call.Args[0].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(1), nmembArg.X.Int64(), "calloc's nmemb argument must be left untouched")

	sizeArg, ok := call.Args[1].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(si.InflatedSize), sizeArg.X.Int64())

	require.Len(t, state.AllocSites, 1)
	assert.Equal(t, 1, state.AllocSites[0].NumElems)
}

func TestBitCast_ReallocScalesSecondArg(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	reallocFn := ir.NewFunc("realloc", types.NewPointer(types.I8),
		ir.NewParam("", types.NewPointer(types.I8)), ir.NewParam("", types.I64))
	oldPtr := ir.NewAlloca(types.I8)
	call := ir.NewCall(reallocFn, oldPtr, constant.NewInt(types.I64, int64(2*si.OriginalSize)))
	bc := ir.NewBitCast(call, types.NewPointer(st))

	require.NoError(t, BitCast(state, bc, q))
	q.Drain()

	sizeArg, ok := call.Args[1].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(2*si.InflatedSize), sizeArg.X.Int64())
	require.Len(t, state.AllocSites, 1)
	assert.Equal(t, 2, state.AllocSites[0].NumElems)
}

func TestLoad_InflatesElementType(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)
	q := &Queue{}

	src := ir.NewAlloca(types.NewPointer(st))
	inst := ir.NewLoad(st, src)
	require.NoError(t, Load(state, inst, q))
	q.Drain()

	assert.Same(t, si.InflatedType, inst.ElemType)
	assert.Same(t, si.InflatedType, inst.Typ)
}

func TestFunc_DrainsQueueBeforeFinalizingPhis(t *testing.T) {
	reg, st := newTestRegistry(t)
	si, _ := reg.Lookup(st)
	state := NewState(reg)

	entry := ir.NewBlock("entry")
	loop := ir.NewBlock("loop")
	alloc := ir.NewAlloca(st)
	entry.Insts = append(entry.Insts, alloc)
	entry.Term = ir.NewBr(loop)

	phi := ir.NewPhi(&ir.Incoming{X: alloc, Pred: entry})
	phi.Typ = types.NewPointer(st)
	loop.Insts = append(loop.Insts, phi)
	loop.Term = ir.NewRet(nil)

	f := ir.NewFunc("f", types.Void)
	f.Blocks = []*ir.Block{entry, loop}

	require.NoError(t, Func(state, f))

	// the phi must have been finalized to the inflated pointer type
	newPhi, ok := loop.Insts[0].(*ir.InstPhi)
	require.True(t, ok)
	ptrType, ok := newPhi.Typ.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, ptrType.ElemType)
}
