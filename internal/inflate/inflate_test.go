package inflate

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j5.nz/structzone/internal/layout"
)

func buildRegistry(t *testing.T) (*layout.Registry, *types.StructType) {
	t.Helper()
	module := &ir.Module{}
	st := types.NewStruct(types.I32, types.I32)
	st.TypeName = "Point"
	module.TypeDefs = append(module.TypeDefs, st)
	reg := layout.BuildRegistry(module, layout.DefaultRedzoneSize)
	return reg, st
}

func TestType_ScalarPassesThroughUnchanged(t *testing.T) {
	reg, _ := buildRegistry(t)
	got, changed, err := Type(reg, types.I32)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, types.I32, got)
}

func TestType_StructInflates(t *testing.T) {
	reg, st := buildRegistry(t)
	si, _ := reg.Lookup(st)

	got, changed, err := Type(reg, st)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, si.InflatedType, got)
}

func TestType_PointerLayersPreserved(t *testing.T) {
	reg, st := buildRegistry(t)
	si, _ := reg.Lookup(st)

	got, changed, err := Type(reg, types.NewPointer(types.NewPointer(st)))
	require.NoError(t, err)
	assert.True(t, changed)

	outer, ok := got.(*types.PointerType)
	require.True(t, ok)
	inner, ok := outer.ElemType.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, inner.ElemType)
}

func TestType_OpaquePointerErrors(t *testing.T) {
	reg, _ := buildRegistry(t)
	badPtr := &types.PointerType{}
	_, _, err := Type(reg, badPtr)
	assert.ErrorIs(t, err, ErrOpaquePointer)
}

func TestType_FuncTypeInflatesReturnAndParams(t *testing.T) {
	reg, st := buildRegistry(t)
	si, _ := reg.Lookup(st)

	ft := types.NewFunc(types.NewPointer(st), types.NewPointer(st), types.I32)
	got, changed, err := Type(reg, ft)
	require.NoError(t, err)
	assert.True(t, changed)

	newFt, ok := got.(*types.FuncType)
	require.True(t, ok)
	retPtr, ok := newFt.RetType.(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, retPtr.ElemType)
	paramPtr, ok := newFt.Params[0].(*types.PointerType)
	require.True(t, ok)
	assert.Same(t, si.InflatedType, paramPtr.ElemType)
	assert.Equal(t, types.I32, newFt.Params[1])
}

func TestContains(t *testing.T) {
	reg, st := buildRegistry(t)
	assert.True(t, Contains(reg, st))
	assert.False(t, Contains(reg, types.I64))
}
