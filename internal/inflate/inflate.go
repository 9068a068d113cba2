// Package inflate implements the pure type-inflation function of spec §4.4:
// given any type, return the corresponding inflated type and whether it
// differs from the input.
package inflate

import (
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"j5.nz/structzone/internal/layout"
)

// ErrOpaquePointer is returned when Type encounters an opaque pointer kind;
// the transform requires typed-pointer IR (spec §4.4, §4.8).
var ErrOpaquePointer = errors.New("opaque pointer kind is not supported by structzone-sanitizer")

// Type returns the inflated form of t and reports whether it changed.
// Pointer layers are stripped, the residual type is inflated, and the
// pointer layers are re-applied. Function types are inflated by recursing
// on their return and parameter types.
func Type(reg *layout.Registry, t types.Type) (types.Type, bool, error) {
	depth := 0
	residual := t
	for {
		p, ok := residual.(*types.PointerType)
		if !ok {
			break
		}
		if p.ElemType == nil {
			return nil, false, errors.WithStack(ErrOpaquePointer)
		}
		residual = p.ElemType
		depth++
	}

	inflatedResidual, changed, err := inflateResidual(reg, residual)
	if err != nil {
		return nil, false, err
	}

	result := inflatedResidual
	for i := 0; i < depth; i++ {
		result = types.NewPointer(result)
	}
	return result, changed, nil
}

func inflateResidual(reg *layout.Registry, t types.Type) (types.Type, bool, error) {
	switch v := t.(type) {
	case *types.StructType:
		si, ok := reg.Lookup(v)
		if !ok {
			return t, false, nil
		}
		return si.InflatedType, true, nil
	case *types.ArrayType:
		elem, changed, err := inflateResidual(reg, v.ElemType)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return t, false, nil
		}
		return types.NewArray(v.Len, elem), true, nil
	case *types.FuncType:
		ret, retChanged, err := Type(reg, v.RetType)
		if err != nil {
			return nil, false, err
		}
		changed := retChanged
		params := make([]types.Type, len(v.Params))
		for i, p := range v.Params {
			np, pc, err := Type(reg, p)
			if err != nil {
				return nil, false, err
			}
			params[i] = np
			changed = changed || pc
		}
		if !changed {
			return t, false, nil
		}
		return types.NewFunc(ret, params...), true, nil
	default:
		return t, false, nil
	}
}

// Contains reports whether t transitively mentions a known struct type,
// without building a new type. Used by rewrite handlers to decide whether
// an instruction needs to be touched at all.
func Contains(reg *layout.Registry, t types.Type) bool {
	_, changed, err := Type(reg, t)
	return err == nil && changed
}
