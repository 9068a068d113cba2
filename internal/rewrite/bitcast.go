package rewrite

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"j5.nz/structzone/internal/inflate"
	"j5.nz/structzone/internal/layout"
)

var allocatorNames = map[string]bool{
	"malloc":  true,
	"calloc":  true,
	"realloc": true,
}

// BitCast handles one bitcast instruction per spec §4.5's "bitcast" rule:
// a pointer destination that inflates is rewritten to the inflated pointer
// type; if the source operand is an allocator call linked to a known
// struct, the call's size argument is scaled by inflated/original size and
// the site is recorded for the hook emitter (C7).
func BitCast(st *State, inst *ir.InstBitCast, q *Queue) error {
	dstPtr, ok := inst.To.(*types.PointerType)
	if !ok {
		return nil
	}
	newPointee, changed, err := inflate.Type(st.Reg, dstPtr.ElemType)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if structElem, ok := dstPtr.ElemType.(*types.StructType); ok {
		if si, ok := st.Reg.Lookup(structElem); ok {
			if call, ok := inst.From.(*ir.InstCall); ok {
				if name, ok := calleeName(call); ok {
					baseName := baseAllocatorName(name)
					if allocatorNames[baseName] {
						if err := prepareAllocatorScale(st, call, si, baseName, q); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	q.Defer(func() {
		inst.To = types.NewPointer(newPointee)
		inst.Typ = inst.To
	})
	return nil
}

// allocatorSizeArgIndex returns the index of the byte-size argument for a
// given allocator: malloc(size) scales argument 0; calloc(nmemb, size) and
// realloc(ptr, size) scale argument 1 (per
// original_source/llvm-pass/src/Sanitizer.cpp's handle_bitcast/update_size).
func allocatorSizeArgIndex(allocatorName string) int {
	switch allocatorName {
	case "calloc", "realloc":
		return 1
	default:
		return 0
	}
}

func prepareAllocatorScale(st *State, call *ir.InstCall, si *layout.StructInfo, allocatorName string, q *Queue) error {
	sizeArgIdx := allocatorSizeArgIndex(allocatorName)
	if len(call.Args) <= sizeArgIdx {
		return ErrNonConstantAllocSize
	}
	sizeArg, ok := call.Args[sizeArgIdx].(*constant.Int)
	if !ok {
		return ErrNonConstantAllocSize
	}
	if si.OriginalSize == 0 {
		return ErrUnknownStruct
	}
	ratio := int(sizeArg.X.Int64()) / si.OriginalSize
	newSizeArg := ratio * si.InflatedSize

	// calloc's element count lives in argument 0 (nmemb), separate from the
	// scaled size argument; the hook emitter needs the total element count
	// to register per-element redzones correctly.
	numElems := ratio
	if allocatorName == "calloc" {
		nmembArg, ok := call.Args[0].(*constant.Int)
		if !ok {
			return ErrNonConstantAllocSize
		}
		numElems = ratio * int(nmembArg.X.Int64())
	}

	st.AllocSites = append(st.AllocSites, &AllocSite{
		Call:     call,
		Struct:   si,
		NumElems: numElems,
	})

	q.Defer(func() {
		call.Args[sizeArgIdx] = constant.NewInt(sizeArg.Typ, int64(newSizeArg))
	})
	return nil
}

func calleeName(call *ir.InstCall) (string, bool) {
	f, ok := call.Callee.(*ir.Func)
	if !ok {
		return "", false
	}
	return f.Name(), true
}

func baseAllocatorName(name string) string {
	return strings.TrimSuffix(name, layout.InflatedSuffix)
}
