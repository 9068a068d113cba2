// Package sigtransform implements the function signature transformer
// (spec §4.6): every non-intrinsic function whose signature mentions a known
// struct type is cloned with an inflated signature, call sites are redirected, and boundary wrappers are
// synthesized for external linkage crossings.
package sigtransform

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"j5.nz/structzone/internal/inflate"
	"j5.nz/structzone/internal/layout"
)

// Boundary pairs an original function with its inflated clone, for the two
// wrapper-generating cases: a declared external function, and the program
// entry point.
type Boundary struct {
	Orig  *ir.Func
	Clone *ir.Func
}

// Result carries everything GenerateWrappers and the instruction rewriter
// need after TransformFuncs has run.
type Result struct {
	// Mapping redirects an original defined function to its inflated
	// clone, which now holds the real (rewritten) body.
	Mapping map[*ir.Func]*ir.Func
	// Defined holds every inflated clone that received a body.
	Defined []*ir.Func
	// Declared holds, for each external function whose signature
	// mentions a struct, the (external declaration, inflated stub) pair
	// that needs an inflate→deflate wrapper.
	Declared []Boundary
	// Main is set when the module's entry point needed inflation; its
	// emptied shell gets the deflate→inflate wrapper.
	Main *Boundary
}

// TransformFuncs runs spec §4.6 over every function in module.
func TransformFuncs(reg *layout.Registry, module *ir.Module) (*Result, error) {
	res := &Result{Mapping: make(map[*ir.Func]*ir.Func)}
	out := make([]*ir.Func, 0, len(module.Funcs))

	for _, f := range module.Funcs {
		if isIntrinsic(f) {
			out = append(out, f)
			continue
		}

		sig, changed, err := inflatedFuncType(reg, f)
		if err != nil {
			return nil, err
		}
		if !changed {
			out = append(out, f)
			continue
		}

		params := make([]*ir.Param, len(sig.Params))
		for i, pt := range sig.Params {
			params[i] = ir.NewParam(f.Params[i].Name(), pt)
		}
		clone := ir.NewFunc(f.Name()+layout.InflatedSuffix, sig.RetType, params...)
		clone.Sig = sig
		clone.Linkage = f.Linkage

		isDefined := len(f.Blocks) > 0
		if isDefined {
			paramMap := make(map[value.Value]value.Value, len(f.Params))
			for i, op := range f.Params {
				paramMap[op] = params[i]
			}
			clone.Blocks = f.Blocks
			replaceAllUses(clone, paramMap)
			f.Blocks = nil
			res.Defined = append(res.Defined, clone)
		} else {
			res.Declared = append(res.Declared, Boundary{Orig: f, Clone: clone})
		}

		res.Mapping[f] = clone
		out = append(out, f, clone)

		if isDefined && f.Name() == "main" {
			res.Main = &Boundary{Orig: f, Clone: clone}
		}
	}

	redirectCallSites(out, res.Mapping)
	module.Funcs = out
	return res, nil
}

func inflatedFuncType(reg *layout.Registry, f *ir.Func) (*types.FuncType, bool, error) {
	retType, retChanged, err := inflate.Type(reg, f.Sig.RetType)
	if err != nil {
		return nil, false, err
	}
	changed := retChanged
	params := make([]types.Type, len(f.Sig.Params))
	for i, pt := range f.Sig.Params {
		nt, c, err := inflate.Type(reg, pt)
		if err != nil {
			return nil, false, err
		}
		params[i] = nt
		changed = changed || c
	}
	if !changed {
		return f.Sig, false, nil
	}
	return types.NewFunc(retType, params...), true, nil
}

func isIntrinsic(f *ir.Func) bool {
	return strings.HasPrefix(f.Name(), "llvm.")
}

// redirectCallSites rewrites every direct call to a transformed function so
// it targets the inflated clone instead, per spec §4.6.
func redirectCallSites(funcs []*ir.Func, mapping map[*ir.Func]*ir.Func) {
	for _, f := range funcs {
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				call, ok := inst.(*ir.InstCall)
				if !ok {
					continue
				}
				callee, ok := call.Callee.(*ir.Func)
				if !ok {
					continue
				}
				if clone, ok := mapping[callee]; ok {
					call.Callee = clone
					call.Typ = clone.Sig.RetType
				}
			}
		}
	}
}

// replaceAllUses walks every instruction and terminator in f, replacing
// operand references found as keys of repl with their mapped values. Used
// to remap a cloned function's body onto its new parameter list.
func replaceAllUses(f *ir.Func, repl map[value.Value]value.Value) {
	sub := func(v value.Value) value.Value {
		if nv, ok := repl[v]; ok {
			return nv
		}
		return v
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			switch v := inst.(type) {
			case *ir.InstGetElementPtr:
				v.Src = sub(v.Src)
				for i, idx := range v.Indices {
					v.Indices[i] = sub(idx)
				}
			case *ir.InstBitCast:
				v.From = sub(v.From)
			case *ir.InstLoad:
				v.Src = sub(v.Src)
			case *ir.InstStore:
				v.Src = sub(v.Src)
				v.Dst = sub(v.Dst)
			case *ir.InstCall:
				v.Callee = sub(v.Callee)
				for i, a := range v.Args {
					v.Args[i] = sub(a)
				}
			case *ir.InstPhi:
				for _, inc := range v.Incs {
					inc.X = sub(inc.X)
				}
			}
		}
		if term, ok := b.Term.(*ir.TermRet); ok && term.X != nil {
			term.X = sub(term.X)
		}
	}
}
