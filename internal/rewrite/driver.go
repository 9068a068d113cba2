package rewrite

import "github.com/llir/llvm/ir"

// Func rewrites one function body. Handlers for alloca, getelementptr,
// bitcast, load, and call run in a single scan, deferring every mutation
// onto a Queue; phi instructions are only prepared during the scan (spec
// §4.5's interim-bitcast trick) and finalized in a third phase after the
// queue drains, so that phi rewriting never races with the other handlers'
// deferred updates.
func Func(st *State, f *ir.Func) error {
	q := &Queue{}
	var phis []*PhiFixup

	for _, b := range f.Blocks {
		for idx, inst := range b.Insts {
			switch v := inst.(type) {
			case *ir.InstAlloca:
				if err := Alloca(st, v, q); err != nil {
					return err
				}
			case *ir.InstGetElementPtr:
				if err := GEP(st, v, q); err != nil {
					return err
				}
			case *ir.InstBitCast:
				if err := BitCast(st, v, q); err != nil {
					return err
				}
			case *ir.InstLoad:
				if err := Load(st, v, q); err != nil {
					return err
				}
			case *ir.InstCall:
				if err := Call(st, v, q); err != nil {
					return err
				}
			case *ir.InstPhi:
				if fixup := PreparePhi(st, f, b, idx, v); fixup != nil {
					phis = append(phis, fixup)
				}
			}
		}
	}

	q.Drain()

	for _, fixup := range phis {
		FinalizePhi(f, fixup)
	}
	return nil
}

// Module rewrites the body of every defined function in funcs. Function
// signatures themselves are the responsibility of package sigtransform;
// transform.Run calls Module only after sigtransform.TransformFuncs has put
// every inflated clone in place.
func Module(st *State, funcs []*ir.Func) error {
	for _, f := range funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		if err := Func(st, f); err != nil {
			return err
		}
	}
	return nil
}
