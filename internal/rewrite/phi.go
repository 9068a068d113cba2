package rewrite

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"j5.nz/structzone/internal/inflate"
)

// PreparePhi implements the first half of spec §4.5's "phi" rule: an
// interim bitcast of the still-original-typed phi is inserted immediately
// after it, and every other use of the phi within f is redirected to that
// bitcast. The returned fixup is replayed by FinalizePhi once every other
// rewrite in the function has run, breaking the use-cycle phis otherwise
// create (spec §4.9).
func PreparePhi(st *State, f *ir.Func, b *ir.Block, idx int, phi *ir.InstPhi) *PhiFixup {
	newType, changed, err := inflate.Type(st.Reg, phi.Typ)
	if err != nil || !changed {
		return nil
	}

	bc := ir.NewBitCast(phi, newType)

	insts := make([]ir.Instruction, 0, len(b.Insts)+1)
	insts = append(insts, b.Insts[:idx+1]...)
	insts = append(insts, bc)
	insts = append(insts, b.Insts[idx+1:]...)
	b.Insts = insts

	redirectUses(f, phi, bc, bc)

	fixup := &PhiFixup{Block: b, Phi: phi, Bitcast: bc, Inflated: newType}
	st.PhiFixups = append(st.PhiFixups, fixup)
	return fixup
}

// FinalizePhi replaces the original phi with a properly inflated-typed phi
// carrying the same incoming edges, drops the interim bitcast, and
// redirects the bitcast's remaining uses to the new phi.
func FinalizePhi(f *ir.Func, fixup *PhiFixup) {
	newIncs := make([]*ir.Incoming, len(fixup.Phi.Incs))
	for i, inc := range fixup.Phi.Incs {
		newIncs[i] = &ir.Incoming{X: inc.X, Pred: inc.Pred}
	}
	newPhi := ir.NewPhi(newIncs...)
	newPhi.Typ = fixup.Inflated

	b := fixup.Block
	out := make([]ir.Instruction, 0, len(b.Insts))
	for _, inst := range b.Insts {
		switch inst {
		case fixup.Phi:
			out = append(out, newPhi)
		case fixup.Bitcast:
			// dropped
		default:
			out = append(out, inst)
		}
	}
	b.Insts = out

	redirectUses(f, fixup.Bitcast, newPhi, nil)
}

// redirectUses walks every instruction and terminator in f, replacing
// operand references to old with repl. skip, if non-nil, is excluded from
// the walk (used to avoid a freshly-inserted bitcast redirecting itself).
func redirectUses(f *ir.Func, old, repl value.Value, skip ir.Instruction) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if skip != nil && inst == skip {
				continue
			}
			switch v := inst.(type) {
			case *ir.InstGetElementPtr:
				if v.Src == old {
					v.Src = repl
				}
				for i, idx := range v.Indices {
					if idx == value.Value(old) {
						v.Indices[i] = repl
					}
				}
			case *ir.InstBitCast:
				if v.From == old {
					v.From = repl
				}
			case *ir.InstLoad:
				if v.Src == old {
					v.Src = repl
				}
			case *ir.InstStore:
				if v.Src == old {
					v.Src = repl
				}
				if v.Dst == old {
					v.Dst = repl
				}
			case *ir.InstCall:
				if v.Callee == old {
					v.Callee = repl
				}
				for i, a := range v.Args {
					if a == old {
						v.Args[i] = repl
					}
				}
			case *ir.InstPhi:
				for _, inc := range v.Incs {
					if inc.X == old {
						inc.X = repl
					}
				}
			}
		}
		if term, ok := b.Term.(*ir.TermRet); ok && term.X == old {
			term.X = repl
		}
	}
}
