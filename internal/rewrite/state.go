// Package rewrite implements the instruction rewriter (spec §4.5): one
// handler per instruction kind, each deferring its mutation onto a Queue so
// that the in-progress scan of a function body is never invalidated.
package rewrite

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"j5.nz/structzone/internal/layout"
)

// AllocSite records a heap-allocation call site whose size argument was
// scaled for an inflated struct. The hook emitter (C7) consults these to
// know how many per-element redzones to register after the call.
type AllocSite struct {
	Call     *ir.InstCall
	Struct   *layout.StructInfo
	NumElems int
}

// PhiFixup is the deferred third-phase rewrite for one phi instruction,
// described in spec §4.5/§4.9: an interim bitcast stands in for the phi
// until every other rewrite in the function completes.
type PhiFixup struct {
	Block    *ir.Block
	Phi      *ir.InstPhi
	Bitcast  *ir.InstBitCast
	Inflated types.Type
}

// State is the per-module data shared by C5-C7: the struct registry, the
// set of scaled allocation sites, and the phis awaiting their third-phase
// rewrite. It is created once per transform.Run invocation and discarded at
// exit, per spec §3's lifecycle note.
type State struct {
	Reg        *layout.Registry
	AllocSites []*AllocSite
	PhiFixups  []*PhiFixup
}

// NewState creates an empty State bound to reg.
func NewState(reg *layout.Registry) *State {
	return &State{Reg: reg}
}

// Queue collects deferred rewrites recorded while scanning one function
// body, applied only after the scan completes (spec §4.5, §9).
type Queue struct {
	items []func()
}

// Defer records a rewrite to run once the current scan finishes.
func (q *Queue) Defer(fn func()) {
	q.items = append(q.items, fn)
}

// Drain applies every deferred rewrite, in recorded order, and clears the
// queue.
func (q *Queue) Drain() {
	items := q.items
	q.items = nil
	for _, fn := range items {
		fn()
	}
}
