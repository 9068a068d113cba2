// Package rzrt is the runtime library linked against transformed binaries
// (spec §4.1, §4.2): an ordered interval index tracking every live redzone,
// and a small process-wide facade other packages and cshared call into.
package rzrt

import "github.com/google/btree"

// rzInterval is one registered redzone: the byte range [Start, Start+Size).
type rzInterval struct {
	Start uintptr
	Size  uintptr
}

func lessInterval(a, b rzInterval) bool {
	return a.Start < b.Start
}

// intervalIndex is the ordered interval structure of spec §4.1, backed by a
// github.com/google/btree generic B-tree ordered by start address. insert,
// remove and check all run in O(log n).
type intervalIndex struct {
	tree *btree.BTreeG[rzInterval]
}

func newIntervalIndex() *intervalIndex {
	return &intervalIndex{tree: btree.NewG(32, lessInterval)}
}

func (ix *intervalIndex) insert(start, size uintptr) {
	ix.tree.ReplaceOrInsert(rzInterval{Start: start, Size: size})
}

func (ix *intervalIndex) remove(start uintptr) {
	ix.tree.Delete(rzInterval{Start: start})
}

// removeRange deletes every registered interval whose start address falls
// within [lo, hi), used to tear down a heap object's field redzones in one
// call (rz_heap_free).
func (ix *intervalIndex) removeRange(lo, hi uintptr) {
	var doomed []rzInterval
	ix.tree.AscendRange(rzInterval{Start: lo}, rzInterval{Start: hi}, func(item rzInterval) bool {
		doomed = append(doomed, item)
		return true
	})
	for _, item := range doomed {
		ix.tree.Delete(item)
	}
}

// check implements the original runtime's _CheckPoison walk (see
// DESIGN.md): find the nearest left neighbour L and right neighbour R of
// probe; the access [probe, probe+width) lands inside a registered redzone
// iff L extends past probe, or R starts before the access ends.
func (ix *intervalIndex) check(probe, width uintptr) bool {
	var floor, ceil rzInterval
	var haveFloor, haveCeil bool

	ix.tree.DescendLessOrEqual(rzInterval{Start: probe}, func(item rzInterval) bool {
		floor, haveFloor = item, true
		return false
	})
	ix.tree.AscendGreaterOrEqual(rzInterval{Start: probe + 1}, func(item rzInterval) bool {
		ceil, haveCeil = item, true
		return false
	})

	if haveFloor && floor.Start+floor.Size > probe {
		return true
	}
	if haveCeil && ceil.Start < probe+width {
		return true
	}
	return false
}

func (ix *intervalIndex) reset() {
	ix.tree.Clear(false)
}

func (ix *intervalIndex) len() int {
	return ix.tree.Len()
}
