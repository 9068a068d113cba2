package rzrt

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestIntervalIndex_InsertAndCheck(t *testing.T) {
	ix := newIntervalIndex()
	ix.insert(100, 1) // a one-byte redzone at address 100

	assert.True(t, ix.check(100, 1), "probing exactly the redzone byte must hit")
	assert.False(t, ix.check(50, 1), "probing well before the redzone must miss")
	assert.False(t, ix.check(200, 1), "probing well after the redzone must miss")
}

func TestIntervalIndex_CheckSpanningAccess(t *testing.T) {
	ix := newIntervalIndex()
	ix.insert(104, 1) // redzone right after an 4-byte field at offset 100

	// a 4-byte access starting at 102 spans into the redzone at 104.
	assert.True(t, ix.check(102, 4))
	// a 4-byte access starting at 100 stops exactly at the redzone boundary.
	assert.False(t, ix.check(100, 4))
}

func TestIntervalIndex_RemoveDeregisters(t *testing.T) {
	ix := newIntervalIndex()
	ix.insert(100, 1)
	ix.remove(100)
	assert.False(t, ix.check(100, 1))
}

func TestIntervalIndex_RemoveRange(t *testing.T) {
	ix := newIntervalIndex()
	ix.insert(100, 1)
	ix.insert(108, 1)
	ix.insert(200, 1)

	ix.removeRange(100, 120)

	assert.False(t, ix.check(100, 1))
	assert.False(t, ix.check(108, 1))
	assert.True(t, ix.check(200, 1), "interval outside the removed range must survive")
}

// TestIntervalIndex_NeverHitsOutsideAnyRegisteredInterval is the
// property-based check of the interval index's core soundness property: an
// access can only be flagged if it actually overlaps a registered interval.
// No ecosystem property-testing library appears anywhere in the retrieved
// example corpus, so testing/quick is used here (see DESIGN.md).
func TestIntervalIndex_NeverHitsOutsideAnyRegisteredInterval(t *testing.T) {
	prop := func(starts []uint16, probe uint16, width uint8) bool {
		ix := newIntervalIndex()
		for _, s := range starts {
			ix.insert(uintptr(s), 1)
		}
		got := ix.check(uintptr(probe), uintptr(width)+1)

		want := false
		for _, s := range starts {
			start := uintptr(s)
			if start < uintptr(probe)+uintptr(width)+1 && start+1 > uintptr(probe) {
				want = true
				break
			}
		}
		return got == want
	}
	if err := quick.Check(prop, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
