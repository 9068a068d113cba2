package rzrt

import (
	"fmt"
	"os"
	"sync"
	"unsafe"
)

var (
	mu    sync.Mutex
	index = newIntervalIndex()
)

// Add registers a redzone (or live aggregate) spanning size bytes starting
// at ptr. Called after every aggregate creation, stack or heap (spec
// §4.7).
func Add(ptr unsafe.Pointer, size uintptr) {
	mu.Lock()
	defer mu.Unlock()
	index.insert(uintptr(ptr), size)
}

// Remove deregisters the interval starting at ptr, emitted before a
// function return for each redzone of its stack aggregates.
func Remove(ptr unsafe.Pointer) {
	mu.Lock()
	defer mu.Unlock()
	index.remove(uintptr(ptr))
}

// RemoveBetween deregisters every interval starting within [lo, hi), the
// same teardown HeapFree performs, but with an explicit end address instead
// of a size.
func RemoveBetween(lo, hi unsafe.Pointer) {
	mu.Lock()
	defer mu.Unlock()
	index.removeRange(uintptr(lo), uintptr(hi))
}

// HeapFree deregisters every interval belonging to the heap aggregate of
// size bytes starting at ptr, emitted before a deallocator call.
func HeapFree(ptr unsafe.Pointer, size uintptr) {
	mu.Lock()
	defer mu.Unlock()
	index.removeRange(uintptr(ptr), uintptr(ptr)+size)
}

// Check verifies that the access [ptr, ptr+width) does not land inside a
// registered redzone. An illegal access aborts the process immediately, per
// spec §4.2's "detected intrusion halts the process" contract — there is no
// recoverable path once corruption has reached the boundary of a field.
func Check(ptr unsafe.Pointer, width uintptr) {
	mu.Lock()
	hit := index.check(uintptr(ptr), width)
	mu.Unlock()

	if hit {
		fmt.Fprintf(os.Stderr, "structzone-sanitizer: redzone violation at %p (width %d)\n", ptr, width)
		os.Exit(2)
	}
}

// Reset clears every registered interval. Exposed for test harnesses and
// for a host that reuses the process between runs; production binaries
// never call it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	index.reset()
}

// DebugPrint writes the current interval count to stderr, a minimal
// diagnostic aid mirroring the original runtime's debug dump.
func DebugPrint() {
	mu.Lock()
	n := index.len()
	mu.Unlock()
	fmt.Fprintf(os.Stderr, "structzone-sanitizer: %d live intervals\n", n)
}

// Probe reports that the runtime library is linked and reachable; cshared
// exposes it as rt_probe so a host can sanity-check the link step before
// relying on the rest of the ABI.
func Probe() int32 {
	return 1
}
