// Package cshared exposes runtime/rzrt's facade as the C ABI described in
// spec §6, so a binary produced by linking structzone-sanitizer-transformed
// object code against this library can call the rz_* hooks directly.
package main

// #include <malloc.h>
import "C"

import (
	"unsafe"

	"j5.nz/structzone/runtime/rzrt"
)

//export rt_probe
func rt_probe() C.int {
	return C.int(rzrt.Probe())
}

//export rz_add
func rz_add(ptr unsafe.Pointer, size C.size_t) {
	rzrt.Add(ptr, uintptr(size))
}

//export rz_rm
func rz_rm(ptr unsafe.Pointer) {
	rzrt.Remove(ptr)
}

//export rz_check
func rz_check(ptr unsafe.Pointer, width C.size_t) {
	rzrt.Check(ptr, uintptr(width))
}

//export rz_heap_free
func rz_heap_free(ptr unsafe.Pointer) {
	rzrt.HeapFree(ptr, uintptr(C.malloc_usable_size(ptr)))
}

//export rz_rm_between
func rz_rm_between(lo, hi unsafe.Pointer) {
	rzrt.RemoveBetween(lo, hi)
}

//export rz_reset
func rz_reset() {
	rzrt.Reset()
}

//export rz_debug_print
func rz_debug_print() {
	rzrt.DebugPrint()
}

func main() {}
