package transform

import (
	"j5.nz/structzone/internal/inflate"
	"j5.nz/structzone/internal/rewrite"
)

// Structural error kinds of spec §4.8/§7, re-exported here so a caller of
// Run can check the failure kind with errors.Is(err, transform.ErrX)
// without reaching into the subpackage that actually detected it.
var (
	ErrUnknownStruct        = rewrite.ErrUnknownStruct
	ErrNonConstantIndex     = rewrite.ErrNonConstantIndex
	ErrUnsupportedGEP       = rewrite.ErrUnsupportedGEP
	ErrNonConstantAllocSize = rewrite.ErrNonConstantAllocSize
	ErrOpaquePointer        = inflate.ErrOpaquePointer
)
