package rewrite

import "github.com/pkg/errors"

// Structural IR errors (spec §4.8, §7): encountering any of these means the
// input module is not well-formed for this transform, and the whole run
// aborts with no output.
var (
	ErrUnknownStruct        = errors.New("unknown struct type encountered during rewriting")
	ErrNonConstantIndex     = errors.New("non-constant index into a struct in getelementptr")
	ErrUnsupportedGEP       = errors.New("unsupported getelementptr index chain")
	ErrNonConstantAllocSize = errors.New("non-constant size argument in allocator call")
)
