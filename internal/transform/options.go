package transform

import "go.uber.org/zap"

// PipelineName is surfaced for log/diagnostic parity with the host
// compiler's pass-plugin naming convention (spec §6); it names no actual
// registered pass since there is no Go hosting of LLVM's PassBuilder.
const PipelineName = "structzone-sanitizer"

// Options configures one Run invocation.
type Options struct {
	// RedzoneSize is REDZONE_SIZE, the byte width of every inserted
	// redzone. Defaults to layout.DefaultRedzoneSize when zero.
	RedzoneSize int
	// DebugSnapshotPath, when non-empty, is the path prefix for a textual IR
	// dump written after each major stage of the pipeline, to
	// "<prefix>.<stage>.ll".
	DebugSnapshotPath string
	// Logger receives structural diagnostics. A no-op logger is used when
	// nil.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
