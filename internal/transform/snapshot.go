package transform

import (
	"os"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// snapshot writes module's textual IR to opts.DebugSnapshotPath, suffixed
// with stage, when a snapshot path was configured. A failure to write is
// logged but never aborts the transform; the snapshot is a debugging aid,
// not part of the contract.
func snapshot(opts Options, stage string, module *ir.Module) {
	if opts.DebugSnapshotPath == "" {
		return
	}
	path := opts.DebugSnapshotPath + "." + stage + ".ll"
	if err := os.WriteFile(path, []byte(module.String()), 0o644); err != nil {
		opts.logger().Warn("failed to write debug snapshot",
			zap.String("stage", stage), zap.Error(errors.WithStack(err)))
		return
	}
	opts.logger().Debug("wrote debug snapshot", zap.String("stage", stage), zap.String("path", path))
}
