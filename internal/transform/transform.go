// Package transform orchestrates the full pipeline: struct layout
// construction (C3), function signature transformation (C6), instruction
// rewriting (C5), and redzone hook emission (C7), in that data-flow order
// (spec §2, §4).
package transform

import (
	"context"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"j5.nz/structzone/internal/hooks"
	"j5.nz/structzone/internal/layout"
	"j5.nz/structzone/internal/rewrite"
	"j5.nz/structzone/internal/sigtransform"
)

// Run transforms module in place. ctx is checked between pipeline stages
// only, since no stage itself has a suspension point (spec §5); a cancelled
// context aborts before the next stage starts.
func Run(ctx context.Context, module *ir.Module, opts Options) error {
	log := opts.logger()
	redzoneSize := opts.RedzoneSize
	if redzoneSize == 0 {
		redzoneSize = layout.DefaultRedzoneSize
	}

	log.Info("building struct layout registry", zap.Int("redzone_size", redzoneSize))
	reg := layout.BuildRegistry(module, redzoneSize)
	snapshot(opts, "layout", module)

	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	log.Info("transforming function signatures")
	sigRes, err := sigtransform.TransformFuncs(reg, module)
	if err != nil {
		return errors.Wrap(err, "function signature transform failed")
	}
	snapshot(opts, "sigtransform", module)

	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	log.Info("rewriting instructions", zap.Int("funcs", len(module.Funcs)))
	st := rewrite.NewState(reg)
	if err := rewrite.Module(st, module.Funcs); err != nil {
		return errors.Wrap(err, "instruction rewrite failed")
	}
	snapshot(opts, "rewrite", module)

	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	log.Info("generating boundary wrappers")
	if err := sigtransform.GenerateWrappers(reg, sigRes); err != nil {
		return errors.Wrap(err, "boundary wrapper generation failed")
	}
	snapshot(opts, "wrappers", module)

	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	log.Info("emitting redzone hooks", zap.Int("alloc_sites", len(st.AllocSites)))
	hooks.Insert(module, st)
	snapshot(opts, "hooks", module)

	log.Info("transform complete", zap.Int("struct_types", len(reg.All())))
	return nil
}
