package main

import (
	"context"
	"os"

	"github.com/llir/llvm/asm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"j5.nz/structzone/internal/transform"
)

func newTransformCmd() *cobra.Command {
	var (
		outputPath   string
		redzoneSize  int
		debugSnap    string
		debugConsole bool
		passName     string
	)

	cmd := &cobra.Command{
		Use:   "transform <in.ll>",
		Short: "Inflate structs and insert redzone hooks in an LLVM IR module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return errors.New("-o output path is required")
			}

			logger, err := newLogger(debugConsole)
			if err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
			defer logger.Sync() //nolint:errcheck

			inputPath := args[0]
			module, err := asm.ParseFile(inputPath)
			if err != nil {
				return errors.Wrapf(err, "failed to parse %s", inputPath)
			}

			logger.Info("running pipeline",
				zap.String("pipeline", passName),
				zap.String("input", inputPath),
				zap.Int("redzone_size", redzoneSize))

			opts := transform.Options{
				RedzoneSize:       redzoneSize,
				DebugSnapshotPath: debugSnap,
				Logger:            logger,
			}
			if err := transform.Run(context.Background(), module, opts); err != nil {
				return errors.Wrap(err, "transform failed")
			}

			if err := os.WriteFile(outputPath, []byte(module.String()), 0o644); err != nil {
				return errors.Wrapf(err, "failed to write %s", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output .ll path (required)")
	cmd.Flags().IntVar(&redzoneSize, "redzone-size", 1, "REDZONE_SIZE in bytes")
	cmd.Flags().StringVar(&debugSnap, "debug-snapshot", "", "write a textual IR snapshot after each pipeline stage, under this path prefix")
	cmd.Flags().BoolVar(&debugConsole, "debug", false, "use a development (console) logger instead of the default JSON logger")
	cmd.Flags().StringVar(&passName, "pass-name", transform.PipelineName, "pipeline name reported in diagnostics, for parity with the host pass-plugin convention")
	cmd.MarkFlagRequired("output") //nolint:errcheck

	return cmd
}

func newLogger(debugConsole bool) (*zap.Logger, error) {
	if debugConsole {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
