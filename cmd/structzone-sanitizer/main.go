// Command structzone-sanitizer runs the struct redzone sanitizer transform
// (spec §1) over an LLVM IR module as a standalone pipeline stage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "structzone-sanitizer",
		Short: "Compile-time struct redzone sanitizer",
		Long: `structzone-sanitizer inflates every named struct type in an LLVM IR
module with interposed redzones, rewrites instructions and function
signatures to match, and emits runtime hook calls that catch intra-object
buffer overflows at the moment they happen.

It operates purely as an IR-to-IR transform: run it ahead of your normal
backend compilation step, and link the resulting object code against
runtime/rzrt/cshared.`,
	}
	root.AddCommand(newTransformCmd())
	return root
}
