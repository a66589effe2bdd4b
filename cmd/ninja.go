// rebuild ninja [path]
package cmd

import (
	"github.com/qobs-build/rebuild/internal/builder/gen"
	"github.com/qobs-build/rebuild/internal/msg"
	"github.com/spf13/cobra"
)

var flagInvokeNinja bool

func doNinja(cmd *cobra.Command, args []string) {
	b := newBuilder(targetDir(args), false)

	ctx, stop := interruptContext()
	defer stop()

	g := &gen.NinjaGen{}
	path, err := b.Generate(ctx, g)
	if err != nil {
		fatal(err)
	}
	msg.Info("wrote %s", path)

	if flagInvokeNinja {
		if err := g.Invoke(b.Project.OutputDir); err != nil {
			fatal(err)
		}
	}
}

var ninjaCmd = &cobra.Command{
	Use:   "ninja [target path]",
	Short: "Write a build.ninja describing the same build into the output directory",
	Args:  cobra.MaximumNArgs(1),
	Run:   doNinja,
}

func init() {
	rootCmd.AddCommand(ninjaCmd)
	ninjaCmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Generate with the flags of the given profile")
	ninjaCmd.Flags().StringVar(&flagCompiler, "compiler", "", "C++ compiler to use (default: $CXX or the first one found)")
	ninjaCmd.Flags().BoolVar(&flagInvokeNinja, "invoke", false, "Run ninja after generating")
}
