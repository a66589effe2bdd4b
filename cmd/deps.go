// rebuild deps [path]
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func doDeps(cmd *cobra.Command, args []string) {
	b := newBuilder(targetDir(args), false)

	ctx, stop := interruptContext()
	defer stop()

	rules, err := b.Rules(ctx)
	if err != nil {
		fatal(err)
	}

	root := b.Project.Root
	rel := func(path string) string {
		if r, err := filepath.Rel(root, path); err == nil {
			return filepath.ToSlash(r)
		}
		return path
	}

	w := cmd.OutOrStdout()
	for _, rule := range rules {
		fmt.Fprintf(w, "%s -> %s\n", color.HiCyanString(rel(rule.Input)), rel(rule.Output))
		for _, dep := range rule.Dependencies {
			if dep == rule.Input {
				continue
			}
			if filepath.IsAbs(dep) {
				dep = rel(dep)
			}
			fmt.Fprintf(w, "    %s\n", dep)
		}
	}
}

var depsCmd = &cobra.Command{
	Use:   "deps [target path]",
	Short: "Print every compilation unit with the files it depends on",
	Args:  cobra.MaximumNArgs(1),
	Run:   doDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Resolve with the flags of the given profile")
	depsCmd.Flags().StringVar(&flagCompiler, "compiler", "", "C++ compiler to use (default: $CXX or the first one found)")
}
