// rebuild run [path] [-- args]
package cmd

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	target := "."
	if dash := cmd.ArgsLenAtDash(); dash != 0 && len(args) > 0 {
		target = args[0]
		args = args[1:]
	}
	b := newBuilder(target, false)

	ctx, stop := interruptContext()
	defer stop()

	if err := b.BuildAndRun(ctx, args); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(max(exitErr.ExitCode(), 1))
		}
		fatal(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [target path] [-- args...]",
	Short: "Build and run the project",
	Long:  `Build and run the project. If no target path is given, uses ".". Arguments after -- are passed to the program.`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// rebuild run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
