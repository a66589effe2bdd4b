// rebuild clean [path]
package cmd

import (
	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/qobs-build/rebuild/internal/msg"
	"github.com/spf13/cobra"
)

func doClean(cmd *cobra.Command, args []string) {
	layout, err := builder.LoadLayout(targetDir(args))
	if err != nil {
		fatal(err)
	}
	removed, err := builder.Clean(layout)
	if err != nil {
		fatal(err)
	}
	msg.Info("removed %d files from %s", len(removed), layout.OutputDir)
}

var cleanCmd = &cobra.Command{
	Use:   "clean [target path]",
	Short: "Remove object files and the artifact",
	Args:  cobra.MaximumNArgs(1),
	Run:   doClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
