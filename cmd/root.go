// rebuild [path], rebuild build [path]
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/qobs-build/rebuild/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagProfile  string
	flagJobs     int
	flagProgress bool
	flagVerbose  bool
	flagCompiler string
	flagColor    EnumValue = NewEnumValue("auto", map[string]string{
		"auto":   "Color output when writing to a terminal (default)",
		"always": "Always color output",
		"never":  "Never color output",
	})
)

func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func buildOptions(cacheDeps bool) builder.Options {
	return builder.Options{
		Profile:           flagProfile,
		Jobs:              flagJobs,
		Compiler:          flagCompiler,
		Reporter:          msg.NewConsole(msg.Output, flagVerbose, flagProgress),
		CacheDependencies: cacheDeps,
	}
}

func newBuilder(target string, cacheDeps bool) *builder.Builder {
	b, err := builder.NewBuilderInDirectory(target, buildOptions(cacheDeps))
	if err != nil {
		fatal(err)
	}
	return b
}

// interruptContext is cancelled on Ctrl-C, which also stops running tools
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// printError prints err. Unit and link diagnostics have already been printed
// by the console when they happened; resolver diagnostics have not.
func printError(err error) {
	msg.Error("%v", err)
	var rerr *builder.ResolveError
	if errors.As(err, &rerr) && strings.TrimSpace(rerr.Diagnostics()) != "" {
		iw := &msg.IndentWriter{Indent: "    ", W: msg.Output}
		fmt.Fprintln(iw, strings.TrimRight(rerr.Diagnostics(), "\n"))
	}
}

func fatal(err error) {
	printError(err)
	os.Exit(1)
}

// summarize prints the outcome of a successful run
func summarize(b *builder.Builder, report *builder.Report, start time.Time) {
	artifact := b.Project.Artifact
	switch {
	case report.UpToDate():
		msg.Info("%s is up to date", artifact)
	case report.Linked:
		msg.Info("built %s (%d of %d units compiled) in %s", artifact, len(report.Compiled), report.Units,
			time.Since(start).Round(time.Millisecond))
	default:
		msg.Info("compiled %d of %d units, nothing to link", len(report.Compiled), report.Units)
	}
}

func doBuild(cmd *cobra.Command, args []string) {
	b := newBuilder(targetDir(args), false)

	ctx, stop := interruptContext()
	defer stop()

	start := time.Now()
	report, err := b.Run(ctx)
	if err != nil {
		fatal(err)
	}
	summarize(b, report, start)
}

var rootCmd = &cobra.Command{
	Use:   "rebuild [target path]",
	Short: "Incremental build tool for flat C++ projects",
	Long: `Compiles every C++ source file in src/ whose object in out/ is out of date,
then links all objects in out/ into a single executable.`,
	Args: cobra.MaximumNArgs(1),
	Run:  doBuild,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch flagColor.Value() {
		case "always":
			color.NoColor = false
		case "never":
			color.NoColor = true
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [target path]",
	Short: "Build the project",
	Long:  `Build the project. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)
	rootCmd.PersistentFlags().VarP(&flagColor, "color", "", "When to color output, one of "+flagColor.HelpString())
	rootCmd.RegisterFlagCompletionFunc("color", flagColor.CompletionFunc())

	// rebuild build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Build with the given profile")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "Number of parallel compiler jobs (default: number of CPUs)")
	cmd.Flags().BoolVar(&flagProgress, "progress", false, "Show a progress bar instead of one line per unit")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print full command lines")
	cmd.Flags().StringVar(&flagCompiler, "compiler", "", "C++ compiler to use (default: $CXX or the first one found)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
