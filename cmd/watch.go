// rebuild watch [path]
package cmd

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/qobs-build/rebuild/internal/msg"
	"github.com/qobs-build/rebuild/internal/watch"
	"github.com/spf13/cobra"
)

var flagDebounce time.Duration

// configChanged reports whether any of paths is the project's configuration
func configChanged(root string, paths []string) bool {
	for _, path := range paths {
		if filepath.Dir(path) != root {
			continue
		}
		if base := filepath.Base(path); base == builder.ConfigFilename || base == ".env" {
			return true
		}
	}
	return false
}

func doWatch(cmd *cobra.Command, args []string) {
	target := targetDir(args)
	b := newBuilder(target, true)
	root := filepath.Clean(b.Project.Root)

	ctx, stop := interruptContext()
	defer stop()

	w, err := watch.New()
	if err != nil {
		fatal(err)
	}
	defer w.Stop()

	var outputDir atomic.Pointer[string]
	setOutputDir := func(b *builder.Builder) {
		out := filepath.Clean(b.Project.OutputDir)
		outputDir.Store(&out)
	}
	setOutputDir(b)
	w.Ignore = func(path string) bool {
		out := *outputDir.Load()
		return path == out || strings.HasPrefix(path, out+string(filepath.Separator))
	}

	// guards b, which is replaced when the configuration changes; rebuilds never overlap
	var mu sync.Mutex

	rebuild := func(reload bool) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}

		if reload {
			nb, err := builder.NewBuilderInDirectory(target, buildOptions(true))
			if err != nil {
				printError(err)
				return
			}
			b = nb
			setOutputDir(b)
			msg.Info("reloaded %s", builder.ConfigFilename)
		}

		start := time.Now()
		report, err := b.Run(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			printError(err)
		default:
			summarize(b, report, start)
		}

		// newly included headers may live in directories not watched yet
		if err := w.Add(b.WatchDirs()...); err != nil {
			msg.Warn("could not watch all dependency directories: %v", err)
		}
	}

	rebuild(false)

	debouncer := watch.NewDebouncer(flagDebounce, func(paths []string) {
		if flagVerbose {
			for _, path := range paths {
				msg.Info("changed: %s", path)
			}
		}
		rebuild(configChanged(root, paths))
	})

	w.Start(ctx)
	msg.Info("watching %d directories, press Ctrl-C to stop", w.Len())
	for ev := range w.Events() {
		debouncer.Add(ev.Path)
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch [target path]",
	Short: "Rebuild whenever a source file or one of its dependencies changes",
	Long: `Rebuild whenever a source file or one of its dependencies changes.
Editing Rebuild.toml or .env reloads the configuration before the next build.
Variables from .env never override ones already set in the environment.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBuildFlags(watchCmd)
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultWindow, "How long to wait for changes to settle before rebuilding")
}
