// rebuild init [name], rebuild new [path]
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/qobs-build/rebuild/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "rebuild"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

func configTemplate(name string) string {
	return `[project]
name = "` + name + `"

[toolchain]
cflags = ["-Wall", "-Wextra"]
ldflags = []

[toolchain.'target_os == "linux"']
ldflags = ["-pthread"]

[profile.release]
opt-level = 3
`
}

// initIn initializes a project in an existing directory
func initIn(dir, name string, noGit bool) {
	cfg := configTemplate(name)
	if _, err := builder.ParseConfig(strings.NewReader(cfg), builder.NewConfigEnv(dir)); err != nil {
		msg.Fatal("invalid project name %q: %v", name, err)
	}

	writefile(cfg, dir, builder.ConfigFilename)

	mkdir(dir, "src")
	mkdir(dir, "out")
	// out/ must exist before the first build, keep it in fresh clones
	writefile("", dir, "out", ".gitkeep")

	// src/main.cpp
	writefile(`#include <iostream>

int main() {
    std::cout << "Hello, World!" << std::endl;
    return 0;
}
`, dir, "src", "main.cpp")

	// .gitignore
	writefile(`out/*
!out/.gitkeep
.env
`, dir, ".gitignore")

	if !noGit {
		_, err := git.PlainInit(dir, false)
		switch {
		case errors.Is(err, git.ErrTargetDirNotEmpty):
		case err != nil:
			msg.Warn("could not initialize a git repository: %v", err)
		default:
			fmt.Printf("%s git repository in %s\n", color.HiGreenString("Initialized"), filepath.ToSlash(dir))
		}
	}

	programName := getProgramName()
	fmt.Printf("You can now do %s to build, or %s to build and run.\n", color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" run "+dir))
}

var noGit bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], noGit)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), noGit)
	},
}

func init() {
	// rebuild init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&noGit, "no-git", false, "Don't initialize a git repository")

	// rebuild new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVar(&noGit, "no-git", false, "Don't initialize a git repository")
}
