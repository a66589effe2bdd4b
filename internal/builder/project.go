package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qobs-build/rebuild/internal/toolchain"
)

const (
	depFlag         = "-MM"
	compileOnlyFlag = "-c"
	outputFlag      = "-o"

	defaultObjectExt = ".o"
	defaultArtifact  = "target"
)

var defaultExtensions = []string{"cpp", "cc"}

// Layout describes where sources, objects and the final artifact live
type Layout struct {
	Root       string   // project directory, the toolchain runs here
	SourceDir  string   // flat directory of compilation units
	OutputDir  string   // receives objects and the artifact
	Extensions []string // recognized compilation unit extensions, without the dot
	ObjectExt  string
	Artifact   string // absolute path of the linked executable
}

// NewLayout returns the default layout of a project: src/ and out/ under root
func NewLayout(root string) Layout {
	out := filepath.Join(root, "out")
	return Layout{
		Root:       root,
		SourceDir:  filepath.Join(root, "src"),
		OutputDir:  out,
		Extensions: defaultExtensions,
		ObjectExt:  defaultObjectExt,
		Artifact:   filepath.Join(out, artifactName(defaultArtifact)),
	}
}

func artifactName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// ObjectPath returns the object file produced from source
func (l Layout) ObjectPath(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(l.OutputDir, stem+l.objectExt())
}

func (l Layout) objectExt() string {
	if l.ObjectExt == "" {
		return defaultObjectExt
	}
	return l.ObjectExt
}

// Check verifies that both roots exist and are distinct directories
func (l Layout) Check() error {
	for _, dir := range []string{l.SourceDir, l.OutputDir} {
		info, err := os.Stat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return &PreconditionError{Path: dir, Err: ErrMissingRoot}
		}
		if err != nil {
			return &PreconditionError{Path: dir, Err: err}
		}
		if !info.IsDir() {
			return &PreconditionError{Path: dir, Err: errors.New("not a directory")}
		}
	}
	if filepath.Clean(l.SourceDir) == filepath.Clean(l.OutputDir) {
		return &PreconditionError{Path: l.OutputDir, Err: errors.New("output directory must differ from the source directory")}
	}
	return nil
}

// rel shortens path for display
func (l Layout) rel(path string) string {
	if rel, err := filepath.Rel(l.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// Toolchain holds the external tools and the flags passed to them
type Toolchain struct {
	Runner   toolchain.Runner
	Compiler string
	Linker   string
	Cflags   []string
	Ldflags  []string
}

func (tc Toolchain) linker() string {
	if tc.Linker != "" {
		return tc.Linker
	}
	return tc.Compiler
}

// Project is everything a build run needs to know
type Project struct {
	Layout
	Toolchain
	Clock    Clock
	Reporter Reporter
	Jobs     int
}

func (p *Project) clock() Clock {
	if p.Clock == nil {
		return FileClock{Dir: p.Root}
	}
	return p.Clock
}

func (p *Project) reporter() Reporter {
	if p.Reporter == nil {
		return nopReporter{}
	}
	return p.Reporter
}

func (p *Project) jobs() int {
	if p.Jobs <= 0 {
		return runtime.NumCPU()
	}
	return p.Jobs
}

func (p *Project) validate() error {
	if p.Runner == nil {
		return errors.New("internal error: project has no process runner")
	}
	if p.Compiler == "" {
		return fmt.Errorf("no compiler configured: %w", toolchain.ErrNoCompiler)
	}
	return nil
}
