package builder_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/qobs-build/rebuild/internal/toolchain"
	"github.com/stretchr/testify/require"
)

// invocation is one call the fake toolchain received
type invocation struct {
	kind    string // "deps", "cc" or "link"
	subject string // base name of the source, or of the linked artifact
}

// fakeToolchain behaves like a C++ compiler driver: it answers -MM queries from
// a table, and compiling or linking writes the output file with a modification
// time taken from a monotonic counter.
type fakeToolchain struct {
	mu       sync.Mutex
	tick     time.Time
	deps     map[string][]string // source base name -> extra dependencies
	failing  map[string]bool     // source base names that fail to compile
	partial  map[string]bool     // failing sources that still write their object first
	failLink bool
	calls    []invocation
}

func (f *fakeToolchain) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick = f.tick.Add(time.Second)
	return f.tick
}

func (f *fakeToolchain) record(kind, subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{kind: kind, subject: subject})
}

func (f *fakeToolchain) writeOutput(path string) error {
	if err := os.WriteFile(path, []byte("obj"), 0o644); err != nil {
		return err
	}
	t := f.now()
	return os.Chtimes(path, t, t)
}

func (f *fakeToolchain) Run(ctx context.Context, dir, name string, args []string) (toolchain.Result, error) {
	switch {
	case slices.Contains(args, "-MM"):
		src := args[len(args)-2]
		f.record("deps", filepath.Base(src))
		f.mu.Lock()
		extra := f.deps[filepath.Base(src)]
		f.mu.Unlock()
		line := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".o: " + src
		for _, dep := range extra {
			line += " \\\n  " + dep
		}
		return toolchain.Result{Stdout: []byte(line + "\n")}, nil

	case slices.Contains(args, "-c"):
		src, out := args[len(args)-4], args[len(args)-1]
		f.record("cc", filepath.Base(src))
		f.mu.Lock()
		fail, partial := f.failing[filepath.Base(src)], f.partial[filepath.Base(src)]
		f.mu.Unlock()
		if partial {
			if err := f.writeOutput(out); err != nil {
				return toolchain.Result{}, err
			}
		}
		if fail {
			return toolchain.Result{
				ExitCode: 1,
				Stderr:   []byte(fmt.Sprintf("%s:1:1: error: expected ';'\n", src)),
			}, nil
		}
		return toolchain.Result{}, f.writeOutput(out)

	default:
		i := slices.Index(args, "-o")
		out := args[i+1]
		f.record("link", filepath.Base(out))
		if f.failLink {
			return toolchain.Result{ExitCode: 1, Stderr: []byte("undefined reference to `main'\n")}, nil
		}
		return toolchain.Result{}, f.writeOutput(out)
	}
}

// count returns how many invocations of kind were recorded
func (f *fakeToolchain) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

// compiled returns the base names of the compiled sources, in call order
func (f *fakeToolchain) compiled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.kind == "cc" {
			out = append(out, c.subject)
		}
	}
	return out
}

func (f *fakeToolchain) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// fixture is a project on disk driven by a fake toolchain
type fixture struct {
	t    *testing.T
	root string
	tc   *fakeToolchain
	proj *builder.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "out"), 0o755))

	tc := &fakeToolchain{
		tick:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		deps:    make(map[string][]string),
		failing: make(map[string]bool),
		partial: make(map[string]bool),
	}
	proj := &builder.Project{
		Layout: builder.NewLayout(root),
		Toolchain: builder.Toolchain{
			Runner:   tc,
			Compiler: "c++",
			Cflags:   []string{"-Wall"},
		},
		Jobs: 1,
	}
	return &fixture{t: t, root: root, tc: tc, proj: proj}
}

// path joins elem onto the project root
func (fx *fixture) path(elem ...string) string {
	return filepath.Join(append([]string{fx.root}, elem...)...)
}

// write creates or overwrites a file under the project root and stamps it with
// the next tick
func (fx *fixture) write(rel string) string {
	fx.t.Helper()
	path := fx.path(filepath.FromSlash(rel))
	require.NoError(fx.t, os.WriteFile(path, []byte("// "+rel+"\n"), 0o644))
	fx.touch(path)
	return path
}

// touch advances the modification time of path past everything built so far
func (fx *fixture) touch(path string) {
	fx.t.Helper()
	t := fx.tc.now()
	require.NoError(fx.t, os.Chtimes(path, t, t))
}

func (fx *fixture) mtime(path string) time.Time {
	fx.t.Helper()
	info, err := os.Stat(path)
	require.NoError(fx.t, err)
	return info.ModTime()
}

func (fx *fixture) run() (*builder.Report, error) {
	fx.t.Helper()
	return builder.New(fx.proj, nil).Run(context.Background())
}

func (fx *fixture) artifact() string { return fx.proj.Artifact }

type result = toolchain.Result

// runnerFunc adapts a function to toolchain.Runner
type runnerFunc func(ctx context.Context, dir, name string, args []string) (result, error)

func (f runnerFunc) Run(ctx context.Context, dir, name string, args []string) (result, error) {
	return f(ctx, dir, name, args)
}

type recordingReporter struct {
	mu       sync.Mutex
	planned  []int
	started  []string
	finished []error
	warnings []string
}

func (r *recordingReporter) Planned(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planned = append(r.planned, n)
}

func (r *recordingReporter) Started(action, subject, cmdline string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, action+" "+subject)
}

func (r *recordingReporter) Finished(action, subject string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, err)
}

func (r *recordingReporter) Warn(format string, a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, a...))
}

type recordingGenerator struct {
	compiler, linker, cflags, ldflags string

	units    [][3]any
	artifact string
	objects  []string
}

func (g *recordingGenerator) SetToolchain(compiler, linker, cflags, ldflags string) {
	g.compiler, g.linker, g.cflags, g.ldflags = compiler, linker, cflags, ldflags
}

func (g *recordingGenerator) AddUnit(source, object string, deps []string) {
	g.units = append(g.units, [3]any{source, object, deps})
}

func (g *recordingGenerator) SetArtifact(output string, objects []string) {
	g.artifact, g.objects = output, objects
}

func (g *recordingGenerator) Generate() string    { return "# generated\n" }
func (g *recordingGenerator) BuildFile() string   { return "build.ninja" }
func (g *recordingGenerator) Invoke(string) error { return nil }
