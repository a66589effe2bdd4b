package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/rebuild/internal/builder/gen"
	"github.com/qobs-build/rebuild/internal/toolchain"
)

// State is the position of a build run in its lifecycle
type State int

const (
	Idle State = iota
	Compiling
	Linking
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Linking:
		return "linking"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Report summarizes a build run
type Report struct {
	State    State
	Units    int          // number of discovered compilation units
	Compiled []string     // units that were rebuilt successfully, in discovery order
	Failures []*UnitError // units that failed to compile, in discovery order
	Linked   bool         // the linker ran and succeeded
	LinkErr  *LinkError
}

// UpToDate reports whether the run had nothing to do
func (r *Report) UpToDate() bool {
	return r.State == Done && len(r.Compiled) == 0 && !r.Linked
}

// Builder drives a project through its compile and link phases
type Builder struct {
	Project *Project

	resolver DependencyResolver
	cfg      *Config
	env      ConfigEnv
	state    State
	rules    []*Rule // units of the last run
}

// New returns a builder for an already configured project. A nil resolver asks
// the project's compiler directly.
func New(p *Project, resolver DependencyResolver) *Builder {
	if resolver == nil {
		resolver = NewResolver(p)
	}
	return &Builder{Project: p, resolver: resolver}
}

// Options are the command line overrides applied on top of Rebuild.toml
type Options struct {
	Profile           string
	Jobs              int
	Compiler          string
	Reporter          Reporter
	CacheDependencies bool // keep dependency lists between runs, for watch mode
}

// NewBuilderInDirectory loads the configuration of the project in path and
// sets up the toolchain it asks for
func NewBuilderInDirectory(path string, opts Options) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg, env, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	profile := opts.Profile
	if profile == "" {
		profile = "debug"
	}
	cflags, err := cfg.Cflags(profile)
	if err != nil {
		return nil, err
	}

	compiler := opts.Compiler
	if compiler == "" {
		compiler = cfg.Toolchain.Compiler
	}
	if compiler == "" {
		if compiler, err = toolchain.FindCompiler(); err != nil {
			return nil, err
		}
	}

	p := &Project{
		Layout: cfg.Layout(path),
		Toolchain: Toolchain{
			Runner:   toolchain.ExecRunner{},
			Compiler: compiler,
			Linker:   cfg.Toolchain.Linker,
			Cflags:   cflags,
			Ldflags:  cfg.Toolchain.Ldflags,
		},
		Reporter: opts.Reporter,
		Jobs:     opts.Jobs,
	}

	var resolver DependencyResolver = NewResolver(p)
	if opts.CacheDependencies {
		if resolver, err = NewCachingResolver(resolver, p.clock(), 0); err != nil {
			return nil, err
		}
	}

	b := New(p, resolver)
	b.cfg, b.env = cfg, env
	return b, nil
}

// State returns the state the last run ended in
func (b *Builder) State() State { return b.state }

func (b *Builder) prepare() error {
	if err := b.Project.validate(); err != nil {
		return err
	}
	if err := b.Project.Check(); err != nil {
		return err
	}
	if b.cfg != nil {
		return b.cfg.RunPrebuild(b.env)
	}
	return nil
}

// Run compiles every stale unit and, if all of them succeeded, links the
// artifact when it is stale. The returned report is never nil.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	report := &Report{State: Idle}
	b.state = Idle

	fail := func(err error) (*Report, error) {
		report.State = Failed
		b.state = Failed
		return report, err
	}

	if err := b.prepare(); err != nil {
		return fail(err)
	}

	report.State, b.state = Compiling, Compiling
	compile, err := NewCompilePhase(ctx, b.Project, b.resolver)
	if err != nil {
		return fail(err)
	}
	report.Units = len(compile.Rules)
	b.rules = compile.Rules

	_, err = runTask(ctx, compile)
	report.Compiled = compile.Compiled()
	if err != nil {
		var cerr *CompileError
		if errors.As(err, &cerr) {
			report.Failures = cerr.Failures
		}
		return fail(err)
	}

	report.State, b.state = Linking, Linking
	link, err := NewLinkPhase(b.Project)
	if err != nil {
		return fail(err)
	}
	linked, err := runTask(ctx, link)
	if err != nil {
		errors.As(err, &report.LinkErr)
		return fail(err)
	}
	report.Linked = linked

	report.State, b.state = Done, Done
	return report, nil
}

// Rules resolves every compilation unit without building anything
func (b *Builder) Rules(ctx context.Context) ([]*Rule, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	compile, err := NewCompilePhase(ctx, b.Project, b.resolver)
	if err != nil {
		return nil, err
	}
	b.rules = compile.Rules
	return compile.Rules, nil
}

// BuildAndRun builds the project and then executes the artifact with args,
// connected to the standard streams
func (b *Builder) BuildAndRun(ctx context.Context, args []string) error {
	if _, err := b.Run(ctx); err != nil {
		return err
	}

	artifact := b.Project.Artifact
	if _, err := os.Stat(artifact); err != nil {
		return fmt.Errorf("%w: %s", errCantRunLink, b.Project.rel(artifact))
	}

	cmd := exec.CommandContext(ctx, artifact, args...)
	cmd.Dir = b.Project.Root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// LoadLayout returns the layout configured for the project in path, without
// looking for a toolchain
func LoadLayout(path string) (Layout, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return Layout{}, err
	}
	cfg, _, err := LoadConfig(path)
	if err != nil {
		return Layout{}, err
	}
	return cfg.Layout(path), nil
}

// Clean removes every object file and the artifact from the output root and
// returns the removed paths
func Clean(l Layout) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(l.OutputDir), "*"+l.objectExt(), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("while scanning %s: %w", l.OutputDir, err)
	}

	targets := make([]string, 0, len(matches)+1)
	for _, match := range matches {
		targets = append(targets, filepath.Join(l.OutputDir, filepath.FromSlash(match)))
	}
	if !slices.Contains(targets, l.Artifact) {
		targets = append(targets, l.Artifact)
	}

	var removed []string
	for _, path := range targets {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// WatchDirs returns the directories a change in which may require a rebuild:
// the source root, the project directory and every directory holding a
// dependency resolved by the last run. The output root is never included.
func (b *Builder) WatchDirs() []string {
	l := b.Project.Layout
	dirs := []string{filepath.Clean(l.SourceDir), filepath.Clean(l.Root)}
	for _, rule := range b.rules {
		for _, dep := range rule.Dependencies {
			if !filepath.IsAbs(dep) {
				dep = filepath.Join(l.Root, dep)
			}
			dirs = append(dirs, filepath.Dir(dep))
		}
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)
	return slices.DeleteFunc(dirs, func(dir string) bool {
		return dir == filepath.Clean(l.OutputDir)
	})
}

// Generate describes the build graph with g and writes the result into the
// output root, returning the path of the written file
func (b *Builder) Generate(ctx context.Context, g gen.Generator) (string, error) {
	rules, err := b.Rules(ctx)
	if err != nil {
		return "", err
	}

	p := b.Project
	g.SetToolchain(p.Compiler, p.linker(), toolchain.JoinArgs(p.Cflags), toolchain.JoinArgs(p.Ldflags))

	objects := make([]string, len(rules))
	for i, rule := range rules {
		implicit := slices.DeleteFunc(slices.Clone(rule.Dependencies), func(dep string) bool { return dep == rule.Input })
		for j, dep := range implicit {
			if !filepath.IsAbs(dep) {
				implicit[j] = filepath.Join(p.Root, dep)
			}
		}
		g.AddUnit(rule.Input, rule.Output, implicit)
		objects[i] = rule.Output
	}
	g.SetArtifact(p.Artifact, objects)

	path := filepath.Join(p.OutputDir, g.BuildFile())
	if err := os.WriteFile(path, []byte(g.Generate()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
