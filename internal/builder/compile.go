package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// CompilePhase holds every compilation unit of the project
type CompilePhase struct {
	Rules []*Rule

	project  *Project
	compiled []bool
}

// sourcePattern returns the glob matching compilation units directly in the source root
func sourcePattern(extensions []string) string {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext = strings.TrimPrefix(ext, "."); ext != "" {
			exts = append(exts, ext)
		}
	}
	switch len(exts) {
	case 0:
		exts = defaultExtensions
	case 1:
		return "*." + exts[0]
	}
	return "*.{" + strings.Join(exts, ",") + "}"
}

// Discover lists the compilation units in the source root in bytewise order
func Discover(l Layout) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(l.SourceDir), sourcePattern(l.Extensions),
		doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("while scanning %s: %w", l.SourceDir, err)
	}

	sources := make([]string, len(matches))
	for i, match := range matches {
		sources[i] = filepath.Join(l.SourceDir, filepath.FromSlash(match))
	}
	slices.Sort(sources)
	return sources, nil
}

// NewCompilePhase discovers all units and resolves their dependencies. Resolution
// runs in parallel; any failure aborts the phase, since a unit whose dependencies
// are unknown can't be judged up to date.
func NewCompilePhase(ctx context.Context, p *Project, resolver DependencyResolver) (*CompilePhase, error) {
	sources, err := Discover(p.Layout)
	if err != nil {
		return nil, err
	}

	rules := make([]*Rule, len(sources))
	err = runJobs(ctx, sources, p.jobs(), func(ctx context.Context, i int, source string) error {
		rule, err := NewRule(ctx, p, resolver, source)
		if err != nil {
			return err
		}
		rules[i] = rule
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CompilePhase{Rules: rules, project: p, compiled: make([]bool, len(rules))}, nil
}

// Stale is always true: whether there is work to do is decided per unit
func (c *CompilePhase) Stale(context.Context) (bool, error) {
	return true, nil
}

// Build compiles every stale unit. Units are independent, so a failing unit never
// stops the others; all failures are returned together as a *CompileError.
func (c *CompilePhase) Build(ctx context.Context) error {
	var todo []int
	for i, rule := range c.Rules {
		stale, err := rule.Stale(ctx)
		if err != nil {
			return fmt.Errorf("could not check status of %s: %w", rule.Input, err)
		}
		if stale {
			todo = append(todo, i)
		}
	}

	c.project.reporter().Planned(len(todo))

	// jobs never return an error, so no unit cancels its siblings; failures
	// are collected per index instead
	failures := make([]*UnitError, len(c.Rules))
	_ = runJobs(ctx, todo, c.project.jobs(), func(ctx context.Context, _ int, i int) error {
		if err := c.Rules[i].Build(ctx); err != nil {
			var uerr *UnitError
			if !errors.As(err, &uerr) {
				uerr = &UnitError{Source: c.Rules[i].Input, ExitCode: -1, Err: err}
			}
			failures[i] = uerr
			return nil
		}
		c.compiled[i] = true
		return nil
	})

	failures = slices.DeleteFunc(failures, func(f *UnitError) bool { return f == nil })
	if len(failures) > 0 {
		return &CompileError{Units: len(c.Rules), Failures: failures}
	}
	return nil
}

// Compiled returns the sources that were successfully compiled, in discovery order
func (c *CompilePhase) Compiled() []string {
	var out []string
	for i, ok := range c.compiled {
		if ok {
			out = append(out, c.Rules[i].Input)
		}
	}
	return out
}

// runJobs runs jobs in parallel, at most limit at a time. The first error cancels
// the context passed to the remaining jobs and is returned.
func runJobs[T any](ctx context.Context, jobs []T, limit int, jobfunc func(ctx context.Context, i int, job T) error) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(limit, 1))

	for i, job := range jobs {
		eg.Go(func() error {
			return jobfunc(ctx, i, job)
		})
	}

	return eg.Wait()
}

var _ Task = (*CompilePhase)(nil)
