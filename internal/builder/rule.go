package builder

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/qobs-build/rebuild/internal/toolchain"
)

// Rule is a single compilation unit: one source file, the files it depends on
// and the object file it compiles to.
type Rule struct {
	Input        string
	Output       string
	Dependencies []string

	project *Project
}

// NewRule builds the rule for source, asking resolver for its dependencies
func NewRule(ctx context.Context, p *Project, resolver DependencyResolver, source string) (*Rule, error) {
	input, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}

	deps, err := resolver.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	// a unit always depends on itself
	if !slices.Contains(deps, input) {
		deps = append(deps, input)
	}

	return &Rule{
		Input:        input,
		Output:       p.ObjectPath(input),
		Dependencies: deps,
		project:      p,
	}, nil
}

func (r *Rule) Stale(ctx context.Context) (bool, error) {
	v, err := Stale(r.project.clock(), r.Output, r.Dependencies)
	if err != nil {
		return false, err
	}
	for _, dep := range v.Vanished {
		r.project.reporter().Warn("%s: dependency %s no longer exists, rebuilding", r.project.rel(r.Input), dep)
	}
	return v.Stale, nil
}

// Build compiles the unit. A failure is always a *UnitError, and the unit's
// object no longer exists afterwards.
func (r *Rule) Build(ctx context.Context) error {
	p := r.project
	args := make([]string, 0, len(p.Cflags)+4)
	args = append(args, p.Cflags...)
	args = append(args, r.Input, compileOnlyFlag, outputFlag, r.Output)

	subject := p.rel(r.Input)
	p.reporter().Started(ActionCompile, subject, toolchain.CommandLine(p.Compiler, args))

	var uerr *UnitError
	res, err := p.Runner.Run(ctx, p.Root, p.Compiler, args)
	if err != nil {
		uerr = &UnitError{Source: r.Input, ExitCode: -1, Err: err}
	} else if !res.Success() {
		uerr = &UnitError{Source: r.Input, ExitCode: res.ExitCode, diagnostics: res.Diagnostics()}
	}

	if uerr != nil {
		// a failed compile may still leave a newer object behind
		if err := os.Remove(r.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
			uerr.Err = errors.Join(uerr.Err, err)
		}
		p.reporter().Finished(ActionCompile, subject, uerr)
		return uerr
	}
	p.reporter().Finished(ActionCompile, subject, nil)
	return nil
}

var _ Task = (*Rule)(nil)
