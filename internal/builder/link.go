package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/rebuild/internal/toolchain"
)

// LinkPhase links every object file in the output directory into the artifact.
// It must be constructed after the compile phase finished, so that Inputs
// reflects what is actually on disk.
type LinkPhase struct {
	Inputs []string
	Output string

	project *Project
}

// NewLinkPhase enumerates the objects currently present in the output directory,
// including ones left over from earlier runs
func NewLinkPhase(p *Project) (*LinkPhase, error) {
	matches, err := doublestar.Glob(os.DirFS(p.OutputDir), "*"+p.objectExt(),
		doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("while scanning %s: %w", p.OutputDir, err)
	}

	inputs := make([]string, 0, len(matches))
	for _, match := range matches {
		obj := filepath.Join(p.OutputDir, filepath.FromSlash(match))
		if obj == p.Artifact {
			continue
		}
		inputs = append(inputs, obj)
	}
	slices.Sort(inputs)

	return &LinkPhase{Inputs: inputs, Output: p.Artifact, project: p}, nil
}

// Stale is false when there is nothing to link
func (l *LinkPhase) Stale(ctx context.Context) (bool, error) {
	if len(l.Inputs) == 0 {
		return false, nil
	}
	v, err := Stale(l.project.clock(), l.Output, l.Inputs)
	if err != nil {
		return false, err
	}
	for _, obj := range v.Vanished {
		l.project.reporter().Warn("object %s disappeared before linking", l.project.rel(obj))
	}
	return v.Stale, nil
}

// Build invokes the linker. Object files are never modified, whatever the outcome.
func (l *LinkPhase) Build(ctx context.Context) error {
	if len(l.Inputs) == 0 {
		return nil
	}

	p := l.project
	args := make([]string, 0, len(l.Inputs)+len(p.Ldflags)+2)
	args = append(args, l.Inputs...)
	args = append(args, outputFlag, l.Output)
	args = append(args, p.Ldflags...)

	subject := p.rel(l.Output)
	linker := p.linker()
	p.reporter().Started(ActionLink, subject, toolchain.CommandLine(linker, args))

	var lerr *LinkError
	res, err := p.Runner.Run(ctx, p.Root, linker, args)
	if err != nil {
		lerr = &LinkError{Output: l.Output, ExitCode: -1, Err: err}
	} else if !res.Success() {
		lerr = &LinkError{Output: l.Output, ExitCode: res.ExitCode, diagnostics: res.Diagnostics()}
	}

	if lerr != nil {
		p.reporter().Finished(ActionLink, subject, lerr)
		return lerr
	}
	p.reporter().Finished(ActionLink, subject, nil)
	return nil
}

var _ Task = (*LinkPhase)(nil)
