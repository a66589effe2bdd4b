package builder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrMissingRoot is wrapped by PreconditionError when the source or output root does not exist
	ErrMissingRoot = errors.New("directory does not exist")

	errUndecodable  = errors.New("dependency output is not valid UTF-8 text")
	errCantRunLink  = errors.New("no artifact to run (nothing was linked)")
	errPrebuildFail = errors.New("prebuild check returned false")
)

// PreconditionError reports a project layout that can't be built at all
type PreconditionError struct {
	Path string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ResolveError means the compiler could not report the dependencies of a unit
type ResolveError struct {
	Source      string
	Err         error
	diagnostics string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving dependencies of %s: %v", e.Source, e.Err)
}

func (e *ResolveError) Unwrap() error       { return e.Err }
func (e *ResolveError) Diagnostics() string { return e.diagnostics }

// UnitError is a failed compilation of a single unit
type UnitError struct {
	Source   string
	ExitCode int
	Err      error // set when the compiler could not be started

	diagnostics string
}

func (e *UnitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compiling %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("compiling %s: exit status %d", e.Source, e.ExitCode)
}

func (e *UnitError) Unwrap() error       { return e.Err }
func (e *UnitError) Diagnostics() string { return e.diagnostics }

// CompileError aggregates every unit that failed during a compile phase
type CompileError struct {
	Units    int
	Failures []*UnitError
}

func (e *CompileError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = filepath.Base(f.Source)
	}
	return fmt.Sprintf("%d of %d units failed to compile: %s", len(e.Failures), e.Units, strings.Join(names, ", "))
}

func (e *CompileError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// LinkError is a failed link of the final artifact
type LinkError struct {
	Output   string
	ExitCode int
	Err      error

	diagnostics string
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("linking %s: %v", e.Output, e.Err)
	}
	return fmt.Sprintf("linking %s: exit status %d", e.Output, e.ExitCode)
}

func (e *LinkError) Unwrap() error       { return e.Err }
func (e *LinkError) Diagnostics() string { return e.diagnostics }
