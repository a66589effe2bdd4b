package builder

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// DependencyResolver lists the files a compilation unit depends on
type DependencyResolver interface {
	Resolve(ctx context.Context, source string) ([]string, error)
}

// Resolver asks the compiler for dependencies (`cc source -MM`)
type Resolver struct {
	Toolchain Toolchain
	Dir       string
}

func NewResolver(p *Project) *Resolver {
	return &Resolver{Toolchain: p.Toolchain, Dir: p.Root}
}

func (r *Resolver) Resolve(ctx context.Context, source string) ([]string, error) {
	args := make([]string, 0, len(r.Toolchain.Cflags)+2)
	args = append(args, r.Toolchain.Cflags...)
	args = append(args, source, depFlag)

	res, err := r.Toolchain.Runner.Run(ctx, r.Dir, r.Toolchain.Compiler, args)
	if err != nil {
		return nil, &ResolveError{Source: source, Err: err}
	}
	if !res.Success() {
		return nil, &ResolveError{
			Source:      source,
			Err:         fmt.Errorf("exit status %d", res.ExitCode),
			diagnostics: res.Diagnostics(),
		}
	}
	if !utf8.Valid(res.Stdout) {
		return nil, &ResolveError{Source: source, Err: errUndecodable}
	}

	return ParseDependencies(string(res.Stdout)), nil
}

// ParseDependencies parses a Makefile style dependency line as printed by -MM:
//
//	a.o: src/a.cpp src/a.h \
//	  src/b.h
//
// The first token names the object file and is dropped.
func ParseDependencies(out string) []string {
	fields := strings.Fields(out)
	fields = slices.DeleteFunc(fields, func(s string) bool { return s == `\` })
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

var _ DependencyResolver = (*Resolver)(nil)
