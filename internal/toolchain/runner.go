// Package toolchain runs the external compiler and linker.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Result is the outcome of a single tool invocation
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the process exited with status 0
func (r Result) Success() bool { return r.ExitCode == 0 }

// Diagnostics returns the diagnostic stream of the process. Some toolchains report
// errors on stdout, so stdout is used when stderr is empty.
func (r Result) Diagnostics() string {
	if len(bytes.TrimSpace(r.Stderr)) > 0 {
		return string(r.Stderr)
	}
	return string(r.Stdout)
}

// Runner starts external processes and captures their output.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type Runner interface {
	// Run executes name with args in dir and waits for it to exit.
	//
	// A non-nil error means the process could not be started at all; a process that
	// ran and failed is reported through Result.ExitCode with a nil error.
	Run(ctx context.Context, dir, name string, args []string) (Result, error)
}

// ExecRunner implements Runner with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args []string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if res.ExitCode == 0 {
				res.ExitCode = -1 // killed by a signal
			}
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// CommandLine renders an invocation the way it would be typed into a shell
func CommandLine(name string, args []string) string {
	var sb strings.Builder
	sb.WriteString(quoteArg(name))
	for _, arg := range args {
		sb.WriteByte(' ')
		sb.WriteString(quoteArg(arg))
	}
	return sb.String()
}

// JoinArgs quotes args like CommandLine, without a program name
func JoinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
