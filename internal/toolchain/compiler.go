package toolchain

import (
	"errors"
	"os"
	"os/exec"
)

// TODO: zig c++
var commonCxxCompilers = []string{"clang++", "g++", "c++", "icpx", "icpc"}

// ErrNoCompiler is returned when neither $CXX nor a known compiler on $PATH is available
var ErrNoCompiler = errors.New("no C++ compiler found (set $CXX or toolchain.compiler)")

// FindCompiler attempts to find a suitable C++ compiler on the system. Only compilers
// that understand -MM dependency listing are considered.
func FindCompiler() (string, error) {
	if cxx := os.Getenv("CXX"); cxx != "" {
		return cxx, nil
	}

	for _, compiler := range commonCxxCompilers {
		path, err := exec.LookPath(compiler)
		if err == nil {
			return path, nil
		}
	}

	return "", ErrNoCompiler
}
