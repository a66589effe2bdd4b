package builder

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Clock reports file modification times. It exists so staleness can be tested
// without touching the filesystem.
type Clock interface {
	// ModTime returns the modification time of path. exists is false (with a nil error)
	// when the file is absent.
	ModTime(path string) (t time.Time, exists bool, err error)
}

// FileClock reads modification times from the filesystem. Relative paths are
// interpreted relative to Dir, the directory the toolchain runs in.
type FileClock struct {
	Dir string
}

func (c FileClock) ModTime(path string) (time.Time, bool, error) {
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

// Verdict is the outcome of a staleness check
type Verdict struct {
	Stale bool
	// Cause is the input that made the artifact stale, empty when the artifact is missing
	Cause string
	// Vanished lists inputs that no longer exist. Each of them forces staleness.
	Vanished []string
}

// Stale decides whether artifact must be rebuilt from inputs: it is stale when it
// does not exist, or when any input is strictly newer than it. An input that has
// vanished also makes it stale, so the tool gets a chance to report the real problem.
func Stale(clock Clock, artifact string, inputs []string) (Verdict, error) {
	artifactTime, exists, err := clock.ModTime(artifact)
	if err != nil {
		return Verdict{}, err
	}
	if !exists {
		return Verdict{Stale: true}, nil
	}

	var v Verdict
	for _, input := range inputs {
		t, exists, err := clock.ModTime(input)
		if err != nil {
			return Verdict{}, err
		}
		if !exists {
			v.Stale = true
			v.Vanished = append(v.Vanished, input)
			continue
		}
		if t.After(artifactTime) && v.Cause == "" {
			v.Stale = true
			v.Cause = input
		}
	}
	return v, nil
}
