package msg

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Console prints tool invocations and their diagnostics. It is safe for concurrent use:
// every call writes a complete block, so output from parallel jobs is never interleaved.
type Console struct {
	W        io.Writer
	Verbose  bool // print full command lines instead of `CC file`
	Progress bool // draw a progress bar instead of one line per command

	mu  sync.Mutex
	bar *ProgressBar
}

func NewConsole(w io.Writer, verbose, progress bool) *Console {
	return &Console{W: w, Verbose: verbose, Progress: progress}
}

type diagnoser interface {
	Diagnostics() string
}

// Planned is called once the number of compile jobs is known
func (c *Console) Planned(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Progress && n > 0 {
		c.bar = NewProgressBar(n, 2, c.W)
		c.bar.print(false)
	}
}

func (c *Console) Started(tag, subject, cmdline string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil && c.bar.Current < c.bar.Total {
		return
	}
	if c.Verbose {
		fmt.Fprintln(c.W, cmdline)
		return
	}
	fmt.Fprintf(c.W, "%s %s\n", color.HiCyanString("%-4s", tag), subject)
}

func (c *Console) Finished(tag, subject string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil && c.bar.Current < c.bar.Total {
		c.bar.Add(1)
		if c.bar.Current == c.bar.Total {
			c.bar.Finish()
		}
	}
	if err == nil {
		return
	}

	fmt.Fprintf(c.W, "%s: %v\n", color.HiRedString("error"), err)
	if d, ok := err.(diagnoser); ok {
		diag := strings.TrimRight(d.Diagnostics(), "\n")
		if diag != "" {
			iw := &IndentWriter{Indent: "    ", W: c.W}
			fmt.Fprintln(iw, diag)
		}
	}
}

func (c *Console) Warn(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.W, "%s: %s\n", color.YellowString("warn"), fmt.Sprintf(format, a...))
}
