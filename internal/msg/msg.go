package msg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Output receives all messages printed by this package
var Output io.Writer = color.Output

func logf(level, format string, a ...any) {
	fmt.Fprint(Output, level)
	fmt.Fprint(Output, ": ")
	fmt.Fprintf(Output, format, a...)
	fmt.Fprint(Output, "\n")
}

func Error(format string, a ...any) {
	logf(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	logf(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	logf(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	logf(color.HiGreenString("info"), format, a...)
}

// IndentWriter prefixes every line written through it with Indent
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	var buf bytes.Buffer
	for len(p) > 0 {
		if !w.didIndent {
			buf.WriteString(w.Indent)
			w.didIndent = true
		}
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			buf.Write(p)
			n += len(p)
			break
		}
		buf.Write(p[:i+1])
		n += i + 1
		p = p[i+1:]
		w.didIndent = false
	}
	if _, err := w.W.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return n, nil
}
