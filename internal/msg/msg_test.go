package msg

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestIndentWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &IndentWriter{Indent: "  ", W: &buf}

	n, err := w.Write([]byte("a.cpp:1: error\nnote: he"))
	require.NoError(t, err)
	assert.Equal(t, 23, n)
	_, err = w.Write([]byte("re\n"))
	require.NoError(t, err)

	assert.Equal(t, "  a.cpp:1: error\n  note: here\n", buf.String())
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	t.Cleanup(func() { Output = old })

	Info("built %d units", 2)
	Warn("dependency %s vanished", "a.h")
	Error("oops")

	assert.Equal(t, "info: built 2 units\nwarn: dependency a.h vanished\nerror: oops\n", buf.String())
}

type diagErr struct{ diag string }

func (e *diagErr) Error() string       { return "compiling a.cpp: exit status 1" }
func (e *diagErr) Diagnostics() string { return e.diag }

func TestConsole_PrintsCommandsAndDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, false)

	c.Started("CC", "src/a.cpp", "g++ src/a.cpp -c -o out/a.o")
	c.Finished("CC", "src/a.cpp", &diagErr{diag: "a.cpp:3: error: expected ';'\n"})

	assert.Equal(t, "CC   src/a.cpp\n"+
		"error: compiling a.cpp: exit status 1\n"+
		"    a.cpp:3: error: expected ';'\n", buf.String())
}

func TestConsole_Verbose(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true, false)
	c.Started("LINK", "out/target", "g++ out/a.o -o out/target")
	c.Finished("LINK", "out/target", nil)
	assert.Equal(t, "g++ out/a.o -o out/target\n", buf.String())
}

func TestConsole_ProgressSuppressesCommandLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, true)
	c.Planned(2)
	c.Started("CC", "a.cpp", "")
	c.Finished("CC", "a.cpp", nil)
	c.Started("CC", "b.cpp", "")
	c.Finished("CC", "b.cpp", nil)

	out := buf.String()
	assert.NotContains(t, out, "CC ")
	assert.Contains(t, out, "2/2")
	assert.True(t, strings.HasSuffix(out, "\n"))

	c.Started("LINK", "target", "")
	assert.Contains(t, buf.String(), "LINK target\n")
}

func TestConsole_ConcurrentBlocksAreNotInterleaved(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, false)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Finished("CC", "u", &diagErr{diag: fmt.Sprintf("line1-%d\nline2-%d\n", i, i)})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 24)
	for i := 0; i < len(lines); i += 3 {
		assert.True(t, strings.HasPrefix(lines[i], "error: "))
		id := strings.TrimPrefix(strings.TrimSpace(lines[i+1]), "line1-")
		assert.Equal(t, "    line2-"+id, lines[i+2])
	}
}

func TestConsole_PlainErrorHasNoDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, false)
	c.Finished("LINK", "target", errors.New("could not start linker"))
	assert.Equal(t, "error: could not start linker\n", buf.String())
}
