package builder

import "context"

// Task is anything that produces an artifact from inputs: a single compilation
// unit, the compile phase as a whole, or the link phase.
type Task interface {
	// Stale reports whether Build has work to do
	Stale(ctx context.Context) (bool, error)
	// Build produces the task's output
	Build(ctx context.Context) error
}

// runTask builds t if it is stale and reports whether it did
func runTask(ctx context.Context, t Task) (bool, error) {
	stale, err := t.Stale(ctx)
	if err != nil || !stale {
		return false, err
	}
	return true, t.Build(ctx)
}

const (
	ActionCompile = "CC"
	ActionLink    = "LINK"
)

// Reporter is notified about every tool invocation. Implementations must be safe
// for concurrent use, since compile jobs run in parallel.
type Reporter interface {
	// Planned is called with the number of units about to be compiled
	Planned(n int)
	Started(action, subject, cmdline string)
	// Finished is called after the tool exited; err is nil on success
	Finished(action, subject string, err error)
	Warn(format string, a ...any)
}

type nopReporter struct{}

func (nopReporter) Planned(int)                    {}
func (nopReporter) Started(string, string, string) {}
func (nopReporter) Finished(string, string, error) {}
func (nopReporter) Warn(string, ...any)            {}
