package runner

import (
	"errors"
	"fmt"
)

// ErrExecutableNotFound reports that the configured engine binary cannot be
// launched. It is surfaced immediately and never retried.
var ErrExecutableNotFound = errors.New("engine executable not found")

// CommandError reports that the engine exited with a documented failure
// code. It carries the captured output so callers can inspect the failure
// without re-running the command.
type CommandError struct {
	// Command is the engine command that failed (init, plan, apply, ...).
	Command string

	// Output holds the exit code and captured streams.
	Output CommandOutput
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d: %s%s",
		e.Command, e.Output.ReturnCode, e.Output.Stdout, e.Output.Stderr)
}
