// Package runner launches the IaC engine binary as a subprocess and
// classifies its exit status.
//
// A Runner is bound to one binary, working directory, and environment.
// Stdout is read incrementally so commands can be followed live at debug
// level; stderr is collected at completion. Exit code 0 is success, the
// engine's detailed exit code 2 ("succeeded, changes pending") is also
// success, and the documented failure codes raise a CommandError carrying
// the captured output. There are no retries and no timeout at this layer;
// callers needing bounded execution cancel the context.
package runner
