package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/tfharness/tfharness/pkg/telemetry"
)

// CommandOutput is the immutable result of one subprocess invocation.
type CommandOutput struct {
	// ReturnCode is the subprocess exit code.
	ReturnCode int

	// Stdout is the fully captured standard output.
	Stdout string

	// Stderr is the fully captured standard error.
	Stderr string
}

// Runner invokes the engine binary in a fixed working directory with a
// fixed environment.
type Runner struct {
	binary       string
	dir          string
	env          []string
	failureCodes map[int]bool
	logger       *telemetry.Logger
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnv sets the complete environment for the subprocess. The slice is
// used as given; the runner never consults the ambient process environment.
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = env }
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger *telemetry.Logger) Option {
	return func(r *Runner) { r.logger = logger.NewComponentLogger("runner") }
}

// WithMetrics sets the metrics collector for command counters.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = metrics }
}

// WithTracer enables a span per command invocation.
func WithTracer(tracer *telemetry.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithFailureCodes overrides the exit codes treated as hard failure.
// The default is {1}. Any exit code outside this set is success; in
// particular the engine's detailed exit code 2 means "succeeded, changes
// pending" and must not be added here.
func WithFailureCodes(codes ...int) Option {
	return func(r *Runner) {
		r.failureCodes = make(map[int]bool, len(codes))
		for _, c := range codes {
			r.failureCodes[c] = true
		}
	}
}

// New creates a runner for the given binary and working directory.
func New(binary, dir string, opts ...Option) *Runner {
	r := &Runner{
		binary:       binary,
		dir:          dir,
		failureCodes: map[int]bool{1: true},
		logger:       telemetry.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the configured engine binary.
func (r *Runner) Binary() string {
	return r.binary
}

// Dir returns the configured working directory.
func (r *Runner) Dir() string {
	return r.dir
}

// Run executes the binary with the given argument vector and waits for it
// to exit. The command name is used for diagnostics only; argv is passed to
// the subprocess verbatim. Blocks until the process exits; cancel the
// context to abandon a hung engine.
func (r *Runner) Run(ctx context.Context, command string, argv []string) (CommandOutput, error) {
	logger := r.logger.WithCommand(command)
	logger.Infof("running %s %s", r.binary, strings.Join(argv, " "))

	ctx, span := r.tracer.StartCommandSpan(ctx, r.binary, command)
	start := time.Now()

	out, err := r.run(ctx, logger, argv)

	status := "success"
	if err != nil {
		status = "failure"
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
	r.metrics.RecordCommand(command, status, time.Since(start))

	if err != nil {
		return out, err
	}
	if r.failureCodes[out.ReturnCode] {
		cmdErr := &CommandError{Command: command, Output: out}
		logger.WithError(cmdErr).Error("engine command failed")
		return CommandOutput{}, cmdErr
	}
	logger.Debugf("exit code %d", out.ReturnCode)
	return out, nil
}

func (r *Runner) run(ctx context.Context, logger *telemetry.Logger, argv []string) (CommandOutput, error) {
	cmd := exec.CommandContext(ctx, r.binary, argv...)
	cmd.Dir = r.dir
	cmd.Env = r.env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CommandOutput{}, fmt.Errorf("attaching stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return CommandOutput{}, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, r.binary, err)
		}
		return CommandOutput{}, fmt.Errorf("starting %s: %w", r.binary, err)
	}

	// Stdout is read incrementally so long-running commands can be
	// followed at debug level. Stderr is collected at completion.
	var out strings.Builder
	reader := bufio.NewReader(stdout)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			out.WriteString(line)
			logger.Debug(strings.TrimRight(line, "\n"))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = cmd.Wait()
			return CommandOutput{}, fmt.Errorf("reading stdout: %w", readErr)
		}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return CommandOutput{}, fmt.Errorf("waiting for %s: %w", r.binary, waitErr)
		}
		// Non-zero exit: classification happens in Run from the code.
	}

	return CommandOutput{
		ReturnCode: cmd.ProcessState.ExitCode(),
		Stdout:     out.String(),
		Stderr:     stderr.String(),
	}, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist)
}
