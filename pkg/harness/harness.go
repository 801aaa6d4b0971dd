package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/tfharness/tfharness/pkg/cache"
	"github.com/tfharness/tfharness/pkg/runner"
	"github.com/tfharness/tfharness/pkg/telemetry"
)

// Harness runs engine commands against a single module directory.
type Harness struct {
	binary  string
	basedir string
	dir     string
	runAll  bool
	env     []string
	envOver map[string]string

	runner  *runner.Runner
	cache   *cache.Cache
	store   cache.Store
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	failureCodes []int
	skipCleanup  bool
	runID        string

	linked  []string // fixture files linked into dir, relative names
	backups []string // prevent_destroy rewrite backups, absolute paths
	closed  bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithBinary sets the engine binary. Defaults to "terraform" for New and
// "terragrunt" for NewTerragrunt.
func WithBinary(binary string) Option {
	return func(h *Harness) { h.binary = binary }
}

// WithBaseDir sets the directory relative module paths resolve against.
// Defaults to the current working directory.
func WithBaseDir(basedir string) Option {
	return func(h *Harness) { h.basedir = basedir }
}

// WithEnv overlays the given variables on the inherited process
// environment for every engine invocation.
func WithEnv(env map[string]string) Option {
	return func(h *Harness) { h.envOver = env }
}

// WithCacheStore enables result caching backed by the given store.
// Operations still run uncached unless their options request cache usage.
func WithCacheStore(store cache.Store) Option {
	return func(h *Harness) { h.store = store }
}

// WithLogger sets the logger for harness diagnostics.
func WithLogger(logger *telemetry.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(h *Harness) { h.metrics = metrics }
}

// WithTracer enables a span per engine command.
func WithTracer(tracer *telemetry.Tracer) Option {
	return func(h *Harness) { h.tracer = tracer }
}

// WithFailureCodes overrides the engine exit codes treated as hard
// failure. The default is {1}.
func WithFailureCodes(codes ...int) Option {
	return func(h *Harness) { h.failureCodes = codes }
}

// WithSkipCleanup keeps .terraform, terraform.tfstate and terragrunt
// caches in place when the harness is closed. Linked fixture files are
// removed regardless.
func WithSkipCleanup() Option {
	return func(h *Harness) { h.skipCleanup = true }
}

// New creates a harness for the module at dir, which may be absolute or
// relative to the configured base directory.
func New(dir string, opts ...Option) (*Harness, error) {
	return newHarness(dir, "terraform", false, opts)
}

// NewTerragrunt creates a harness driving terragrunt. With runAll set,
// every command is prefixed with "run-all" and plan and output results
// are parsed as per-module document lists.
func NewTerragrunt(dir string, runAll bool, opts ...Option) (*Harness, error) {
	return newHarness(dir, "terragrunt", runAll, opts)
}

func newHarness(dir, binary string, runAll bool, opts []Option) (*Harness, error) {
	h := &Harness{
		binary: binary,
		runAll: runAll,
		logger: telemetry.NopLogger(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.basedir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving base directory: %w", err)
		}
		h.basedir = cwd
	}
	h.dir = h.abspath(dir)
	if info, err := os.Stat(h.dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("module directory %s does not exist", h.dir)
	}

	h.env = buildEnv(h.envOver)
	h.logger = h.logger.NewComponentLogger("harness").WithRunID(h.runID)

	runnerOpts := []runner.Option{
		runner.WithEnv(h.env),
		runner.WithLogger(h.logger),
	}
	if h.metrics != nil {
		runnerOpts = append(runnerOpts, runner.WithMetrics(h.metrics))
	}
	if h.tracer != nil {
		runnerOpts = append(runnerOpts, runner.WithTracer(h.tracer))
	}
	if h.failureCodes != nil {
		runnerOpts = append(runnerOpts, runner.WithFailureCodes(h.failureCodes...))
	}
	h.runner = runner.New(h.binary, h.dir, runnerOpts...)

	if h.store != nil {
		id := cache.Identity{Binary: h.binary, BaseDir: h.basedir, WorkDir: h.dir}
		cacheOpts := []cache.Option{cache.WithLogger(h.logger)}
		if h.metrics != nil {
			cacheOpts = append(cacheOpts, cache.WithMetrics(h.metrics))
		}
		h.cache = cache.New(h.store, id, cacheOpts...)
	}

	return h, nil
}

// Dir returns the absolute module directory.
func (h *Harness) Dir() string {
	return h.dir
}

// Binary returns the configured engine binary.
func (h *Harness) Binary() string {
	return h.binary
}

// RunID returns the unique identifier of this harness instance, attached
// to every log line it emits.
func (h *Harness) RunID() string {
	return h.runID
}

// abspath resolves path against the base directory unless it is already
// absolute.
func (h *Harness) abspath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(h.basedir, path)
}

// runAllPrefix returns the command prefix for run-all mode.
func (h *Harness) runAllPrefix() []string {
	if h.runAll {
		return []string{"run-all"}
	}
	return nil
}

// buildEnv merges overrides onto the inherited environment, overrides in
// sorted key order so the resulting slice is deterministic.
func buildEnv(over map[string]string) []string {
	env := os.Environ()
	if len(over) == 0 {
		return env
	}
	keys := make([]string, 0, len(over))
	for k := range over {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+over[k])
	}
	return env
}
