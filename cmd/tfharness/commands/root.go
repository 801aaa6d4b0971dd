package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/cache"
	"github.com/tfharness/tfharness/pkg/config"
	"github.com/tfharness/tfharness/pkg/harness"
	"github.com/tfharness/tfharness/pkg/policy"
	"github.com/tfharness/tfharness/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tfharness",
		Short: "tfharness - test harness for terraform and terragrunt modules",
		Long: `tfharness drives terraform or terragrunt against fixture modules the way a
test suite would: setup with linked files, init, plan, apply, output checks,
destroy and cleanup, with content-addressed caching of command results and
Rego policy checks over parsed plans.

Modules are declared in a YAML config file or addressed directly by path.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "log in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newOutputCommand())
	rootCmd.AddCommand(newDestroyCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}

// app carries the loaded configuration and telemetry for one command run.
type app struct {
	cfg *config.Config
	tel *telemetry.Telemetry
}

// loadApp loads the configuration named by --config (or defaults) and
// builds telemetry from it, honoring --verbose and --json.
func loadApp(version string) (*app, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	tcfg := cfg.TelemetryConfig(version)
	tcfg.Logging.Output = "stderr"
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	if jsonOutput {
		tcfg.Logging.Format = "json"
	}
	tel, err := telemetry.New(tcfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, tel: tel}, nil
}

func (a *app) shutdown(ctx context.Context) {
	_ = a.tel.Shutdown(ctx)
}

// cacheStore builds the configured cache store, or nil when caching is
// disabled.
func (a *app) cacheStore(ctx context.Context) (cache.Store, func(), error) {
	if !a.cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	switch a.cfg.Cache.Backend {
	case "sqlite":
		store, err := cache.NewSQLiteStore(cache.SQLiteConfig{Path: a.cfg.Cache.Path})
		if err != nil {
			return nil, nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return cache.NewFSStore(a.cfg.Cache.Path), func() {}, nil
	}
}

// moduleHarness builds a harness for the named module. A name not present
// in the config is treated as a module directory path.
func (a *app) moduleHarness(ctx context.Context, name string) (*harness.Harness, *config.ModuleConfig, func(), error) {
	mod, err := a.cfg.Module(name)
	if err != nil {
		mod = &config.ModuleConfig{Name: name, Dir: name}
	}

	store, closeStore, err := a.cacheStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []harness.Option{
		harness.WithBinary(a.cfg.Engine.Binary),
		harness.WithLogger(a.tel.Logger),
		harness.WithMetrics(a.tel.Metrics),
		harness.WithTracer(a.tel.Tracer),
		harness.WithEnv(a.cfg.Engine.Env),
	}
	if a.cfg.Engine.BaseDir != "" {
		opts = append(opts, harness.WithBaseDir(a.cfg.Engine.BaseDir))
	}
	if len(a.cfg.Engine.FailureCodes) > 0 {
		opts = append(opts, harness.WithFailureCodes(a.cfg.Engine.FailureCodes...))
	}
	if store != nil {
		opts = append(opts, harness.WithCacheStore(store))
	}
	// CLI invocations are independent processes; engine-local state must
	// survive between them. Cleanup is the destroy command's job.
	opts = append(opts, harness.WithSkipCleanup())

	var h *harness.Harness
	if a.cfg.Engine.RunAll {
		h, err = harness.NewTerragrunt(mod.Dir, true, opts...)
	} else {
		h, err = harness.New(mod.Dir, opts...)
	}
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	// Deliberately no h.Close here: linked files and engine state are
	// shared by subsequent invocations.
	cleanup := closeStore
	return h, mod, cleanup, nil
}

// policyEngine builds the policy engine with configured paths loaded and
// disabled policies turned off.
func (a *app) policyEngine(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(a.tel.Logger)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Policy.Paths) > 0 {
		if err := eng.LoadPaths(ctx, a.cfg.Policy.Paths...); err != nil {
			return nil, err
		}
	}
	for _, name := range a.cfg.Policy.Disabled {
		if err := eng.SetEnabled(name, false); err != nil {
			return nil, err
		}
	}
	return eng, nil
}
