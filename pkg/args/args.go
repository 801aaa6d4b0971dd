package args

import (
	"fmt"
	"sort"
	"strconv"
)

// Options describes the recognized engine flags for one command invocation.
//
// Tri-state booleans are pointers: nil leaves the engine's own default in
// place, a non-nil value overrides it. Only overrides produce tokens, so
// for example Color emits "-no-color" when set to false and nothing when
// set to true. Plain booleans emit their flag when true.
type Options struct {
	// AutoApprove skips interactive approval of plans (-auto-approve).
	AutoApprove bool

	// Backend disables backend configuration during init when false
	// (-backend=false).
	Backend *bool

	// Color disables colored output when false (-no-color).
	Color *bool

	// ForceCopy suppresses prompts about copying state data (-force-copy).
	ForceCopy bool

	// Input disables interactive input prompts when false (-input=false).
	Input *bool

	// JSONFormat requests machine-readable output (-json).
	JSONFormat bool

	// Lock disables state locking when false (-lock=false).
	Lock *bool

	// PluginDir points init at a local plugin directory (-plugin-dir <dir>).
	PluginDir string

	// Refresh disables state refresh before an operation when false
	// (-refresh=false).
	Refresh *bool

	// InitVars expands to one -backend-config=k=v token per entry.
	InitVars map[string]any

	// BackendConfig passes a single raw backend configuration argument,
	// typically a file path (-backend-config <value>). Ignored when
	// InitVars is set.
	BackendConfig string

	// Vars expands to a "-var k=v" token pair per entry.
	Vars map[string]any

	// Targets limits the operation to the named resources, one
	// -target=<t> token per element.
	Targets []string

	// VarFile points the engine at a variable definitions file
	// (-var-file=<path>).
	VarFile string

	// Terragrunt carries the orchestrator-specific flag set. Its tokens
	// are emitted before the base flags, matching the order terragrunt
	// expects them in.
	Terragrunt TerragruntOptions

	// Extra is reserved for options this encoder does not recognize.
	// Entries are ignored, never rejected.
	Extra map[string]any
}

// TerragruntOptions describes the terragrunt orchestrator flag set. Boolean
// fields emit "--terragrunt-<kebab-case>" when true; string fields emit the
// flag followed by the value.
type TerragruntOptions struct {
	NoAutoInit                  bool
	NoAutoRetry                 bool
	SourceUpdate                bool
	IgnoreDependencyErrors      bool
	IgnoreDependencyOrder       bool
	IncludeExternalDependencies bool
	Check                       bool
	Debug                       bool
	NonInteractive              bool
	IgnoreExternalDependencies  bool

	IAMRole     string
	Config      string
	TFPath      string
	WorkingDir  string
	DownloadDir string
	Source      string
	ExcludeDir  string
	IncludeDir  string
	HclfmtFile  string

	// Parallelism caps the number of concurrently executed modules
	// (--terragrunt-parallelism <n>). Zero emits nothing.
	Parallelism int

	// OverrideAttrs expands to one --terragrunt-override-attr=k=v token
	// per entry.
	OverrideAttrs map[string]any
}

// Bool returns a pointer to v, for setting tri-state options inline.
func Bool(v bool) *bool {
	return &v
}

// tgBoolFlags pairs terragrunt boolean flags with their selectors, in the
// order the tokens are emitted.
var tgBoolFlags = []struct {
	flag string
	get  func(*TerragruntOptions) bool
}{
	{"--terragrunt-no-auto-init", func(o *TerragruntOptions) bool { return o.NoAutoInit }},
	{"--terragrunt-no-auto-retry", func(o *TerragruntOptions) bool { return o.NoAutoRetry }},
	{"--terragrunt-source-update", func(o *TerragruntOptions) bool { return o.SourceUpdate }},
	{"--terragrunt-ignore-dependency-errors", func(o *TerragruntOptions) bool { return o.IgnoreDependencyErrors }},
	{"--terragrunt-ignore-dependency-order", func(o *TerragruntOptions) bool { return o.IgnoreDependencyOrder }},
	{"--terragrunt-include-external-dependencies", func(o *TerragruntOptions) bool { return o.IncludeExternalDependencies }},
	{"--terragrunt-check", func(o *TerragruntOptions) bool { return o.Check }},
	{"--terragrunt-debug", func(o *TerragruntOptions) bool { return o.Debug }},
	{"--terragrunt-non-interactive", func(o *TerragruntOptions) bool { return o.NonInteractive }},
	{"--terragrunt-ignore-external-dependencies", func(o *TerragruntOptions) bool { return o.IgnoreExternalDependencies }},
}

// tgValueFlags pairs terragrunt key/value flags with their selectors, in the
// order the tokens are emitted.
var tgValueFlags = []struct {
	flag string
	get  func(*TerragruntOptions) string
}{
	{"--terragrunt-iam-role", func(o *TerragruntOptions) string { return o.IAMRole }},
	{"--terragrunt-config", func(o *TerragruntOptions) string { return o.Config }},
	{"--terragrunt-tfpath", func(o *TerragruntOptions) string { return o.TFPath }},
	{"--terragrunt-working-dir", func(o *TerragruntOptions) string { return o.WorkingDir }},
	{"--terragrunt-download-dir", func(o *TerragruntOptions) string { return o.DownloadDir }},
	{"--terragrunt-source", func(o *TerragruntOptions) string { return o.Source }},
	{"--terragrunt-exclude-dir", func(o *TerragruntOptions) string { return o.ExcludeDir }},
	{"--terragrunt-include-dir", func(o *TerragruntOptions) string { return o.IncludeDir }},
	{"--terragrunt-hclfmt-file", func(o *TerragruntOptions) string { return o.HclfmtFile }},
}

// Encode produces the flat ordered token list for o. It never fails:
// non-string map values are coerced with their default formatting, and map
// entries are emitted in sorted key order so that encoding the same options
// twice yields identical token lists.
func (o Options) Encode() []string {
	var tokens []string

	tg := &o.Terragrunt
	for _, f := range tgBoolFlags {
		if f.get(tg) {
			tokens = append(tokens, f.flag)
		}
	}
	for _, f := range tgValueFlags {
		if v := f.get(tg); v != "" {
			tokens = append(tokens, f.flag, v)
		}
	}
	if tg.Parallelism > 0 {
		tokens = append(tokens, "--terragrunt-parallelism", strconv.Itoa(tg.Parallelism))
	}
	for _, k := range sortedKeys(tg.OverrideAttrs) {
		tokens = append(tokens, fmt.Sprintf("--terragrunt-override-attr=%s=%v", k, tg.OverrideAttrs[k]))
	}

	if o.AutoApprove {
		tokens = append(tokens, "-auto-approve")
	}
	if o.Backend != nil && !*o.Backend {
		tokens = append(tokens, "-backend=false")
	}
	if o.Color != nil && !*o.Color {
		tokens = append(tokens, "-no-color")
	}
	if o.ForceCopy {
		tokens = append(tokens, "-force-copy")
	}
	if o.Input != nil && !*o.Input {
		tokens = append(tokens, "-input=false")
	}
	if o.JSONFormat {
		tokens = append(tokens, "-json")
	}
	if o.Lock != nil && !*o.Lock {
		tokens = append(tokens, "-lock=false")
	}
	if o.PluginDir != "" {
		tokens = append(tokens, "-plugin-dir", o.PluginDir)
	}
	if o.Refresh != nil && !*o.Refresh {
		tokens = append(tokens, "-refresh=false")
	}
	if len(o.InitVars) > 0 {
		for _, k := range sortedKeys(o.InitVars) {
			tokens = append(tokens, fmt.Sprintf("-backend-config=%s=%v", k, o.InitVars[k]))
		}
	} else if o.BackendConfig != "" {
		tokens = append(tokens, "-backend-config", o.BackendConfig)
	}
	for _, k := range sortedKeys(o.Vars) {
		tokens = append(tokens, "-var", fmt.Sprintf("%s=%v", k, o.Vars[k]))
	}
	for _, t := range o.Targets {
		tokens = append(tokens, fmt.Sprintf("-target=%s", t))
	}
	if o.VarFile != "" {
		tokens = append(tokens, fmt.Sprintf("-var-file=%s", o.VarFile))
	}

	return tokens
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
