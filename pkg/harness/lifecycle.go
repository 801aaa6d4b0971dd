package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tfharness/tfharness/pkg/args"
	"github.com/tfharness/tfharness/pkg/cache"
	"github.com/tfharness/tfharness/pkg/parse"
	"github.com/tfharness/tfharness/pkg/runner"
)

// InitOptions configures Init. The zero value disables interactive input
// and colored output, matching unattended test runs.
type InitOptions struct {
	// Input re-enables interactive variable prompts.
	Input bool

	// Color re-enables colored output.
	Color bool

	// ForceCopy suppresses prompts about copying state data.
	ForceCopy bool

	// PluginDir points init at a local plugin directory.
	PluginDir string

	// Backend disables backend configuration when set to false with
	// args.Bool(false); nil keeps the engine default.
	Backend *bool

	// InitVars holds backend configuration variables, one
	// -backend-config=k=v per entry.
	InitVars map[string]any

	// BackendConfig passes a backend configuration file path instead of
	// individual variables. Ignored when InitVars is set.
	BackendConfig string

	// Terragrunt carries orchestrator-specific flags.
	Terragrunt args.TerragruntOptions

	// UseCache serves the init output from the result cache when the
	// module directory and parameters are unchanged.
	UseCache bool
}

// Init runs the engine init command and returns its output.
func (h *Harness) Init(ctx context.Context, opts InitOptions) (string, error) {
	tokens := args.Options{
		Input:         args.Bool(opts.Input),
		Color:         args.Bool(opts.Color),
		ForceCopy:     opts.ForceCopy,
		PluginDir:     opts.PluginDir,
		Backend:       opts.Backend,
		InitVars:      opts.InitVars,
		BackendConfig: opts.BackendConfig,
		Terragrunt:    opts.Terragrunt,
	}.Encode()
	return h.runCached(ctx, "init", []string{"init"}, tokens, opts.UseCache, nil)
}

// PlanOptions configures Plan and PlanDocument.
type PlanOptions struct {
	// Input re-enables interactive variable prompts.
	Input bool

	// Color re-enables colored output.
	Color bool

	// Refresh disables the pre-plan state refresh when set to false with
	// args.Bool(false); nil keeps the engine default of refreshing.
	Refresh *bool

	// Vars sets configuration variables, one "-var k=v" pair per entry.
	Vars map[string]any

	// Targets limits the plan to the named resources.
	Targets []string

	// VarFile points the engine at a variable definitions file, absolute
	// or relative to the module directory.
	VarFile string

	// Terragrunt carries orchestrator-specific flags.
	Terragrunt args.TerragruntOptions

	// UseCache serves the plan output from the result cache when the
	// module directory and parameters are unchanged.
	UseCache bool
}

func (o PlanOptions) encode() []string {
	return args.Options{
		Input:      args.Bool(o.Input),
		Color:      args.Bool(o.Color),
		Refresh:    o.Refresh,
		Vars:       o.Vars,
		Targets:    o.Targets,
		VarFile:    o.VarFile,
		Terragrunt: o.Terragrunt,
	}.Encode()
}

// Plan runs the engine plan command and returns its raw output. Use
// PlanDocument or PlanDocuments for machine-readable plan JSON.
func (h *Harness) Plan(ctx context.Context, opts PlanOptions) (string, error) {
	return h.runCached(ctx, "plan", []string{"plan"}, opts.encode(), opts.UseCache, h.varFileParam(opts.VarFile))
}

// PlanDocument plans the module and returns the parsed plan. The plan is
// written to a temporary file with -out and retrieved with a separate
// "show -no-color -json" invocation; the two calls compose one logical
// operation. Not available in run-all mode, use PlanDocuments there.
func (h *Harness) PlanDocument(ctx context.Context, opts PlanOptions) (*parse.PlanDocument, error) {
	if h.runAll {
		return nil, errors.New("plan document parsing is per-module, use PlanDocuments in run-all mode")
	}
	payload, err := h.planJSON(ctx, opts)
	if err != nil {
		return nil, err
	}
	doc, err := parse.ParsePlanDocument([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decoding plan output: %w", err)
	}
	return doc, nil
}

// PlanDocuments plans the module and returns one parsed plan per emitted
// document. In run-all mode the show output contains one document per
// orchestrated module; otherwise the slice has a single element.
func (h *Harness) PlanDocuments(ctx context.Context, opts PlanOptions) ([]*parse.PlanDocument, error) {
	payload, err := h.planJSON(ctx, opts)
	if err != nil {
		return nil, err
	}
	docs, err := parse.ParsePlanDocuments(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding plan output: %w", err)
	}
	return docs, nil
}

// planJSON runs the plan/show two-call flow and returns the raw show
// output. The composite is cached as a single operation.
func (h *Harness) planJSON(ctx context.Context, opts PlanOptions) (string, error) {
	return h.runParams(ctx, "plan-json", opts.UseCache, mergeParams(map[string]any{"argv": opts.encode()}, h.varFileParam(opts.VarFile)), func() (string, error) {
		// Run-all needs a relative plan file name so each orchestrated
		// module writes into its own cache directory instead of all of
		// them clobbering one absolute path.
		planFile := filepath.Join(os.TempDir(), "tfharness-"+uuid.NewString()+".tfplan")
		if h.runAll {
			planFile = filepath.Base(planFile)
		}

		tokens := append(opts.encode(), "-out="+planFile)
		if _, err := h.run(ctx, "plan", []string{"plan"}, tokens); err != nil {
			return "", err
		}
		if !h.runAll {
			defer os.Remove(planFile)
		}

		out, err := h.run(ctx, "show", []string{"show"}, []string{"-no-color", "-json", planFile})
		if err != nil {
			return "", err
		}
		return out.Stdout, nil
	})
}

// ApplyOptions configures Apply.
type ApplyOptions struct {
	// Input re-enables interactive variable prompts.
	Input bool

	// Color re-enables colored output.
	Color bool

	// AutoApprove controls interactive plan approval. nil defaults to
	// true; set args.Bool(false) to let the engine prompt.
	AutoApprove *bool

	// Vars sets configuration variables.
	Vars map[string]any

	// Targets limits the apply to the named resources.
	Targets []string

	// VarFile points the engine at a variable definitions file.
	VarFile string

	// Terragrunt carries orchestrator-specific flags.
	Terragrunt args.TerragruntOptions

	// UseCache serves the apply output from the result cache when the
	// module directory and parameters are unchanged.
	UseCache bool
}

// Apply runs the engine apply command and returns its output.
func (h *Harness) Apply(ctx context.Context, opts ApplyOptions) (string, error) {
	tokens := args.Options{
		Input:       args.Bool(opts.Input),
		Color:       args.Bool(opts.Color),
		AutoApprove: boolDefault(opts.AutoApprove, true),
		Vars:        opts.Vars,
		Targets:     opts.Targets,
		VarFile:     opts.VarFile,
		Terragrunt:  opts.Terragrunt,
	}.Encode()
	return h.runCached(ctx, "apply", []string{"apply"}, tokens, opts.UseCache, h.varFileParam(opts.VarFile))
}

// OutputOptions configures Output.
type OutputOptions struct {
	// Name restricts the command to a single output value.
	Name string

	// Color re-enables colored output.
	Color bool

	// JSONFormat controls the -json flag. nil defaults to true; without
	// it the raw human-readable output is returned unparsed.
	JSONFormat *bool

	// UseCache serves the output values from the result cache when the
	// module directory and parameters are unchanged.
	UseCache bool
}

// OutputResult holds the engine output command's result. Raw is always
// populated. Values is set when JSON output was requested and decoded;
// in run-all mode Docs carries one value map per orchestrated module and
// Values is nil. Decoding is best effort: malformed JSON leaves only Raw
// set, with a warning logged.
type OutputResult struct {
	Raw    string
	Values *parse.ValueMap
	Docs   []*parse.ValueMap
}

// Output runs the engine output command.
func (h *Harness) Output(ctx context.Context, opts OutputOptions) (*OutputResult, error) {
	jsonFormat := opts.JSONFormat == nil || *opts.JSONFormat
	var cmd []string
	cmd = append(cmd, "output")
	if opts.Name != "" {
		cmd = append(cmd, opts.Name)
	}
	tokens := args.Options{
		Color:      args.Bool(opts.Color),
		JSONFormat: jsonFormat,
	}.Encode()

	raw, err := h.runCached(ctx, "output", cmd, tokens, opts.UseCache, nil)
	if err != nil {
		return nil, err
	}

	result := &OutputResult{Raw: raw}
	if !jsonFormat || opts.Name != "" {
		return result, nil
	}
	if h.runAll {
		docs, derr := parse.ParseValueMaps(raw)
		if derr != nil {
			h.logger.WithError(derr).Warn("could not decode output values, returning raw output")
			return result, nil
		}
		result.Docs = docs
		return result, nil
	}
	values, derr := parse.ParseValueMap([]byte(raw))
	if derr != nil {
		h.logger.WithError(derr).Warn("could not decode output values, returning raw output")
		return result, nil
	}
	result.Values = values
	return result, nil
}

// DestroyOptions configures Destroy.
type DestroyOptions struct {
	// Color re-enables colored output.
	Color bool

	// AutoApprove controls interactive approval. nil defaults to true.
	AutoApprove *bool

	// Vars sets configuration variables.
	Vars map[string]any

	// Targets limits the destroy to the named resources.
	Targets []string

	// VarFile points the engine at a variable definitions file.
	VarFile string

	// Terragrunt carries orchestrator-specific flags.
	Terragrunt args.TerragruntOptions
}

// Destroy runs the engine destroy command and returns its output. Destroy
// is never served from the cache.
func (h *Harness) Destroy(ctx context.Context, opts DestroyOptions) (string, error) {
	tokens := args.Options{
		Color:       args.Bool(opts.Color),
		AutoApprove: boolDefault(opts.AutoApprove, true),
		Vars:        opts.Vars,
		Targets:     opts.Targets,
		VarFile:     opts.VarFile,
		Terragrunt:  opts.Terragrunt,
	}.Encode()
	out, err := h.run(ctx, "destroy", []string{"destroy"}, tokens)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// RefreshOptions configures Refresh.
type RefreshOptions struct {
	// Color re-enables colored output.
	Color bool

	// Lock re-enables state locking; the default disables it for
	// read-only refreshes during tests.
	Lock bool

	// Vars sets configuration variables.
	Vars map[string]any

	// Targets limits the refresh to the named resources.
	Targets []string

	// UseCache serves the refresh output from the result cache when the
	// module directory and parameters are unchanged.
	UseCache bool
}

// Refresh runs the engine refresh command and returns its output.
func (h *Harness) Refresh(ctx context.Context, opts RefreshOptions) (string, error) {
	tokens := args.Options{
		Color:   args.Bool(opts.Color),
		Lock:    args.Bool(opts.Lock),
		Vars:    opts.Vars,
		Targets: opts.Targets,
	}.Encode()
	return h.runCached(ctx, "refresh", []string{"refresh"}, tokens, opts.UseCache, nil)
}

// StateResult holds a pulled state. Raw is always populated; State is nil
// when the payload did not decode as JSON, with a warning logged.
type StateResult struct {
	Raw   string
	State *parse.StateDocument
}

// StatePull pulls the current state and parses it best effort.
func (h *Harness) StatePull(ctx context.Context, useCache bool) (*StateResult, error) {
	raw, err := h.runCached(ctx, "state-pull", []string{"state", "pull"}, nil, useCache, nil)
	if err != nil {
		return nil, err
	}
	result := &StateResult{Raw: raw}
	doc, derr := parse.ParseStateDocument([]byte(raw))
	if derr != nil {
		h.logger.WithError(derr).Warn("could not decode state, returning raw state")
		return result, nil
	}
	result.State = doc
	return result, nil
}

// Execute runs an arbitrary engine command with the given extra tokens,
// honoring run-all mode. No caching or output parsing is applied.
func (h *Harness) Execute(ctx context.Context, command string, extra ...string) (runner.CommandOutput, error) {
	return h.run(ctx, command, []string{command}, extra)
}

// run executes one engine command. label names the command for logs and
// metrics, cmd holds the command tokens and flags the encoded arguments.
func (h *Harness) run(ctx context.Context, label string, cmd, flags []string) (runner.CommandOutput, error) {
	argv := append([]string{}, h.runAllPrefix()...)
	argv = append(argv, cmd...)
	argv = append(argv, flags...)
	return h.runner.Run(ctx, label, argv)
}

// runCached executes one engine command through the result cache,
// fingerprinting the full command tokens plus any extra parameters. The
// command tokens must be included: "output alpha" and "output beta" carry
// identical flags and would otherwise collide on one cache entry.
func (h *Harness) runCached(ctx context.Context, op string, cmd, flags []string, useCache bool, extra map[string]any) (string, error) {
	argv := append(append([]string{}, cmd...), flags...)
	params := mergeParams(map[string]any{"argv": argv}, extra)
	return h.runParams(ctx, op, useCache, params, func() (string, error) {
		out, err := h.run(ctx, op, cmd, flags)
		if err != nil {
			return "", err
		}
		return out.Stdout, nil
	})
}

func (h *Harness) runParams(ctx context.Context, op string, useCache bool, params map[string]any, fn func() (string, error)) (string, error) {
	payload, err := h.cache.Execute(op, params, useCache, func() ([]byte, error) {
		out, err := fn()
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// varFileParam exposes a variable definitions file to the fingerprint by
// content, so edits to it invalidate cache entries even when the file
// lives outside the module directory.
func (h *Harness) varFileParam(path string) map[string]any {
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.dir, path)
	}
	return map[string]any{"var_file": cache.FileParam(path)}
}

func mergeParams(params, extra map[string]any) map[string]any {
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func boolDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// workspaceCurrentMarker prefixes the selected workspace in list output.
const workspaceCurrentMarker = "* "

// WorkspaceList returns the workspace names known to the engine and the
// currently selected one.
func (h *Harness) WorkspaceList(ctx context.Context) (names []string, current string, err error) {
	out, err := h.run(ctx, "workspace-list", []string{"workspace", "list"}, nil)
	if err != nil {
		return nil, "", err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(name, workspaceCurrentMarker); ok {
			name = strings.TrimSpace(rest)
			current = name
		}
		names = append(names, name)
	}
	return names, current, nil
}

// WorkspaceSelect switches to an existing workspace.
func (h *Harness) WorkspaceSelect(ctx context.Context, name string) (string, error) {
	out, err := h.run(ctx, "workspace-select", []string{"workspace", "select", name}, nil)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// WorkspaceNew creates a workspace and switches to it.
func (h *Harness) WorkspaceNew(ctx context.Context, name string) (string, error) {
	out, err := h.run(ctx, "workspace-new", []string{"workspace", "new", name}, nil)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// Workspace switches to the named workspace, creating it when selection
// fails because it does not exist yet.
func (h *Harness) Workspace(ctx context.Context, name string) (string, error) {
	out, err := h.WorkspaceSelect(ctx, name)
	if err == nil {
		return out, nil
	}
	var cmdErr *runner.CommandError
	if !errors.As(err, &cmdErr) {
		return "", err
	}
	h.logger.Debugf("workspace %q not selectable, creating it", name)
	return h.WorkspaceNew(ctx, name)
}
