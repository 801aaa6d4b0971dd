package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/tfharness/tfharness/pkg/parse"
	"github.com/tfharness/tfharness/pkg/telemetry"
)

// defaultPackage is assumed when a policy's Rego source has no package
// declaration the engine can find.
const defaultPackage = "tfharness"

// Engine compiles Rego policies and evaluates their deny rules against
// plan documents.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   *telemetry.Logger
}

// compiledPolicy pairs a policy with its parsed module.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger *telemetry.Logger) (*Engine, error) {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.NewComponentLogger("policy"),
	}
	for _, p := range BuiltinPolicies() {
		if err := e.Add(p); err != nil {
			return nil, fmt.Errorf("compiling built-in policy %s: %w", p.Name, err)
		}
	}
	return e, nil
}

// Add compiles and registers a policy, replacing any existing policy of
// the same name.
func (e *Engine) Add(p Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("parsing policy %s: %w", p.Name, err)
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.Name] = &compiledPolicy{
		policy:   &p,
		module:   module,
		compiled: time.Now(),
	}
	e.logger.Debugf("policy %s compiled", p.Name)
	return nil
}

// LoadPaths loads and registers policies from the given file or directory
// paths.
func (e *Engine) LoadPaths(ctx context.Context, paths ...string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}
	return e.Replace(policies, false)
}

// Replace registers the given policies. With reset set, previously loaded
// policies are dropped first and the built-ins reloaded.
func (e *Engine) Replace(policies []Policy, reset bool) error {
	if reset {
		e.mu.Lock()
		e.policies = make(map[string]*compiledPolicy)
		e.mu.Unlock()
		for _, p := range BuiltinPolicies() {
			if err := e.Add(p); err != nil {
				return err
			}
		}
	}
	for _, p := range policies {
		if err := e.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// EvaluatePlan evaluates every enabled policy against the plan document.
func (e *Engine) EvaluatePlan(ctx context.Context, doc *parse.PlanDocument) (*Result, error) {
	return e.Evaluate(ctx, doc.Raw())
}

// EvaluatePlans evaluates every enabled policy against each document of a
// run-all plan and merges the outcomes. Allowed only when every document
// is allowed.
func (e *Engine) EvaluatePlans(ctx context.Context, docs []*parse.PlanDocument) (*Result, error) {
	merged := &Result{Allowed: true}
	for _, doc := range docs {
		result, err := e.Evaluate(ctx, doc.Raw())
		if err != nil {
			return nil, err
		}
		merged.Allowed = merged.Allowed && result.Allowed
		merged.Violations = append(merged.Violations, result.Violations...)
		merged.Warnings = append(merged.Warnings, result.Warnings...)
		merged.EvaluatedPolicies = result.EvaluatedPolicies
	}
	merged.EvaluatedAt = time.Now()
	return merged, nil
}

// Evaluate runs every enabled policy against an arbitrary input document.
// A policy that fails to evaluate is reported as a warning, never as an
// evaluation failure.
func (e *Engine) Evaluate(ctx context.Context, input map[string]any) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true}
	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.WithError(err).Warnf("policy %s evaluation failed", name)
			result.Warnings = append(result.Warnings, fmt.Sprintf("policy %s evaluation failed: %v", name, err))
			continue
		}
		result.Violations = append(result.Violations, violations...)
	}

	for _, v := range result.Violations {
		if v.Severity.blocking() {
			result.Allowed = false
			break
		}
	}
	result.EvaluatedAt = time.Now()
	return result, nil
}

// evaluatePolicy queries the policy package's deny rule with the given
// input.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input map[string]any) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", packageName(cp))

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)
	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", cp.policy.Name, err)
	}

	var violations []Violation
	for _, res := range results {
		for _, expr := range res.Expressions {
			denySet, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, entry := range denySet {
				violations = append(violations, newViolation(cp.policy, entry))
			}
		}
	}
	return violations, nil
}

// newViolation builds a Violation from one deny result, which is either a
// bare message string or an object with message, severity and address
// fields.
func newViolation(p *Policy, entry any) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}
	switch value := entry.(type) {
	case string:
		v.Message = value
	case map[string]any:
		if msg, ok := value["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := value["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if addr, ok := value["address"].(string); ok {
			v.Address = addr
		}
	default:
		v.Message = fmt.Sprintf("%v", entry)
	}
	return v
}

// packageName resolves the Rego package the policy's deny rules live in.
func packageName(cp *compiledPolicy) string {
	if cp.module != nil && cp.module.Package != nil {
		// Path elements: data, then the package segments.
		var parts []string
		for i, term := range cp.module.Package.Path {
			if i == 0 {
				continue
			}
			if s, ok := term.Value.(ast.String); ok {
				parts = append(parts, string(s))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ".")
		}
	}
	return defaultPackage
}

// GetPolicy returns a registered policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp, ok := e.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all registered policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}
	return policies
}

// SetEnabled enables or disables a policy by name.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	return nil
}

// sortedNames returns the registered policy names in order, so evaluation
// and listings are deterministic. Callers hold at least a read lock.
func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
