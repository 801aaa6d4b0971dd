package harness

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tfharness/tfharness/pkg/args"
	"github.com/tfharness/tfharness/pkg/cache"
	"github.com/tfharness/tfharness/pkg/runner"
)

const planShowJSON = `{
  "format_version": "1.0",
  "terraform_version": "1.7.5",
  "variables": {"name": {"value": "demo"}},
  "planned_values": {
    "root_module": {
      "resources": [
        {"address": "null_resource.default", "type": "null_resource", "name": "default"}
      ]
    }
  },
  "outputs": {"triggers": {"value": {}, "sensitive": false}}
}`

// planShowEngine replays plan output for the two-call plan/show flow.
const planShowEngine = `
if [ "$1" = show ]; then
cat <<'EOF'
` + planShowJSON + `
EOF
fi
exit 0`

func TestPlanDocumentTwoCallFlow(t *testing.T) {
	h, argsFile := testHarness(t, planShowEngine)

	doc, err := h.PlanDocument(context.Background(), PlanOptions{Vars: map[string]any{"name": "demo"}})
	if err != nil {
		t.Fatalf("PlanDocument: %v", err)
	}
	if doc.TerraformVersion() != "1.7.5" {
		t.Errorf("TerraformVersion = %q", doc.TerraformVersion())
	}
	if _, ok := doc.RootModule().Resources()["null_resource.default"]; !ok {
		t.Errorf("root resources = %v", doc.RootModule().Resources())
	}

	calls := recordedCalls(t, argsFile)
	if len(calls) != 2 {
		t.Fatalf("engine called %d times, want 2 (plan then show)", len(calls))
	}
	if !strings.HasPrefix(calls[0], "plan ") || !strings.Contains(calls[0], "-var name=demo") || !strings.Contains(calls[0], "-out=") {
		t.Errorf("plan argv = %q", calls[0])
	}
	if !strings.HasPrefix(calls[1], "show -no-color -json ") {
		t.Errorf("show argv = %q", calls[1])
	}
}

func TestPlanDocumentDecodeFailurePropagates(t *testing.T) {
	h, _ := testHarness(t, `
if [ "$1" = show ]; then echo "not json"; fi
exit 0`)

	if _, err := h.PlanDocument(context.Background(), PlanOptions{}); err == nil {
		t.Error("malformed plan JSON did not fail")
	}
}

func TestPlanDocumentRejectedInRunAllMode(t *testing.T) {
	dir := newModuleDir(t)
	h, err := NewTerragrunt(dir, true, WithBinary(writeEngine(t, "exit 0")),
		WithEnv(map[string]string{"TFH_ARGS": filepath.Join(t.TempDir(), "args.log")}))
	if err != nil {
		t.Fatalf("NewTerragrunt: %v", err)
	}
	defer h.Close()

	if _, err := h.PlanDocument(context.Background(), PlanOptions{}); err == nil {
		t.Error("PlanDocument in run-all mode did not fail")
	}
}

func TestPlanDocumentsRunAll(t *testing.T) {
	dir := newModuleDir(t)
	// Two back-to-back documents, as run-all show emits them.
	engine := `
if [ "$1" = run-all ] && [ "$2" = show ]; then
cat <<'EOF'
{"format_version": "1.0", "terraform_version": "1.7.5"}
{"format_version": "1.0", "terraform_version": "1.7.6"}
EOF
fi
exit 0`
	h, err := NewTerragrunt(dir, true, WithBinary(writeEngine(t, engine)),
		WithEnv(map[string]string{"TFH_ARGS": filepath.Join(t.TempDir(), "args.log")}))
	if err != nil {
		t.Fatalf("NewTerragrunt: %v", err)
	}
	defer h.Close()

	docs, err := h.PlanDocuments(context.Background(), PlanOptions{})
	if err != nil {
		t.Fatalf("PlanDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[1].TerraformVersion() != "1.7.6" {
		t.Errorf("docs[1].TerraformVersion = %q", docs[1].TerraformVersion())
	}
}

func TestApplyArgs(t *testing.T) {
	h, argsFile := testHarness(t, "exit 0")
	_, err := h.Apply(context.Background(), ApplyOptions{
		Vars:    map[string]any{"foo": "bar"},
		Targets: []string{"null_resource.default"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	calls := recordedCalls(t, argsFile)
	want := "apply -auto-approve -no-color -input=false -var foo=bar -target=null_resource.default"
	if calls[0] != want {
		t.Errorf("argv = %q, want %q", calls[0], want)
	}
}

func TestApplyAutoApproveOptOut(t *testing.T) {
	h, argsFile := testHarness(t, "exit 0")
	if _, err := h.Apply(context.Background(), ApplyOptions{AutoApprove: args.Bool(false)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if calls := recordedCalls(t, argsFile); strings.Contains(calls[0], "-auto-approve") {
		t.Errorf("argv = %q, auto-approve not suppressed", calls[0])
	}
}

func TestOutputDecodesValues(t *testing.T) {
	h, argsFile := testHarness(t, `
if [ "$1" = output ]; then
  echo '{"ip": {"value": "10.0.0.1", "sensitive": false}, "token": {"value": "s3cret", "sensitive": true}}'
fi
exit 0`)

	result, err := h.Output(context.Background(), OutputOptions{})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if result.Values == nil {
		t.Fatalf("Values not decoded, raw = %q", result.Raw)
	}
	ip, err := result.Values.Get("ip")
	if err != nil || ip != "10.0.0.1" {
		t.Errorf("ip = %v, %v", ip, err)
	}
	if got := result.Values.Sensitive(); len(got) != 1 || got[0] != "token" {
		t.Errorf("Sensitive = %v", got)
	}
	if calls := recordedCalls(t, argsFile); calls[0] != "output -no-color -json" {
		t.Errorf("argv = %q", calls[0])
	}
}

func TestOutputDecodeFailureReturnsRaw(t *testing.T) {
	h, _ := testHarness(t, `echo "no outputs defined"; exit 0`)

	result, err := h.Output(context.Background(), OutputOptions{})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if result.Values != nil {
		t.Error("Values decoded from malformed payload")
	}
	if !strings.Contains(result.Raw, "no outputs defined") {
		t.Errorf("Raw = %q", result.Raw)
	}
}

func TestOutputSingleValueSkipsDecode(t *testing.T) {
	h, argsFile := testHarness(t, `echo '"10.0.0.1"'; exit 0`)

	result, err := h.Output(context.Background(), OutputOptions{Name: "ip"})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if result.Values != nil {
		t.Error("single-value output was decoded as a value map")
	}
	if calls := recordedCalls(t, argsFile); calls[0] != "output ip -no-color -json" {
		t.Errorf("argv = %q", calls[0])
	}
}

func TestStatePull(t *testing.T) {
	h, argsFile := testHarness(t, `
if [ "$1" = state ]; then
  echo '{"version": 4, "terraform_version": "1.7.5", "outputs": {"ip": {"value": "10.0.0.1"}}}'
fi
exit 0`)

	result, err := h.StatePull(context.Background(), false)
	if err != nil {
		t.Fatalf("StatePull: %v", err)
	}
	if result.State == nil {
		t.Fatalf("state not decoded, raw = %q", result.Raw)
	}
	if result.State.TerraformVersion() != "1.7.5" {
		t.Errorf("TerraformVersion = %q", result.State.TerraformVersion())
	}
	if calls := recordedCalls(t, argsFile); calls[0] != "state pull" {
		t.Errorf("argv = %q", calls[0])
	}
}

func TestDestroyArgs(t *testing.T) {
	h, argsFile := testHarness(t, "exit 0")
	if _, err := h.Destroy(context.Background(), DestroyOptions{}); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if calls := recordedCalls(t, argsFile); calls[0] != "destroy -auto-approve -no-color" {
		t.Errorf("argv = %q", calls[0])
	}
}

func TestCommandFailurePropagates(t *testing.T) {
	h, _ := testHarness(t, `echo "Error: something broke" >&2; exit 1`)

	_, err := h.Apply(context.Background(), ApplyOptions{})
	var cmdErr *runner.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want CommandError", err)
	}
	if cmdErr.Output.ReturnCode != 1 || !strings.Contains(cmdErr.Output.Stderr, "something broke") {
		t.Errorf("CommandError output = %+v", cmdErr.Output)
	}
}

func TestDetailedExitCodeIsSuccess(t *testing.T) {
	h, _ := testHarness(t, `echo "changes pending"; exit 2`)

	out, err := h.Plan(context.Background(), PlanOptions{})
	if err != nil {
		t.Fatalf("Plan with exit code 2: %v", err)
	}
	if !strings.Contains(out, "changes pending") {
		t.Errorf("output = %q", out)
	}
}

func TestPlanCachedAcrossCalls(t *testing.T) {
	store := cache.NewFSStore(t.TempDir())
	h, argsFile := testHarness(t, `echo "plan output"; exit 0`, WithCacheStore(store))

	for i := 0; i < 2; i++ {
		out, err := h.Plan(context.Background(), PlanOptions{UseCache: true})
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if !strings.Contains(out, "plan output") {
			t.Errorf("output = %q", out)
		}
	}
	if calls := recordedCalls(t, argsFile); len(calls) != 1 {
		t.Errorf("engine called %d times, want 1", len(calls))
	}
}

func TestPlanCacheInvalidatedByModuleChange(t *testing.T) {
	store := cache.NewFSStore(t.TempDir())
	h, argsFile := testHarness(t, `echo "plan output"; exit 0`, WithCacheStore(store))

	if _, err := h.Plan(context.Background(), PlanOptions{UseCache: true}); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	mustWrite(t, filepath.Join(h.Dir(), "main.tf"), "resource \"null_resource\" \"changed\" {}\n")
	if _, err := h.Plan(context.Background(), PlanOptions{UseCache: true}); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if calls := recordedCalls(t, argsFile); len(calls) != 2 {
		t.Errorf("engine called %d times, want 2", len(calls))
	}
}

func TestOutputCacheKeyedByName(t *testing.T) {
	store := cache.NewFSStore(t.TempDir())
	h, argsFile := testHarness(t, `
if [ "$1" = output ]; then
  echo "value-of-$2"
fi
exit 0`, WithCacheStore(store))

	alpha, err := h.Output(context.Background(), OutputOptions{Name: "alpha", UseCache: true})
	if err != nil {
		t.Fatalf("Output alpha: %v", err)
	}
	if !strings.Contains(alpha.Raw, "value-of-alpha") {
		t.Errorf("alpha raw = %q", alpha.Raw)
	}

	// A different name must not be served the first name's cached payload.
	beta, err := h.Output(context.Background(), OutputOptions{Name: "beta", UseCache: true})
	if err != nil {
		t.Fatalf("Output beta: %v", err)
	}
	if !strings.Contains(beta.Raw, "value-of-beta") {
		t.Errorf("beta raw = %q", beta.Raw)
	}
	if calls := recordedCalls(t, argsFile); len(calls) != 2 {
		t.Errorf("engine called %d times, want 2", len(calls))
	}
}

func TestExecutePassthrough(t *testing.T) {
	h, argsFile := testHarness(t, `echo "1.7.5"; exit 0`)

	out, err := h.Execute(context.Background(), "version", "-json")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.Stdout, "1.7.5") {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if calls := recordedCalls(t, argsFile); calls[0] != "version -json" {
		t.Errorf("argv = %q", calls[0])
	}
}

func TestWorkspaceList(t *testing.T) {
	h, _ := testHarness(t, `
if [ "$1" = workspace ]; then
  printf '  default\n* staging\n  prod\n'
fi
exit 0`)

	names, current, err := h.WorkspaceList(context.Background())
	if err != nil {
		t.Fatalf("WorkspaceList: %v", err)
	}
	if current != "staging" {
		t.Errorf("current = %q", current)
	}
	if len(names) != 3 || names[0] != "default" || names[2] != "prod" {
		t.Errorf("names = %v", names)
	}
}
