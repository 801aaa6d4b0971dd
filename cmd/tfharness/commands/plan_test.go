package commands

import (
	"testing"

	"github.com/tfharness/tfharness/pkg/parse"
)

func parsePlan(t *testing.T, payload string) *parse.PlanDocument {
	t.Helper()
	doc, err := parse.ParsePlanDocument([]byte(payload))
	if err != nil {
		t.Fatalf("ParsePlanDocument: %v", err)
	}
	return doc
}

func TestPlanPayloadRejectsEmpty(t *testing.T) {
	if _, err := planPayload(nil); err == nil {
		t.Error("empty document slice did not fail")
	}
}

func TestPlanPayloadShapes(t *testing.T) {
	doc := parsePlan(t, `{"format_version": "1.0"}`)

	single, err := planPayload([]*parse.PlanDocument{doc})
	if err != nil {
		t.Fatalf("planPayload(single): %v", err)
	}
	if _, ok := single.(map[string]any); !ok {
		t.Errorf("single payload = %T, want map", single)
	}

	multi, err := planPayload([]*parse.PlanDocument{doc, doc})
	if err != nil {
		t.Fatalf("planPayload(multi): %v", err)
	}
	raws, ok := multi.([]map[string]any)
	if !ok || len(raws) != 2 {
		t.Errorf("multi payload = %T (%v)", multi, multi)
	}
}

func TestMergeVarsOverlay(t *testing.T) {
	merged := mergeVars(map[string]any{"a": "base", "b": "keep"}, map[string]string{"a": "cli"})
	if merged["a"] != "cli" || merged["b"] != "keep" {
		t.Errorf("merged = %v", merged)
	}
	if mergeVars(nil, nil) != nil {
		t.Error("empty merge did not return nil")
	}
}
