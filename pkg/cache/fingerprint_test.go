package cache

import (
	"testing"
)

func testIdentity(workdir string) Identity {
	return Identity{Binary: "terraform", BaseDir: "/fixtures", WorkDir: workdir}
}

func TestFingerprintDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "resource {}")
	id := testIdentity(dir)
	params := map[string]any{"vars": map[string]any{"foo": "bar"}, "color": false}

	first, err := Fingerprint("plan", id, params)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := Fingerprint("plan", id, params)
		if err != nil {
			t.Fatalf("Fingerprint: %v", err)
		}
		if got != first {
			t.Fatal("fingerprint not deterministic")
		}
	}
}

func TestFingerprintDiscriminatesInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "resource {}")
	id := testIdentity(dir)
	params := map[string]any{"vars": map[string]any{"foo": "bar"}}

	base, err := Fingerprint("plan", id, params)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	if got, _ := Fingerprint("apply", id, params); got == base {
		t.Error("operation name not fingerprinted")
	}

	other := id
	other.Binary = "terragrunt"
	if got, _ := Fingerprint("plan", other, params); got == base {
		t.Error("binary identity not fingerprinted")
	}

	if got, _ := Fingerprint("plan", id, map[string]any{"vars": map[string]any{"foo": "spam"}}); got == base {
		t.Error("parameters not fingerprinted")
	}
}

func TestFingerprintTracksDirectoryContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "resource {}")
	id := testIdentity(dir)

	before, err := Fingerprint("plan", id, nil)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	// Any file change invalidates, even one unrelated to the operation.
	writeFile(t, dir, "unrelated.txt", "note")
	after, err := Fingerprint("plan", id, nil)
	if err != nil {
		t.Fatalf("Fingerprint after change: %v", err)
	}
	if before == after {
		t.Error("working directory change did not change fingerprint")
	}
}

func TestFingerprintFileParamByContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "resource {}")
	id := testIdentity(dir)

	varsDir := t.TempDir()
	pathA := writeFile(t, varsDir, "a.tfvars", "foo = \"bar\"")
	pathB := writeFile(t, varsDir, "b.tfvars", "foo = \"bar\"")

	fpA, err := Fingerprint("plan", id, map[string]any{"var_file": FileParam(pathA)})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpB, err := Fingerprint("plan", id, map[string]any{"var_file": FileParam(pathB)})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fpA != fpB {
		t.Error("identical file content at different paths fingerprinted differently")
	}

	writeFile(t, varsDir, "a.tfvars", "foo = \"changed\"")
	fpA2, err := Fingerprint("plan", id, map[string]any{"var_file": FileParam(pathA)})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fpA2 == fpA {
		t.Error("file content change under same path did not invalidate")
	}
}

func TestFingerprintFileParamList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "resource {}")
	id := testIdentity(dir)

	varsDir := t.TempDir()
	a := writeFile(t, varsDir, "a.tfvars", "a = 1")
	b := writeFile(t, varsDir, "b.tfvars", "b = 2")

	fp1, err := Fingerprint("plan", id, map[string]any{"var_files": FileParams{a, b}})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	writeFile(t, varsDir, "b.tfvars", "b = 3")
	fp2, err := Fingerprint("plan", id, map[string]any{"var_files": FileParams{a, b}})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fp1 == fp2 {
		t.Error("list file parameter content change did not invalidate")
	}
}
