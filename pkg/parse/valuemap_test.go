package parse

import (
	"errors"
	"reflect"
	"testing"
)

func TestValueMapLookup(t *testing.T) {
	vm := NewValueMap(map[string]any{
		"a": map[string]any{"value": float64(1), "sensitive": true},
		"b": map[string]any{"value": float64(2)},
	})

	got, err := vm.Get("a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if got != float64(1) {
		t.Errorf("Get(a) = %v, want 1", got)
	}
	got, err = vm.Get("b")
	if err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}
	if got != float64(2) {
		t.Errorf("Get(b) = %v, want 2", got)
	}
}

func TestValueMapSensitive(t *testing.T) {
	vm := NewValueMap(map[string]any{
		"a": map[string]any{"value": float64(1), "sensitive": true},
		"b": map[string]any{"value": float64(2)},
	})
	if got := vm.Sensitive(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Sensitive() = %v, want [a]", got)
	}
}

func TestValueMapAbsentKeyFails(t *testing.T) {
	vm := NewValueMap(map[string]any{})
	_, err := vm.Get("missing")
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Get(missing) error = %v, want KeyNotFoundError", err)
	}
	if notFound.Key != "missing" {
		t.Errorf("Key = %q, want missing", notFound.Key)
	}
}

func TestParseValueMap(t *testing.T) {
	vm, err := ParseValueMap([]byte(`{"triggers": {"value": [{"name": "foo"}]}}`))
	if err != nil {
		t.Fatalf("ParseValueMap() error = %v", err)
	}
	if !vm.Has("triggers") {
		t.Error("Has(triggers) = false")
	}
	if got := vm.Names(); !reflect.DeepEqual(got, []string{"triggers"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestParseValueMapInvalidJSON(t *testing.T) {
	_, err := ParseValueMap([]byte("not json"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if decodeErr.Doc != -1 {
		t.Errorf("Doc = %d, want -1", decodeErr.Doc)
	}
}
