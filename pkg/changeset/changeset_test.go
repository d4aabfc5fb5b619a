package changeset

import (
	"encoding/json"
	"testing"
)

func TestNew_StartsValid(t *testing.T) {
	cs := New(map[string]any{"name": "alice"})

	if !cs.Valid {
		t.Error("expected new changeset to be valid")
	}
	if len(cs.Errors) != 0 {
		t.Errorf("expected no errors, got %v", cs.Errors)
	}
}

func TestAddError_MarksInvalid(t *testing.T) {
	cs := New(map[string]any{})

	cs.AddError("email", "is required")
	cs.AddError("email", "must be a valid address")
	cs.AddError("age", "must be an integer")

	if cs.Valid {
		t.Error("expected changeset to be invalid after AddError")
	}
	if got := len(cs.Errors["email"]); got != 2 {
		t.Errorf("expected 2 email errors, got %d", got)
	}
	if got := len(cs.Errors["age"]); got != 1 {
		t.Errorf("expected 1 age error, got %d", got)
	}
}

func TestAddError_NilErrorsMap(t *testing.T) {
	// A changeset built by a third-party validator may carry a nil map.
	cs := &Changeset{Valid: true}

	cs.AddError("name", "is required")

	if cs.Valid {
		t.Error("expected invalid changeset")
	}
	if len(cs.Errors["name"]) != 1 {
		t.Errorf("expected error recorded, got %v", cs.Errors)
	}
}

func TestGet_PrefersChanges(t *testing.T) {
	cs := New(map[string]any{"age": "42"})
	cs.PutChange("age", 42)

	v, ok := cs.Get("age")
	if !ok {
		t.Fatal("expected age to be present")
	}
	if v != 42 {
		t.Errorf("expected cast value 42, got %v", v)
	}

	if _, ok := cs.Get("missing"); ok {
		t.Error("expected missing field to report absent")
	}
}

func TestGet_FallsBackToParams(t *testing.T) {
	cs := New(map[string]any{"name": "alice"})

	v, ok := cs.Get("name")
	if !ok || v != "alice" {
		t.Errorf("expected raw param fallback, got %v (ok=%v)", v, ok)
	}
}

func TestMarshalJSON_ErrorShape(t *testing.T) {
	cs := New(map[string]any{})
	cs.AddError("email", "is required")

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got := body.Errors["email"]; len(got) != 1 || got[0] != "is required" {
		t.Errorf("unexpected errors payload: %v", body.Errors)
	}
}

func TestMarshalJSON_ValidHasEmptyErrors(t *testing.T) {
	data, err := json.Marshal(New(map[string]any{"x": 1}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"errors":{}}` {
		t.Errorf("expected empty errors object, got %s", data)
	}
}
