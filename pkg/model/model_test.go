package model

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

func TestModelSetCreatesContainers(t *testing.T) {
	m := Model{}
	if err := m.Set("owners.1.name", "Ada"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("address.zip", "90210"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("matrix.0.1", 5); err != nil {
		t.Fatalf("set: %v", err)
	}

	want := Model{
		"owners":  []any{nil, map[string]any{"name": "Ada"}},
		"address": map[string]any{"zip": "90210"},
		"matrix":  []any{[]any{nil, 5}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}

	got, ok := m.Get("owners.1.name")
	if !ok || got != "Ada" {
		t.Fatalf("get = %v, %v", got, ok)
	}
	if _, ok := m.Get("owners.5.name"); ok {
		t.Fatalf("expected missing index")
	}
}

func TestModelSetBoundsListGrowth(t *testing.T) {
	m := Model{"owners": []any{"a"}}
	if err := m.Set("owners.999999999.name", "Ada"); err == nil {
		t.Fatalf("expected error for an index far past the end of the list")
	}
	if err := m.Set("fresh.999999999", "x"); err == nil {
		t.Fatalf("expected error for an index far past an empty list")
	}
	if diff := cmp.Diff(Model{"owners": []any{"a"}}, m); diff != "" {
		t.Fatalf("rejected sets changed the model (-want +got):\n%s", diff)
	}

	if err := m.Set("owners."+strconv.Itoa(MaxListGrowth), "z"); err != nil {
		t.Fatalf("set at the growth limit: %v", err)
	}
	if got := len(m["owners"].([]any)); got != MaxListGrowth+1 {
		t.Fatalf("owners length = %d, want %d", got, MaxListGrowth+1)
	}
}

func TestModelSetRejectsScalarParent(t *testing.T) {
	m := Model{"name": "Ada"}
	if err := m.Set("name.first", "x"); err == nil {
		t.Fatalf("expected error when descending into a string")
	}
	if err := m.Set("", "x"); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := m.Set("a..b", "x"); err == nil {
		t.Fatalf("expected error for empty segment")
	}
}

func TestModelDelete(t *testing.T) {
	m := New(map[string]any{
		"name":   "Ada",
		"owners": []any{"a", "b", "c"},
		"nested": map[string]any{"x": 1, "y": 2},
	})
	for _, path := range []string{"name", "owners.1", "nested.x", "missing.path"} {
		if err := m.Delete(path); err != nil {
			t.Fatalf("delete %q: %v", path, err)
		}
	}
	want := Model{
		"owners": []any{"a", "c"},
		"nested": map[string]any{"y": 2},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestModelSnapshotIsDetached(t *testing.T) {
	m := New(map[string]any{"nested": map[string]any{"x": 1}})
	snap := m.Snapshot()
	if err := m.Set("nested.x", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := snap.Get("nested.x"); got != 1 {
		t.Fatalf("snapshot changed: %v", got)
	}
	if diff := cmp.Diff([]string{"nested"}, m.Shape()); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild(t *testing.T) {
	raw := `{
  "definitions": {
    "Address": {"type": "object", "properties": {"zip": {"type": "string"}}}
  },
  "type": "object",
  "required": ["first_name"],
  "properties": {
    "first_name": {"type": "string"},
    "age": {"type": "integer"},
    "agree": {"type": "boolean"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "country": {"type": "string", "default": "US"},
    "address": {"$ref": "#/definitions/Address"},
    "extra": {}
  },
  "allOf": [
    {"if": {"properties": {"country": {"const": "US"}}}, "then": {"required": ["ssn"]}, "properties": {"ssn": {"type": "string"}}}
  ]
}`
	doc, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got, err := Build(doc)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := Model{
		"first_name": "",
		"age":        nil,
		"agree":      false,
		"tags":       []any{},
		"country":    "US",
		"address":    map[string]any{"zip": ""},
		"extra":      nil,
		"ssn":        "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}

	plain, err := Build(doc, WithDefaults(false))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if plain["country"] != "" {
		t.Fatalf("expected default to be ignored, got %v", plain["country"])
	}
}

func TestBuildRejectsScalarRoot(t *testing.T) {
	doc := schema.Document{Root: &schema.ScalarNode{Type: "string"}}
	if _, err := Build(doc); err == nil {
		t.Fatalf("expected error for scalar root")
	}
}
