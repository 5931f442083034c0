package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

func mustParse(t *testing.T, raw string) schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func rootObject(t *testing.T, doc schema.Document) *schema.ObjectNode {
	t.Helper()
	obj, ok := doc.Root.(*schema.ObjectNode)
	if !ok {
		t.Fatalf("expected object root, got %T", doc.Root)
	}
	return obj
}

const residencySchema = `{
  "definitions": {
    "Person": {
      "type": "object",
      "required": ["country", "ssn"],
      "properties": {
        "country": {"type": "string"},
        "ssn": {
          "x-when": "country == US",
          "then": {"type": "string", "minLength": 9}
        }
      }
    }
  },
  "$ref": "#/definitions/Person"
}`

func TestApply_WhenDropsPropertyAndRequired(t *testing.T) {
	doc := mustParse(t, residencySchema)

	cases := []struct {
		name     string
		country  string
		props    []string
		required []string
	}{
		{name: "non us", country: "CA", props: []string{"country"}, required: []string{"country"}},
		{name: "us", country: "US", props: []string{"country", "ssn"}, required: []string{"country", "ssn"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Apply(doc, map[string]any{"country": tc.country, "ssn": ""}, Options{})
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			obj := rootObject(t, out)
			if diff := cmp.Diff(tc.props, obj.Order); diff != "" {
				t.Fatalf("properties mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.required, obj.Required); diff != "" {
				t.Fatalf("required mismatch (-want +got):\n%s", diff)
			}
			if _, err := validation.Compile(out); err != nil {
				t.Fatalf("filtered document must compile: %v", err)
			}
		})
	}

	// the input document keeps its conditional
	if _, err := validation.Compile(doc); err == nil {
		t.Fatal("expected unfiltered document to be rejected")
	}
}

func TestApply_IfThenElse(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {
    "kind": {"type": "string"},
    "vat": {"type": "string"},
    "birthdate": {"type": "string", "format": "date"}
  },
  "allOf": [{
    "if": {"properties": {"kind": {"const": "company"}}, "required": ["kind"]},
    "then": {"required": ["vat"]},
    "else": {"required": ["birthdate"]}
  }]
}`)

	cache := validation.NewCache(8)
	for kind, want := range map[string][]string{
		"company": {"vat"},
		"person":  {"birthdate"},
		"":        {"birthdate"},
	} {
		out, err := Apply(doc, map[string]any{"kind": kind}, Options{Cache: cache})
		if err != nil {
			t.Fatalf("apply %q: %v", kind, err)
		}
		obj := rootObject(t, out)
		if diff := cmp.Diff(want, obj.Required); diff != "" {
			t.Fatalf("kind %q required mismatch (-want +got):\n%s", kind, diff)
		}
		if len(obj.AllOf) != 0 {
			t.Fatalf("allOf must be folded, got %d entries", len(obj.AllOf))
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected the predicate to be compiled once, cache len = %d", cache.Len())
	}
}

func TestApply_ArrayVariants(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {
    "contacts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"type": {"type": "string"}},
        "allOf": [{
          "x-when": "type == phone",
          "then": {"properties": {"number": {"type": "string"}}, "required": ["number"]}
        }]
      }
    }
  }
}`)

	out, err := Apply(doc, map[string]any{
		"contacts": []any{
			map[string]any{"type": "phone"},
			map[string]any{"type": "email"},
		},
	}, Options{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	contacts := rootObject(t, out).Properties["contacts"].(*schema.ArrayNode)
	if len(contacts.Variants) != 2 {
		t.Fatalf("variants = %d", len(contacts.Variants))
	}
	phone := contacts.Variants[0].(*schema.ObjectNode)
	email := contacts.Variants[1].(*schema.ObjectNode)
	if diff := cmp.Diff([]string{"number"}, phone.Required); diff != "" {
		t.Fatalf("phone required mismatch (-want +got):\n%s", diff)
	}
	if len(email.Required) != 0 || email.Properties["number"] != nil {
		t.Fatalf("email must not carry number: %+v", email)
	}
	items := contacts.Items.(*schema.ObjectNode)
	if items.Properties["number"] != nil {
		t.Fatal("template item must be filtered against an empty value")
	}

	v, err := validation.Compile(out)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	errs, err := v.Validate(map[string]any{
		"contacts": []any{
			map[string]any{"type": "phone"},
			map[string]any{"type": "email"},
		},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := errs["contacts.0.number"]; !ok || len(errs) != 1 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestApply_FieldsPaths(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "required": ["name", "address"],
  "properties": {
    "name": {"type": "string"},
    "address": {
      "type": "object",
      "required": ["city", "zip"],
      "properties": {"city": {"type": "string"}, "zip": {"type": "string"}}
    },
    "owners": {"type": "array", "items": {"type": "object", "properties": {"email": {"type": "string"}, "phone": {"type": "string"}}}}
  }
}`)

	out, err := Apply(doc, map[string]any{}, Options{FieldsPaths: []string{"address.city", "owners.0.email"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	root := rootObject(t, out)
	if diff := cmp.Diff([]string{"address", "owners"}, root.Order); diff != "" {
		t.Fatalf("root properties mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"address"}, root.Required); diff != "" {
		t.Fatalf("root required mismatch (-want +got):\n%s", diff)
	}
	address := root.Properties["address"].(*schema.ObjectNode)
	if diff := cmp.Diff([]string{"city"}, address.Order); diff != "" {
		t.Fatalf("address properties mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"city"}, address.Required); diff != "" {
		t.Fatalf("address required mismatch (-want +got):\n%s", diff)
	}
	owner := root.Properties["owners"].(*schema.ArrayNode).Items.(*schema.ObjectNode)
	if diff := cmp.Diff([]string{"email"}, owner.Order); diff != "" {
		t.Fatalf("owner properties mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Extras(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {
    "notes": {"x-when": "extras.role == admin", "then": {"type": "string"}}
  }
}`)

	admin, err := Apply(doc, nil, Options{Extras: map[string]any{"role": "admin"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rootObject(t, admin).Properties["notes"] == nil {
		t.Fatal("admin must see notes")
	}

	guest, err := Apply(doc, nil, Options{Extras: map[string]any{"role": "guest"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rootObject(t, guest).Properties["notes"] != nil {
		t.Fatal("guest must not see notes")
	}
}

func TestApply_RecursiveDefinitionKeepsRef(t *testing.T) {
	doc := mustParse(t, `{
  "definitions": {
    "Node": {
      "type": "object",
      "required": ["label"],
      "properties": {
        "label": {"type": "string"},
        "children": {"type": "array", "items": {"$ref": "#/definitions/Node"}}
      }
    }
  },
  "$ref": "#/definitions/Node"
}`)

	model := map[string]any{
		"label":    "root",
		"children": []any{map[string]any{"label": ""}},
	}
	out, err := Apply(doc, model, Options{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := out.Definitions["Node"]; !ok {
		t.Fatalf("expected Node definition to be kept, got %v", out.DefinitionNames())
	}

	v, err := validation.Compile(out)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	errs, err := v.Validate(model)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := errs["children.0.label"]; !ok {
		t.Fatalf("expected nested required error, got %v", errs)
	}
}

func TestApply_MissingRef(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {"a": {"$ref": "#/definitions/Missing"}}
}`)
	if _, err := Apply(doc, nil, Options{}); err == nil {
		t.Fatal("expected missing ref error")
	}
}
