package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

const signupSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "Signup": {
      "type": "object",
      "required": ["first_name", "email", "create_password", "confirm_password"],
      "errorMessage": {"required": {"email": "Email is mandatory"}},
      "properties": {
        "first_name": {"type": "string", "minLength": 2, "pattern": "^[A-Za-z]+$", "errorMessage": {"minLength": "Too short", "pattern": "Letters only"}},
        "email": {"type": "string", "format": "email"},
        "create_password": {"type": "string", "title": "Password"},
        "confirm_password": {"type": "string", "const": {"$data": "1/create_password"}},
        "plan": {"type": "string", "enum": ["basic", "pro"]},
        "age": {"type": "integer", "minimum": 18},
        "start": {"type": "string", "format": "date"},
        "accept": {"type": "boolean"}
      }
    }
  },
  "$ref": "#/definitions/Signup"
}`

func mustParse(t *testing.T, raw string) schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func mustValidator(t *testing.T, raw string) *Validator {
	t.Helper()
	v, err := Compile(mustParse(t, raw))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return v
}

func validSignup() map[string]any {
	return map[string]any{
		"first_name":       "Ada",
		"email":            "ada@example.com",
		"create_password":  "secret",
		"confirm_password": "secret",
	}
}

func TestValidate_EmptyModelReportsEveryRequiredField(t *testing.T) {
	v := mustValidator(t, signupSchema)

	got, err := v.Validate(map[string]any{
		"first_name":       "",
		"email":            nil,
		"create_password":  "",
		"confirm_password": "",
		"accept":           false,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	want := ErrorMap{
		"first_name":       "This field is required",
		"email":            "Email is mandatory",
		"create_password":  "This field is required",
		"confirm_password": "This field is required",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_ValidModel(t *testing.T) {
	v := mustValidator(t, signupSchema)

	got, err := v.Validate(validSignup())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !got.Valid() {
		t.Fatalf("expected no errors, got %v", got)
	}
}

func TestValidate_RankingKeepsOneMessagePerField(t *testing.T) {
	v := mustValidator(t, signupSchema)

	cases := []struct {
		name  string
		field string
		value any
		want  string
	}{
		{name: "type beats bounds", field: "age", value: "old"},
		{name: "pattern beats minLength", field: "first_name", value: "1", want: "Letters only"},
		{name: "bounds message", field: "first_name", value: "A", want: "Too short"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := validSignup()
			model[tc.field] = tc.value

			got, err := v.Validate(model)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected a single error, got %v", got)
			}
			msg, ok := got[tc.field]
			if !ok {
				t.Fatalf("expected error for %s, got %v", tc.field, got)
			}
			if tc.want != "" && msg != tc.want {
				t.Fatalf("message = %q, want %q", msg, tc.want)
			}
		})
	}
}

func TestValidate_TypeErrorUsesLibraryDescription(t *testing.T) {
	v := mustValidator(t, signupSchema)
	model := validSignup()
	model["age"] = "old"

	got, err := v.Validate(model)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(strings.ToLower(got["age"]), "integer") {
		t.Fatalf("expected type description, got %q", got["age"])
	}
}

func TestValidate_CrossFieldEquality(t *testing.T) {
	v := mustValidator(t, signupSchema)
	model := validSignup()
	model["confirm_password"] = "other"

	got, err := v.Validate(model)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if diff := cmp.Diff(ErrorMap{"confirm_password": "Must match Password"}, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_CrossFieldInsideList(t *testing.T) {
	v := mustValidator(t, `{
  "type": "object",
  "properties": {
    "pairs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "a": {"type": "string"},
          "b": {"type": "string", "const": {"$data": "1/a"}, "errorMessage": {"const": "b must equal a"}}
        }
      }
    }
  }
}`)

	got, err := v.Validate(map[string]any{
		"pairs": []any{
			map[string]any{"a": "x", "b": "x"},
			map[string]any{"a": "x", "b": "y"},
		},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if diff := cmp.Diff(ErrorMap{"pairs.1.b": "b must equal a"}, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_DateFormatChecksShapeOnly(t *testing.T) {
	v := mustValidator(t, signupSchema)

	cases := map[string]bool{
		"2024-02-30": true,
		"2024-01-15": true,
		"2024-13-01": false,
		"15/01/2024": false,
	}
	for value, valid := range cases {
		model := validSignup()
		model["start"] = value
		got, err := v.Validate(model)
		if err != nil {
			t.Fatalf("validate %q: %v", value, err)
		}
		if _, failed := got["start"]; failed == valid {
			t.Fatalf("date %q: valid=%v errors=%v", value, valid, got)
		}
	}
}

func TestValidate_CatalogOverride(t *testing.T) {
	v := mustValidator(t, signupSchema).WithCatalog(Catalog{
		"required":   "Required",
		keywordMatch: "Does not match %s",
	})
	model := validSignup()
	model["first_name"] = ""
	model["confirm_password"] = "nope"

	got, err := v.Validate(model)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := ErrorMap{
		"first_name":       "Required",
		"confirm_password": "Does not match Password",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_NestedRequiredPath(t *testing.T) {
	v := mustValidator(t, `{
  "type": "object",
  "properties": {
    "address": {
      "type": "object",
      "required": ["zip"],
      "errorMessage": {"required": "Address part missing"},
      "properties": {"zip": {"type": "string"}}
    }
  }
}`)

	got, err := v.Validate(map[string]any{"address": map[string]any{"zip": ""}})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if diff := cmp.Diff(ErrorMap{"address.zip": "Address part missing"}, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_RejectsUnfilteredWhen(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {
    "ssn": {"x-when": "country == US", "then": {"type": "string"}}
  }
}`)

	_, err := Compile(doc)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsSchemaError(err) {
		t.Fatalf("expected schema error, got %T", err)
	}
}

func TestCompile_InvalidDataPointer(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {"b": {"type": "string", "const": {"$data": "5/a"}}}
}`)

	_, err := Compile(doc)
	if err == nil {
		t.Fatal("expected error")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) || schemaErr.Field != "b" {
		t.Fatalf("expected schema error for b, got %v", err)
	}
}

func TestRun_NoRootIsSchemaError(t *testing.T) {
	_, err := Compile(schema.Document{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPrune(t *testing.T) {
	got := Prune(map[string]any{
		"a": "",
		"b": nil,
		"c": false,
		"d": map[string]any{"e": "", "f": 0},
		"g": []any{"", map[string]any{"h": nil}},
	})
	want := map[string]any{
		"c": false,
		"d": map[string]any{"f": 0},
		"g": []any{"", map[string]any{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("prune mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {"country": {"const": "US"}},
  "required": ["country"]
}`)
	v, err := CompilePredicate(schema.Document{}, doc.Root)
	if err != nil {
		t.Fatalf("compile predicate: %v", err)
	}
	if !v.Match(map[string]any{"country": "US"}) {
		t.Fatal("expected match")
	}
	if v.Match(map[string]any{"country": ""}) {
		t.Fatal("empty string must count as absent")
	}
}
