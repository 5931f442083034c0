package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

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

const contactSchema = `{
  "type": "object",
  "required": ["first_name", "email"],
  "properties": {
    "first_name": {"type": "string", "minLength": 2},
    "email": {"type": "string", "format": "email", "maxLength": 50},
    "plan": {"type": "string", "enum": ["basic", "pro"], "x-labels": {"basic": "Basic plan", "pro": "Pro plan"}}
  }
}`

func TestSession_ContactScenario(t *testing.T) {
	s := New(mustParse(t, contactSchema), WithModel(map[string]any{}))

	errs := s.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}

	if err := s.Set("first_name", "Al"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff([]string{"email"}, s.Errors().Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	if err := s.Set("email", "a@b.com"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.IsValid() || len(s.Errors()) != 0 {
		t.Fatalf("expected valid session, got %v", s.Errors())
	}
}

func TestSession_NoPrematureErrors(t *testing.T) {
	s := New(mustParse(t, contactSchema))

	if err := s.Set("first_name", "A"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(s.Errors()) != 0 || s.Validated() {
		t.Fatalf("no errors expected before the first validate, got %v", s.Errors())
	}
	if !s.Touched("first_name") || s.Touched("email") {
		t.Fatal("touched tracking mismatch")
	}
}

func TestSession_EmptySubmitIsCompleteAndIdempotent(t *testing.T) {
	s := New(mustParse(t, `{
  "type": "object",
  "required": ["a", "b", "c"],
  "properties": {
    "a": {"type": "string"},
    "b": {"type": "integer"},
    "c": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "d": {"type": "string"}
  }
}`))

	first := s.Validate()
	second := s.Validate()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("validate must be idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, first.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	for path, msg := range first {
		if msg == "" {
			t.Fatalf("empty message for %s", path)
		}
	}
}

func TestSession_ConditionalPruning(t *testing.T) {
	s := New(mustParse(t, `{
  "type": "object",
  "properties": {
    "non_us": {"type": "boolean"},
    "ssn": {"type": "string"}
  },
  "allOf": [{
    "if": {"properties": {"non_us": {"const": false}}},
    "then": {"required": ["ssn"]}
  }]
}`))

	if err := s.Set("non_us", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("ssn must not be required, got %v", errs)
	}

	if err := s.Set("non_us", false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if errs := s.Validate(); errs["ssn"] == "" {
		t.Fatalf("ssn must be required, got %v", errs)
	}
	if diff := cmp.Diff([]string{"ssn"}, s.RequiredFieldPaths()); diff != "" {
		t.Fatalf("required paths mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_CrossFieldEquality(t *testing.T) {
	s := New(mustParse(t, `{
  "type": "object",
  "properties": {
    "create_password": {"type": "string"},
    "repeat_password": {"type": "string", "const": {"$data": "1/create_password"}}
  }
}`), WithModel(map[string]any{"create_password": "abc12345", "repeat_password": "xyz"}))

	errs := s.Validate()
	if diff := cmp.Diff([]string{"repeat_password"}, errs.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if err := s.Set("repeat_password", "abc12345"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.IsValid() {
		t.Fatalf("expected valid, got %v", s.Errors())
	}
}

func TestSession_BackendPrecedence(t *testing.T) {
	backend := mustParse(t, `{"type": "object", "properties": {"email": {"type": "string", "maxLength": 30}}}`)
	s := New(mustParse(t, contactSchema), WithBackendSchema(&backend))

	node, err := s.SchemaObject().Lookup("email")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := node.(*schema.ScalarNode).MaxLength; got == nil || *got != 30 {
		t.Fatalf("backend maxLength must win, got %v", got)
	}

	if err := s.SetBackendSchema(nil); err != nil {
		t.Fatalf("set backend: %v", err)
	}
	node, _ = s.SchemaObject().Lookup("email")
	if got := node.(*schema.ScalarNode).MaxLength; got == nil || *got != 50 {
		t.Fatalf("frontend maxLength expected after clearing backend, got %v", got)
	}
}

func TestSession_ResetKeepsModel(t *testing.T) {
	s := New(mustParse(t, contactSchema))
	s.Validate()
	if err := s.Set("first_name", "Ada"); err != nil {
		t.Fatalf("set: %v", err)
	}

	s.Reset()
	if len(s.Errors()) != 0 || s.Validated() {
		t.Fatal("reset must clear errors and the validated flag")
	}
	if got, _ := s.Get("first_name"); got != "Ada" {
		t.Fatalf("model must survive reset, got %v", got)
	}

	// back to on-demand: mutations stay quiet
	if err := s.Set("first_name", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(s.Errors()) != 0 {
		t.Fatalf("unexpected errors %v", s.Errors())
	}
}

func TestSession_EagerPolicy(t *testing.T) {
	s := New(mustParse(t, contactSchema), WithPolicy(PolicyEager))
	if s.IsValid() {
		t.Fatal("eager session must validate from construction")
	}
	if err := s.Set("first_name", "Ada"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := s.Errors()["first_name"]; ok {
		t.Fatal("first_name must be cleared")
	}
}

func TestSession_ServerErrorFallback(t *testing.T) {
	s := New(mustParse(t, contactSchema), WithModel(map[string]any{"first_name": "Ada", "email": "ada@example.com"}))
	s.Validate()

	s.SetServerErrors(map[string][]string{
		"email":            {"Email already in use"},
		"non_field_errors": {"<b>Try later</b>"},
	})
	if got := s.ErrorText("email"); got != "Email already in use" {
		t.Fatalf("error text = %q", got)
	}
	if diff := cmp.Diff([]string{"Try later"}, s.FormErrors()); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}

	if err := s.Set("email", "other@example.com"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.ErrorText("email"); got != "" {
		t.Fatalf("server error must clear on edit, got %q", got)
	}
}

func TestSession_ClientErrorWinsOverServer(t *testing.T) {
	s := New(mustParse(t, contactSchema))
	s.Validate()
	s.SetServerErrors(map[string][]string{"first_name": {"Server says no"}})

	if got := s.ErrorText("first_name"); got != "This field is required" {
		t.Fatalf("error text = %q", got)
	}
}

func TestSession_SchemaError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(mustParse(t, `{
  "type": "object",
  "properties": {"a": {"$ref": "#/definitions/Missing"}}
}`), WithModel(map[string]any{}), WithLogger(zap.New(core)))

	errs := s.Validate()
	if diff := cmp.Diff(validation.SchemaErrorMap(), errs); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if s.IsValid() || s.SchemaError() == nil {
		t.Fatal("schema error must make the session invalid")
	}
	if logs.Len() == 0 {
		t.Fatal("schema error must be logged")
	}
	if logs.All()[0].ContextMap()["session"] != s.ID() {
		t.Fatalf("log entry must carry the session id, got %v", logs.All()[0].ContextMap())
	}
}

func TestSession_ReentrantMutation(t *testing.T) {
	s := New(mustParse(t, contactSchema))

	var got error
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventValidated {
			got = s.Set("first_name", "loop")
		}
	})
	s.Validate()

	if !errors.Is(got, ErrReentrantMutation) {
		t.Fatalf("expected ErrReentrantMutation, got %v", got)
	}
	if v, _ := s.Get("first_name"); v != "" {
		t.Fatalf("model must not change, got %v", v)
	}
}

func TestSession_Events(t *testing.T) {
	s := New(mustParse(t, contactSchema))

	var kinds []EventKind
	cancel := s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	s.Validate()
	_ = s.Set("first_name", "Ada")
	s.Reset()
	backend := mustParse(t, `{"type": "object", "properties": {"nick": {"type": "string"}}}`)
	_ = s.SetBackendSchema(&backend)
	cancel()
	s.Validate()

	want := []EventKind{EventValidated, EventModelChanged, EventValidated, EventReset, EventSchemaChanged}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_OptionsAndSkeleton(t *testing.T) {
	s := New(mustParse(t, contactSchema))

	want := []schema.Choice{{Value: "basic", Label: "Basic plan"}, {Value: "pro", Label: "Pro plan"}}
	if diff := cmp.Diff(want, s.Options("plan")); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"email", "first_name", "plan"}, s.Model().Shape()); diff != "" {
		t.Fatalf("skeleton mismatch (-want +got):\n%s", diff)
	}
	if s.Options("first_name") != nil {
		t.Fatal("free text has no options")
	}
}

func TestSession_FieldsPaths(t *testing.T) {
	s := New(mustParse(t, contactSchema), WithFieldsPaths("first_name"))
	if diff := cmp.Diff([]string{"first_name"}, s.Validate().Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_Extras(t *testing.T) {
	doc := mustParse(t, `{
  "type": "object",
  "properties": {
    "notes": {"x-when": "extras.role == admin", "then": {"type": "string", "minLength": 5}}
  },
  "required": ["notes"]
}`)

	admin := New(doc, WithExtras(map[string]any{"role": "admin"}))
	if _, ok := admin.Validate()["notes"]; !ok {
		t.Fatal("admin must fill notes")
	}
	guest := New(doc, WithExtras(map[string]any{"role": "guest"}))
	if errs := guest.Validate(); len(errs) != 0 {
		t.Fatalf("guest has no notes, got %v", errs)
	}
}
