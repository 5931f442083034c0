package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

func mustParse(t *testing.T, raw string) schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

const frontendSchema = `{
  "definitions": {
    "Profile": {
      "type": "object",
      "required": ["first_name"],
      "properties": {
        "first_name": {"type": "string", "minLength": 2, "errorMessage": {"minLength": "Too short"}},
        "nickname": {"type": "string"}
      }
    }
  },
  "$ref": "#/definitions/Profile"
}`

const backendSchema = `{
  "definitions": {
    "Address": {"type": "object", "properties": {"city": {"type": "string"}}}
  },
  "type": "object",
  "required": ["email", "first_name"],
  "properties": {
    "first_name": {"type": "string", "minLength": 3, "maxLength": 10},
    "email": {"type": "string", "format": "email"},
    "address": {"$ref": "#/definitions/Address"}
  }
}`

func TestMerge_BackendWinsPerProperty(t *testing.T) {
	frontend := mustParse(t, frontendSchema)
	backend := mustParse(t, backendSchema)

	merged := Merge(frontend, &backend)

	root, err := merged.RootDefinition()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	obj := root.(*schema.ObjectNode)

	if diff := cmp.Diff([]string{"first_name", "email"}, obj.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"first_name", "nickname", "email", "address"} {
		if obj.Properties[name] == nil {
			t.Fatalf("missing property %s", name)
		}
	}

	first := obj.Properties["first_name"].(*schema.ScalarNode)
	if first.MinLength == nil || *first.MinLength != 3 {
		t.Fatalf("backend minLength must win, got %v", first.MinLength)
	}
	if first.MaxLength == nil || *first.MaxLength != 10 {
		t.Fatalf("backend maxLength must be added, got %v", first.MaxLength)
	}
	if got := first.Info.Messages.For("minLength"); got != "Too short" {
		t.Fatalf("frontend errorMessage must survive, got %q", got)
	}
	if _, ok := merged.Definitions["Address"]; !ok {
		t.Fatal("backend definitions must be copied")
	}

	// inputs are untouched
	frontRoot, _ := frontend.RootDefinition()
	if len(frontRoot.(*schema.ObjectNode).Required) != 1 {
		t.Fatal("frontend was modified")
	}
}

func TestMerge_NilBackend(t *testing.T) {
	frontend := mustParse(t, frontendSchema)
	merged := Merge(frontend, nil)
	if diff := cmp.Diff(schema.Encode(frontend, schema.WithAnnotations()), schema.Encode(merged, schema.WithAnnotations())); diff != "" {
		t.Fatalf("nil backend must keep frontend (-want +got):\n%s", diff)
	}
}

func TestStore_MalformedBackendFallsBack(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	frontend := mustParse(t, frontendSchema)
	broken := schema.Document{Root: schema.NewRef("Nowhere")}

	s := New(frontend, WithLogger(zap.New(core)), WithBackend(&broken))
	effective := s.Effective()

	root, err := effective.RootDefinition()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.(*schema.ObjectNode).Properties["email"] != nil {
		t.Fatal("broken backend must be ignored")
	}
	if logs.FilterMessage("Ignoring backend schema").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

func TestStore_MemoisesAndNotifies(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := New(mustParse(t, frontendSchema), WithLogger(zap.New(core)))

	var seen []int
	cancel := s.Subscribe(func(doc schema.Document) {
		root, _ := doc.RootDefinition()
		seen = append(seen, len(root.(*schema.ObjectNode).Properties))
	})

	s.Effective()
	s.Effective()
	if got := logs.FilterMessage("Effective schema computed").Len(); got != 1 {
		t.Fatalf("expected a single computation, got %d", got)
	}

	backend := mustParse(t, backendSchema)
	s.SetBackend(&backend)
	s.SetBackend(nil)
	cancel()
	s.SetBackend(&backend)

	if diff := cmp.Diff([]int{4, 2}, seen); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	if s.Backend() == nil {
		t.Fatal("backend should be set")
	}
}

func TestStore_FrontendReturnsDetachedCopy(t *testing.T) {
	s := New(mustParse(t, frontendSchema))

	got := s.Frontend()
	if got.Definitions["Profile"] == nil {
		t.Fatal("frontend should carry the Profile definition")
	}
	delete(got.Definitions, "Profile")
	if s.Frontend().Definitions["Profile"] == nil {
		t.Fatal("mutating the returned copy changed the store")
	}

	s.SetFrontend(mustParse(t, backendSchema))
	if _, ok := s.Frontend().Definitions["Address"]; !ok {
		t.Fatal("frontend should reflect SetFrontend")
	}
}
