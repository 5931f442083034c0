package orchestrator_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formvalidate/pkg/orchestrator"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/session"
	"github.com/goliatone/go-formvalidate/pkg/testsupport"
)

func fixture(name string) schema.Source {
	return schema.SourceFromFile(filepath.Join("testdata", name))
}

var signupModel = map[string]any{
	"email":           "ada@example.com",
	"password":        "0123456789",
	"repeat_password": "0123456789",
}

func TestOrchestrator_SessionAppliesBackend(t *testing.T) {
	ctx := testsupport.Context()
	orch := orchestrator.New()

	s, err := orch.Session(ctx, orchestrator.Request{
		Schema:  fixture("signup.json"),
		Backend: fixture("signup_backend.json"),
	}, session.WithModel(signupModel))
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	if diff := cmp.Diff([]string{"password"}, s.Validate().Paths()); diff != "" {
		t.Fatalf("backend minLength must apply (-want +got):\n%s", diff)
	}
	if err := s.Set("plan", "pro"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff([]string{"company", "password"}, s.Errors().Paths()); diff != "" {
		t.Fatalf("company must be required for pro (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_MalformedBackendIsIgnored(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	orch := orchestrator.New(orchestrator.WithLogger(zap.New(core)))

	s, err := orch.Session(testsupport.Context(), orchestrator.Request{
		Schema:  fixture("signup.json"),
		Backend: fixture("broken_backend.json"),
	}, session.WithModel(signupModel))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("frontend schema must be used alone, got %v", errs)
	}
	if logs.FilterMessage("Ignoring backend schema").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

func TestOrchestrator_OpenAPI(t *testing.T) {
	orch := orchestrator.New(orchestrator.WithOpenAPIValidation(true))

	s, err := orch.Session(testsupport.Context(), orchestrator.Request{
		OpenAPI:     fixture("users_openapi.yaml"),
		OperationID: "createUser",
	}, session.WithModel(map[string]any{}))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if diff := cmp.Diff([]string{"email", "name"}, s.Validate().Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_SharesCache(t *testing.T) {
	ctx := testsupport.Context()
	orch := orchestrator.New()
	doc := testsupport.LoadSchema(t, filepath.Join("testdata", "signup.json"))

	var sizes []int
	for i := 0; i < 3; i++ {
		s, err := orch.Session(ctx, orchestrator.Request{Document: &doc}, session.WithModel(signupModel))
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		s.Validate()
		sizes = append(sizes, orch.Cache().Len())
	}
	if sizes[0] == 0 || sizes[0] != sizes[2] {
		t.Fatalf("sessions must reuse compiled validators, cache sizes %v", sizes)
	}
}

func TestOrchestrator_Skeleton(t *testing.T) {
	skeleton, err := orchestrator.New().Skeleton(testsupport.Context(), orchestrator.Request{
		Schema: fixture("signup.json"),
	})
	if err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	if got, _ := skeleton.Get("plan"); got != "basic" {
		t.Fatalf("default must seed plan, got %v", got)
	}
	if got, ok := skeleton.Get("email"); !ok || got != "" {
		t.Fatalf("email must be an empty string, got %v", got)
	}
}

func TestOrchestrator_RequestErrors(t *testing.T) {
	ctx := testsupport.Context()
	orch := orchestrator.New()

	cases := []struct {
		name string
		req  orchestrator.Request
		want string
	}{
		{name: "empty", req: orchestrator.Request{}, want: "is required"},
		{name: "missing operation", req: orchestrator.Request{OpenAPI: fixture("users_openapi.yaml")}, want: "operation id is required"},
		{name: "missing file", req: orchestrator.Request{Schema: fixture("nope.json")}, want: "load schema"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := orch.Session(ctx, tc.req)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
