package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formvalidate/pkg/testsupport"
)

func decodeReport(t *testing.T, raw []byte) report {
	t.Helper()
	var rep report
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, raw)
	}
	return rep
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidateOnce_ReportsErrorsAndExitsInvalid(t *testing.T) {
	flags := &validateFlags{}
	flags.schema = filepath.Join("testdata", "contact.yaml")
	flags.backend = filepath.Join("testdata", "contact_backend.json")
	flags.model = "-"

	var out bytes.Buffer
	err := validateOnce(context.Background(), strings.NewReader(`{"name": "Adalbert", "email": "x"}`), flags, &out)
	if !errors.Is(err, errInvalid) {
		t.Fatalf("expected errInvalid, got %v", err)
	}

	rep := decodeReport(t, out.Bytes())
	if diff := cmp.Diff([]string{"email", "name"}, rep.Errors.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"email", "name"}, rep.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOnce_ServerErrors(t *testing.T) {
	dir := t.TempDir()
	flags := &validateFlags{serverErrors: filepath.Join("testdata", "server_errors.json")}
	flags.schema = filepath.Join("testdata", "contact.yaml")
	flags.model = writeFile(t, dir, "model.json", `{"name": "Ada", "email": "ada@example.com"}`)

	var out bytes.Buffer
	err := validateOnce(context.Background(), nil, flags, &out)
	if !errors.Is(err, errInvalid) {
		t.Fatalf("server errors must make the report invalid, got %v", err)
	}
	rep := decodeReport(t, out.Bytes())
	if len(rep.Errors) != 0 {
		t.Fatalf("unexpected client errors %v", rep.Errors)
	}
	if diff := cmp.Diff(map[string][]string{"email": {"Email already registered"}}, rep.ServerErrors); diff != "" {
		t.Fatalf("server errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Try again later"}, rep.FormErrors); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOnce_Valid(t *testing.T) {
	flags := &validateFlags{}
	flags.schema = filepath.Join("testdata", "contact.yaml")
	flags.model = writeFile(t, t.TempDir(), "model.yaml", "name: Ada\nemail: ada@example.com\n")

	var out bytes.Buffer
	if err := validateOnce(context.Background(), nil, flags, &out); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rep := decodeReport(t, out.Bytes()); !rep.Valid {
		t.Fatalf("expected valid report, got %+v", rep)
	}
}

func TestSchemaFlags_Request(t *testing.T) {
	if _, err := (&schemaFlags{}).request(); err == nil {
		t.Fatal("expected error without a schema")
	}
	req, err := (&schemaFlags{openapi: "api.yaml", operation: "createUser", schema: "ignored.json"}).request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Schema != nil || req.OpenAPI == nil || req.OperationID != "createUser" {
		t.Fatalf("openapi must replace the schema, got %+v", req)
	}
	files := (&schemaFlags{schema: "a.json", backend: "https://example.com/b.json"}).files()
	if diff := cmp.Diff([]string{"a.json"}, files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestReadServerErrors(t *testing.T) {
	got, err := readServerErrors(filepath.Join("testdata", "server_errors.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := map[string][]string{"email": {"Email already registered"}, "detail": {"Try again later"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeAndSkeletonCommands(t *testing.T) {
	var out bytes.Buffer
	cmd := newSkeletonCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--schema", filepath.Join("testdata", "contact.yaml")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	var skeleton map[string]any
	if err := json.Unmarshal(out.Bytes(), &skeleton); err != nil {
		t.Fatalf("decode: %v", err)
	}
	skeletonGolden := filepath.Join("testdata", "skeleton.golden.json")
	testsupport.WriteGolden(t, skeletonGolden, skeleton)
	var want map[string]any
	testsupport.MustLoadJSON(t, skeletonGolden, &want)
	if diff := testsupport.CompareGolden(want, skeleton); diff != "" {
		t.Fatalf("skeleton mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	cmd = newMergeCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--schema", filepath.Join("testdata", "contact.yaml"), "--backend", filepath.Join("testdata", "contact_backend.json")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("merge: %v", err)
	}
	var merged map[string]any
	if err := json.Unmarshal(out.Bytes(), &merged); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	mergedGolden := filepath.Join("testdata", "contact_merged.golden.json")
	testsupport.WriteGolden(t, mergedGolden, merged)
	var wantMerged map[string]any
	if err := json.Unmarshal(testsupport.MustReadGolden(t, mergedGolden), &wantMerged); err != nil {
		t.Fatalf("decode golden: %v", err)
	}
	if diff := testsupport.CompareGolden(wantMerged, merged); diff != "" {
		t.Fatalf("merged schema mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckSchemaCommand(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.json", `{"type": "object", "properties": {"a": {"$ref": "#/definitions/Nope"}}}`)

	var out bytes.Buffer
	cmd := newCheckSchemaCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{filepath.Join("testdata", "contact.yaml"), broken})
	if err := cmd.Execute(); !errors.Is(err, errInvalid) {
		t.Fatalf("expected errInvalid, got %v", err)
	}
	if !strings.Contains(out.String(), `"valid": false`) {
		t.Fatalf("report must flag the broken schema:\n%s", out.String())
	}
}

func TestWatchInputs_RerunsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "model.json", `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchInputs(ctx, []string{path}, func() { runs <- struct{}{} })
	}()

	<-runs
	writeFile(t, dir, "model.json", `{"name": "Ada"}`)
	select {
	case <-runs:
	case <-ctx.Done():
		t.Fatal("watcher did not rerun after a write")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}
