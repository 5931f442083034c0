// Package formvalidate validates form models against JSON Schema documents:
// it merges a frontend schema with an optional backend fragment, prunes
// conditional branches against the current values, compiles and caches
// validators and reports one message per field.
//
// Most callers start from NewSession with a parsed schema, or from
// NewOrchestrator when schemas live in files, URLs or OpenAPI documents.
package formvalidate

import (
	"context"

	"github.com/goliatone/go-formvalidate/pkg/loader"
	"github.com/goliatone/go-formvalidate/pkg/orchestrator"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/session"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// ErrorMap maps dotted field paths to a single message.
type ErrorMap = validation.ErrorMap

// Request aliases orchestrator.Request for callers using the root package.
type Request = orchestrator.Request

// Parse decodes a JSON or YAML schema document.
func Parse(raw []byte) (schema.Document, error) {
	return schema.Parse(raw)
}

// NewSession creates a validation session for an already parsed schema.
func NewSession(frontend schema.Document, options ...session.Option) *session.Session {
	return session.New(frontend, options...)
}

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewLoader constructs a schema loader.
func NewLoader(options ...loader.Option) *loader.Loader {
	return loader.New(options...)
}

// Validate is a one-shot check: it loads the schemas described by req,
// validates model and returns the error map. The returned error reports
// loading failures only; an unusable schema yields a form-level entry.
func Validate(ctx context.Context, req Request, model map[string]any, options ...orchestrator.Option) (ErrorMap, error) {
	s, err := orchestrator.New(options...).Session(ctx, req, session.WithModel(model))
	if err != nil {
		return nil, err
	}
	return s.Validate(), nil
}

// CheckSchema parses and compiles raw, reporting problems by field.
func CheckSchema(raw []byte) validation.SchemaValidationResult {
	return validation.ValidateSchema(raw)
}
