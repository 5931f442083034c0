// Package openapi turns the request body of an OpenAPI 3 operation into a
// schema.Document, so forms can validate against the same contract the API
// enforces.
package openapi

import (
	"context"
	"fmt"

	internal "github.com/goliatone/go-formvalidate/internal/openapi"
	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// Operation describes an operation that accepts a request body.
type Operation = internal.Operation

type config struct {
	validate bool
}

// Option configures document handling.
type Option func(*config)

// WithValidation validates the OpenAPI document before extracting schemas.
func WithValidation() Option {
	return func(c *config) {
		c.validate = true
	}
}

func newConfig(options []Option) config {
	cfg := config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return cfg
}

// RequestSchema extracts the request body schema of operationID. JSON media
// types win over form encodings; components.schemas become definitions.
// Operations without an operationId are addressed as "method:path", for
// example "post:/users".
func RequestSchema(ctx context.Context, raw []byte, operationID string, options ...Option) (schema.Document, error) {
	cfg := newConfig(options)
	api, err := internal.Load(ctx, raw, cfg.validate)
	if err != nil {
		return schema.Document{}, err
	}
	payload, err := internal.RequestPayload(api, operationID)
	if err != nil {
		return schema.Document{}, err
	}
	doc, err := schema.FromMap(payload)
	if err != nil {
		return schema.Document{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}
	if err := doc.CheckRefs(); err != nil {
		return schema.Document{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}
	return doc, nil
}

// Operations lists the operations of the document that accept a body.
func Operations(ctx context.Context, raw []byte, options ...Option) ([]Operation, error) {
	cfg := newConfig(options)
	api, err := internal.Load(ctx, raw, cfg.validate)
	if err != nil {
		return nil, err
	}
	return internal.Operations(api), nil
}
