// Package openapi extracts request body schemas from OpenAPI 3 documents
// using kin-openapi. The public entry points live in pkg/openapi.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	json "github.com/goccy/go-json"
)

// Operation summarises an operation that accepts a request body.
type Operation struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
}

// preferred media types, in order; anything else is used as a last resort.
var mediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// Load parses and optionally validates an OpenAPI document.
func Load(ctx context.Context, raw []byte, validate bool) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	api, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if validate {
		if err := api.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	return api, nil
}

// Operations lists the operations with a request body, sorted by id.
func Operations(api *openapi3.T) []Operation {
	var out []Operation
	walkOperations(api, func(method, path string, op *openapi3.Operation) {
		if op.RequestBody == nil {
			return
		}
		out = append(out, Operation{ID: operationID(method, path, op), Method: method, Path: path, Summary: op.Summary})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RequestPayload returns the request body schema of the operation as a
// JSON Schema map, with components.schemas carried along so refs resolve.
func RequestPayload(api *openapi3.T, id string) (map[string]any, error) {
	var found *openapi3.Operation
	walkOperations(api, func(method, path string, op *openapi3.Operation) {
		if found == nil && operationID(method, path, op) == id {
			found = op
		}
	})
	if found == nil {
		return nil, fmt.Errorf("openapi: operation %q not found", id)
	}
	if found.RequestBody == nil || found.RequestBody.Value == nil {
		return nil, fmt.Errorf("openapi: operation %q has no request body", id)
	}

	media := pickMediaType(found.RequestBody.Value.Content)
	if media == nil || media.Schema == nil {
		return nil, fmt.Errorf("openapi: operation %q has no request schema", id)
	}

	payload, err := toMap(media.Schema)
	if err != nil {
		return nil, err
	}
	if api.Components != nil && len(api.Components.Schemas) > 0 {
		schemas := make(map[string]any, len(api.Components.Schemas))
		for name, ref := range api.Components.Schemas {
			converted, err := toMap(ref)
			if err != nil {
				return nil, fmt.Errorf("openapi: component %q: %w", name, err)
			}
			schemas[name] = converted
		}
		payload["components"] = map[string]any{"schemas": schemas}
	}
	return payload, nil
}

func pickMediaType(content openapi3.Content) *openapi3.MediaType {
	for _, mediaType := range mediaTypes {
		if mt := content.Get(mediaType); mt != nil {
			return mt
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if content[key] != nil {
			return content[key]
		}
	}
	return nil
}

func toMap(ref *openapi3.SchemaRef) (map[string]any, error) {
	data, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("openapi: encode schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("openapi: decode schema: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func walkOperations(api *openapi3.T, fn func(method, path string, op *openapi3.Operation)) {
	if api == nil || api.Paths == nil {
		return
	}
	paths := api.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)
	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions, http.MethodTrace} {
			if op := item.GetOperation(method); op != nil {
				fn(method, path, op)
			}
		}
	}
}

func operationID(method, path string, op *openapi3.Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return strings.ToLower(method) + ":" + path
}
