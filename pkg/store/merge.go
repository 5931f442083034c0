// Package store keeps the frontend schema and the backend fragment of a form
// and derives the effective schema from them.
package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// Merge combines the frontend schema with the backend fragment. Properties
// and required lists are unioned; where both sides describe a property the
// backend wins on every constraint it sets while frontend-only keywords such
// as errorMessage survive. Backend definitions are copied in. A nil backend
// returns a copy of frontend, and so does a backend that cannot be merged.
func Merge(frontend schema.Document, backend *schema.Document) schema.Document {
	return merge(frontend, backend, zap.NewNop())
}

func merge(frontend schema.Document, backend *schema.Document, logger *zap.Logger) schema.Document {
	if backend == nil || backend.IsZero() {
		return frontend.Clone()
	}
	out, err := mergeDocuments(frontend, *backend)
	if err != nil {
		logger.Warn("Ignoring backend schema", zap.Error(err))
		return frontend.Clone()
	}
	return out
}

func mergeDocuments(frontend, backend schema.Document) (schema.Document, error) {
	backendRoot, err := backend.RootDefinition()
	if err != nil {
		return schema.Document{}, fmt.Errorf("store: backend root: %w", err)
	}
	if frontend.Root == nil {
		out := backend.Clone()
		out.Source = frontend.Source
		return out, nil
	}
	frontendRoot, err := frontend.RootDefinition()
	if err != nil {
		return schema.Document{}, fmt.Errorf("store: frontend root: %w", err)
	}

	out := frontend.Clone()
	if out.Definitions == nil {
		out.Definitions = make(map[string]schema.Node, len(backend.Definitions))
	}
	for _, name := range backend.DefinitionNames() {
		incoming := backend.Definitions[name]
		if existing, ok := out.Definitions[name]; ok {
			out.Definitions[name] = schema.MergeNode(existing, incoming)
			continue
		}
		out.Definitions[name] = incoming.Clone()
	}

	merged := schema.MergeNode(frontendRoot, backendRoot)
	if ref, ok := frontend.Root.(*schema.RefNode); ok {
		out.Definitions[ref.Name] = merged
	} else {
		out.Root = merged
	}
	if len(out.Definitions) == 0 {
		out.Definitions = nil
	}

	if err := out.CheckRefs(); err != nil {
		return schema.Document{}, fmt.Errorf("store: merged schema: %w", err)
	}
	return out, nil
}
