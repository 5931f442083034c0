package model

import (
	"fmt"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// BuildOptions tunes Build.
type BuildOptions struct {
	// UseDefaults seeds fields with their schema default.
	UseDefaults bool
}

// BuildOption mutates BuildOptions.
type BuildOption func(*BuildOptions)

// WithDefaults toggles schema defaults (on unless disabled).
func WithDefaults(enabled bool) BuildOption {
	return func(opts *BuildOptions) {
		opts.UseDefaults = enabled
	}
}

// Build derives an empty model from the document's root object: strings
// start as "", booleans as false, lists as empty lists, nested objects
// recurse and everything else is nil. Conditionals contribute their base.
func Build(doc schema.Document, options ...BuildOption) (Model, error) {
	opts := BuildOptions{UseDefaults: true}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	root, err := doc.RootDefinition()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if cond, ok := root.(*schema.ConditionalNode); ok && cond.Base != nil {
		if root, err = doc.Resolve(cond.Base); err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
	}
	if _, ok := root.(*schema.ObjectNode); !ok {
		return nil, fmt.Errorf("model: root schema must be an object, got %s", root.Kind())
	}

	b := builder{doc: doc, opts: opts, stack: map[string]struct{}{}}
	value, err := b.value(doc.Root, "")
	if err != nil {
		return nil, err
	}
	out, _ := value.(map[string]any)
	return Model(out), nil
}

type builder struct {
	doc   schema.Document
	opts  BuildOptions
	stack map[string]struct{}
}

func (b builder) value(node schema.Node, path string) (any, error) {
	if ref, ok := node.(*schema.RefNode); ok {
		name := ref.Name
		if name == "" {
			name, _ = schema.RefName(ref.Ref)
		}
		if _, loop := b.stack[name]; loop {
			return nil, fmt.Errorf("model: recursive definition %q at %q", name, path)
		}
		b.stack[name] = struct{}{}
		defer delete(b.stack, name)
	}
	resolved, err := b.doc.Resolve(node)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	switch typed := resolved.(type) {
	case *schema.ConditionalNode:
		if typed.Base == nil {
			return b.fallback(typed.Info, nil), nil
		}
		return b.value(typed.Base, path)
	case *schema.ObjectNode:
		props, err := b.doc.Properties(typed)
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		out := make(map[string]any, len(props))
		for _, prop := range props {
			child, err := b.value(prop.Node, schema.JoinPath(path, prop.Name))
			if err != nil {
				return nil, err
			}
			out[prop.Name] = child
		}
		if defaults, ok := typed.Info.Default.(map[string]any); ok && b.opts.UseDefaults {
			for key, value := range defaults {
				out[key] = DeepCopy(value)
			}
		}
		return out, nil
	case *schema.ArrayNode:
		return b.fallback(typed.Info, []any{}), nil
	case *schema.ScalarNode:
		switch typed.Type {
		case "string":
			return b.fallback(typed.Info, ""), nil
		case "boolean":
			return b.fallback(typed.Info, false), nil
		default:
			return b.fallback(typed.Info, nil), nil
		}
	default:
		return nil, nil
	}
}

func (b builder) fallback(meta schema.Meta, zero any) any {
	if b.opts.UseDefaults && meta.Default != nil {
		return DeepCopy(meta.Default)
	}
	return zero
}
