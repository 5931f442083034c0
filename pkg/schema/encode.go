package schema

import "sort"

// Draft07 is the $schema identifier written by Encode.
const Draft07 = "http://json-schema.org/draft-07/schema#"

// EncodeOption tweaks Encode output.
type EncodeOption func(*encodeConfig)

type encodeConfig struct {
	annotations bool
}

// WithAnnotations keeps the non-standard keywords (errorMessage, x-labels,
// x-when, const $data and x-* extensions) in the output so the document can
// be parsed back without losing information.
func WithAnnotations() EncodeOption {
	return func(cfg *encodeConfig) {
		cfg.annotations = true
	}
}

// Encode renders the document as a draft-07 JSON Schema map. Definitions are
// written under "definitions" and every ref is rewritten to point there.
func Encode(doc Document, options ...EncodeOption) map[string]any {
	cfg := encodeConfig{}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}

	var out map[string]any
	switch root := doc.Root.(type) {
	case nil:
		out = map[string]any{}
	case *RefNode:
		// draft-07 ignores keywords next to $ref, so the root ref is wrapped
		out = map[string]any{"allOf": []any{cfg.encode(root)}}
		cfg.writeMeta(out, root.Info)
	default:
		out = cfg.encode(root)
	}
	out["$schema"] = Draft07

	if len(doc.Definitions) > 0 {
		defs := make(map[string]any, len(doc.Definitions))
		for name, node := range doc.Definitions {
			defs[name] = cfg.encode(node)
		}
		out["definitions"] = defs
	}
	return out
}

// EncodeNode renders a single node without definitions.
func EncodeNode(node Node, options ...EncodeOption) map[string]any {
	cfg := encodeConfig{}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}
	return cfg.encode(node)
}

func (cfg encodeConfig) encode(node Node) map[string]any {
	switch typed := node.(type) {
	case nil:
		return map[string]any{}
	case *RefNode:
		ref := typed.Ref
		if typed.Name != "" {
			ref = definitionsPrefix + escapePointer(typed.Name)
		} else if name, ok := RefName(typed.Ref); ok {
			ref = definitionsPrefix + escapePointer(name)
		}
		return map[string]any{"$ref": ref}
	case *ObjectNode:
		return cfg.encodeObject(typed)
	case *ArrayNode:
		return cfg.encodeArray(typed)
	case *ScalarNode:
		return cfg.encodeScalar(typed)
	case *ConditionalNode:
		return cfg.encodeConditional(typed)
	default:
		return map[string]any{}
	}
}

func (cfg encodeConfig) encodeObject(node *ObjectNode) map[string]any {
	out := map[string]any{"type": "object"}
	cfg.writeMeta(out, node.Info)
	if len(node.Properties) > 0 {
		props := make(map[string]any, len(node.Properties))
		for name, child := range node.Properties {
			props[name] = cfg.encode(child)
		}
		out["properties"] = props
	}
	if len(node.Required) > 0 {
		required := make([]any, 0, len(node.Required))
		for _, name := range node.Required {
			required = append(required, name)
		}
		out["required"] = required
	}
	if len(node.AllOf) > 0 {
		entries := make([]any, 0, len(node.AllOf))
		for _, entry := range node.AllOf {
			encoded := cfg.encode(entry)
			if len(encoded) == 0 {
				continue
			}
			entries = append(entries, encoded)
		}
		if len(entries) > 0 {
			out["allOf"] = entries
		}
	}
	if node.AdditionalProperties != nil {
		out["additionalProperties"] = *node.AdditionalProperties
	}
	return out
}

func (cfg encodeConfig) encodeArray(node *ArrayNode) map[string]any {
	out := map[string]any{"type": "array"}
	cfg.writeMeta(out, node.Info)
	if len(node.Variants) > 0 {
		items := make([]any, len(node.Variants))
		for idx, variant := range node.Variants {
			if variant == nil {
				variant = node.Items
			}
			items[idx] = cfg.encode(variant)
		}
		out["items"] = items
		if node.Items != nil {
			out["additionalItems"] = cfg.encode(node.Items)
		}
	} else if node.Items != nil {
		out["items"] = cfg.encode(node.Items)
	}
	if node.MinItems != nil {
		out["minItems"] = *node.MinItems
	}
	if node.MaxItems != nil {
		out["maxItems"] = *node.MaxItems
	}
	if node.UniqueItems {
		out["uniqueItems"] = true
	}
	return out
}

func (cfg encodeConfig) encodeScalar(node *ScalarNode) map[string]any {
	out := map[string]any{}
	cfg.writeMeta(out, node.Info)
	switch {
	case node.Type != "" && node.Nullable && node.Type != "null":
		out["type"] = []any{node.Type, "null"}
	case node.Type != "":
		out["type"] = node.Type
	}
	if node.Format != "" {
		out["format"] = node.Format
	}
	if node.Pattern != "" {
		out["pattern"] = node.Pattern
	}
	if node.MinLength != nil {
		out["minLength"] = *node.MinLength
	}
	if node.MaxLength != nil {
		out["maxLength"] = *node.MaxLength
	}
	if node.Minimum != nil {
		out["minimum"] = *node.Minimum
	}
	if node.Maximum != nil {
		out["maximum"] = *node.Maximum
	}
	if node.ExclusiveMinimum != nil {
		out["exclusiveMinimum"] = *node.ExclusiveMinimum
	}
	if node.ExclusiveMaximum != nil {
		out["exclusiveMaximum"] = *node.ExclusiveMaximum
	}
	if node.MultipleOf != nil {
		out["multipleOf"] = *node.MultipleOf
	}
	if len(node.Enum) > 0 {
		enum := make([]any, len(node.Enum))
		for idx, value := range node.Enum {
			enum[idx] = cloneValue(value)
		}
		out["enum"] = enum
	}
	if node.HasConst {
		out["const"] = cloneValue(node.Const)
	} else if node.DataRef != "" && cfg.annotations {
		out["const"] = map[string]any{"$data": node.DataRef}
	}
	return out
}

func (cfg encodeConfig) encodeConditional(node *ConditionalNode) map[string]any {
	var out map[string]any
	if node.Base != nil {
		base := cfg.encode(node.Base)
		if _, isRef := base["$ref"]; isRef {
			out = map[string]any{"allOf": []any{base}}
		} else if _, nested := base["if"]; nested {
			out = map[string]any{"allOf": []any{base}}
		} else if _, nested := base["x-when"]; nested {
			out = map[string]any{"allOf": []any{base}}
		} else {
			out = base
		}
	} else {
		out = map[string]any{}
	}
	cfg.writeMeta(out, node.Info)

	switch {
	case node.If != nil:
		out["if"] = cfg.encode(node.If)
	case node.When != "" && cfg.annotations:
		out["x-when"] = node.When
	default:
		return out
	}
	if node.Then != nil {
		out["then"] = cfg.encode(node.Then)
	}
	if node.Else != nil {
		out["else"] = cfg.encode(node.Else)
	}
	return out
}

func (cfg encodeConfig) writeMeta(out map[string]any, meta Meta) {
	if meta.Title != "" {
		out["title"] = meta.Title
	}
	if meta.Description != "" {
		out["description"] = meta.Description
	}
	if meta.Default != nil {
		out["default"] = cloneValue(meta.Default)
	}
	if !cfg.annotations {
		return
	}
	if msg := encodeMessages(meta.Messages); msg != nil {
		out["errorMessage"] = msg
	}
	if len(meta.Labels) > 0 {
		labels := make(map[string]any, len(meta.Labels))
		for key, value := range meta.Labels {
			labels[key] = value
		}
		out["x-labels"] = labels
	}
	for key, value := range meta.Extensions {
		out[key] = cloneValue(value)
	}
}

func encodeMessages(m Messages) any {
	if m.IsZero() {
		return nil
	}
	if len(m.Keywords) == 0 && len(m.Required) == 0 {
		return m.Default
	}
	out := make(map[string]any, len(m.Keywords)+2)
	for _, keyword := range sortedStringKeys(m.Keywords) {
		out[keyword] = m.Keywords[keyword]
	}
	if m.Default != "" {
		out["_"] = m.Default
	}
	if len(m.Required) > 0 {
		required := make(map[string]any, len(m.Required))
		for field, msg := range m.Required {
			required[field] = msg
		}
		out["required"] = required
	}
	return out
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
