package schema

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML schema document.
func Parse(raw []byte) (Document, error) {
	payload, err := DecodeMap(raw)
	if err != nil {
		return Document{}, err
	}
	return FromMap(payload)
}

// DecodeMap decodes a JSON or YAML object into a generic map. JSON is tried
// first when the payload starts with '{'.
func DecodeMap(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("schema: empty document")
	}
	if trimmed[0] == '{' {
		var payload map[string]any
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("schema: decode json: %w", err)
		}
		return payload, nil
	}
	var decoded any
	if err := yaml.Unmarshal(trimmed, &decoded); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	payload, ok := normalizeYAML(decoded).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema: document must be an object")
	}
	return payload, nil
}

func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[fmt.Sprint(key)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = normalizeYAML(val)
		}
		return out
	default:
		return typed
	}
}

// FromMap converts a decoded JSON Schema payload into a Document. Definitions
// are read from "definitions", "$defs" and "components.schemas".
func FromMap(payload map[string]any) (Document, error) {
	if payload == nil {
		return Document{}, ErrNoRoot
	}
	doc := Document{}

	definitions, err := parseDefinitions(payload)
	if err != nil {
		return Document{}, err
	}
	if len(definitions) > 0 {
		doc.Definitions = definitions
	}

	root, err := parseNode(payload, "#")
	if err != nil {
		return Document{}, err
	}
	doc.Root = root
	return doc, nil
}

func parseDefinitions(payload map[string]any) (map[string]Node, error) {
	out := make(map[string]Node)
	collect := func(raw any, pointer string) error {
		defs, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("schema: definitions must be an object at %s", pointer)
		}
		for _, name := range sortedKeys(defs) {
			node, err := parseNode(defs[name], joinPointer(pointer, name))
			if err != nil {
				return err
			}
			out[name] = node
		}
		return nil
	}
	if raw, ok := payload["definitions"]; ok {
		if err := collect(raw, "#/definitions"); err != nil {
			return nil, err
		}
	}
	if raw, ok := payload["$defs"]; ok {
		if err := collect(raw, "#/$defs"); err != nil {
			return nil, err
		}
	}
	if components, ok := payload["components"].(map[string]any); ok {
		if raw, ok := components["schemas"]; ok {
			if err := collect(raw, "#/components/schemas"); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func parseNode(raw any, pointer string) (Node, error) {
	switch typed := raw.(type) {
	case nil:
		return nil, fmt.Errorf("schema: schema is nil at %s", pointer)
	case bool:
		if !typed {
			return nil, fmt.Errorf("schema: false schema is not supported at %s", pointer)
		}
		return &ScalarNode{}, nil
	case map[string]any:
		return parseObjectPayload(typed, pointer)
	default:
		return nil, fmt.Errorf("schema: schema must be an object at %s", pointer)
	}
}

var conditionalKeys = []string{"if", "then", "else", "x-when"}

func parseObjectPayload(payload map[string]any, pointer string) (Node, error) {
	meta, err := parseMeta(payload, pointer)
	if err != nil {
		return nil, err
	}

	if _, hasIf := payload["if"]; hasIf {
		return parseConditional(payload, pointer, meta)
	}
	if _, hasWhen := payload["x-when"]; hasWhen {
		return parseConditional(payload, pointer, meta)
	}

	if rawRef, ok := payload["$ref"]; ok {
		ref, ok := rawRef.(string)
		if !ok {
			return nil, fmt.Errorf("schema: $ref must be a string at %s", pointer)
		}
		name, ok := RefName(ref)
		if !ok {
			return nil, fmt.Errorf("schema: unsupported $ref %q at %s", ref, pointer)
		}
		return &RefNode{Info: meta, Ref: strings.TrimSpace(ref), Name: name}, nil
	}

	if ref := singleRefAllOf(payload); ref != nil {
		ref.Info = meta
		return ref, nil
	}

	types, nullable, err := parseTypes(payload, pointer)
	if err != nil {
		return nil, err
	}

	switch {
	case hasType(types, "object") || hasAny(payload, "properties", "required", "allOf", "additionalProperties"):
		return parseObjectNode(payload, pointer, meta)
	case hasType(types, "array") || hasAny(payload, "items", "minItems", "maxItems"):
		return parseArrayNode(payload, pointer, meta)
	default:
		return parseScalarNode(payload, pointer, meta, types, nullable)
	}
}

// singleRefAllOf recognises {"allOf": [{"$ref": ...}]} wrappers, which is how
// OpenAPI documents attach annotations to a ref.
func singleRefAllOf(payload map[string]any) *RefNode {
	list, ok := payload["allOf"].([]any)
	if !ok || len(list) != 1 {
		return nil
	}
	entry, ok := list[0].(map[string]any)
	if !ok || len(entry) != 1 {
		return nil
	}
	ref, ok := entry["$ref"].(string)
	if !ok {
		return nil
	}
	if hasAny(payload, "properties", "required", "items", "type") {
		return nil
	}
	name, ok := RefName(ref)
	if !ok {
		return nil
	}
	return &RefNode{Ref: strings.TrimSpace(ref), Name: name}
}

func parseConditional(payload map[string]any, pointer string, meta Meta) (Node, error) {
	basePayload := make(map[string]any, len(payload))
	for key, value := range payload {
		basePayload[key] = value
	}
	for _, key := range conditionalKeys {
		delete(basePayload, key)
	}

	out := &ConditionalNode{Info: meta}
	if len(withoutAnnotations(basePayload)) > 0 {
		base, err := parseObjectPayload(basePayload, pointer)
		if err != nil {
			return nil, err
		}
		out.Base = base
		out.Info = Meta{}
	}

	if rawIf, ok := payload["if"]; ok {
		node, err := parseNode(rawIf, joinPointer(pointer, "if"))
		if err != nil {
			return nil, err
		}
		out.If = node
	} else {
		when, ok := payload["x-when"].(string)
		if !ok || strings.TrimSpace(when) == "" {
			return nil, fmt.Errorf("schema: x-when must be a non-empty string at %s", pointer)
		}
		out.When = strings.TrimSpace(when)
	}

	if rawThen, ok := payload["then"]; ok {
		node, err := parseNode(rawThen, joinPointer(pointer, "then"))
		if err != nil {
			return nil, err
		}
		out.Then = node
	}
	if rawElse, ok := payload["else"]; ok {
		node, err := parseNode(rawElse, joinPointer(pointer, "else"))
		if err != nil {
			return nil, err
		}
		out.Else = node
	}
	return out, nil
}

func withoutAnnotations(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch key {
		case "$schema", "$id", "$comment", "definitions", "$defs", "components",
			"title", "description", "errorMessage", "default":
			continue
		}
		if strings.HasPrefix(strings.ToLower(key), "x-") {
			continue
		}
		out[key] = value
	}
	return out
}

func parseObjectNode(payload map[string]any, pointer string, meta Meta) (Node, error) {
	out := &ObjectNode{Info: meta}

	if rawProps, ok := payload["properties"]; ok {
		props, ok := rawProps.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: properties must be an object at %s", pointer)
		}
		out.Properties = make(map[string]Node, len(props))
		for _, name := range sortedKeys(props) {
			child, err := parseNode(props[name], joinPointer(pointer, "properties", name))
			if err != nil {
				return nil, err
			}
			out.Properties[name] = child
			out.Order = append(out.Order, name)
		}
	}

	required, err := readStringList(payload, "required", pointer)
	if err != nil {
		return nil, err
	}
	out.Required = required

	if rawAllOf, ok := payload["allOf"]; ok {
		list, ok := rawAllOf.([]any)
		if !ok {
			return nil, fmt.Errorf("schema: allOf must be an array at %s", pointer)
		}
		for idx, entry := range list {
			node, err := parseNode(entry, joinPointer(pointer, "allOf", fmt.Sprint(idx)))
			if err != nil {
				return nil, err
			}
			out.AllOf = append(out.AllOf, node)
		}
	}

	if rawAdditional, ok := payload["additionalProperties"]; ok {
		if flag, ok := rawAdditional.(bool); ok {
			out.AdditionalProperties = &flag
		}
	}
	return out, nil
}

func parseArrayNode(payload map[string]any, pointer string, meta Meta) (Node, error) {
	out := &ArrayNode{Info: meta}

	switch items := payload["items"].(type) {
	case nil:
	case map[string]any, bool:
		node, err := parseNode(items, joinPointer(pointer, "items"))
		if err != nil {
			return nil, err
		}
		out.Items = node
	case []any:
		out.Variants = make([]Node, len(items))
		for idx, entry := range items {
			node, err := parseNode(entry, joinPointer(pointer, "items", fmt.Sprint(idx)))
			if err != nil {
				return nil, err
			}
			out.Variants[idx] = node
		}
		if rawAdditional, ok := payload["additionalItems"]; ok {
			if _, isBool := rawAdditional.(bool); !isBool {
				node, err := parseNode(rawAdditional, joinPointer(pointer, "additionalItems"))
				if err != nil {
					return nil, err
				}
				out.Items = node
			}
		}
	default:
		return nil, fmt.Errorf("schema: items must be an object or array at %s", pointer)
	}

	var err error
	if out.MinItems, err = readInt(payload, "minItems", pointer); err != nil {
		return nil, err
	}
	if out.MaxItems, err = readInt(payload, "maxItems", pointer); err != nil {
		return nil, err
	}
	if unique, ok := payload["uniqueItems"].(bool); ok {
		out.UniqueItems = unique
	}
	return out, nil
}

func parseScalarNode(payload map[string]any, pointer string, meta Meta, types []string, nullable bool) (Node, error) {
	out := &ScalarNode{Info: meta, Nullable: nullable}
	for _, typ := range types {
		if typ != "null" {
			out.Type = typ
			break
		}
	}
	if out.Type == "" && len(types) == 1 && types[0] == "null" {
		out.Type = "null"
	}

	var err error
	if out.Format, err = readString(payload, "format", pointer); err != nil {
		return nil, err
	}
	if out.Pattern, err = readString(payload, "pattern", pointer); err != nil {
		return nil, err
	}
	if out.MinLength, err = readInt(payload, "minLength", pointer); err != nil {
		return nil, err
	}
	if out.MaxLength, err = readInt(payload, "maxLength", pointer); err != nil {
		return nil, err
	}
	if out.Minimum, err = readFloat(payload, "minimum", pointer); err != nil {
		return nil, err
	}
	if out.Maximum, err = readFloat(payload, "maximum", pointer); err != nil {
		return nil, err
	}
	if out.MultipleOf, err = readFloat(payload, "multipleOf", pointer); err != nil {
		return nil, err
	}
	if out.MultipleOf != nil && *out.MultipleOf <= 0 {
		return nil, fmt.Errorf("schema: multipleOf must be greater than zero at %s", pointer)
	}

	// draft-04 / OpenAPI 3.0 spell exclusive bounds as booleans on top of
	// minimum and maximum.
	if out.ExclusiveMinimum, out.Minimum, err = readExclusive(payload, "exclusiveMinimum", out.Minimum, pointer); err != nil {
		return nil, err
	}
	if out.ExclusiveMaximum, out.Maximum, err = readExclusive(payload, "exclusiveMaximum", out.Maximum, pointer); err != nil {
		return nil, err
	}

	if rawEnum, ok := payload["enum"]; ok {
		list, ok := rawEnum.([]any)
		if !ok {
			return nil, fmt.Errorf("schema: enum must be an array at %s", pointer)
		}
		out.Enum = append([]any(nil), list...)
		if labels, ok := payload["enumNames"].([]any); ok {
			if out.Info.Labels == nil {
				out.Info.Labels = make(map[string]string, len(labels))
			}
			for idx, label := range labels {
				if idx >= len(list) {
					break
				}
				out.Info.Labels[fmt.Sprint(list[idx])] = fmt.Sprint(label)
			}
		}
	}

	if rawConst, ok := payload["const"]; ok {
		if data, isData := dataPointer(rawConst); isData {
			out.DataRef = data
		} else {
			out.Const = cloneValue(rawConst)
			out.HasConst = true
		}
	}
	return out, nil
}

func dataPointer(raw any) (string, bool) {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", false
	}
	data, ok := obj["$data"].(string)
	if !ok || strings.TrimSpace(data) == "" {
		return "", false
	}
	return strings.TrimSpace(data), true
}

func parseMeta(payload map[string]any, pointer string) (Meta, error) {
	meta := Meta{}
	var err error
	if meta.Title, err = readString(payload, "title", pointer); err != nil {
		return Meta{}, err
	}
	if meta.Description, err = readString(payload, "description", pointer); err != nil {
		return Meta{}, err
	}
	if value, ok := payload["default"]; ok {
		meta.Default = cloneValue(value)
	}
	if raw, ok := payload["errorMessage"]; ok {
		messages, err := parseMessages(raw, pointer)
		if err != nil {
			return Meta{}, err
		}
		meta.Messages = messages
	}
	if raw, ok := payload["x-labels"]; ok {
		labels, ok := raw.(map[string]any)
		if !ok {
			return Meta{}, fmt.Errorf("schema: x-labels must be an object at %s", pointer)
		}
		meta.Labels = make(map[string]string, len(labels))
		for key, value := range labels {
			meta.Labels[key] = fmt.Sprint(value)
		}
	}
	meta.Extensions = extractExtensions(payload)
	return meta, nil
}

func parseMessages(raw any, pointer string) (Messages, error) {
	switch typed := raw.(type) {
	case string:
		return Messages{Default: typed}, nil
	case map[string]any:
		out := Messages{}
		for _, key := range sortedKeys(typed) {
			value := typed[key]
			switch key {
			case "_":
				msg, ok := value.(string)
				if !ok {
					return Messages{}, fmt.Errorf("schema: errorMessage._ must be a string at %s", pointer)
				}
				out.Default = msg
			case "required":
				switch req := value.(type) {
				case string:
					out.setKeyword("required", req)
				case map[string]any:
					out.Required = make(map[string]string, len(req))
					for field, msg := range req {
						text, ok := msg.(string)
						if !ok {
							return Messages{}, fmt.Errorf("schema: errorMessage.required.%s must be a string at %s", field, pointer)
						}
						out.Required[field] = text
					}
				default:
					return Messages{}, fmt.Errorf("schema: errorMessage.required must be a string or object at %s", pointer)
				}
			default:
				msg, ok := value.(string)
				if !ok {
					return Messages{}, fmt.Errorf("schema: errorMessage.%s must be a string at %s", key, pointer)
				}
				out.setKeyword(key, msg)
			}
		}
		return out, nil
	default:
		return Messages{}, fmt.Errorf("schema: errorMessage must be a string or object at %s", pointer)
	}
}

func (m *Messages) setKeyword(keyword, msg string) {
	if m.Keywords == nil {
		m.Keywords = make(map[string]string)
	}
	m.Keywords[keyword] = msg
}

func parseTypes(payload map[string]any, pointer string) ([]string, bool, error) {
	nullable, _ := payload["nullable"].(bool)
	raw, ok := payload["type"]
	if !ok {
		return nil, nullable, nil
	}
	var types []string
	switch typed := raw.(type) {
	case string:
		types = []string{strings.TrimSpace(typed)}
	case []any:
		for idx, entry := range typed {
			str, ok := entry.(string)
			if !ok {
				return nil, false, fmt.Errorf("schema: type[%d] must be a string at %s", idx, pointer)
			}
			types = append(types, strings.TrimSpace(str))
		}
	default:
		return nil, false, fmt.Errorf("schema: type must be a string or array at %s", pointer)
	}
	for _, typ := range types {
		switch typ {
		case "object", "array", "string", "number", "integer", "boolean":
		case "null":
			nullable = true
		default:
			return nil, false, fmt.Errorf("schema: unsupported type %q at %s", typ, pointer)
		}
	}
	return types, nullable, nil
}

func hasType(types []string, want string) bool {
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func hasAny(payload map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := payload[key]; ok {
			return true
		}
	}
	return false
}

func readString(payload map[string]any, key, pointer string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", nil
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("schema: %s must be a string at %s", key, pointer)
	}
	return strings.TrimSpace(str), nil
}

func readStringList(payload map[string]any, key, pointer string) ([]string, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("schema: %s must be an array at %s", key, pointer)
	}
	out := make([]string, 0, len(list))
	for idx, item := range list {
		str, ok := item.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return nil, fmt.Errorf("schema: %s[%d] must be a string at %s", key, idx, pointer)
		}
		out = appendUnique(out, str)
	}
	return out, nil
}

func readInt(payload map[string]any, key, pointer string) (*int, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	value, ok := toInt(raw)
	if !ok || value < 0 {
		return nil, fmt.Errorf("schema: %s must be a non-negative integer at %s", key, pointer)
	}
	return &value, nil
}

func readFloat(payload map[string]any, key, pointer string) (*float64, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	value, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("schema: %s must be a number at %s", key, pointer)
	}
	return &value, nil
}

func readExclusive(payload map[string]any, key string, bound *float64, pointer string) (*float64, *float64, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, bound, nil
	}
	if flag, isBool := raw.(bool); isBool {
		if !flag || bound == nil {
			return nil, bound, nil
		}
		return cloneFloat(bound), nil, nil
	}
	value, ok := toFloat(raw)
	if !ok {
		return nil, nil, fmt.Errorf("schema: %s must be a number at %s", key, pointer)
	}
	return &value, bound, nil
}

func extractExtensions(payload map[string]any) map[string]any {
	var out map[string]any
	for _, key := range sortedKeys(payload) {
		if !strings.HasPrefix(strings.ToLower(key), "x-") {
			continue
		}
		switch key {
		case "x-when", "x-labels":
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = cloneValue(payload[key])
	}
	return out
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(value any) (int, bool) {
	f, ok := toFloat(value)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(list []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, existing := range list {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			list = append(list, value)
		}
	}
	return list
}
