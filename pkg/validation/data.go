package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// wildcard marks a path segment standing for every element of a list.
const wildcard = "*"

// dataRule is a cross-field equality constraint: the value at path must equal
// the value the relative JSON pointer resolves to.
type dataRule struct {
	path    []string
	pointer string
}

// collectDataRules walks the document and records every $data const.
func collectDataRules(doc schema.Document) ([]dataRule, error) {
	c := ruleCollector{doc: doc, stack: map[string]struct{}{}}
	if err := c.walk(doc.Root, nil); err != nil {
		return nil, err
	}
	return c.rules, nil
}

type ruleCollector struct {
	doc   schema.Document
	stack map[string]struct{}
	rules []dataRule
}

func (c *ruleCollector) walk(node schema.Node, path []string) error {
	if ref, ok := node.(*schema.RefNode); ok {
		// recursive definitions are only reachable through lists; stop there
		if _, loop := c.stack[ref.Name]; loop {
			return nil
		}
		c.stack[ref.Name] = struct{}{}
		defer delete(c.stack, ref.Name)
	}
	resolved, err := c.doc.Resolve(node)
	if err != nil {
		return err
	}
	switch typed := resolved.(type) {
	case *schema.ScalarNode:
		if typed.DataRef == "" {
			return nil
		}
		if _, err := resolvePointer(path, typed.DataRef); err != nil {
			return &SchemaError{
				Pointer: pointerFor(path),
				Field:   strings.Join(path, "."),
				Message: err.Error(),
			}
		}
		c.rules = append(c.rules, dataRule{path: append([]string(nil), path...), pointer: typed.DataRef})
	case *schema.ObjectNode:
		props, err := c.doc.Properties(typed)
		if err != nil {
			return err
		}
		for _, prop := range props {
			if err := c.walk(prop.Node, append(path, prop.Name)); err != nil {
				return err
			}
		}
	case *schema.ArrayNode:
		for idx, variant := range typed.Variants {
			if variant == nil {
				continue
			}
			if err := c.walk(variant, append(path, strconv.Itoa(idx))); err != nil {
				return err
			}
		}
		if typed.Items != nil && len(typed.Variants) == 0 {
			if err := c.walk(typed.Items, append(path, wildcard)); err != nil {
				return err
			}
		}
	case *schema.ConditionalNode:
		if typed.Base != nil {
			return c.walk(typed.Base, path)
		}
	}
	return nil
}

// resolvePointer applies a relative JSON pointer ("1/password") or an
// absolute one ("/password") to the location of the field being validated.
func resolvePointer(from []string, pointer string) ([]string, error) {
	pointer = strings.TrimSpace(pointer)
	if strings.HasPrefix(pointer, "/") {
		return splitPointer(pointer[1:]), nil
	}
	digits := 0
	for digits < len(pointer) && pointer[digits] >= '0' && pointer[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return nil, fmt.Errorf("invalid $data pointer %q", pointer)
	}
	up, _ := strconv.Atoi(pointer[:digits])
	rest := pointer[digits:]
	if rest != "" && !strings.HasPrefix(rest, "/") {
		return nil, fmt.Errorf("unsupported $data pointer %q", pointer)
	}
	if up > len(from) {
		return nil, fmt.Errorf("$data pointer %q climbs above the document root", pointer)
	}
	out := append([]string(nil), from[:len(from)-up]...)
	if rest != "" {
		out = append(out, splitPointer(rest[1:])...)
	}
	return out, nil
}

func splitPointer(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "/")
	for idx, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[idx] = strings.ReplaceAll(part, "~0", "~")
	}
	return parts
}

func pointerFor(path []string) string {
	var b strings.Builder
	b.WriteString("#")
	for _, segment := range path {
		b.WriteString("/")
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(segment, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

// expand replaces wildcard segments with the indexes present in data.
func expand(template []string, data any) [][]string {
	var out [][]string
	var visit func(prefix []string, current any, rest []string)
	visit = func(prefix []string, current any, rest []string) {
		if len(rest) == 0 {
			out = append(out, append([]string(nil), prefix...))
			return
		}
		segment := rest[0]
		if segment == wildcard {
			list, _ := current.([]any)
			for idx, item := range list {
				visit(append(prefix, strconv.Itoa(idx)), item, rest[1:])
			}
			return
		}
		next, _ := child(current, segment)
		visit(append(prefix, segment), next, rest[1:])
	}
	visit(nil, data, template)
	return out
}

func child(current any, segment string) (any, bool) {
	switch typed := current.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(typed) {
			return nil, false
		}
		return typed[idx], true
	default:
		return nil, false
	}
}

func valueAt(data any, path []string) (any, bool) {
	current := data
	for _, segment := range path {
		next, ok := child(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func equalValues(a, b any) bool {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
