// Package model holds the form data a session validates: a nested map of
// plain values addressed by dotted paths ("owners.0.name"), plus a factory
// that derives an empty model from a schema.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Model is a nested map of form values. Nested objects are map[string]any and
// lists are []any.
type Model map[string]any

// New deep copies values into a Model.
func New(values map[string]any) Model {
	out := make(Model, len(values))
	for key, value := range values {
		out[key] = DeepCopy(value)
	}
	return out
}

// Get resolves a dotted path. The empty path returns the whole model.
func (m Model) Get(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]any(m), m != nil
	}
	var current any = map[string]any(m)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at path, creating intermediate objects and lists. A
// numeric segment addresses (and grows) a list.
func (m Model) Set(path string, value any) error {
	if m == nil {
		return fmt.Errorf("model: set %q on nil model", path)
	}
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	_, err = assign(map[string]any(m), segments, value, path)
	return err
}

// Delete removes the value at path. Removing a list element shifts the
// following elements down. Deleting a missing path is a no-op.
func (m Model) Delete(path string) error {
	if m == nil {
		return nil
	}
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	parentPath := strings.Join(segments[:len(segments)-1], ".")
	last := segments[len(segments)-1]

	if len(segments) == 1 {
		delete(m, last)
		return nil
	}
	parent, ok := m.Get(parentPath)
	if !ok {
		return nil
	}
	switch node := parent.(type) {
	case map[string]any:
		delete(node, last)
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil
		}
		trimmed := append(append([]any(nil), node[:idx]...), node[idx+1:]...)
		return m.Set(parentPath, trimmed)
	}
	return nil
}

// Snapshot returns a deep copy detached from the model.
func (m Model) Snapshot() Model {
	return New(m)
}

// Map exposes the model as a plain map.
func (m Model) Map() map[string]any {
	return map[string]any(m)
}

// Shape returns the sorted top-level keys; a change in shape is what forces
// the effective schema to be filtered again.
func (m Model) Shape() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DeepCopy copies nested maps and lists; other values are returned as is.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for key, val := range typed {
			clone[key] = DeepCopy(val)
		}
		return clone
	case Model:
		return DeepCopy(map[string]any(typed))
	case []any:
		clone := make([]any, len(typed))
		for idx, val := range typed {
			clone[idx] = DeepCopy(val)
		}
		return clone
	default:
		return typed
	}
}

// MaxListGrowth bounds how many entries a single Set may append to a list.
const MaxListGrowth = 1024

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("model: empty path")
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("model: empty segment in path %q", path)
		}
	}
	return segments, nil
}

// assign writes value below container and returns the (possibly new)
// container so grown lists can be stored back into their parent.
func assign(container any, segments []string, value any, path string) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	segment, rest := segments[0], segments[1:]

	if container == nil {
		if isIndex(segment) {
			container = []any{}
		} else {
			container = map[string]any{}
		}
	}

	switch node := container.(type) {
	case map[string]any:
		child, err := assign(node[segment], rest, value, path)
		if err != nil {
			return nil, err
		}
		node[segment] = child
		return node, nil
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("model: expected list index, got %q in path %q", segment, path)
		}
		if idx-len(node) >= MaxListGrowth {
			return nil, fmt.Errorf("model: index %d in path %q grows the list by more than %d entries", idx, path, MaxListGrowth)
		}
		if idx >= len(node) {
			node = append(node, make([]any, idx+1-len(node))...)
		}
		child, err := assign(node[idx], rest, value, path)
		if err != nil {
			return nil, err
		}
		node[idx] = child
		return node, nil
	default:
		return nil, fmt.Errorf("model: cannot descend into %T at %q in path %q", container, segment, path)
	}
}

func isIndex(segment string) bool {
	idx, err := strconv.Atoi(segment)
	return err == nil && idx >= 0
}
