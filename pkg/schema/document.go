package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	definitionsPrefix = "#/definitions/"
	defsPrefix        = "#/$defs/"
	componentsPrefix  = "#/components/schemas/"
)

// ErrNoRoot is returned when a document does not carry a root node.
var ErrNoRoot = errors.New("schema: document has no root")

// RefError reports a $ref that cannot be resolved inside the document.
type RefError struct {
	Ref    string
	Reason string
}

func (e *RefError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "definition not found"
	}
	return fmt.Sprintf("schema: unresolved $ref %q: %s", e.Ref, reason)
}

// Document is a parsed schema: one root node plus named definitions reused
// through RefNode pointers.
type Document struct {
	Root        Node
	Definitions map[string]Node
	Source      Source
}

// NewDocument wraps a root node with optional definitions.
func NewDocument(root Node, definitions map[string]Node) Document {
	return Document{Root: root, Definitions: definitions}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Root: cloneNode(d.Root), Source: d.Source}
	if d.Definitions != nil {
		out.Definitions = make(map[string]Node, len(d.Definitions))
		for name, node := range d.Definitions {
			out.Definitions[name] = cloneNode(node)
		}
	}
	return out
}

// IsZero reports whether the document is empty.
func (d Document) IsZero() bool {
	return d.Root == nil && len(d.Definitions) == 0
}

// DefinitionNames returns the sorted definition names.
func (d Document) DefinitionNames() []string {
	names := make([]string, 0, len(d.Definitions))
	for name := range d.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve follows RefNode chains until a concrete node is reached.
func (d Document) Resolve(node Node) (Node, error) {
	seen := make(map[string]struct{})
	current := node
	for {
		ref, ok := current.(*RefNode)
		if !ok {
			return current, nil
		}
		name := ref.Name
		if name == "" {
			parsed, ok := RefName(ref.Ref)
			if !ok {
				return nil, &RefError{Ref: ref.Ref, Reason: "unsupported ref format"}
			}
			name = parsed
		}
		if _, loop := seen[name]; loop {
			return nil, &RefError{Ref: ref.Ref, Reason: "ref cycle detected"}
		}
		seen[name] = struct{}{}
		target, ok := d.Definitions[name]
		if !ok || target == nil {
			return nil, &RefError{Ref: ref.Ref}
		}
		current = target
	}
}

// RootDefinition resolves the root node.
func (d Document) RootDefinition() (Node, error) {
	if d.Root == nil {
		return nil, ErrNoRoot
	}
	return d.Resolve(d.Root)
}

// CheckRefs walks the whole document and reports the first ref that cannot
// be resolved.
func (d Document) CheckRefs() error {
	if d.Root == nil {
		return ErrNoRoot
	}
	var check func(node Node) error
	check = func(node Node) error {
		switch typed := node.(type) {
		case nil:
			return nil
		case *RefNode:
			_, err := d.Resolve(typed)
			return err
		case *ObjectNode:
			for _, name := range typed.Order {
				if err := check(typed.Properties[name]); err != nil {
					return err
				}
			}
			for _, entry := range typed.AllOf {
				if err := check(entry); err != nil {
					return err
				}
			}
		case *ArrayNode:
			if err := check(typed.Items); err != nil {
				return err
			}
			for _, variant := range typed.Variants {
				if err := check(variant); err != nil {
					return err
				}
			}
		case *ConditionalNode:
			for _, part := range []Node{typed.Base, typed.If, typed.Then, typed.Else} {
				if err := check(part); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := check(d.Root); err != nil {
		return err
	}
	for _, name := range d.DefinitionNames() {
		if err := check(d.Definitions[name]); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the resolved node addressed by a dotted field path. Numeric
// segments index array variants; a non-numeric segment on an array descends
// into the item schema. Conditionals are searched base first, then branches.
func (d Document) Lookup(path string) (Node, error) {
	current, err := d.RootDefinition()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return current, nil
	}
	for _, segment := range strings.Split(path, ".") {
		next, err := d.child(current, segment)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("schema: path %q not found", path)
		}
		current = next
	}
	return current, nil
}

func (d Document) child(node Node, segment string) (Node, error) {
	resolved, err := d.Resolve(node)
	if err != nil {
		return nil, err
	}
	switch typed := resolved.(type) {
	case *ObjectNode:
		if child, ok := typed.Properties[segment]; ok {
			return d.Resolve(child)
		}
		for _, entry := range typed.AllOf {
			found, err := d.child(entry, segment)
			if err == nil && found != nil {
				return found, nil
			}
		}
		return nil, nil
	case *ArrayNode:
		if idx, err := strconv.Atoi(segment); err == nil {
			item := typed.ItemAt(idx)
			if item == nil {
				return nil, nil
			}
			return d.Resolve(item)
		}
		if typed.Items == nil {
			return nil, nil
		}
		return d.child(typed.Items, segment)
	case *ConditionalNode:
		for _, part := range []Node{typed.Base, typed.Then, typed.Else} {
			if part == nil {
				continue
			}
			found, err := d.child(part, segment)
			if err != nil {
				return nil, err
			}
			if found != nil {
				return found, nil
			}
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// RefName extracts the definition name from a local ref.
func RefName(ref string) (string, bool) {
	trimmed := strings.TrimSpace(ref)
	for _, prefix := range []string{definitionsPrefix, defsPrefix, componentsPrefix} {
		if strings.HasPrefix(trimmed, prefix) {
			name := unescapePointer(strings.TrimPrefix(trimmed, prefix))
			if name == "" || strings.Contains(name, "/") {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}

func escapePointer(segment string) string {
	segment = strings.ReplaceAll(segment, "~", "~0")
	return strings.ReplaceAll(segment, "/", "~1")
}

func unescapePointer(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func joinPointer(base string, parts ...string) string {
	out := base
	for _, part := range parts {
		out += "/" + escapePointer(part)
	}
	return out
}

// JoinPath joins dotted field path segments, skipping empty ones.
func JoinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
