package schema

import (
	"fmt"
	"strconv"
)

// Leaf is a field a user fills in: a scalar, an array without per-element
// variants, or an object without properties.
type Leaf struct {
	Path     string
	Node     Node
	Required bool
}

// Leaves lists the leaf fields of the resolved root in property order.
// Required reports whether the leaf is required by its parent object.
func (d Document) Leaves() ([]Leaf, error) {
	root, err := d.RootDefinition()
	if err != nil {
		return nil, err
	}
	var out []Leaf
	if err := d.collectLeaves(root, "", false, false, map[string]struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fields lists the fields a form asks for. It matches Leaves except that a
// list of plain values is a single field even when the filter has given it
// per-element variants.
func (d Document) Fields() ([]Leaf, error) {
	root, err := d.RootDefinition()
	if err != nil {
		return nil, err
	}
	var out []Leaf
	if err := d.collectLeaves(root, "", false, true, map[string]struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ScalarItems returns the resolved item schema of arr when every element,
// per-element variants included, is a plain value.
func (d Document) ScalarItems(arr *ArrayNode) (*ScalarNode, bool) {
	if arr == nil || arr.Items == nil {
		return nil, false
	}
	item, err := d.Resolve(arr.Items)
	if err != nil {
		return nil, false
	}
	scalar, ok := item.(*ScalarNode)
	if !ok {
		return nil, false
	}
	for _, variant := range arr.Variants {
		if variant == nil {
			continue
		}
		resolved, err := d.Resolve(variant)
		if err != nil {
			return nil, false
		}
		if _, ok := resolved.(*ScalarNode); !ok {
			return nil, false
		}
	}
	return scalar, true
}

// RequiredPaths returns the paths of required leaves.
func (d Document) RequiredPaths() ([]string, error) {
	leaves, err := d.Leaves()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, leaf := range leaves {
		if leaf.Required {
			out = append(out, leaf.Path)
		}
	}
	return out, nil
}

func (d Document) collectLeaves(node Node, path string, required, fields bool, stack map[string]struct{}, out *[]Leaf) error {
	if ref, ok := node.(*RefNode); ok {
		name := ref.Name
		if name == "" {
			name, _ = RefName(ref.Ref)
		}
		if _, loop := stack[name]; loop {
			return &RefError{Ref: ref.Ref, Reason: "recursive definition at " + path}
		}
		stack[name] = struct{}{}
		defer delete(stack, name)
	}
	resolved, err := d.Resolve(node)
	if err != nil {
		return err
	}

	switch typed := resolved.(type) {
	case *ObjectNode:
		props, err := d.Properties(typed)
		if err != nil {
			return err
		}
		if len(props) == 0 {
			*out = append(*out, Leaf{Path: path, Node: typed, Required: required})
			return nil
		}
		for _, prop := range props {
			if err := d.collectLeaves(prop.Node, JoinPath(path, prop.Name), prop.Required, fields, stack, out); err != nil {
				return err
			}
		}
		return nil
	case *ArrayNode:
		if len(typed.Variants) == 0 {
			*out = append(*out, Leaf{Path: path, Node: typed, Required: required})
			return nil
		}
		if _, plain := d.ScalarItems(typed); fields && plain {
			*out = append(*out, Leaf{Path: path, Node: typed, Required: required})
			return nil
		}
		for idx := range typed.Variants {
			item := typed.ItemAt(idx)
			if item == nil {
				continue
			}
			if err := d.collectLeaves(item, JoinPath(path, strconv.Itoa(idx)), false, fields, stack, out); err != nil {
				return err
			}
		}
		return nil
	case *ConditionalNode:
		if typed.Base == nil {
			*out = append(*out, Leaf{Path: path, Node: typed, Required: required})
			return nil
		}
		return d.collectLeaves(typed.Base, path, required, fields, stack, out)
	case *ScalarNode:
		*out = append(*out, Leaf{Path: path, Node: typed, Required: required})
		return nil
	default:
		return fmt.Errorf("schema: unexpected node %T at %q", resolved, path)
	}
}

// Property is one named child of an object, including children contributed
// by allOf fragments.
type Property struct {
	Name     string
	Node     Node
	Required bool
}

// Properties flattens the properties of obj and of its allOf fragments in
// declaration order. Conditional fragments contribute their base only; a
// property declared twice is merged.
func (d Document) Properties(obj *ObjectNode) ([]Property, error) {
	var props []Property
	index := make(map[string]int)
	required := make(map[string]struct{})

	var visit func(obj *ObjectNode) error
	visit = func(obj *ObjectNode) error {
		for _, name := range objectOrder(obj) {
			child := obj.Properties[name]
			if child == nil {
				continue
			}
			if pos, seen := index[name]; seen {
				props[pos].Node = MergeNode(props[pos].Node, child)
				continue
			}
			index[name] = len(props)
			props = append(props, Property{Name: name, Node: child})
		}
		for _, name := range obj.Required {
			required[name] = struct{}{}
		}
		for _, entry := range obj.AllOf {
			resolved, err := d.Resolve(entry)
			if err != nil {
				return err
			}
			if cond, ok := resolved.(*ConditionalNode); ok {
				if cond.Base == nil {
					continue
				}
				if resolved, err = d.Resolve(cond.Base); err != nil {
					return err
				}
			}
			if fragment, ok := resolved.(*ObjectNode); ok {
				if err := visit(fragment); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := visit(obj); err != nil {
		return nil, err
	}
	for idx := range props {
		_, props[idx].Required = required[props[idx].Name]
	}
	return props, nil
}

func objectOrder(obj *ObjectNode) []string {
	order := append([]string(nil), obj.Order...)
	return append(order, missingOrder(obj)...)
}
