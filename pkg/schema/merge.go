package schema

import "sort"

// MergeNode deep merges override onto base and returns a new node; neither
// input is modified. Leaf constraints set on override win, object properties
// and required lists are unioned, annotations only present on base survive.
// When the kinds differ override wins, except that a conditional absorbs the
// other side into its base.
func MergeNode(base, override Node) Node {
	switch {
	case base == nil:
		return cloneNode(override)
	case override == nil:
		return cloneNode(base)
	}

	if cond, ok := base.(*ConditionalNode); ok {
		if _, same := override.(*ConditionalNode); !same {
			out := cond.Clone().(*ConditionalNode)
			out.Base = MergeNode(cond.Base, override)
			return out
		}
	}
	if cond, ok := override.(*ConditionalNode); ok {
		if _, same := base.(*ConditionalNode); !same {
			out := cond.Clone().(*ConditionalNode)
			out.Base = MergeNode(base, cond.Base)
			return out
		}
	}

	switch b := base.(type) {
	case *ObjectNode:
		if o, ok := override.(*ObjectNode); ok {
			return mergeObject(b, o)
		}
	case *ArrayNode:
		if o, ok := override.(*ArrayNode); ok {
			return mergeArray(b, o)
		}
	case *ScalarNode:
		if o, ok := override.(*ScalarNode); ok {
			return mergeScalar(b, o)
		}
	case *ConditionalNode:
		o := override.(*ConditionalNode)
		return mergeConditional(b, o)
	}

	out := override.Clone()
	*out.Meta() = MergeMeta(*base.Meta(), *override.Meta())
	return out
}

func mergeObject(base, override *ObjectNode) *ObjectNode {
	out := &ObjectNode{
		Info:     MergeMeta(base.Info, override.Info),
		Required: appendUnique(append([]string(nil), base.Required...), override.Required...),
	}
	for _, name := range base.Order {
		out.SetProperty(name, MergeNode(base.Properties[name], override.Properties[name]))
	}
	for _, name := range missingOrder(base) {
		out.SetProperty(name, MergeNode(base.Properties[name], override.Properties[name]))
	}
	for _, name := range override.Order {
		if _, seen := out.Properties[name]; seen {
			continue
		}
		out.SetProperty(name, cloneNode(override.Properties[name]))
	}
	for _, name := range missingOrder(override) {
		if _, seen := out.Properties[name]; seen {
			continue
		}
		out.SetProperty(name, cloneNode(override.Properties[name]))
	}
	for _, entry := range base.AllOf {
		out.AllOf = append(out.AllOf, cloneNode(entry))
	}
	for _, entry := range override.AllOf {
		out.AllOf = append(out.AllOf, cloneNode(entry))
	}
	switch {
	case override.AdditionalProperties != nil:
		value := *override.AdditionalProperties
		out.AdditionalProperties = &value
	case base.AdditionalProperties != nil:
		value := *base.AdditionalProperties
		out.AdditionalProperties = &value
	}
	return out
}

// missingOrder returns property names absent from Order, sorted, for nodes
// built by hand without SetProperty.
func missingOrder(node *ObjectNode) []string {
	if len(node.Order) == len(node.Properties) {
		return nil
	}
	listed := make(map[string]struct{}, len(node.Order))
	for _, name := range node.Order {
		listed[name] = struct{}{}
	}
	var out []string
	for name := range node.Properties {
		if _, ok := listed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func mergeArray(base, override *ArrayNode) *ArrayNode {
	out := &ArrayNode{
		Info:        MergeMeta(base.Info, override.Info),
		Items:       MergeNode(base.Items, override.Items),
		MinItems:    pickInt(base.MinItems, override.MinItems),
		MaxItems:    pickInt(base.MaxItems, override.MaxItems),
		UniqueItems: base.UniqueItems || override.UniqueItems,
	}
	size := len(base.Variants)
	if len(override.Variants) > size {
		size = len(override.Variants)
	}
	if size > 0 {
		out.Variants = make([]Node, size)
		for idx := 0; idx < size; idx++ {
			var b, o Node
			if idx < len(base.Variants) {
				b = base.Variants[idx]
			}
			if idx < len(override.Variants) {
				o = override.Variants[idx]
			}
			out.Variants[idx] = MergeNode(b, o)
		}
	}
	return out
}

func mergeScalar(base, override *ScalarNode) *ScalarNode {
	out := base.Clone().(*ScalarNode)
	out.Info = MergeMeta(base.Info, override.Info)
	if override.Type != "" {
		out.Type = override.Type
	}
	out.Nullable = base.Nullable || override.Nullable
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.Pattern != "" {
		out.Pattern = override.Pattern
	}
	out.MinLength = pickInt(base.MinLength, override.MinLength)
	out.MaxLength = pickInt(base.MaxLength, override.MaxLength)
	out.Minimum = pickFloat(base.Minimum, override.Minimum)
	out.Maximum = pickFloat(base.Maximum, override.Maximum)
	out.ExclusiveMinimum = pickFloat(base.ExclusiveMinimum, override.ExclusiveMinimum)
	out.ExclusiveMaximum = pickFloat(base.ExclusiveMaximum, override.ExclusiveMaximum)
	out.MultipleOf = pickFloat(base.MultipleOf, override.MultipleOf)
	if len(override.Enum) > 0 {
		out.Enum = make([]any, len(override.Enum))
		for idx, value := range override.Enum {
			out.Enum[idx] = cloneValue(value)
		}
	}
	if override.HasConst {
		out.Const = cloneValue(override.Const)
		out.HasConst = true
	}
	if override.DataRef != "" {
		out.DataRef = override.DataRef
	}
	return out
}

func mergeConditional(base, override *ConditionalNode) *ConditionalNode {
	out := &ConditionalNode{
		Info: MergeMeta(base.Info, override.Info),
		Base: MergeNode(base.Base, override.Base),
		If:   cloneNode(base.If),
		When: base.When,
		Then: MergeNode(base.Then, override.Then),
		Else: MergeNode(base.Else, override.Else),
	}
	if override.If != nil || override.When != "" {
		out.If = cloneNode(override.If)
		out.When = override.When
	}
	return out
}

// MergeMeta overlays the annotations set on override onto base.
func MergeMeta(base, override Meta) Meta {
	out := base.clone()
	if override.Title != "" {
		out.Title = override.Title
	}
	if override.Description != "" {
		out.Description = override.Description
	}
	if override.Default != nil {
		out.Default = cloneValue(override.Default)
	}
	if override.Messages.Default != "" {
		out.Messages.Default = override.Messages.Default
	}
	out.Messages.Keywords = mergeStrings(out.Messages.Keywords, override.Messages.Keywords)
	out.Messages.Required = mergeStrings(out.Messages.Required, override.Messages.Required)
	out.Labels = mergeStrings(out.Labels, override.Labels)
	for key, value := range override.Extensions {
		if out.Extensions == nil {
			out.Extensions = make(map[string]any)
		}
		out.Extensions[key] = cloneValue(value)
	}
	return out
}

func mergeStrings(base, override map[string]string) map[string]string {
	if len(override) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(override))
	}
	for key, value := range override {
		base[key] = value
	}
	return base
}

func pickInt(base, override *int) *int {
	if override != nil {
		return cloneInt(override)
	}
	return cloneInt(base)
}

func pickFloat(base, override *float64) *float64 {
	if override != nil {
		return cloneFloat(override)
	}
	return cloneFloat(base)
}
