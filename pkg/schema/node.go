package schema

import (
	"fmt"
	"strings"
)

// Kind enumerates the schema node variants.
type Kind string

const (
	KindObject      Kind = "object"
	KindArray       Kind = "array"
	KindScalar      Kind = "scalar"
	KindConditional Kind = "conditional"
	KindRef         Kind = "ref"
)

// Node is implemented by every schema variant. Callers switch on the concrete
// type (or Kind) instead of probing for keyword presence.
type Node interface {
	Kind() Kind
	Meta() *Meta
	Clone() Node
}

// Meta carries annotations shared by all node kinds.
type Meta struct {
	Title       string
	Description string
	Default     any
	// Messages holds the custom errorMessage keyword.
	Messages Messages
	// Labels maps enum values (formatted with fmt.Sprint) to display labels.
	Labels     map[string]string
	Extensions map[string]any
}

func (m Meta) clone() Meta {
	out := m
	out.Default = cloneValue(m.Default)
	out.Messages = m.Messages.clone()
	out.Labels = cloneStrings(m.Labels)
	if len(m.Extensions) > 0 {
		out.Extensions = make(map[string]any, len(m.Extensions))
		for key, value := range m.Extensions {
			out.Extensions[key] = cloneValue(value)
		}
	}
	return out
}

// Messages maps constraint keywords to user-facing strings. Default applies to
// every keyword without a dedicated entry; Required holds messages keyed by
// child property name, attached to the parent object.
type Messages struct {
	Default  string
	Keywords map[string]string
	Required map[string]string
}

// For returns the message registered for keyword, falling back to Default.
func (m Messages) For(keyword string) string {
	if msg := strings.TrimSpace(m.Keywords[keyword]); msg != "" {
		return msg
	}
	return strings.TrimSpace(m.Default)
}

// IsZero reports whether no message is configured.
func (m Messages) IsZero() bool {
	return m.Default == "" && len(m.Keywords) == 0 && len(m.Required) == 0
}

func (m Messages) clone() Messages {
	return Messages{
		Default:  m.Default,
		Keywords: cloneStrings(m.Keywords),
		Required: cloneStrings(m.Required),
	}
}

// ObjectNode describes a model with named properties.
type ObjectNode struct {
	Info       Meta
	Properties map[string]Node
	// Order lists property names in a stable order.
	Order    []string
	Required []string
	// AllOf holds object-level fragments, usually conditionals keyed on
	// sibling values.
	AllOf                []Node
	AdditionalProperties *bool
}

func (n *ObjectNode) Kind() Kind  { return KindObject }
func (n *ObjectNode) Meta() *Meta { return &n.Info }

func (n *ObjectNode) Clone() Node {
	out := &ObjectNode{
		Info:     n.Info.clone(),
		Order:    append([]string(nil), n.Order...),
		Required: append([]string(nil), n.Required...),
	}
	if n.Properties != nil {
		out.Properties = make(map[string]Node, len(n.Properties))
		for name, child := range n.Properties {
			out.Properties[name] = cloneNode(child)
		}
	}
	for _, entry := range n.AllOf {
		out.AllOf = append(out.AllOf, cloneNode(entry))
	}
	if n.AdditionalProperties != nil {
		value := *n.AdditionalProperties
		out.AdditionalProperties = &value
	}
	return out
}

// IsRequired reports whether name appears in the required list.
func (n *ObjectNode) IsRequired(name string) bool {
	for _, item := range n.Required {
		if item == name {
			return true
		}
	}
	return false
}

// SetProperty adds or replaces a property, keeping Order in sync.
func (n *ObjectNode) SetProperty(name string, child Node) {
	if n.Properties == nil {
		n.Properties = make(map[string]Node)
	}
	if _, exists := n.Properties[name]; !exists {
		n.Order = append(n.Order, name)
	}
	n.Properties[name] = child
}

// ArrayNode describes an ordered list of items.
type ArrayNode struct {
	Info  Meta
	Items Node
	// Variants holds one item schema per model element. It is populated by
	// the filter so items of the same list can carry different constraints.
	Variants    []Node
	MinItems    *int
	MaxItems    *int
	UniqueItems bool
}

func (n *ArrayNode) Kind() Kind  { return KindArray }
func (n *ArrayNode) Meta() *Meta { return &n.Info }

func (n *ArrayNode) Clone() Node {
	out := &ArrayNode{
		Info:        n.Info.clone(),
		Items:       cloneNode(n.Items),
		MinItems:    cloneInt(n.MinItems),
		MaxItems:    cloneInt(n.MaxItems),
		UniqueItems: n.UniqueItems,
	}
	if n.Variants != nil {
		out.Variants = make([]Node, len(n.Variants))
		for idx, variant := range n.Variants {
			out.Variants[idx] = cloneNode(variant)
		}
	}
	return out
}

// ItemAt returns the schema for element idx.
func (n *ArrayNode) ItemAt(idx int) Node {
	if idx >= 0 && idx < len(n.Variants) && n.Variants[idx] != nil {
		return n.Variants[idx]
	}
	return n.Items
}

// ScalarNode describes strings, numbers, booleans and untyped values.
type ScalarNode struct {
	Info             Meta
	Type             string
	Nullable         bool
	Format           string
	Pattern          string
	MinLength        *int
	MaxLength        *int
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64
	Enum             []any
	Const            any
	HasConst         bool
	// DataRef is a relative JSON pointer to another model value this field
	// must equal (const: {"$data": "1/password"}).
	DataRef string
}

func (n *ScalarNode) Kind() Kind  { return KindScalar }
func (n *ScalarNode) Meta() *Meta { return &n.Info }

func (n *ScalarNode) Clone() Node {
	out := *n
	out.Info = n.Info.clone()
	out.MinLength = cloneInt(n.MinLength)
	out.MaxLength = cloneInt(n.MaxLength)
	out.Minimum = cloneFloat(n.Minimum)
	out.Maximum = cloneFloat(n.Maximum)
	out.ExclusiveMinimum = cloneFloat(n.ExclusiveMinimum)
	out.ExclusiveMaximum = cloneFloat(n.ExclusiveMaximum)
	out.MultipleOf = cloneFloat(n.MultipleOf)
	if n.Enum != nil {
		out.Enum = make([]any, len(n.Enum))
		for idx, value := range n.Enum {
			out.Enum[idx] = cloneValue(value)
		}
	}
	out.Const = cloneValue(n.Const)
	return &out
}

// Choice is an enum value paired with its display label.
type Choice struct {
	Value any
	Label string
}

// Choices lists enum values with labels from the Labels side-channel. Values
// without a label use their formatted value.
func (n *ScalarNode) Choices() []Choice {
	if len(n.Enum) == 0 {
		return nil
	}
	out := make([]Choice, 0, len(n.Enum))
	for _, value := range n.Enum {
		key := fmt.Sprint(value)
		label := strings.TrimSpace(n.Info.Labels[key])
		if label == "" {
			label = key
		}
		out = append(out, Choice{Value: value, Label: label})
	}
	return out
}

// ConditionalNode applies Then (or Else) on top of Base depending on a
// predicate evaluated against the value at the node's position. If is a
// JSON Schema predicate; When is an expression understood by
// pkg/condition/expr. Exactly one of them is set.
type ConditionalNode struct {
	Info Meta
	Base Node
	If   Node
	When string
	Then Node
	Else Node
}

func (n *ConditionalNode) Kind() Kind  { return KindConditional }
func (n *ConditionalNode) Meta() *Meta { return &n.Info }

func (n *ConditionalNode) Clone() Node {
	return &ConditionalNode{
		Info: n.Info.clone(),
		Base: cloneNode(n.Base),
		If:   cloneNode(n.If),
		When: n.When,
		Then: cloneNode(n.Then),
		Else: cloneNode(n.Else),
	}
}

// RefNode points at a named definition in the same document.
type RefNode struct {
	Info Meta
	Ref  string
	Name string
}

func (n *RefNode) Kind() Kind  { return KindRef }
func (n *RefNode) Meta() *Meta { return &n.Info }

func (n *RefNode) Clone() Node {
	out := *n
	out.Info = n.Info.clone()
	return &out
}

// NewRef builds a RefNode targeting the named definition.
func NewRef(name string) *RefNode {
	return &RefNode{Ref: definitionsPrefix + escapePointer(name), Name: name}
}

func cloneNode(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneStrings(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = cloneValue(val)
		}
		return out
	default:
		return typed
	}
}
