// Package filter resolves a schema document against a model: conditionals are
// decided, refs are inlined and list items get a schema per element, so the
// result can be compiled and validated directly.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formvalidate/pkg/condition"
	"github.com/goliatone/go-formvalidate/pkg/condition/expr"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// Options configures Apply.
type Options struct {
	// FieldsPaths restricts the document to the listed dotted paths, their
	// ancestors and their descendants. Empty keeps everything.
	FieldsPaths []string
	// Extras is exposed to x-when expressions under the extras. prefix.
	Extras map[string]any
	// Evaluator decides x-when expressions. Defaults to expr.New().
	Evaluator condition.Evaluator
	// Cache memoises compiled if predicates. Nil compiles every time.
	Cache *validation.Cache
}

var defaultEvaluator = expr.New()

// Apply returns the document that applies to model. The input document is
// not modified.
func Apply(doc schema.Document, model map[string]any, opts Options) (schema.Document, error) {
	root, err := doc.RootDefinition()
	if err != nil {
		return schema.Document{}, err
	}
	if opts.Evaluator == nil {
		opts.Evaluator = defaultEvaluator
	}

	f := &filterer{
		doc:     doc,
		opts:    opts,
		model:   model,
		allowed: normalisePaths(opts.FieldsPaths),
		stack:   map[string]struct{}{},
		pending: map[string]struct{}{},
	}

	if ref, ok := doc.Root.(*schema.RefNode); ok {
		f.stack[ref.Name] = struct{}{}
		root = withRefMeta(root, ref)
	}
	filtered, err := f.walk(root, model, model, nil)
	if err != nil {
		return schema.Document{}, err
	}
	if filtered == nil {
		filtered = &schema.ObjectNode{}
	}

	definitions, err := f.definitions()
	if err != nil {
		return schema.Document{}, err
	}
	return schema.Document{Root: filtered, Definitions: definitions, Source: doc.Source}, nil
}

type filterer struct {
	doc     schema.Document
	opts    Options
	model   map[string]any
	allowed [][]string
	// stack holds the definitions being inlined on the current branch.
	stack map[string]struct{}
	// pending collects definitions left as refs because they recurse.
	pending map[string]struct{}
}

// walk filters node against value, the data found at path. scope is the
// object x-when expressions read sibling names from.
func (f *filterer) walk(node schema.Node, value any, scope map[string]any, path []string) (schema.Node, error) {
	switch typed := node.(type) {
	case nil:
		return nil, nil
	case *schema.RefNode:
		return f.walkRef(typed, value, scope, path)
	case *schema.ObjectNode:
		return f.walkObject(typed, value, path)
	case *schema.ArrayNode:
		return f.walkArray(typed, value, scope, path)
	case *schema.ConditionalNode:
		return f.walkConditional(typed, value, scope, path)
	default:
		return node.Clone(), nil
	}
}

func (f *filterer) walkRef(ref *schema.RefNode, value any, scope map[string]any, path []string) (schema.Node, error) {
	if _, active := f.stack[ref.Name]; active && value == nil {
		// recursive definition with no data left to drive it
		f.pending[ref.Name] = struct{}{}
		return ref.Clone(), nil
	}
	target, err := f.doc.Resolve(ref)
	if err != nil {
		return nil, err
	}
	_, wasActive := f.stack[ref.Name]
	f.stack[ref.Name] = struct{}{}
	out, err := f.walk(withRefMeta(target, ref), value, scope, path)
	if !wasActive {
		delete(f.stack, ref.Name)
	}
	return out, err
}

func (f *filterer) walkObject(obj *schema.ObjectNode, value any, path []string) (schema.Node, error) {
	data, _ := value.(map[string]any)

	out := &schema.ObjectNode{
		Info:                 obj.Info,
		Required:             append([]string(nil), obj.Required...),
		AdditionalProperties: obj.AdditionalProperties,
	}
	for _, name := range propertyOrder(obj) {
		child, err := f.walk(obj.Properties[name], data[name], data, append(path, name))
		if err != nil {
			return nil, err
		}
		if child == nil {
			// a conditional property whose branch does not apply
			out.Required = without(out.Required, name)
			continue
		}
		out.SetProperty(name, child)
	}

	var folded schema.Node = out
	for _, entry := range obj.AllOf {
		fragment, err := f.walk(entry, value, data, path)
		if err != nil {
			return nil, err
		}
		if fragment == nil {
			continue
		}
		folded = schema.MergeNode(folded, fragment)
	}

	result, ok := folded.(*schema.ObjectNode)
	if !ok {
		return folded, nil
	}
	result.AllOf = nil
	f.prune(result, path)
	return result, nil
}

func (f *filterer) walkArray(arr *schema.ArrayNode, value any, scope map[string]any, path []string) (schema.Node, error) {
	list, _ := value.([]any)

	out := &schema.ArrayNode{
		Info:        arr.Info,
		MinItems:    arr.MinItems,
		MaxItems:    arr.MaxItems,
		UniqueItems: arr.UniqueItems,
	}
	for idx, elem := range list {
		item := arr.ItemAt(idx)
		if item == nil {
			break
		}
		filtered, err := f.walk(item, elem, scope, append(path, strconv.Itoa(idx)))
		if err != nil {
			return nil, err
		}
		if filtered == nil {
			filtered = &schema.ScalarNode{}
		}
		out.Variants = append(out.Variants, filtered)
	}
	if arr.Items != nil {
		items, err := f.walk(arr.Items, nil, scope, append(path, strconv.Itoa(len(list))))
		if err != nil {
			return nil, err
		}
		out.Items = items
	}
	return out, nil
}

func (f *filterer) walkConditional(cond *schema.ConditionalNode, value any, scope map[string]any, path []string) (schema.Node, error) {
	base, err := f.walk(cond.Base, value, scope, path)
	if err != nil {
		return nil, err
	}

	matched, err := f.decide(cond, value, scope, path)
	if err != nil {
		return nil, err
	}
	branchNode := cond.Else
	if matched {
		branchNode = cond.Then
	}
	branch, err := f.walk(branchNode, value, scope, path)
	if err != nil {
		return nil, err
	}

	var out schema.Node
	switch {
	case base == nil && branch == nil:
		return nil, nil
	case base == nil:
		out = branch
	case branch == nil:
		out = base
	default:
		out = schema.MergeNode(base, branch)
	}
	*out.Meta() = schema.MergeMeta(*out.Meta(), cond.Info)
	if obj, ok := out.(*schema.ObjectNode); ok {
		f.prune(obj, path)
	}
	return out, nil
}

func (f *filterer) decide(cond *schema.ConditionalNode, value any, scope map[string]any, path []string) (bool, error) {
	if cond.When != "" {
		ok, err := f.opts.Evaluator.Eval(strings.Join(path, "."), cond.When, condition.Context{
			Values: scope,
			Self:   value,
			Root:   f.model,
			Extras: f.opts.Extras,
		})
		if err != nil {
			return false, fmt.Errorf("filter: x-when at %q: %w", strings.Join(path, "."), err)
		}
		return ok, nil
	}
	if cond.If == nil {
		return true, nil
	}
	predicate, err := f.opts.Cache.CompilePredicate(f.doc, cond.If)
	if err != nil {
		return false, err
	}
	return predicate.Match(value), nil
}

// definitions filters every definition left behind as a ref, against no
// data, until no new refs show up.
func (f *filterer) definitions() (map[string]schema.Node, error) {
	if len(f.pending) == 0 {
		return nil, nil
	}
	out := make(map[string]schema.Node, len(f.pending))
	for {
		var todo []string
		for name := range f.pending {
			if _, done := out[name]; !done {
				todo = append(todo, name)
			}
		}
		if len(todo) == 0 {
			return out, nil
		}
		sort.Strings(todo)
		for _, name := range todo {
			def, ok := f.doc.Definitions[name]
			if !ok {
				return nil, &schema.RefError{Ref: name}
			}
			f.stack = map[string]struct{}{name: {}}
			filtered, err := f.walk(def, nil, nil, nil)
			if err != nil {
				return nil, err
			}
			if filtered == nil {
				filtered = &schema.ScalarNode{}
			}
			out[name] = filtered
		}
	}
}

// prune drops properties outside the allowlist along with their required
// entries.
func (f *filterer) prune(obj *schema.ObjectNode, path []string) {
	if len(f.allowed) == 0 {
		return
	}
	base := stripIndexes(path)
	for _, name := range append([]string(nil), obj.Order...) {
		if f.keeps(append(base, name)) {
			continue
		}
		delete(obj.Properties, name)
		obj.Order = without(obj.Order, name)
		obj.Required = without(obj.Required, name)
	}
	kept := obj.Required[:0]
	for _, name := range obj.Required {
		if _, ok := obj.Properties[name]; ok || f.keeps(append(base, name)) {
			kept = append(kept, name)
		}
	}
	obj.Required = kept
}

func (f *filterer) keeps(path []string) bool {
	for _, allowed := range f.allowed {
		if prefixOf(allowed, path) || prefixOf(path, allowed) {
			return true
		}
	}
	return false
}

func prefixOf(prefix, path []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for idx := range prefix {
		if prefix[idx] != path[idx] {
			return false
		}
	}
	return true
}

func normalisePaths(paths []string) [][]string {
	var out [][]string
	for _, raw := range paths {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		out = append(out, stripIndexes(strings.Split(raw, ".")))
	}
	return out
}

func stripIndexes(path []string) []string {
	out := make([]string, 0, len(path))
	for _, segment := range path {
		if segment == "" || segment == "*" {
			continue
		}
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func without(list []string, name string) []string {
	out := list[:0]
	for _, item := range list {
		if item != name {
			out = append(out, item)
		}
	}
	return out
}

func propertyOrder(obj *schema.ObjectNode) []string {
	order := append([]string(nil), obj.Order...)
	seen := make(map[string]struct{}, len(order))
	for _, name := range order {
		seen[name] = struct{}{}
	}
	var extra []string
	for name := range obj.Properties {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// withRefMeta overlays annotations written next to a $ref onto its target.
func withRefMeta(target schema.Node, ref *schema.RefNode) schema.Node {
	if target == nil || isZeroMeta(ref.Info) {
		return target
	}
	out := target.Clone()
	*out.Meta() = schema.MergeMeta(*out.Meta(), ref.Info)
	return out
}

func isZeroMeta(meta schema.Meta) bool {
	return meta.Title == "" && meta.Description == "" && meta.Default == nil &&
		meta.Messages.IsZero() && len(meta.Labels) == 0 && len(meta.Extensions) == 0
}
