// Package validation compiles schema documents into validators and turns
// their failures into one message per field.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// Validator is a compiled schema. It is immutable and safe for concurrent
// use.
type Validator struct {
	doc      schema.Document
	compiled *gojsonschema.Schema
	rules    []dataRule
	catalog  Catalog
}

// Compile encodes doc as draft-07 JSON Schema and compiles it. Expression
// conditionals (x-when) must be resolved by the filter first.
func Compile(doc schema.Document) (*Validator, error) {
	registerFormats()

	if doc.Root == nil {
		return nil, &SchemaError{Message: "document has no root", Err: schema.ErrNoRoot}
	}
	if err := doc.CheckRefs(); err != nil {
		return nil, newSchemaError(err)
	}
	if pointer, ok := findWhen(doc.Root, "#"); ok {
		return nil, &SchemaError{
			Pointer: pointer,
			Field:   fieldPathFromPointer(pointer),
			Message: "x-when conditionals must be filtered before compiling",
		}
	}
	for _, name := range doc.DefinitionNames() {
		if pointer, ok := findWhen(doc.Definitions[name], "#/definitions/"+name); ok {
			return nil, &SchemaError{
				Pointer: pointer,
				Field:   fieldPathFromPointer(pointer),
				Message: "x-when conditionals must be filtered before compiling",
			}
		}
	}

	rules, err := collectDataRules(doc)
	if err != nil {
		return nil, newSchemaError(err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.Encode(doc)))
	if err != nil {
		return nil, newSchemaError(err)
	}

	return &Validator{
		doc:      doc,
		compiled: compiled,
		rules:    rules,
		catalog:  DefaultCatalog(),
	}, nil
}

// MustCompile is Compile for schemas known to be valid; it panics on error.
func MustCompile(doc schema.Document) *Validator {
	v, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return v
}

// CompilePredicate compiles node as a standalone schema sharing doc's
// definitions, for evaluating JSON Schema `if` predicates.
func CompilePredicate(doc schema.Document, node schema.Node) (*Validator, error) {
	return Compile(schema.Document{Root: node, Definitions: doc.Definitions})
}

// WithCatalog returns a copy of v whose built-in messages are overridden by
// catalog. The compiled schema is shared.
func (v *Validator) WithCatalog(catalog Catalog) *Validator {
	if v == nil || len(catalog) == 0 {
		return v
	}
	out := *v
	out.catalog = v.catalog.merged(catalog)
	return &out
}

// Run validates model and returns the error map. A failure of the
// validation machinery itself is reported as the form-level schema error.
func (v *Validator) Run(model map[string]any) ErrorMap {
	errs, err := v.Validate(model)
	if err != nil {
		return SchemaErrorMap()
	}
	return errs
}

// Validate validates model and returns one message per failing field,
// keeping the highest ranked constraint for each. Empty strings and nil
// values count as absent.
func (v *Validator) Validate(model map[string]any) (ErrorMap, error) {
	snapshot := Prune(model)
	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("validation: run: %w", err)
	}

	type candidate struct {
		rank    int
		message string
	}
	best := make(map[string]candidate)
	consider := func(path string, rank int, message func() string) {
		if current, ok := best[path]; ok && current.rank <= rank {
			return
		}
		best[path] = candidate{rank: rank, message: message()}
	}

	for _, resultErr := range result.Errors() {
		errType := resultErr.Type()
		if _, skip := wrapperErrors[errType]; skip {
			continue
		}
		kind := kindOf(errType)
		path := errorPath(resultErr)
		description := resultErr.Description()
		consider(path, kind.rank, func() string {
			return v.message(path, kind.keyword, description)
		})
	}

	for _, rule := range v.rules {
		for _, concrete := range expand(rule.path, snapshot) {
			value, present := valueAt(snapshot, concrete)
			if !present {
				continue
			}
			target, err := resolvePointer(concrete, rule.pointer)
			if err != nil {
				continue
			}
			other, ok := valueAt(snapshot, target)
			if !ok || equalValues(value, other) {
				continue
			}
			path := strings.Join(concrete, ".")
			targetPath := strings.Join(target, ".")
			consider(path, rankMatch, func() string {
				return v.matchMessage(path, targetPath)
			})
		}
	}

	out := make(ErrorMap, len(best))
	for path, entry := range best {
		out[path] = entry.message
	}
	return out, nil
}

// Match reports whether value satisfies the schema, with the same absent
// value handling as Validate. Cross-field rules are not part of matching.
func (v *Validator) Match(value any) bool {
	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(pruneValue(value)))
	if err != nil {
		return false
	}
	return result.Valid()
}

// errorPath converts the library's "(root).a.0.b" context into a dotted
// field path. Errors reported on the parent object (required, additional
// properties) name the offending property in their details.
func errorPath(resultErr gojsonschema.ResultError) string {
	field := resultErr.Field()
	if field == "(root)" {
		field = ""
	}
	field = strings.TrimPrefix(field, "(root).")
	switch resultErr.Type() {
	case "required", "additional_property_not_allowed":
		if property, ok := resultErr.Details()["property"].(string); ok && property != "" {
			return schema.JoinPath(field, property)
		}
	}
	return field
}

// Prune deep copies model dropping object entries whose value is nil or an
// empty string, so untouched fields count as missing.
func Prune(model map[string]any) map[string]any {
	out, _ := pruneValue(model).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func pruneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			if isAbsent(val) {
				continue
			}
			out[key] = pruneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, val := range typed {
			out[idx] = pruneValue(val)
		}
		return out
	default:
		return typed
	}
}

func isAbsent(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	default:
		return false
	}
}

func findWhen(node schema.Node, pointer string) (string, bool) {
	switch typed := node.(type) {
	case *schema.ConditionalNode:
		if typed.When != "" {
			return pointer, true
		}
		for _, part := range []struct {
			key  string
			node schema.Node
		}{{"", typed.Base}, {"if", typed.If}, {"then", typed.Then}, {"else", typed.Else}} {
			next := pointer
			if part.key != "" {
				next = pointer + "/" + part.key
			}
			if found, ok := findWhen(part.node, next); ok {
				return found, true
			}
		}
	case *schema.ObjectNode:
		for _, name := range typed.Order {
			if found, ok := findWhen(typed.Properties[name], pointer+"/properties/"+name); ok {
				return found, true
			}
		}
		for idx, entry := range typed.AllOf {
			if found, ok := findWhen(entry, fmt.Sprintf("%s/allOf/%d", pointer, idx)); ok {
				return found, true
			}
		}
	case *schema.ArrayNode:
		if found, ok := findWhen(typed.Items, pointer+"/items"); ok {
			return found, true
		}
		for idx, variant := range typed.Variants {
			if found, ok := findWhen(variant, fmt.Sprintf("%s/items/%d", pointer, idx)); ok {
				return found, true
			}
		}
	}
	return "", false
}
