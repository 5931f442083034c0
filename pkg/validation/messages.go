package validation

import (
	"fmt"
	"strings"
)

// Constraint ranks; lower wins when a field fails several constraints.
const (
	rankRequired = iota
	rankType
	rankFormat
	rankBounds
	rankEnum
	rankMatch
	rankOther
)

// keywordMatch is the errorMessage keyword for cross-field equality, the same
// keyword the schema spells it with.
const keywordMatch = "const"

type errorKind struct {
	keyword string
	rank    int
}

// errorKinds maps library error types to schema keywords.
var errorKinds = map[string]errorKind{
	"required":                        {keyword: "required", rank: rankRequired},
	"invalid_type":                    {keyword: "type", rank: rankType},
	"format":                          {keyword: "format", rank: rankFormat},
	"pattern":                         {keyword: "pattern", rank: rankFormat},
	"string_gte":                      {keyword: "minLength", rank: rankBounds},
	"string_lte":                      {keyword: "maxLength", rank: rankBounds},
	"number_gte":                      {keyword: "minimum", rank: rankBounds},
	"number_gt":                       {keyword: "exclusiveMinimum", rank: rankBounds},
	"number_lte":                      {keyword: "maximum", rank: rankBounds},
	"number_lt":                       {keyword: "exclusiveMaximum", rank: rankBounds},
	"multiple_of":                     {keyword: "multipleOf", rank: rankBounds},
	"array_min_items":                 {keyword: "minItems", rank: rankBounds},
	"array_max_items":                 {keyword: "maxItems", rank: rankBounds},
	"unique":                          {keyword: "uniqueItems", rank: rankBounds},
	"enum":                            {keyword: "enum", rank: rankEnum},
	"const":                           {keyword: "const", rank: rankEnum},
	"additional_property_not_allowed": {keyword: "additionalProperties", rank: rankOther},
}

// wrapperErrors summarise errors already reported for nested constraints.
var wrapperErrors = map[string]struct{}{
	"condition_then": {},
	"condition_else": {},
	"number_all_of":  {},
	"number_any_of":  {},
	"number_one_of":  {},
}

func kindOf(errType string) errorKind {
	if kind, ok := errorKinds[errType]; ok {
		return kind
	}
	return errorKind{keyword: errType, rank: rankOther}
}

// Catalog holds the built-in messages used when a schema has no errorMessage
// for a failing keyword. Keys are schema keywords; the const entry is a
// format string receiving the name of the field to match.
type Catalog map[string]string

// DefaultCatalog returns the built-in messages.
func DefaultCatalog() Catalog {
	return Catalog{
		"required":   "This field is required",
		keywordMatch: "Must match %s",
	}
}

func (c Catalog) merged(overrides Catalog) Catalog {
	out := make(Catalog, len(c)+len(overrides))
	for key, msg := range c {
		out[key] = msg
	}
	for key, msg := range overrides {
		if strings.TrimSpace(msg) != "" {
			out[key] = msg
		}
	}
	return out
}

// message resolves the text for a failed keyword at path: the field's own
// errorMessage, the parent's errorMessage.required entry, the catalog, then
// the library description.
func (v *Validator) message(path, keyword, description string) string {
	node, _ := v.doc.Lookup(path)
	if node != nil {
		if msg := node.Meta().Messages.For(keyword); msg != "" {
			return msg
		}
	}
	if keyword == "required" {
		parentPath, field := splitLast(path)
		if parent, _ := v.doc.Lookup(parentPath); parent != nil {
			messages := parent.Meta().Messages
			if msg := strings.TrimSpace(messages.Required[field]); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(messages.Keywords["required"]); msg != "" {
				return msg
			}
		}
	}
	if msg := strings.TrimSpace(v.catalog[keyword]); msg != "" && keyword != keywordMatch {
		return msg
	}
	if msg := strings.TrimSpace(description); msg != "" {
		return msg
	}
	return fmt.Sprintf("Invalid value (%s)", keyword)
}

func (v *Validator) matchMessage(path, target string) string {
	if node, _ := v.doc.Lookup(path); node != nil {
		if msg := node.Meta().Messages.For(keywordMatch); msg != "" {
			return msg
		}
	}
	label := target
	if _, last := splitLast(target); last != "" {
		label = last
	}
	if node, _ := v.doc.Lookup(target); node != nil && node.Meta().Title != "" {
		label = node.Meta().Title
	}
	format := v.catalog[keywordMatch]
	if !strings.Contains(format, "%s") {
		return format
	}
	return fmt.Sprintf(format, label)
}

func splitLast(path string) (string, string) {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
