package validation

import (
	"errors"
	"strings"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// SchemaIssue is a problem found in a schema document.
type SchemaIssue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SchemaValidationResult is the outcome of ValidateSchema.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// ValidateSchema parses and compiles raw so authoring tools can preview
// problems before a form uses the schema.
func ValidateSchema(raw []byte) SchemaValidationResult {
	doc, err := schema.Parse(raw)
	if err != nil {
		return SchemaValidationResult{Issues: []SchemaIssue{issueFromError(err)}}
	}
	return ValidateDocument(doc)
}

// ValidateDocument compiles an already parsed document.
func ValidateDocument(doc schema.Document) SchemaValidationResult {
	if _, err := Compile(doc); err != nil {
		return SchemaValidationResult{Issues: []SchemaIssue{issueFromError(err)}}
	}
	return SchemaValidationResult{Valid: true}
}

func issueFromError(err error) SchemaIssue {
	if err == nil {
		return SchemaIssue{Message: "unknown error"}
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return SchemaIssue{Path: schemaErr.Pointer, Field: schemaErr.Field, Message: schemaErr.Message}
	}
	var refErr *schema.RefError
	if errors.As(err, &refErr) {
		msg := strings.TrimPrefix(refErr.Error(), "schema: ")
		return SchemaIssue{Message: msg}
	}

	msg := strings.TrimSpace(err.Error())
	pointer := extractJSONPointer(msg)
	if pointer != "" {
		msg = strings.Replace(msg, " at "+pointer, "", 1)
	}
	msg = strings.TrimPrefix(msg, "schema: ")
	msg = strings.TrimPrefix(msg, "validation: ")
	return SchemaIssue{
		Path:    pointer,
		Field:   fieldPathFromPointer(pointer),
		Message: strings.TrimSpace(msg),
	}
}

func extractJSONPointer(message string) string {
	if idx := strings.LastIndex(message, " at #"); idx >= 0 {
		return trimPointer(message[idx+4:])
	}
	if idx := strings.LastIndex(message, "#/"); idx >= 0 {
		return trimPointer(message[idx:])
	}
	return ""
}

func trimPointer(pointer string) string {
	return strings.TrimSpace(strings.TrimRight(pointer, ".)];,"))
}

// fieldPathFromPointer maps a schema JSON pointer such as
// "#/properties/owners/items/properties/name" to the dotted field path
// "owners.name". Keyword segments that do not name data are dropped.
func fieldPathFromPointer(pointer string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(pointer), "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := unescape(parts[idx])
		switch segment {
		case "properties":
			if idx+1 < len(parts) {
				out = append(out, unescape(parts[idx+1]))
				idx++
			}
		case "items":
			if idx+1 < len(parts) && isNumeric(parts[idx+1]) {
				out = append(out, parts[idx+1])
				idx++
			}
		case "allOf", "anyOf", "oneOf":
			if idx+1 < len(parts) && isNumeric(parts[idx+1]) {
				idx++
			}
		case "definitions", "$defs":
			if idx+1 < len(parts) {
				idx++
			}
		case "if", "then", "else", "additionalItems", "":
		default:
			out = append(out, segment)
		}
	}
	return strings.Join(out, ".")
}

func unescape(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
