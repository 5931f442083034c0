package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FormKey is the ErrorMap key for errors that do not belong to a field.
const FormKey = ""

// SchemaErrorMessage is the form-level message shown when the schema itself
// cannot be compiled or applied.
const SchemaErrorMessage = "schema error"

// ErrorMap maps dotted field paths to one message each.
type ErrorMap map[string]string

// Valid reports whether the map is empty.
func (m ErrorMap) Valid() bool { return len(m) == 0 }

// Clone returns an independent copy; nil stays nil.
func (m ErrorMap) Clone() ErrorMap {
	if m == nil {
		return nil
	}
	out := make(ErrorMap, len(m))
	for path, msg := range m {
		out[path] = msg
	}
	return out
}

// Equal reports whether both maps hold the same entries.
func (m ErrorMap) Equal(other ErrorMap) bool {
	if len(m) != len(other) {
		return false
	}
	for path, msg := range m {
		if got, ok := other[path]; !ok || got != msg {
			return false
		}
	}
	return true
}

// Paths returns the field paths in sorted order.
func (m ErrorMap) Paths() []string {
	out := make([]string, 0, len(m))
	for path := range m {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// SchemaErrorMap is the map a session exposes when its schema is broken.
func SchemaErrorMap() ErrorMap {
	return ErrorMap{FormKey: SchemaErrorMessage}
}

// SchemaError reports a schema that cannot be compiled. Pointer is the JSON
// pointer of the offending keyword when known and Field the matching dotted
// field path.
type SchemaError struct {
	Pointer string
	Field   string
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("validation: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("invalid schema")
	}
	if e.Pointer != "" {
		fmt.Fprintf(&b, " at %s", e.Pointer)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

func newSchemaError(err error) *SchemaError {
	var existing *SchemaError
	if errors.As(err, &existing) {
		return existing
	}
	issue := issueFromError(err)
	return &SchemaError{
		Pointer: issue.Path,
		Field:   issue.Field,
		Message: issue.Message,
		Err:     err,
	}
}
