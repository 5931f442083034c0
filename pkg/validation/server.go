package validation

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// ServerErrors splits a server error payload into field messages keyed by
// dotted schema paths and form-level messages.
type ServerErrors struct {
	Fields map[string][]string
	Form   []string
}

// For returns the messages attached to path.
func (s ServerErrors) For(path string) []string {
	return s.Fields[path]
}

// IsZero reports whether there are no messages at all.
func (s ServerErrors) IsZero() bool {
	return len(s.Fields) == 0 && len(s.Form) == 0
}

// Clone returns an independent copy.
func (s ServerErrors) Clone() ServerErrors {
	out := ServerErrors{Form: append([]string(nil), s.Form...)}
	if len(s.Fields) > 0 {
		out.Fields = make(map[string][]string, len(s.Fields))
		for path, msgs := range s.Fields {
			out.Fields[path] = append([]string(nil), msgs...)
		}
	}
	return out
}

// Clear drops the messages for path and everything below it, and reports
// whether anything was removed.
func (s *ServerErrors) Clear(path string) bool {
	removed := false
	for key := range s.Fields {
		if key == path || strings.HasPrefix(key, path+".") || path == "" {
			delete(s.Fields, key)
			removed = true
		}
	}
	return removed
}

// Sanitizer cleans server supplied text before it is shown.
type Sanitizer interface {
	Sanitize(string) string
}

// SanitizerFunc adapts a function into a Sanitizer.
type SanitizerFunc func(string) string

// Sanitize calls fn.
func (fn SanitizerFunc) Sanitize(s string) string { return fn(s) }

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictSanitizer strips all markup using bluemonday's strict policy.
func StrictSanitizer() Sanitizer {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// ServerOption tweaks MapServerErrors.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sanitizer Sanitizer
}

// WithSanitizer replaces the strict HTML sanitizer.
func WithSanitizer(sanitizer Sanitizer) ServerOption {
	return func(cfg *serverConfig) {
		if sanitizer != nil {
			cfg.sanitizer = sanitizer
		}
	}
}

// MapServerErrors normalises a server error payload into schema field
// paths. Keys may be dotted paths, JSON pointers ("/owners/0/name"), JSONPath
// ("$.owners[0].name") or carry envelope segments such as "body" or "data".
// Keys that match no schema field become form-level messages so nothing is
// lost.
func MapServerErrors(doc schema.Document, payload map[string][]string, options ...ServerOption) ServerErrors {
	cfg := serverConfig{sanitizer: StrictSanitizer()}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}

	out := ServerErrors{}
	if len(payload) == 0 {
		return out
	}
	known := collectTemplates(doc)

	for _, rawPath := range sortedPayloadKeys(payload) {
		messages := cleanMessages(payload[rawPath], cfg.sanitizer)
		if len(messages) == 0 {
			continue
		}
		mapped, formLevel := mapErrorPath(rawPath, known)
		if formLevel {
			out.Form = append(out.Form, messages...)
			continue
		}
		if out.Fields == nil {
			out.Fields = make(map[string][]string)
		}
		out.Fields[mapped] = dedupe(append(out.Fields[mapped], messages...))
	}
	out.Form = dedupe(out.Form)
	return out
}

func cleanMessages(messages []string, sanitizer Sanitizer) []string {
	cleaned := make([]string, 0, len(messages))
	for _, msg := range messages {
		if sanitizer != nil {
			msg = sanitizer.Sanitize(msg)
		}
		cleaned = append(cleaned, msg)
	}
	return dedupe(cleaned)
}

func dedupe(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		trimmed := strings.TrimSpace(msg)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// collectTemplates lists every addressable field path of the document.
// List items contribute a wildcard segment matching any index.
func collectTemplates(doc schema.Document) map[string]struct{} {
	out := make(map[string]struct{})
	root, err := doc.RootDefinition()
	if err != nil {
		return out
	}
	var walk func(node schema.Node, path []string, depth int)
	walk = func(node schema.Node, path []string, depth int) {
		if depth > 32 {
			return
		}
		resolved, err := doc.Resolve(node)
		if err != nil || resolved == nil {
			return
		}
		if len(path) > 0 {
			out[strings.Join(path, ".")] = struct{}{}
		}
		switch typed := resolved.(type) {
		case *schema.ObjectNode:
			props, err := doc.Properties(typed)
			if err != nil {
				return
			}
			for _, prop := range props {
				walk(prop.Node, append(path, prop.Name), depth+1)
			}
			for _, entry := range typed.AllOf {
				if cond, ok := entry.(*schema.ConditionalNode); ok {
					walk(cond.Then, path, depth+1)
					walk(cond.Else, path, depth+1)
				}
			}
		case *schema.ArrayNode:
			if typed.Items != nil {
				walk(typed.Items, append(path, wildcard), depth+1)
			}
			for idx, variant := range typed.Variants {
				walk(variant, append(path, strconv.Itoa(idx)), depth+1)
			}
		case *schema.ConditionalNode:
			walk(typed.Base, path, depth+1)
			walk(typed.Then, path, depth+1)
			walk(typed.Else, path, depth+1)
		}
	}
	walk(root, nil, 0)
	return out
}

func mapErrorPath(raw string, known map[string]struct{}) (string, bool) {
	if isFormLevelKey(raw) {
		return "", true
	}
	segments := parsePathSegments(raw)
	if len(segments) == 0 {
		return "", true
	}

	best := ""
	for _, variant := range segmentVariants(segments) {
		if path := longestMatchingPath(variant, known); path != "" && segmentCount(path) > segmentCount(best) {
			best = path
		}
	}
	if best == "" {
		return "", true
	}
	return best, false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	for len(clean) > 0 && strings.ContainsRune("#/.$", rune(clean[0])) {
		clean = clean[1:]
	}
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)
	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part == "" {
			continue
		}
		out = append(out, unescape(part))
	}
	return out
}

func segmentVariants(segments []string) [][]string {
	var variants [][]string
	seen := make(map[string]struct{}, 4)
	add := func(candidate []string) {
		if len(candidate) == 0 {
			return
		}
		key := strings.Join(candidate, ".")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, append([]string(nil), candidate...))
	}
	unwrapped := dropEnvelope(segments)
	add(segments)
	add(unwrapped)
	add(stripNumeric(segments))
	add(stripNumeric(unwrapped))
	return variants
}

var envelopeSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
	"properties": {},
}

func dropEnvelope(segments []string) []string {
	out := segments
	for len(out) > 0 {
		if _, ok := envelopeSegments[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func stripNumeric(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if !isNumeric(segment) {
			out = append(out, segment)
		}
	}
	return out
}

// longestMatchingPath returns the longest prefix of segments naming a known
// field. Numeric segments match wildcard item templates and keep their
// concrete index in the result.
func longestMatchingPath(segments []string, known map[string]struct{}) string {
	for end := len(segments); end > 0; end-- {
		prefix := segments[:end]
		if _, ok := known[strings.Join(prefix, ".")]; ok {
			return strings.Join(prefix, ".")
		}
		template := make([]string, len(prefix))
		for idx, segment := range prefix {
			if isNumeric(segment) {
				template[idx] = wildcard
			} else {
				template[idx] = segment
			}
		}
		if _, ok := known[strings.Join(template, ".")]; ok {
			return strings.Join(prefix, ".")
		}
	}
	return ""
}

func segmentCount(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}

func sortedPayloadKeys(payload map[string][]string) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
