package session

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/condition"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// Policy decides when mutations trigger validation.
type Policy int

const (
	// PolicyOnDemand validates on the first explicit Validate call and then
	// after every mutation while the form is invalid.
	PolicyOnDemand Policy = iota
	// PolicyEager validates after every mutation from construction on.
	PolicyEager
)

func (p Policy) String() string {
	switch p {
	case PolicyEager:
		return "eager"
	default:
		return "on-demand"
	}
}

// Option customises a Session.
type Option func(*Session)

// WithBackendSchema sets the server provided schema fragment.
func WithBackendSchema(doc *schema.Document) Option {
	return func(s *Session) {
		s.backend = doc
	}
}

// WithModel seeds the model. The map is deep copied; without it a skeleton is
// built from the effective schema.
func WithModel(values map[string]any) Option {
	return func(s *Session) {
		s.initial = values
		s.hasInitial = true
	}
}

// WithFieldsPaths restricts validation to the given dotted paths.
func WithFieldsPaths(paths ...string) Option {
	return func(s *Session) {
		s.fieldsPaths = append([]string(nil), paths...)
	}
}

// WithLogger injects the logger used for schema errors.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPolicy overrides the validation policy.
func WithPolicy(policy Policy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// WithCache shares a validator cache between sessions.
func WithCache(cache *validation.Cache) Option {
	return func(s *Session) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithExtras exposes caller data to x-when expressions as extras.*.
func WithExtras(extras map[string]any) Option {
	return func(s *Session) {
		s.extras = extras
	}
}

// WithEvaluator replaces the x-when expression evaluator.
func WithEvaluator(evaluator condition.Evaluator) Option {
	return func(s *Session) {
		s.evaluator = evaluator
	}
}

// WithMessages overrides the built-in messages used when a schema carries no
// errorMessage for a failing keyword.
func WithMessages(catalog validation.Catalog) Option {
	return func(s *Session) {
		s.catalog = catalog
	}
}

// WithSanitizer replaces the HTML sanitizer applied to server errors.
func WithSanitizer(sanitizer validation.Sanitizer) Option {
	return func(s *Session) {
		if sanitizer != nil {
			s.sanitizer = sanitizer
		}
	}
}
