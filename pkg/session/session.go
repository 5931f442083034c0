package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/condition"
	"github.com/goliatone/go-formvalidate/pkg/filter"
	"github.com/goliatone/go-formvalidate/pkg/model"
	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/store"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// ErrReentrantMutation is returned when the model is mutated while the
// session is validating or notifying subscribers.
var ErrReentrantMutation = errors.New("session: model mutated during validation or notification")

// Session is the stateful object a form interacts with.
type Session struct {
	id          string
	store       *store.Store
	backend     *schema.Document
	model       model.Model
	initial     map[string]any
	hasInitial  bool
	fieldsPaths []string
	extras      map[string]any
	policy      Policy
	cache       *validation.Cache
	catalog     validation.Catalog
	sanitizer   validation.Sanitizer
	evaluator   condition.Evaluator
	logger      *zap.Logger

	errors    validation.ErrorMap
	validated bool
	schemaErr error
	filtered  *schema.Document
	touched   map[string]struct{}
	server    validation.ServerErrors

	busy        bool
	subscribers map[int]func(Event)
	nextID      int
}

// New creates a session for the frontend schema. It never fails: a schema
// that cannot be used is logged and reported through SchemaError and a
// form-level "schema error" once validated.
func New(frontend schema.Document, options ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		logger:      zap.NewNop(),
		errors:      validation.ErrorMap{},
		touched:     make(map[string]struct{}),
		subscribers: make(map[int]func(Event)),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.cache == nil {
		s.cache = validation.NewCache(validation.DefaultCacheSize)
	}
	if s.sanitizer == nil {
		s.sanitizer = validation.StrictSanitizer()
	}
	s.logger = s.logger.With(zap.String("session", s.id))

	s.store = store.New(frontend, store.WithLogger(s.logger), store.WithBackend(s.backend))
	s.backend = nil
	s.store.Subscribe(s.schemaChanged)

	if s.hasInitial {
		s.model = model.New(s.initial)
	} else {
		built, err := model.Build(s.store.Effective())
		if err != nil {
			s.fail(fmt.Errorf("session: build model: %w", err))
			built = model.Model{}
		}
		s.model = built
	}
	s.initial = nil

	if s.policy == PolicyEager {
		s.run()
	}
	return s
}

// ID returns the session identifier used in log entries.
func (s *Session) ID() string { return s.id }

// Policy reports the validation policy.
func (s *Session) Policy() Policy { return s.policy }

// Model returns a snapshot of the model; changes go through Set and Delete.
func (s *Session) Model() model.Model { return s.model.Snapshot() }

// Get returns a copy of the value at path.
func (s *Session) Get(path string) (any, bool) {
	value, ok := s.model.Get(path)
	if !ok {
		return nil, false
	}
	return model.DeepCopy(value), true
}

// Set writes value at path, clears the server errors recorded for it and
// revalidates according to the policy.
func (s *Session) Set(path string, value any) error {
	if s.busy {
		return ErrReentrantMutation
	}
	if err := s.model.Set(path, model.DeepCopy(value)); err != nil {
		return err
	}
	s.mutated(path)
	return nil
}

// Delete removes the value at path.
func (s *Session) Delete(path string) error {
	if s.busy {
		return ErrReentrantMutation
	}
	if err := s.model.Delete(path); err != nil {
		return err
	}
	s.mutated(path)
	return nil
}

// Touched reports whether path was written since the session started.
func (s *Session) Touched(path string) bool {
	_, ok := s.touched[path]
	return ok
}

func (s *Session) mutated(path string) {
	s.filtered = nil
	s.touched[path] = struct{}{}
	s.server.Clear(path)

	revalidate := s.policy == PolicyEager || (s.validated && !s.errors.Valid())
	if revalidate {
		s.run()
	}
	s.emit(EventModelChanged, path)
	if revalidate {
		s.emit(EventValidated, "")
	}
}

// Validate runs the validator now, replaces the error map and switches the
// session into live correction. It returns a copy of the new map.
func (s *Session) Validate() validation.ErrorMap {
	if s.busy {
		return s.errors.Clone()
	}
	s.validated = true
	s.run()
	s.emit(EventValidated, "")
	return s.errors.Clone()
}

// Validated reports whether Validate ran since construction or the last Reset.
func (s *Session) Validated() bool { return s.validated }

// IsValid reports whether the error map is empty and the schema usable.
func (s *Session) IsValid() bool {
	return s.errors.Valid() && s.schemaErr == nil
}

// Errors returns a copy of the error map.
func (s *Session) Errors() validation.ErrorMap { return s.errors.Clone() }

// SchemaError returns the last schema failure, nil once a run succeeds.
func (s *Session) SchemaError() error { return s.schemaErr }

// Reset clears the error map and leaves live correction, keeping the model.
func (s *Session) Reset() {
	s.errors = validation.ErrorMap{}
	s.validated = false
	s.emit(EventReset, "")
}

// ErrorText returns the message to display for path: the client error when
// there is one, otherwise the first server message.
func (s *Session) ErrorText(path string) string {
	if msg, ok := s.errors[path]; ok {
		return msg
	}
	if msgs := s.server.For(path); len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// SetServerErrors records the error payload returned by the backend after a
// submit. Keys are mapped onto schema fields; unknown keys become form
// errors.
func (s *Session) SetServerErrors(payload map[string][]string) {
	s.server = validation.MapServerErrors(s.SchemaObject(), payload, validation.WithSanitizer(s.sanitizer))
	s.logger.Debug("Server errors recorded",
		zap.Int("fields", len(s.server.Fields)),
		zap.Int("form", len(s.server.Form)))
}

// ServerErrors returns a copy of the recorded server errors.
func (s *Session) ServerErrors() validation.ServerErrors { return s.server.Clone() }

// FormErrors returns server messages that belong to no field.
func (s *Session) FormErrors() []string {
	return append([]string(nil), s.server.Form...)
}

// SetBackendSchema replaces the backend fragment. Nil removes it.
func (s *Session) SetBackendSchema(doc *schema.Document) error {
	if s.busy {
		return ErrReentrantMutation
	}
	s.store.SetBackend(doc)
	return nil
}

// SchemaObject returns the effective schema filtered against the current
// model. When filtering fails the unfiltered effective schema is returned.
func (s *Session) SchemaObject() schema.Document {
	doc, err := s.filter()
	if err != nil {
		return s.store.Effective()
	}
	return doc.Clone()
}

// Options returns the choices offered for path: enum values with their
// labels, or those of the item schema for lists.
func (s *Session) Options(path string) []schema.Choice {
	doc := s.SchemaObject()
	node, err := doc.Lookup(path)
	if err != nil || node == nil {
		return nil
	}
	if arr, ok := node.(*schema.ArrayNode); ok && arr.Items != nil {
		if node, err = doc.Resolve(arr.Items); err != nil {
			return nil
		}
	}
	scalar, ok := node.(*schema.ScalarNode)
	if !ok {
		return nil
	}
	return scalar.Choices()
}

// RequiredFieldPaths lists the required leaves of the filtered schema.
func (s *Session) RequiredFieldPaths() []string {
	paths, err := s.SchemaObject().RequiredPaths()
	if err != nil {
		s.logger.Warn("Required paths unavailable", zap.Error(err))
		return nil
	}
	return paths
}

func (s *Session) schemaChanged(schema.Document) {
	s.filtered = nil
	s.emit(EventSchemaChanged, "")
	if s.validated || s.policy == PolicyEager {
		s.run()
		s.emit(EventValidated, "")
	}
}

func (s *Session) filter() (schema.Document, error) {
	if s.filtered != nil {
		return *s.filtered, nil
	}
	doc, err := filter.Apply(s.store.Effective(), s.model.Map(), filter.Options{
		FieldsPaths: s.fieldsPaths,
		Extras:      s.extras,
		Evaluator:   s.evaluator,
		Cache:       s.cache,
	})
	if err != nil {
		return schema.Document{}, err
	}
	s.filtered = &doc
	return doc, nil
}

// run filters, compiles and validates. The filtered schema is kept until the
// next mutation or schema change.
func (s *Session) run() {
	prev := s.busy
	s.busy = true
	defer func() { s.busy = prev }()

	s.filtered = nil
	doc, err := s.filter()
	if err != nil {
		s.fail(err)
		return
	}

	validator, err := s.cache.Compile(doc)
	if err != nil {
		s.fail(err)
		return
	}
	errs, err := validator.WithCatalog(s.catalog).Validate(s.model.Map())
	if err != nil {
		s.fail(err)
		return
	}
	s.schemaErr = nil
	s.errors = errs
	s.logger.Debug("Validated", zap.Int("errors", len(errs)), zap.Stringer("policy", s.policy))
}

func (s *Session) fail(err error) {
	s.schemaErr = err
	if s.validated || s.policy == PolicyEager {
		s.errors = validation.SchemaErrorMap()
	}
	s.logger.Error("Schema error", zap.Error(err))
}
