package store

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report rejected backend fragments.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBackend sets the initial backend fragment.
func WithBackend(backend *schema.Document) Option {
	return func(s *Store) {
		s.backend = cloneDoc(backend)
	}
}

// Store holds both schema sources. The effective schema is computed lazily
// and memoised until either source changes. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	frontend    schema.Document
	backend     *schema.Document
	effective   *schema.Document
	logger      *zap.Logger
	subscribers map[int]func(schema.Document)
	nextID      int
}

// New returns a store seeded with the frontend schema.
func New(frontend schema.Document, options ...Option) *Store {
	s := &Store{
		frontend:    frontend.Clone(),
		logger:      zap.NewNop(),
		subscribers: make(map[int]func(schema.Document)),
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	return s
}

// Frontend returns a copy of the frontend schema.
func (s *Store) Frontend() schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frontend.Clone()
}

// Backend returns a copy of the backend fragment, nil when unset.
func (s *Store) Backend() *schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDoc(s.backend)
}

// SetFrontend replaces the frontend schema and notifies subscribers.
func (s *Store) SetFrontend(doc schema.Document) {
	s.mu.Lock()
	s.frontend = doc.Clone()
	s.effective = nil
	s.mu.Unlock()
	s.notify()
}

// SetBackend replaces the backend fragment and notifies subscribers. Nil
// clears it.
func (s *Store) SetBackend(doc *schema.Document) {
	s.mu.Lock()
	s.backend = cloneDoc(doc)
	s.effective = nil
	s.mu.Unlock()
	s.notify()
}

// Effective returns the merged schema.
func (s *Store) Effective() schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLocked().Clone()
}

func (s *Store) effectiveLocked() schema.Document {
	if s.effective == nil {
		merged := merge(s.frontend, s.backend, s.logger)
		s.effective = &merged
		s.logger.Debug("Effective schema computed",
			zap.Bool("backend", s.backend != nil),
			zap.Int("definitions", len(merged.Definitions)))
	}
	return *s.effective
}

// Subscribe registers fn to receive the effective schema after every change
// and returns a function that removes it.
func (s *Store) Subscribe(fn func(schema.Document)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	if len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	effective := s.effectiveLocked()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(schema.Document), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(effective.Clone())
	}
}

func cloneDoc(doc *schema.Document) *schema.Document {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	return &out
}
