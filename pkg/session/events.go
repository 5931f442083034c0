package session

import (
	"sort"

	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// EventKind identifies a session notification.
type EventKind int

const (
	EventModelChanged EventKind = iota + 1
	EventValidated
	EventReset
	EventSchemaChanged
)

func (k EventKind) String() string {
	switch k {
	case EventModelChanged:
		return "model_changed"
	case EventValidated:
		return "validated"
	case EventReset:
		return "reset"
	case EventSchemaChanged:
		return "schema_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Path is set for model changes; Errors is
// a copy of the error map at the time of the event.
type Event struct {
	Kind   EventKind
	Path   string
	Errors validation.ErrorMap
}

// Subscribe registers fn for session events and returns a function removing
// it. Mutating the model from fn fails with ErrReentrantMutation.
func (s *Session) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	return func() {
		delete(s.subscribers, id)
	}
}

func (s *Session) emit(kind EventKind, path string) {
	if len(s.subscribers) == 0 {
		return
	}
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	event := Event{Kind: kind, Path: path, Errors: s.errors.Clone()}
	prev := s.busy
	s.busy = true
	defer func() { s.busy = prev }()
	for _, id := range ids {
		if fn, ok := s.subscribers[id]; ok {
			fn(event)
		}
	}
}
