// Package prompt fills a validation session interactively: every field of
// the filtered schema is asked once, then fields that fail validation are
// asked again with their error message until the form is valid.
package prompt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formvalidate/pkg/schema"
	"github.com/goliatone/go-formvalidate/pkg/session"
	"github.com/goliatone/go-formvalidate/pkg/validation"
)

// DefaultRounds bounds how often invalid fields are asked again.
const DefaultRounds = 3

// Filler drives a Driver against a session.
type Filler struct {
	driver Driver
	logger *zap.Logger
	rounds int
}

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRounds sets the number of correction rounds after the first pass.
func WithRounds(rounds int) Option {
	return func(f *Filler) {
		if rounds >= 0 {
			f.rounds = rounds
		}
	}
}

// New builds a Filler using survey unless another driver is supplied.
func New(options ...Option) *Filler {
	f := &Filler{
		logger: zap.NewNop(),
		rounds: DefaultRounds,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	return f
}

// Fill asks for every field, validates and re-asks failing fields. It
// returns the final error map; ErrIncomplete is wrapped when the form is
// still invalid once the rounds are used up.
func (f *Filler) Fill(ctx context.Context, s *session.Session) (validation.ErrorMap, error) {
	asked := make(map[string]struct{})
	for {
		leaf, ok, err := nextLeaf(s, asked)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		asked[leaf.Path] = struct{}{}
		if err := f.ask(ctx, s, leaf); err != nil {
			return nil, err
		}
	}

	errs := s.Validate()
	for round := 0; round < f.rounds && !s.IsValid(); round++ {
		if s.SchemaError() != nil {
			return errs, s.SchemaError()
		}
		fields, err := fieldIndex(s)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("Correction round", zap.Int("round", round+1), zap.Int("errors", len(errs)))
		var order []string
		notices := make(map[string][]string)
		for _, path := range errs.Paths() {
			leaf, ok := owningField(fields, path)
			if !ok {
				if err := f.driver.Info(ctx, formatNotice(path, errs[path])); err != nil {
					return nil, err
				}
				continue
			}
			if _, seen := notices[leaf.Path]; !seen {
				order = append(order, leaf.Path)
			}
			notices[leaf.Path] = append(notices[leaf.Path], formatNotice(leafTitle(leaf), errs[path]))
		}
		for _, path := range order {
			for _, notice := range notices[path] {
				if err := f.driver.Info(ctx, notice); err != nil {
					return nil, err
				}
			}
			if err := f.ask(ctx, s, fields[path]); err != nil {
				return nil, err
			}
		}
		errs = s.Errors()
	}
	if !s.IsValid() {
		return errs, fmt.Errorf("%w: %d field(s) with errors", ErrIncomplete, len(errs))
	}
	return errs, nil
}

// nextLeaf recomputes the filtered fields so fields revealed by earlier
// answers are asked too. A list of plain values is one field.
func nextLeaf(s *session.Session, asked map[string]struct{}) (schema.Leaf, bool, error) {
	fields, err := s.SchemaObject().Fields()
	if err != nil {
		return schema.Leaf{}, false, fmt.Errorf("prompt: list fields: %w", err)
	}
	for _, leaf := range fields {
		if _, done := asked[leaf.Path]; done || leaf.Path == "" {
			continue
		}
		return leaf, true, nil
	}
	return schema.Leaf{}, false, nil
}

func fieldIndex(s *session.Session) (map[string]schema.Leaf, error) {
	fields, err := s.SchemaObject().Fields()
	if err != nil {
		return nil, fmt.Errorf("prompt: list fields: %w", err)
	}
	out := make(map[string]schema.Leaf, len(fields))
	for _, leaf := range fields {
		if leaf.Path != "" {
			out[leaf.Path] = leaf
		}
	}
	return out, nil
}

// owningField finds the field an error path belongs to: the path itself or
// its nearest ancestor, so "tags.1" maps to the "tags" list.
func owningField(fields map[string]schema.Leaf, path string) (schema.Leaf, bool) {
	for {
		if leaf, ok := fields[path]; ok {
			return leaf, true
		}
		cut := strings.LastIndex(path, ".")
		if cut < 0 {
			return schema.Leaf{}, false
		}
		path = path[:cut]
	}
}

func (f *Filler) ask(ctx context.Context, s *session.Session, leaf schema.Leaf) error {
	current, _ := s.Get(leaf.Path)
	message := leafTitle(leaf)
	if leaf.Required {
		message += " *"
	}
	help := leaf.Node.Meta().Description

	switch node := leaf.Node.(type) {
	case *schema.ScalarNode:
		value, err := f.askScalar(ctx, node, message, help, leaf.Path, current)
		if err != nil {
			return err
		}
		return s.Set(leaf.Path, value)
	case *schema.ArrayNode:
		scalar, ok := s.SchemaObject().ScalarItems(node)
		if !ok {
			return f.driver.Info(ctx, fmt.Sprintf("Skipping %s: only lists of plain values can be prompted", leaf.Path))
		}
		raw, err := f.driver.Input(ctx, InputConfig{
			Message:   message + " (comma separated)",
			Help:      help,
			Default:   joinList(current),
			Validator: listValidator(scalar),
		})
		if err != nil {
			return err
		}
		values, err := parseList(scalar, raw)
		if err != nil {
			return err
		}
		return s.Set(leaf.Path, values)
	default:
		f.logger.Debug("Skipping field", zap.String("path", leaf.Path), zap.String("kind", string(leaf.Node.Kind())))
		return nil
	}
}

func (f *Filler) askScalar(ctx context.Context, node *schema.ScalarNode, message, help, path string, current any) (any, error) {
	if choices := node.Choices(); len(choices) > 0 {
		labels := make([]string, len(choices))
		selected := -1
		for idx, choice := range choices {
			labels[idx] = choice.Label
			if current != nil && fmt.Sprint(choice.Value) == fmt.Sprint(current) {
				selected = idx
			}
		}
		idx, err := f.driver.Select(ctx, SelectConfig{Message: message, Options: labels, DefaultIndex: selected, Help: help})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(choices) {
			return nil, fmt.Errorf("prompt: invalid choice for %s", path)
		}
		return choices[idx].Value, nil
	}

	switch node.Type {
	case "boolean":
		def, _ := current.(bool)
		return f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: help})
	case "integer", "number":
		raw, err := f.driver.Input(ctx, InputConfig{
			Message:   message,
			Help:      help,
			Default:   formatValue(current),
			Validator: func(text string) error { _, err := parseNumber(node.Type, text); return err },
		})
		if err != nil {
			return nil, err
		}
		return parseNumber(node.Type, raw)
	}

	cfg := InputConfig{Message: message, Help: help, Default: formatValue(current)}
	if isSecret(node, path) {
		cfg.Default = ""
		return f.driver.Password(ctx, cfg)
	}
	return f.driver.Input(ctx, cfg)
}

func leafTitle(leaf schema.Leaf) string {
	if title := strings.TrimSpace(leaf.Node.Meta().Title); title != "" {
		return title
	}
	return leaf.Path
}

func formatNotice(label, msg string) string {
	if label == "" {
		return msg
	}
	return label + ": " + msg
}

func isSecret(node *schema.ScalarNode, path string) bool {
	if node.Format == "password" {
		return true
	}
	name := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		name = path[idx+1:]
	}
	return strings.Contains(strings.ToLower(name), "password")
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// parseNumber returns nil for blank input so optional numbers stay absent.
func parseNumber(kind, text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if kind == "integer" {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", text)
		}
		return n, nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", text)
	}
	return n, nil
}

func listValidator(item *schema.ScalarNode) func(string) error {
	return func(text string) error {
		_, err := parseList(item, text)
		return err
	}
}

func parseList(item *schema.ScalarNode, text string) ([]any, error) {
	out := []any{}
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch item.Type {
		case "integer", "number":
			n, err := parseNumber(item.Type, part)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		case "boolean":
			b, err := strconv.ParseBool(part)
			if err != nil {
				return nil, fmt.Errorf("%q is not true or false", part)
			}
			out = append(out, b)
		default:
			out = append(out, part)
		}
	}
	return out, nil
}

func joinList(value any) string {
	list, ok := value.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, formatValue(item))
	}
	return strings.Join(parts, ", ")
}
