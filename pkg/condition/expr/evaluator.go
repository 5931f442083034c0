// Package expr implements a small expression language for conditional schema
// branches:
//
//	non_us
//	!non_us
//	country == "US" && age >= 18
//	(plan != "free" || extras.beta) && value != null
//
// Identifiers resolve against condition.Context: bare names read sibling
// values (dotted paths traverse nested objects), `value` is the value at the
// conditional's own position, `root.` reads from the whole model and
// `extras.` from caller supplied extras.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formvalidate/pkg/condition"
)

// Program is a parsed expression ready for repeated evaluation.
type Program struct {
	source string
	root   node
}

// Compile parses expression. An empty expression always holds.
func Compile(expression string) (*Program, error) {
	trimmed := strings.TrimSpace(expression)
	program := &Program{source: trimmed}
	if trimmed == "" {
		return program, nil
	}
	tokens, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, fmt.Errorf("condition/expr: unexpected token %q at %d", tok.text, tok.pos)
	}
	program.root = root
	return program, nil
}

// String returns the normalised source.
func (p *Program) String() string { return p.source }

// Eval runs the program against ctx.
func (p *Program) Eval(ctx condition.Context) (bool, error) {
	if p == nil || p.root == nil {
		return true, nil
	}
	return p.root.eval(ctx)
}

// Evaluator implements condition.Evaluator and memoises parsed programs by
// source text. It is safe for concurrent use.
type Evaluator struct {
	programs sync.Map
}

// New returns an Evaluator.
func New() *Evaluator { return &Evaluator{} }

var _ condition.Evaluator = (*Evaluator)(nil)

// Eval parses (or reuses) expression and evaluates it.
func (e *Evaluator) Eval(path, expression string, ctx condition.Context) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		if path != "" {
			return false, fmt.Errorf("%w (field %q)", err, path)
		}
		return false, err
	}
	return program.Eval(ctx)
}

func (e *Evaluator) program(expression string) (*Program, error) {
	key := strings.TrimSpace(expression)
	if cached, ok := e.programs.Load(key); ok {
		return cached.(*Program), nil
	}
	program, err := Compile(key)
	if err != nil {
		return nil, err
	}
	actual, _ := e.programs.LoadOrStore(key, program)
	return actual.(*Program), nil
}

type node interface {
	eval(ctx condition.Context) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type truthyNode struct{ ident string }

func (n truthyNode) eval(ctx condition.Context) (bool, error) {
	value, ok := lookup(ctx, n.ident)
	return ok && truthy(value), nil
}

type compareNode struct {
	ident string
	op    tokenKind
	lit   token
}

func (n compareNode) eval(ctx condition.Context) (bool, error) {
	value, _ := lookup(ctx, n.ident)
	switch n.lit.kind {
	case tokNull:
		switch n.op {
		case tokEq:
			return value == nil, nil
		case tokNeq:
			return value != nil, nil
		}
	case tokBool:
		want := n.lit.text == "true"
		got := coerceBool(value)
		switch n.op {
		case tokEq:
			return got == want, nil
		case tokNeq:
			return got != want, nil
		}
	case tokNumber:
		want, err := strconv.ParseFloat(n.lit.text, 64)
		if err != nil {
			return false, fmt.Errorf("condition/expr: invalid number %q", n.lit.text)
		}
		got, ok := coerceNumber(value)
		if !ok {
			return n.op == tokNeq, nil
		}
		return compareOrdered(n.op, compareFloat(got, want)), nil
	default:
		got, ok := coerceString(value)
		if !ok {
			return n.op == tokNeq, nil
		}
		return compareOrdered(n.op, strings.Compare(got, n.lit.text)), nil
	}
	return false, fmt.Errorf("condition/expr: operator %s is not defined for %s", operatorText[n.op], n.lit.text)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op tokenKind, cmp int) bool {
	switch op {
	case tokEq:
		return cmp == 0
	case tokNeq:
		return cmp != 0
	case tokLt:
		return cmp < 0
	case tokLte:
		return cmp <= 0
	case tokGt:
		return cmp > 0
	case tokGte:
		return cmp >= 0
	default:
		return false
	}
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) accept(kinds ...tokenKind) (token, bool) {
	tok, ok := p.peek()
	if !ok {
		return token{}, false
	}
	for _, kind := range kinds {
		if tok.kind == kind {
			p.pos++
			return tok, true
		}
	}
	return token{}, false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokOr); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokAnd); !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.accept(tokNot); ok {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if open, ok := p.accept(tokLParen); ok {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(tokRParen); !ok {
			return nil, fmt.Errorf("condition/expr: missing ')' for '(' at %d", open.pos)
		}
		return inner, nil
	}

	ident, ok := p.accept(tokIdent)
	if !ok {
		tok, more := p.peek()
		if !more {
			return nil, fmt.Errorf("condition/expr: unexpected end of expression")
		}
		return nil, fmt.Errorf("condition/expr: expected identifier at %d, got %q", tok.pos, tok.text)
	}

	op, ok := p.accept(tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte)
	if !ok {
		return truthyNode{ident: ident.text}, nil
	}
	lit, ok := p.accept(tokString, tokNumber, tokBool, tokNull, tokIdent)
	if !ok {
		return nil, fmt.Errorf("condition/expr: expected value after %s at %d", op.text, op.pos)
	}
	if lit.kind == tokIdent {
		// bare words on the right hand side are read as strings
		lit.kind = tokString
	}
	if (lit.kind == tokBool || lit.kind == tokNull) && op.kind != tokEq && op.kind != tokNeq {
		return nil, fmt.Errorf("condition/expr: operator %s is not defined for %s", op.text, lit.text)
	}
	return compareNode{ident: ident.text, op: op.kind, lit: lit}, nil
}

func lookup(ctx condition.Context, ident string) (any, bool) {
	ident = strings.TrimSpace(ident)
	lower := strings.ToLower(ident)
	switch {
	case ident == "":
		return nil, false
	case lower == "value":
		return ctx.Self, ctx.Self != nil
	case strings.HasPrefix(lower, "value."):
		return walk(ctx.Self, ident[len("value."):])
	case strings.HasPrefix(lower, "extras."):
		return lookupMap(ctx.Extras, ident[len("extras."):])
	case strings.HasPrefix(lower, "root."):
		return lookupMap(ctx.Root, ident[len("root."):])
	default:
		return lookupMap(ctx.Values, ident)
	}
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}
	return walk(values, path)
}

func walk(current any, path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, false
	}
	for _, part := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		if n, ok := coerceNumber(value); ok {
			return n != 0
		}
		return true
	}
}

func coerceBool(value any) bool {
	if s, ok := value.(string); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return truthy(value)
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}
