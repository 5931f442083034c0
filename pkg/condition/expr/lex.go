package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

var operatorText = map[tokenKind]string{
	tokEq:  "==",
	tokNeq: "!=",
	tokLt:  "<",
	tokLte: "<=",
	tokGt:  ">",
	tokGte: ">=",
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) emit(kind tokenKind, text string, width int) {
	l.tokens = append(l.tokens, token{kind: kind, text: text, pos: l.pos})
	l.pos += width
}

func (l *lexer) next() error {
	ch := l.peek(0)
	switch ch {
	case '(':
		l.emit(tokLParen, "(", 1)
	case ')':
		l.emit(tokRParen, ")", 1)
	case '!':
		if l.peek(1) == '=' {
			l.emit(tokNeq, "!=", 2)
		} else {
			l.emit(tokNot, "!", 1)
		}
	case '=':
		if l.peek(1) != '=' {
			return fmt.Errorf("condition/expr: unexpected '=' at %d; use '=='", l.pos)
		}
		l.emit(tokEq, "==", 2)
	case '<':
		if l.peek(1) == '=' {
			l.emit(tokLte, "<=", 2)
		} else {
			l.emit(tokLt, "<", 1)
		}
	case '>':
		if l.peek(1) == '=' {
			l.emit(tokGte, ">=", 2)
		} else {
			l.emit(tokGt, ">", 1)
		}
	case '&':
		if l.peek(1) != '&' {
			return fmt.Errorf("condition/expr: unexpected '&' at %d; use '&&'", l.pos)
		}
		l.emit(tokAnd, "&&", 2)
	case '|':
		if l.peek(1) != '|' {
			return fmt.Errorf("condition/expr: unexpected '|' at %d; use '||'", l.pos)
		}
		l.emit(tokOr, "||", 2)
	case '"', '\'':
		return l.lexString(ch)
	default:
		l.lexWord()
	}
	return nil
}

func (l *lexer) lexString(quote byte) error {
	start := l.pos
	idx := l.pos + 1
	escaped := false
	for idx < len(l.input) {
		c := l.input[idx]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			body := l.input[start+1 : idx]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return fmt.Errorf("condition/expr: invalid string literal at %d: %w", start, err)
			}
			l.tokens = append(l.tokens, token{kind: tokString, text: value, pos: start})
			l.pos = idx + 1
			return nil
		}
		idx++
	}
	return fmt.Errorf("condition/expr: unterminated string literal at %d", start)
}

func (l *lexer) lexWord() {
	start := l.pos
	for l.pos < len(l.input) && !isDelimiter(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	tok := token{text: word, pos: start}
	switch strings.ToLower(word) {
	case "true", "false":
		tok.kind = tokBool
		tok.text = strings.ToLower(word)
	case "null", "nil":
		tok.kind = tokNull
	default:
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			tok.kind = tokNumber
		} else {
			tok.kind = tokIdent
		}
	}
	l.tokens = append(l.tokens, tok)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	if isSpace(c) {
		return true
	}
	switch c {
	case '(', ')', '!', '=', '<', '>', '&', '|', '"', '\'':
		return true
	}
	return false
}
