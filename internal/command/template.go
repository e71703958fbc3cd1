// Package command parses shell-command templates with %parameter%
// placeholders and renders them against an execution context.
package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingParameter is returned when a template references a parameter
// the execution context does not carry.
var ErrMissingParameter = errors.New("command: missing parameter")

// SyntaxError reports a malformed placeholder in a template.
type SyntaxError struct {
	Template string
	Offset   int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("command: template syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Token is either a literal run of text or a parameter reference.
type Token struct {
	Literal string
	Param   Parameter
}

// IsParam reports whether the token is a parameter reference.
func (t Token) IsParam() bool { return t.Param != "" }

// Template is a parsed command template. It is immutable.
type Template struct {
	source string
	tokens []Token
}

// Parse tokenizes a template. A placeholder is opened by '%' and names a
// parameter with ASCII letters. The bare form %name ends at the next
// non-letter; a directly following '%' is consumed as the closing marker.
// The braced form %{name} must be closed by '%' or end the template.
func Parse(src string) (*Template, error) {
	var (
		tokens []Token
		lit    strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, Token{Literal: lit.String()})
			lit.Reset()
		}
	}
	fail := func(offset int, format string, args ...any) (*Template, error) {
		return nil, &SyntaxError{Template: src, Offset: offset, Msg: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(src); {
		if src[i] != '%' {
			lit.WriteByte(src[i])
			i++
			continue
		}
		flush()
		open := i
		i++

		var name string
		if i < len(src) && src[i] == '{' {
			j := scanLetters(src, i+1)
			if j >= len(src) {
				return fail(open, "unterminated '{'")
			}
			if src[j] != '}' {
				return fail(j, "unexpected %q inside braces", src[j])
			}
			name = src[i+1 : j]
			i = j + 1
			if i < len(src) {
				if src[i] != '%' {
					return fail(i, "braced parameter %q must be closed by '%%'", name)
				}
				i++
			}
		} else {
			j := scanLetters(src, i)
			name = src[i:j]
			i = j
			if i < len(src) && src[i] == '%' {
				i++
			}
		}

		if name == "" {
			return fail(open, "empty parameter name")
		}
		spec, ok := Lookup(name)
		if !ok {
			return fail(open, "unknown parameter %q", name)
		}
		tokens = append(tokens, Token{Param: spec.Parameter})
	}
	flush()

	return &Template{source: src, tokens: tokens}, nil
}

func scanLetters(s string, i int) int {
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// String returns the template source.
func (t *Template) String() string { return t.source }

// Tokens returns a copy of the parsed tokens.
func (t *Template) Tokens() []Token {
	out := make([]Token, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Parameters returns the distinct parameters referenced, in order of first use.
func (t *Template) Parameters() []Parameter {
	var out []Parameter
	seen := make(map[Parameter]bool)
	for _, tok := range t.tokens {
		if tok.IsParam() && !seen[tok.Param] {
			seen[tok.Param] = true
			out = append(out, tok.Param)
		}
	}
	return out
}

// Resolver renders one parameter reference.
type Resolver func(Parameter) (string, error)

// Expand renders the template, calling resolve once per parameter reference.
func (t *Template) Expand(resolve Resolver) (string, error) {
	var b strings.Builder
	for _, tok := range t.tokens {
		if !tok.IsParam() {
			b.WriteString(tok.Literal)
			continue
		}
		v, err := resolve(tok.Param)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// ContextResolver renders literal and list parameters straight from ctx.
// It cannot render temp-file, job-id or flag parameters.
func ContextResolver(ctx Context) Resolver {
	return func(p Parameter) (string, error) {
		spec, ok := SpecFor(p)
		if !ok || !spec.Context || spec.Kind == KindTempFile {
			return "", fmt.Errorf("command: parameter %s needs an execution", p)
		}
		return ctx.String(p)
	}
}
