// Package redact keeps credentials out of the host's logs. Modules that hold
// secrets register them with the shared Redactor ("log.redactor" service),
// and the root logger runs every record through a Handler.
package redact

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces every redacted value.
const Placeholder = "***REDACTED***"

// Redactor replaces secrets in strings. It matches known credential shapes
// by pattern and registered secrets literally. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New returns a Redactor loaded with DefaultPatterns.
func New() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// DefaultPatterns matches credentials that show up in HTTP plumbing:
// Authorization header values and user:password pairs in URLs.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:bearer|basic)\s+[A-Za-z0-9\-._~+/]+=*`),
		regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`),
	}
}

// AddLiteral registers a secret value. Short values are ignored, since
// replacing them would mangle unrelated text.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret replaced by Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			if strings.HasPrefix(m, "://") {
				return "://" + Placeholder + "@"
			}
			return Placeholder
		})
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	return s
}
