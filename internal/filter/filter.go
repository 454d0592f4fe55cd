// Package filter decides whether a post's text is worth forwarding.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PatternPrefix marks a keyword line that should be compiled as a regular
// expression instead of matched as a plain substring.
const PatternPrefix = "re:"

// Matcher is a case-insensitive any-of matcher over an ordered keyword list.
// It is immutable after construction.
type Matcher struct {
	terms []term
}

type term struct {
	keyword string
	lower   string         // set for plain substrings
	re      *regexp.Regexp // set for re: patterns
}

// New builds a Matcher. The keyword list must be non-empty and every
// pattern must compile.
func New(keywords []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, errors.New("filter: at least one keyword is required")
	}

	terms := make([]term, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}

		if pattern, ok := strings.CutPrefix(kw, PatternPrefix); ok {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("compile keyword pattern %q: %w", pattern, err)
			}
			terms = append(terms, term{keyword: kw, re: re})
			continue
		}

		terms = append(terms, term{keyword: kw, lower: strings.ToLower(kw)})
	}

	if len(terms) == 0 {
		return nil, errors.New("filter: all keywords are blank")
	}

	return &Matcher{terms: terms}, nil
}

// Matches reports whether any keyword occurs anywhere in text.
func (m *Matcher) Matches(text string) bool {
	_, ok := m.Match(text)
	return ok
}

// Match returns the first keyword, in configured order, that occurs in text.
func (m *Matcher) Match(text string) (string, bool) {
	textLower := strings.ToLower(text)
	for _, t := range m.terms {
		if t.re != nil {
			if t.re.MatchString(text) {
				return t.keyword, true
			}
			continue
		}
		if strings.Contains(textLower, t.lower) {
			return t.keyword, true
		}
	}
	return "", false
}

// Len returns the number of active keywords.
func (m *Matcher) Len() int {
	return len(m.terms)
}
