// Package keywords finds configured technology keywords in free text.
package keywords

import (
	"sort"
	"strings"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

// Matcher tests text against a fixed vocabulary. It is safe for concurrent use.
type Matcher struct {
	terms []term
}

type term struct {
	name  string
	lower string
}

// NewMatcher builds a Matcher. Blank and case-insensitive duplicate entries are dropped.
func NewMatcher(vocabulary []string) *Matcher {
	normalized := crawler.NormalizeKeywords(vocabulary)
	terms := make([]term, 0, len(normalized))
	for _, kw := range normalized {
		terms = append(terms, term{name: kw, lower: strings.ToLower(kw)})
	}
	return &Matcher{terms: terms}
}

// Match returns the vocabulary entries contained in text, case-insensitively, sorted.
func (m *Matcher) Match(text string) []string {
	found := []string{}
	if text == "" {
		return found
	}
	lower := strings.ToLower(text)
	for _, t := range m.terms {
		if strings.Contains(lower, t.lower) {
			found = append(found, t.name)
		}
	}
	sort.Strings(found)
	return found
}

// Vocabulary returns a copy of the normalized vocabulary.
func (m *Matcher) Vocabulary() []string {
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.name
	}
	return out
}
