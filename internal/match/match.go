// Package match turns raw match criteria into a case-insensitive value
// predicate.
package match

import (
	"strings"
	"unicode"
)

// Separator splits alternatives in multi-value criteria.
const Separator = "|"

const nullLiteral = "null"

var nullKey = foldKey(nullLiteral)

// Kind identifies which form of criteria a Spec holds.
type Kind int

const (
	// Single compares against one literal, untrimmed.
	Single Kind = iota
	// MultiSet compares against a set of trimmed alternatives, which may
	// include "null".
	MultiSet
	// NullOnly matches JSON null values only.
	NullOnly
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case MultiSet:
		return "multi"
	case NullOnly:
		return "null"
	default:
		return "unknown"
	}
}

// Spec is the normalized form of match criteria. It is built once per
// analysis and never changes afterwards.
type Spec struct {
	kind Kind
	raw  string
	set  map[string]struct{}
}

// Build normalizes raw criteria. It never fails: "null" (any case) selects
// null values only, criteria containing "|" become a set of trimmed
// alternatives, and anything else is compared as one literal, including the
// empty string.
func Build(raw string) *Spec {
	s := &Spec{raw: raw}

	switch {
	case strings.EqualFold(raw, nullLiteral):
		s.kind = NullOnly
	case strings.Contains(raw, Separator):
		s.kind = MultiSet
		s.set = make(map[string]struct{})
		for _, segment := range strings.Split(raw, Separator) {
			s.set[foldKey(strings.TrimSpace(segment))] = struct{}{}
		}
	default:
		s.kind = Single
	}

	return s
}

// Kind returns the criteria form.
func (s *Spec) Kind() Kind {
	return s.kind
}

// MatchesNull reports whether a JSON null value satisfies the criteria.
func (s *Spec) MatchesNull() bool {
	switch s.kind {
	case NullOnly:
		return true
	case MultiSet:
		_, ok := s.set[nullKey]
		return ok
	default:
		return false
	}
}

// MatchesText reports whether the textual form of a non-null value satisfies
// the criteria.
func (s *Spec) MatchesText(text string) bool {
	switch s.kind {
	case Single:
		return strings.EqualFold(text, s.raw)
	case MultiSet:
		_, ok := s.set[foldKey(text)]
		return ok
	default:
		return false
	}
}

// String returns the criteria as given to Build.
func (s *Spec) String() string {
	return s.raw
}

// foldKey maps every rune to the smallest rune of its simple case-folding
// orbit, so two strings have the same key exactly when strings.EqualFold
// reports them equal. Folding is rune for rune: "ß" does not match "SS".
func foldKey(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		b.WriteRune(canonicalFold(r))
	}
	return b.String()
}

func canonicalFold(r rune) rune {
	lowest := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < lowest {
			lowest = f
		}
	}
	return lowest
}
