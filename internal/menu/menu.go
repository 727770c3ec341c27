// Package menu holds the candidate menu entry shared by the extractors and
// the ranking engine, together with its normalization and dedup rules.
package menu

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxNameLen rejects names that are clearly prose rather than dish names.
	MaxNameLen = 80
	// MaxCandidates caps every extraction result.
	MaxCandidates = 200
)

// priceRe matches currency amounts anywhere and bare decimal prices at the
// end of a line.
var priceRe = regexp.MustCompile(`(?:[$€£]\s*\d+(?:[.,]\d{1,2})?)|(?:\s\d{1,3}[.,]\d{2}\s*$)`)

// Candidate is an unranked menu line.
type Candidate struct {
	Section     string `json:"section"`
	Name        string `json:"item_name"`
	Description string `json:"description"`
}

// Text is the name and description joined for signal detection.
func (c Candidate) Text() string {
	return strings.TrimSpace(c.Name + " " + c.Description)
}

// KeyFunc derives the identity used for deduplication.
type KeyFunc func(Candidate) string

// BySectionName identifies a candidate by its section and name.
func BySectionName(c Candidate) string {
	return Fold(c.Section) + "\x00" + Fold(c.Name)
}

// ByNameDescription identifies a candidate by its name and description.
func ByNameDescription(c Candidate) string {
	return Fold(c.Name) + "\x00" + Fold(c.Description)
}

// Fold lower-cases s and collapses all whitespace runs so that keys compare
// equal regardless of spacing or compatibility forms.
func Fold(s string) string {
	return strings.ToLower(CollapseSpaces(norm.NFKC.String(s)))
}

// CollapseSpaces trims s and replaces each run of whitespace with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// StripPrice removes prices from s.
func StripPrice(s string) string {
	return CollapseSpaces(priceRe.ReplaceAllString(s, " "))
}

// Clean normalizes spacing in every field and reports whether the candidate is
// usable: it needs a name no longer than MaxNameLen.
func Clean(c Candidate) (Candidate, bool) {
	c.Section = CollapseSpaces(c.Section)
	c.Name = strings.Trim(CollapseSpaces(c.Name), " -–—:|·•")
	c.Description = strings.Trim(CollapseSpaces(c.Description), " -–—:|·•")
	if c.Name == "" || len([]rune(c.Name)) > MaxNameLen {
		return c, false
	}
	return c, true
}

// Dedupe keeps the first occurrence of each key, preserving order, and caps
// the result at MaxCandidates.
func Dedupe(in []Candidate, key KeyFunc) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, min(len(in), MaxCandidates))
	for _, c := range in {
		k := key(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}
