package document

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hyperifyio/dinecoach/internal/menu"
)

const (
	maxHeaderLen   = 40
	nameWordPrefix = 6
)

var (
	titleHeaderRe = regexp.MustCompile(`^\p{Lu}\p{Ll}+(?:\s\p{Lu}\p{Ll}+){0,4}$`)
	separatorRe   = regexp.MustCompile(`\s[-–—]\s`)
)

// Segment splits menu text into candidates line by line. Short upper-case or
// Title Case lines become the current section; lines with a dash separator
// or more than three words become items.
func Segment(text string) []menu.Candidate {
	out := []menu.Candidate{}
	section := ""
	for _, raw := range strings.Split(text, "\n") {
		line := menu.CollapseSpaces(raw)
		if line == "" {
			continue
		}
		if isHeader(line) {
			section = cases.Title(language.English).String(line)
			continue
		}
		if !isItem(line) {
			continue
		}
		name, desc := splitItem(line)
		c, ok := menu.Clean(menu.Candidate{Section: section, Name: menu.StripPrice(name), Description: menu.StripPrice(desc)})
		if ok {
			out = append(out, c)
		}
	}
	return menu.Dedupe(out, menu.ByNameDescription)
}

func isHeader(line string) bool {
	if len([]rune(line)) > maxHeaderLen {
		return false
	}
	return isAllUpper(line) || titleHeaderRe.MatchString(line)
}

// isAllUpper reports whether line has at least one cased letter and no
// lower-case ones.
func isAllUpper(line string) bool {
	cased := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func isItem(line string) bool {
	if separatorRe.MatchString(line) {
		return true
	}
	first, _ := utf8First(line)
	return len(strings.Fields(line)) > 3 && unicode.IsLetter(first)
}

func splitItem(line string) (string, string) {
	if loc := separatorRe.FindStringIndex(line); loc != nil {
		return line[:loc[0]], line[loc[1]:]
	}
	words := strings.Fields(line)
	n := min(nameWordPrefix, len(words))
	return strings.Join(words[:n], " "), strings.Join(words[n:], " ")
}

func utf8First(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}
