// Package signals defines the fixed keyword vocabularies used to read menu
// text and the named detectors built on them. Every detector is a pure
// function from text to a hit count.
package signals

import (
	"sort"
	"strings"
	"unicode"
)

// Vocabulary is an immutable list of lower-case terms. Multi-word terms match
// as whole phrases.
type Vocabulary struct {
	name  string
	terms []string
}

func newVocabulary(name string, terms ...string) Vocabulary {
	return Vocabulary{name: name, terms: terms}
}

// Name is the evidence tag for the vocabulary.
func (v Vocabulary) Name() string { return v.name }

// Terms returns a copy of the vocabulary terms.
func (v Vocabulary) Terms() []string { return append([]string(nil), v.terms...) }

// Count returns how many distinct terms of v occur in t. A term found only
// inside a longer matched phrase ("yogurt" in "greek yogurt") is not counted.
func (v Vocabulary) Count(t Text) int {
	terms := append([]string(nil), v.terms...)
	sort.SliceStable(terms, func(i, j int) bool {
		return strings.Count(terms[i], " ") > strings.Count(terms[j], " ")
	})
	rest := t.padded
	n := 0
	for _, term := range terms {
		needle := " " + term + " "
		if !strings.Contains(rest, needle) {
			continue
		}
		n++
		if strings.Contains(term, " ") {
			rest = strings.ReplaceAll(rest, needle, " | ")
		}
	}
	return n
}

// First returns the first term of v found in t, in vocabulary order.
func (v Vocabulary) First(t Text) (string, bool) {
	for _, term := range v.terms {
		if t.Has(term) {
			return term, true
		}
	}
	return "", false
}

var (
	ProteinCues = newVocabulary("protein_cue",
		"chicken", "turkey", "steak", "beef", "salmon", "tuna", "shrimp", "prawn",
		"tofu", "tempeh", "egg", "eggs", "greek yogurt", "yogurt", "pork loin")

	LeanCooking = newVocabulary("lean_cooking",
		"grilled", "baked", "roasted", "seared", "steamed", "poached", "broiled",
		"oven", "charbroiled")

	RichCooking = newVocabulary("rich_cooking",
		"fried", "battered", "tempura", "creamy", "smothered", "cheesy",
		"buttered", "crispy")

	HighCalSauces = newVocabulary("high_cal_sauce",
		"alfredo", "hollandaise", "aioli", "butter", "cheese sauce", "mayo",
		"ranch", "queso", "cream")

	Starches = newVocabulary("starch",
		"rice", "pasta", "bun", "tortilla", "fries", "chips", "potato",
		"potatoes", "gnocchi", "couscous", "noodles", "bread")

	LowCalSauces = newVocabulary("low_cal_sauce",
		"salsa", "tomato sauce", "marinara", "chimichurri", "vinaigrette",
		"salsa verde")

	// FriedTerms gate the no_fried flag and the grilled swap.
	FriedTerms = newVocabulary("fried",
		"fried", "battered", "tempura", "fries")

	GlutenTerms = newVocabulary("gluten",
		"flour", "pasta", "batter", "battered", "breaded", "bread", "bun",
		"noodles", "crust")

	DairyTerms = newVocabulary("dairy",
		"cheese", "cream", "butter", "yogurt", "alfredo", "queso")
)

// Estimation lists the vocabularies counted towards estimate confidence.
var Estimation = []Vocabulary{ProteinCues, LeanCooking, RichCooking, HighCalSauces, Starches, LowCalSauces}

// Text is menu text normalized for whole-word matching: lower case, every
// non-alphanumeric rune replaced by a space, padded with one space each side.
type Text struct {
	padded string
}

// Normalize prepares s for detection.
func Normalize(s string) Text {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return Text{padded: b.String()}
}

// Has reports whether term occurs in t as a whole word or phrase.
func (t Text) Has(term string) bool {
	return strings.Contains(t.padded, " "+term+" ")
}

// String returns the normalized text without padding.
func (t Text) String() string { return strings.TrimSpace(t.padded) }

// Detector maps text to a hit count.
type Detector func(Text) int

// Detectors composed by the estimator, scorer and modifier recommender.
var (
	ProteinHits  Detector = ProteinCues.Count
	LeanHits     Detector = LeanCooking.Count
	RichHits     Detector = RichCooking.Count
	SauceHits    Detector = HighCalSauces.Count
	StarchHits   Detector = Starches.Count
	LowSauceHits Detector = LowCalSauces.Count
	FriedHits    Detector = FriedTerms.Count
	GlutenHits   Detector = GlutenTerms.Count
	DairyHits    Detector = DairyTerms.Count
)

// Hits is the per-vocabulary hit count of one text.
type Hits struct {
	Protein  int
	Lean     int
	Rich     int
	Sauce    int
	Starch   int
	LowSauce int
}

// Detect runs every estimation detector over t.
func Detect(t Text) Hits {
	return Hits{
		Protein:  ProteinHits(t),
		Lean:     LeanHits(t),
		Rich:     RichHits(t),
		Sauce:    SauceHits(t),
		Starch:   StarchHits(t),
		LowSauce: LowSauceHits(t),
	}
}

// Total is the number of signals across all vocabularies.
func (h Hits) Total() int {
	return h.Protein + h.Lean + h.Rich + h.Sauce + h.Starch + h.LowSauce
}

// Evidence returns the fired categories keyed by vocabulary name.
func (h Hits) Evidence() map[string]int {
	out := map[string]int{}
	add := func(v Vocabulary, n int) {
		if n > 0 {
			out[v.Name()] = n
		}
	}
	add(ProteinCues, h.Protein)
	add(LeanCooking, h.Lean)
	add(RichCooking, h.Rich)
	add(HighCalSauces, h.Sauce)
	add(Starches, h.Starch)
	add(LowCalSauces, h.LowSauce)
	return out
}
