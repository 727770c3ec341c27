// Package estimate derives calorie and protein estimates for a menu item from
// its section and the keyword signals in its text.
package estimate

import (
	"strings"

	"github.com/hyperifyio/dinecoach/internal/signals"
)

// Clamp bounds applied to every estimate.
const (
	MinKcal    = 250
	MaxKcal    = 1200
	MinProtein = 8
	MaxProtein = 80
)

// Per-hit adjustments.
const (
	richKcal      = 60
	sauceKcal     = 40
	leanKcal      = -35
	starchKcal    = 40
	lowSauceKcal  = -20
	proteinCueG   = 6
	leanProteinG  = 2
	richProteinG  = -2
	highThreshold = 4
	midThreshold  = 2
)

// Confidence grades how much evidence backed an estimate.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// Range is an inclusive calorie and protein band for a menu section.
type Range struct {
	Key        string
	KcalLow    int
	KcalHigh   int
	ProteinLow int
	ProteinHi  int
}

// KcalMid is the integer midpoint of the calorie band.
func (r Range) KcalMid() int { return (r.KcalLow + r.KcalHigh) / 2 }

// ProteinMid is the integer midpoint of the protein band.
func (r Range) ProteinMid() int { return (r.ProteinLow + r.ProteinHi) / 2 }

// sectionRanges is checked in order; the first key contained in the section
// label wins.
var sectionRanges = []Range{
	{"salad", 350, 650, 22, 45},
	{"bowl", 550, 800, 25, 45},
	{"burger", 700, 1000, 25, 40},
	{"pasta", 700, 1100, 15, 30},
	{"pizza", 800, 1200, 25, 40},
	{"taco", 150, 250, 12, 25},
	{"steak", 450, 800, 30, 50},
	{"sandwich", 500, 900, 20, 35},
	{"seafood", 450, 800, 25, 45},
}

var defaultRange = Range{"default", 500, 900, 20, 40}

// SectionRange returns the band for a section label.
func SectionRange(section string) Range {
	s := strings.ToLower(section)
	for _, r := range sectionRanges {
		if strings.Contains(s, r.Key) {
			return r
		}
	}
	return defaultRange
}

// Estimate is the nutrition guess for one item.
type Estimate struct {
	Kcal       int            `json:"est_kcal"`
	ProteinG   int            `json:"est_protein_g"`
	Confidence Confidence     `json:"confidence"`
	Evidence   map[string]int `json:"evidence"`
}

// Item estimates an item from its text and section label.
func Item(text, section string) Estimate {
	return FromHits(signals.Detect(signals.Normalize(text)), section)
}

// FromHits estimates from already detected signals.
func FromHits(h signals.Hits, section string) Estimate {
	r := SectionRange(section)
	kcal := r.KcalMid() +
		richKcal*h.Rich +
		sauceKcal*h.Sauce +
		leanKcal*h.Lean +
		starchKcal*h.Starch +
		lowSauceKcal*h.LowSauce
	protein := r.ProteinMid() +
		proteinCueG*h.Protein +
		leanProteinG*h.Lean +
		richProteinG*(h.Rich+h.Sauce)

	ev := h.Evidence()
	ev["section_"+r.Key] = 1
	return Estimate{
		Kcal:       clamp(kcal, MinKcal, MaxKcal),
		ProteinG:   clamp(protein, MinProtein, MaxProtein),
		Confidence: confidenceFor(h.Total()),
		Evidence:   ev,
	}
}

func confidenceFor(n int) Confidence {
	switch {
	case n >= highThreshold:
		return High
	case n >= midThreshold:
		return Medium
	default:
		return Low
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
