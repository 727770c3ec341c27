// Package score rates an estimated menu item against the diner's calorie
// target, protein preference and dietary flags.
package score

import (
	"math"

	"github.com/hyperifyio/dinecoach/internal/estimate"
	"github.com/hyperifyio/dinecoach/internal/signals"
)

const (
	proteinScale    = 60.0
	closenessFloor  = 250.0
	richPenaltyEach = 0.15

	proteinFirstWeight = 0.6
	targetFirstWeight  = 0.6
)

var flagPenalty = map[Flag]float64{
	LowCarb:       0.15,
	NoFried:       0.2,
	GlutenMindful: 0.1,
	DairyMindful:  0.1,
}

var flagDetector = map[Flag]signals.Detector{
	LowCarb:       signals.StarchHits,
	NoFried:       signals.FriedHits,
	GlutenMindful: signals.GlutenHits,
	DairyMindful:  signals.DairyHits,
}

// Breakdown holds every sub-term of a score.
type Breakdown struct {
	ProteinNorm   float64          `json:"protein_norm"`
	Closeness     float64          `json:"closeness"`
	ProteinWeight float64          `json:"protein_weight"`
	TargetWeight  float64          `json:"target_weight"`
	RichHits      int              `json:"rich_hits"`
	RichPenalty   float64          `json:"rich_penalty"`
	FlagPenalty   float64          `json:"flag_penalty"`
	FlagHits      map[Flag]float64 `json:"flag_hits,omitempty"`
	Raw           float64          `json:"raw"`
	Score         float64          `json:"score"`
}

// Item scores an estimate for the given item text. Preferences are assumed
// valid; callers validate once per request.
func Item(est estimate.Estimate, text string, p Preferences) Breakdown {
	t := signals.Normalize(text)
	b := Breakdown{
		ProteinNorm: clamp01(float64(est.ProteinG) / proteinScale),
		Closeness:   Closeness(est.Kcal, p.CalorieTarget),
	}
	if p.PrioritizeProtein {
		b.ProteinWeight, b.TargetWeight = proteinFirstWeight, 1-proteinFirstWeight
	} else {
		b.ProteinWeight, b.TargetWeight = 1-targetFirstWeight, targetFirstWeight
	}

	b.RichHits = signals.RichHits(t) + signals.SauceHits(t)
	b.RichPenalty = richPenaltyEach * float64(b.RichHits)

	for _, f := range KnownFlags {
		if !p.Has(f) {
			continue
		}
		if flagDetector[f](t) > 0 {
			if b.FlagHits == nil {
				b.FlagHits = map[Flag]float64{}
			}
			b.FlagHits[f] = flagPenalty[f]
			b.FlagPenalty += flagPenalty[f]
		}
	}

	b.Raw = b.ProteinWeight*b.ProteinNorm + b.TargetWeight*b.Closeness - b.RichPenalty - b.FlagPenalty
	b.Score = round4(clamp01(b.Raw))
	return b
}

// Closeness is 1 at the target and falls linearly to 0 at a distance of
// max(250, target).
func Closeness(kcal, target int) float64 {
	span := math.Max(closenessFloor, float64(target))
	return math.Max(0, 1-math.Abs(float64(kcal-target))/span)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
