// Package rank turns menu candidates into scored picks and splits them into
// top picks and alternates.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperifyio/dinecoach/internal/estimate"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/modifier"
	"github.com/hyperifyio/dinecoach/internal/score"
	"github.com/hyperifyio/dinecoach/internal/signals"
)

// Default split sizes.
const (
	DefaultPicks      = 2
	DefaultAlternates = 4
)

// FallbackRules is the static advice returned with every result.
var FallbackRules = []string{
	"Choose a grilled, baked or steamed protein as the base of the meal.",
	"Ask for sauces and dressings on the side and use about half.",
	"Swap fries or a second starch for vegetables or a side salad.",
}

// ScoredPick is a candidate with its estimate, score and ordering advice.
type ScoredPick struct {
	Section      string              `json:"section"`
	Name         string              `json:"item_name"`
	Description  string              `json:"description"`
	Kcal         int                 `json:"est_kcal"`
	ProteinG     int                 `json:"est_protein_g"`
	Confidence   estimate.Confidence `json:"confidence"`
	Modifiers    []string            `json:"modifiers"`
	ServerScript string              `json:"server_script"`
	WhyItWorks   string              `json:"why_it_works"`
	Evidence     Evidence            `json:"evidence"`
	Score        float64             `json:"score"`
}

// Evidence joins the estimator signals with the score breakdown.
type Evidence struct {
	Signals map[string]int  `json:"signals"`
	Score   score.Breakdown `json:"score"`
}

// Result is the final ranking.
type Result struct {
	Picks         []ScoredPick `json:"picks"`
	Alternates    []ScoredPick `json:"alternates"`
	FallbackRules []string     `json:"fallback_rules"`
}

// Options configures the split.
type Options struct {
	Picks      int
	Alternates int
}

func (o Options) normalized() Options {
	if o == (Options{}) {
		return DefaultOptions()
	}
	if o.Picks <= 0 {
		o.Picks = DefaultPicks
	}
	if o.Alternates < 0 {
		o.Alternates = DefaultAlternates
	}
	return o
}

// DefaultOptions returns 2 picks and 4 alternates.
func DefaultOptions() Options {
	return Options{Picks: DefaultPicks, Alternates: DefaultAlternates}
}

// Score builds the scored pick for one candidate.
func Score(c menu.Candidate, p score.Preferences) ScoredPick {
	hits := signals.Detect(signals.Normalize(c.Text()))
	return scoreWith(c, estimate.FromHits(hits, c.Section), hits, p)
}

// ScoreEstimate builds the scored pick for a candidate whose nutrition is
// already known, such as a published chain order.
func ScoreEstimate(c menu.Candidate, est estimate.Estimate, p score.Preferences) ScoredPick {
	return scoreWith(c, est, signals.Detect(signals.Normalize(c.Text())), p)
}

func scoreWith(c menu.Candidate, est estimate.Estimate, hits signals.Hits, p score.Preferences) ScoredPick {
	text := c.Text()
	b := score.Item(est, text, p)
	mods := modifier.For(text)
	return ScoredPick{
		Section:      c.Section,
		Name:         c.Name,
		Description:  c.Description,
		Kcal:         est.Kcal,
		ProteinG:     est.ProteinG,
		Confidence:   est.Confidence,
		Modifiers:    mods,
		ServerScript: modifier.ServerScript(c.Name, mods),
		WhyItWorks:   whyItWorks(est, b, hits, p),
		Evidence:     Evidence{Signals: est.Evidence, Score: b},
		Score:        b.Score,
	}
}

// Aggregate stable-sorts picks by descending score and splits them. Ties keep
// their input order.
func Aggregate(items []ScoredPick, opt Options) Result {
	opt = opt.normalized()
	sorted := make([]ScoredPick, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	res := Result{
		Picks:         []ScoredPick{},
		Alternates:    []ScoredPick{},
		FallbackRules: append([]string(nil), FallbackRules...),
	}
	n := min(opt.Picks, len(sorted))
	res.Picks = append(res.Picks, sorted[:n]...)
	m := min(opt.Alternates, len(sorted)-n)
	res.Alternates = append(res.Alternates, sorted[n:n+m]...)
	return res
}

// Rank validates preferences, scores every candidate and aggregates. The only
// error is a *score.ValidationError.
func Rank(cands []menu.Candidate, p score.Preferences, opt Options) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if opt.Picks < 0 || opt.Alternates < 0 {
		return Result{}, &score.ValidationError{Field: "top_n", Message: fmt.Sprintf("picks and alternates must not be negative, got %d/%d", opt.Picks, opt.Alternates)}
	}
	p.Flags = score.ParseFlags(flagStrings(p.Flags))
	items := make([]ScoredPick, 0, len(cands))
	for _, c := range cands {
		items = append(items, Score(c, p))
	}
	return Aggregate(items, opt), nil
}

func flagStrings(fs []score.Flag) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

func whyItWorks(est estimate.Estimate, b score.Breakdown, h signals.Hits, p score.Preferences) string {
	var parts []string
	switch {
	case b.Closeness >= 0.8:
		parts = append(parts, fmt.Sprintf("about %d kcal, close to your %d kcal target", est.Kcal, p.CalorieTarget))
	case est.Kcal > p.CalorieTarget:
		parts = append(parts, fmt.Sprintf("about %d kcal, above your %d kcal target", est.Kcal, p.CalorieTarget))
	default:
		parts = append(parts, fmt.Sprintf("about %d kcal, under your %d kcal target", est.Kcal, p.CalorieTarget))
	}
	switch {
	case b.ProteinNorm >= 0.6:
		parts = append(parts, fmt.Sprintf("high protein (~%dg)", est.ProteinG))
	case b.ProteinNorm >= 0.4:
		parts = append(parts, fmt.Sprintf("moderate protein (~%dg)", est.ProteinG))
	default:
		parts = append(parts, fmt.Sprintf("lighter on protein (~%dg)", est.ProteinG))
	}
	if h.Lean > 0 {
		parts = append(parts, "lean cooking method")
	}
	if b.RichHits > 0 {
		parts = append(parts, "rich preparation counts against it")
	}
	if len(b.FlagHits) > 0 {
		var flags []string
		for _, f := range score.KnownFlags {
			if _, ok := b.FlagHits[f]; ok {
				flags = append(flags, strings.ReplaceAll(string(f), "_", " "))
			}
		}
		parts = append(parts, "conflicts with "+strings.Join(flags, " and "))
	}
	out := strings.Join(parts, "; ")
	return strings.ToUpper(out[:1]) + out[1:] + "."
}
