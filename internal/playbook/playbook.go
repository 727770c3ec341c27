// Package playbook supplies fallback orders for restaurants whose menu could
// not be read: a chain playbook by name, a cuisine playbook by OpenStreetMap
// cuisine tag, or a single generic order.
package playbook

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/dinecoach/internal/estimate"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/modifier"
	"github.com/hyperifyio/dinecoach/internal/rank"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// Section labels every playbook pick.
const Section = "Playbook"

//go:embed playbooks.yaml
var embedded []byte

// Order is one suggested dish. Known chain values override the estimate.
type Order struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Kcal        *int     `yaml:"est_kcal"`
	ProteinG    *int     `yaml:"est_protein_g"`
	Modifiers   []string `yaml:"modifiers"`
}

// Playbook is an ordered list of suggestions.
type Playbook struct {
	Orders []Order `yaml:"orders"`
}

// Book holds every playbook.
type Book struct {
	Chains   map[string]Playbook `yaml:"chains"`
	Cuisines map[string]Playbook `yaml:"cuisines"`
	Default  Playbook            `yaml:"default"`

	chainKeys []string
}

// Load parses a playbook file.
func Load(data []byte) (*Book, error) {
	var b Book
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse playbooks: %w", err)
	}
	if len(b.Default.Orders) == 0 {
		return nil, fmt.Errorf("parse playbooks: default playbook is empty")
	}
	chains := make(map[string]Playbook, len(b.Chains))
	for k, pb := range b.Chains {
		k = strings.ToLower(strings.TrimSpace(k))
		chains[k] = pb
		b.chainKeys = append(b.chainKeys, k)
	}
	b.Chains = chains
	// Longer keys first so "taco bell" wins over a shorter overlapping key.
	sort.Slice(b.chainKeys, func(i, j int) bool {
		if len(b.chainKeys[i]) != len(b.chainKeys[j]) {
			return len(b.chainKeys[i]) > len(b.chainKeys[j])
		}
		return b.chainKeys[i] < b.chainKeys[j]
	})
	return &b, nil
}

var (
	defaultOnce sync.Once
	defaultBook *Book
)

// Default returns the embedded playbooks.
func Default() *Book {
	defaultOnce.Do(func() {
		b, err := Load(embedded)
		if err != nil {
			panic(err)
		}
		defaultBook = b
	})
	return defaultBook
}

// Match picks the playbook for a restaurant and names which one applied:
// "chain:<key>", "cuisine:<tag>" or "default".
func (b *Book) Match(name string, cuisines []string) (string, Playbook) {
	lower := strings.ToLower(name)
	for _, k := range b.chainKeys {
		if k != "" && strings.Contains(lower, k) {
			return "chain:" + k, b.Chains[k]
		}
	}
	for _, c := range cuisines {
		c = strings.ToLower(strings.TrimSpace(c))
		if pb, ok := b.Cuisines[c]; ok && len(pb.Orders) > 0 {
			return "cuisine:" + c, pb
		}
	}
	return "default", b.Default
}

// Picks ranks the matched playbook's orders for p and returns the top n.
func (b *Book) Picks(name string, cuisines []string, p score.Preferences, n int) ([]rank.ScoredPick, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Flags = score.ParseFlags(flagStrings(p.Flags))
	_, pb := b.Match(name, cuisines)
	items := make([]rank.ScoredPick, 0, len(pb.Orders))
	for _, o := range pb.Orders {
		items = append(items, scoreOrder(o, p))
	}
	if n <= 0 {
		n = rank.DefaultPicks
	}
	return rank.Aggregate(items, rank.Options{Picks: n}).Picks, nil
}

// scoreOrder scores an order like a menu candidate, with the order's known
// nutrition and modifiers taking precedence.
func scoreOrder(o Order, p score.Preferences) rank.ScoredPick {
	c := menu.Candidate{Section: Section, Name: o.Name, Description: o.Description}
	est := estimate.Item(c.Text(), c.Section)
	if o.Kcal != nil {
		est.Kcal = min(max(*o.Kcal, estimate.MinKcal), estimate.MaxKcal)
	}
	if o.ProteinG != nil {
		est.ProteinG = min(max(*o.ProteinG, estimate.MinProtein), estimate.MaxProtein)
	}
	if o.Kcal != nil && o.ProteinG != nil {
		est.Confidence = estimate.High
		est.Evidence["published"] = 1
	}
	pick := rank.ScoreEstimate(c, est, p)
	if mods := capModifiers(o.Modifiers); len(mods) > 0 {
		pick.Modifiers = mods
		pick.ServerScript = modifier.ServerScript(o.Name, mods)
	}
	return pick
}

func capModifiers(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" || seen[strings.ToLower(m)] {
			continue
		}
		seen[strings.ToLower(m)] = true
		out = append(out, m)
		if len(out) == modifier.MaxModifiers {
			break
		}
	}
	return out
}

func flagStrings(fs []score.Flag) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
