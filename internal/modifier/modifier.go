// Package modifier suggests dine-in order changes for a menu item and phrases
// them as a request to the server.
package modifier

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/dinecoach/internal/signals"
)

// MaxModifiers caps the suggestions per item.
const MaxModifiers = 3

const (
	SauceOnSide    = "sauce on the side"
	GrilledSwap    = "grilled instead of fried"
	ExtraVeg       = "extra vegetables"
	noModsFallback = "those default options"
)

// starchMods phrases the reduction for starches where "half" reads oddly.
var starchMods = map[string]string{
	"bun":      "lettuce wrap instead of the bun",
	"tortilla": "tortilla on the side",
	"bread":    "bread on the side",
	"chips":    "half chips",
	"fries":    "side salad instead of fries",
}

// For returns the ordered modifiers for an item text, at most MaxModifiers.
func For(text string) []string {
	t := signals.Normalize(text)
	var mods []string
	add := func(m string) {
		for _, x := range mods {
			if x == m {
				return
			}
		}
		if len(mods) < MaxModifiers {
			mods = append(mods, m)
		}
	}

	if signals.SauceHits(t) > 0 {
		add(SauceOnSide)
	}
	if starch, ok := signals.Starches.First(t); ok {
		add(starchModifier(starch))
	}
	if t.Has("fried") || t.Has("battered") || t.Has("tempura") {
		add(GrilledSwap)
	}
	if signals.LeanHits(t) > 0 || len(mods) == 0 {
		add(ExtraVeg)
	}
	return mods
}

func starchModifier(starch string) string {
	if m, ok := starchMods[starch]; ok {
		return m
	}
	return "half " + starch
}

// ServerScript phrases the modifiers as a polite request for the named item.
func ServerScript(name string, mods []string) string {
	clause := noModsFallback
	if len(mods) > 0 {
		clause = strings.Join(mods, ", ")
	}
	return fmt.Sprintf("Could I get the %s with %s, please?", strings.TrimSpace(name), clause)
}
