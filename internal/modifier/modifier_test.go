package modifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"salmon", "Grilled Salmon seared, lemon butter, with rice and broccoli",
			[]string{SauceOnSide, "half rice", ExtraVeg}},
		{"fried", "Fried chicken sandwich on a brioche bun with ranch",
			[]string{SauceOnSide, "lettuce wrap instead of the bun", GrilledSwap}},
		{"tempura no starch", "Shrimp tempura", []string{GrilledSwap}},
		{"nothing detected", "Chef's special", []string{ExtraVeg}},
		{"empty", "", []string{ExtraVeg}},
		{"starch only", "Penne pasta primavera", []string{"half pasta"}},
		{"fries", "Fish and fries, battered", []string{"side salad instead of fries", GrilledSwap}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, For(tc.text))
		})
	}
}

func TestFor_CapAndNoDuplicates(t *testing.T) {
	mods := For("grilled fried chicken, alfredo, fries, rice, butter, mayo")
	assert.Len(t, mods, MaxModifiers)
	seen := map[string]bool{}
	for _, m := range mods {
		assert.False(t, seen[m], "duplicate %q", m)
		seen[m] = true
	}
	assert.Equal(t, SauceOnSide, mods[0])
}

func TestServerScript(t *testing.T) {
	assert.Equal(t,
		"Could I get the Grilled Salmon with sauce on the side, half rice, please?",
		ServerScript("Grilled Salmon", []string{SauceOnSide, "half rice"}))
	assert.Equal(t,
		"Could I get the Soup with those default options, please?",
		ServerScript(" Soup ", nil))
}
