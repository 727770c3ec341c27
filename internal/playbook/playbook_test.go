package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/dinecoach/internal/estimate"
	"github.com/hyperifyio/dinecoach/internal/score"
)

func TestDefault_Loads(t *testing.T) {
	b := Default()
	require.NotNil(t, b)
	assert.NotEmpty(t, b.Chains)
	assert.NotEmpty(t, b.Cuisines)
	assert.Len(t, b.Default.Orders, 1)
}

func TestMatch(t *testing.T) {
	b := Default()
	cases := []struct {
		name     string
		cuisines []string
		want     string
	}{
		{"Chipotle Mexican Grill", nil, "chain:chipotle"},
		{"TACO BELL Cantina", []string{"mexican"}, "chain:taco bell"},
		{"Luigi's", []string{"Italian", "pizza"}, "cuisine:italian"},
		{"Corner Spot", []string{"unknown", "thai"}, "cuisine:thai"},
		{"Corner Spot", nil, "default"},
	}
	for _, c := range cases {
		got, _ := b.Match(c.name, c.cuisines)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestPicks_ChainUsesPublishedValues(t *testing.T) {
	picks, err := Default().Picks("Chipotle", nil, score.DefaultPreferences(), 2)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	var bowl bool
	for _, p := range picks {
		assert.Equal(t, Section, p.Section)
		if p.Name == "Chicken burrito bowl" {
			bowl = true
			assert.Equal(t, 620, p.Kcal)
			assert.Equal(t, 48, p.ProteinG)
			assert.Equal(t, estimate.High, p.Confidence)
			assert.Equal(t, []string{"half rice", "salsa instead of sour cream", "extra fajita vegetables"}, p.Modifiers)
			assert.Contains(t, p.ServerScript, "Chicken burrito bowl")
			assert.Contains(t, p.WhyItWorks, "620 kcal")
		}
		assert.GreaterOrEqual(t, p.Score, 0.0)
		assert.LessOrEqual(t, p.Score, 1.0)
	}
	assert.True(t, bowl, "expected burrito bowl among picks: %+v", picks)
	assert.GreaterOrEqual(t, picks[0].Score, picks[1].Score)
}

func TestPicks_DefaultOrder(t *testing.T) {
	picks, err := Default().Picks("Nowhere Diner", nil, score.DefaultPreferences(), 2)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "Grilled chicken + veg, starch half portion", picks[0].Name)
	assert.NotEmpty(t, picks[0].Modifiers)
}

func TestPicks_InvalidPreferences(t *testing.T) {
	_, err := Default().Picks("x", nil, score.Preferences{CalorieTarget: 0}, 2)
	var verr *score.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoad_ClampsAndCaps(t *testing.T) {
	b, err := Load([]byte(`
chains:
  Big Diner:
    orders:
      - name: Mega platter
        est_kcal: 5000
        est_protein_g: 2
        modifiers: [a, b, A, c, d]
default:
  orders:
    - name: Anything grilled
`))
	require.NoError(t, err)
	picks, err := b.Picks("The Big Diner", nil, score.DefaultPreferences(), 2)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, estimate.MaxKcal, picks[0].Kcal)
	assert.Equal(t, estimate.MinProtein, picks[0].ProteinG)
	assert.Equal(t, []string{"a", "b", "c"}, picks[0].Modifiers)

	_, err = Load([]byte("chains: {}\n"))
	assert.Error(t, err)
}
