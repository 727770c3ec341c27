package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/dinecoach/internal/card"
	"github.com/hyperifyio/dinecoach/internal/foodfacts"
)

// FoodFactsResult is a packaged-food search response.
type FoodFactsResult struct {
	Context struct {
		Source string `json:"source"`
		Query  string `json:"query"`
	} `json:"context"`
	Items []foodfacts.Product `json:"items"`
}

// FoodFacts searches packaged foods. A blank query returns no items.
func (a *App) FoodFacts(ctx context.Context, query string, pageSize int) (FoodFactsResult, error) {
	var out FoodFactsResult
	out.Context.Source = "openfoodfacts"
	out.Context.Query = strings.TrimSpace(query)
	out.Items = []foodfacts.Product{}
	if out.Context.Query == "" {
		return out, nil
	}
	items, err := a.foodfacts.Search(ctx, out.Context.Query, pageSize)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// WriteCard renders the analysis as a printable order card.
func WriteCard(w io.Writer, an Analysis) error {
	name := ""
	if an.Context.RestaurantName != nil {
		name = *an.Context.RestaurantName
	} else if len(an.Restaurants) == 1 {
		name = an.Restaurants[0].Name
	}
	subtitle := fmt.Sprintf("Target %d kcal", an.Context.CalorieTarget)
	if an.Context.PrioritizeProtein {
		subtitle += ", protein first"
	}
	if len(an.Context.Flags) > 0 {
		flags := make([]string, len(an.Context.Flags))
		for i, f := range an.Context.Flags {
			flags[i] = strings.ReplaceAll(string(f), "_", " ")
		}
		subtitle += ", " + strings.Join(flags, ", ")
	}
	return card.Write(w, card.Card{Restaurant: name, Subtitle: subtitle, Result: an.Result, Alternates: true})
}
