package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// RankTool handles rank_menu_items.
type RankTool struct {
	p        Pipeline
	defaults score.Preferences
}

func NewRankTool(p Pipeline, defaults score.Preferences) *RankTool {
	return &RankTool{p: p, defaults: defaults}
}

func (t *RankTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Rank menu items you already have for a calorie target. Returns picks, alternates, " +
			"modifiers and a server script per pick, plus three fallback rules."),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description("Menu items with item_name and optional section and description"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"section":     map[string]any{"type": "string"},
					"item_name":   map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
				"required": []string{"item_name"},
			}),
		),
	}
	return mcp.NewTool("rank_menu_items", append(opts, preferenceOptions()...)...)
}

func (t *RankTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["items"].([]any)
	if !ok {
		return mcp.NewToolResultError("'items' must be an array"), nil
	}
	cands := make([]menu.Candidate, 0, len(raw))
	for _, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := menu.Candidate{}
		c.Section, _ = m["section"].(string)
		c.Name, _ = m["item_name"].(string)
		c.Description, _ = m["description"].(string)
		cands = append(cands, c)
	}
	an, err := t.p.Rank(cands, preferences(req, t.defaults))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(an)
}

// AnalyzeURLTool handles analyze_menu_url.
type AnalyzeURLTool struct {
	p        Pipeline
	defaults score.Preferences
}

func NewAnalyzeURLTool(p Pipeline, defaults score.Preferences) *AnalyzeURLTool {
	return &AnalyzeURLTool{p: p, defaults: defaults}
}

func (t *AnalyzeURLTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Fetch a restaurant menu page or PDF, extract its items and rank them. " +
			"Respects robots.txt and refuses private network addresses."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Public http(s) URL of the menu page or PDF"),
		),
	}
	return mcp.NewTool("analyze_menu_url", append(opts, preferenceOptions()...)...)
}

func (t *AnalyzeURLTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u := stringArg(req, "url")
	if u == "" {
		return mcp.NewToolResultError("'url' is required"), nil
	}
	an, err := t.p.AnalyzeURL(ctx, u, preferences(req, t.defaults))
	if err != nil {
		log.Warn().Err(err).Str("url", u).Msg("analyze_menu_url failed")
		return toolError(err), nil
	}
	return jsonResult(an)
}

// NearbyTool handles find_nearby_picks.
type NearbyTool struct {
	p        Pipeline
	defaults score.Preferences
}

func NewNearbyTool(p Pipeline, defaults score.Preferences) *NearbyTool {
	return &NearbyTool{p: p, defaults: defaults}
}

func (t *NearbyTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List restaurants near a US ZIP code with two picks each, from the menu when " +
			"it can be found and from a chain or cuisine playbook otherwise."),
		mcp.WithString("zip",
			mcp.Required(),
			mcp.Description("Five digit US ZIP code"),
		),
		mcp.WithNumber("radius_miles",
			mcp.Description("Search radius in miles (default 3)"),
		),
		mcp.WithBoolean("only_chains",
			mcp.Description("Keep only well-known chains"),
		),
	}
	return mcp.NewTool("find_nearby_picks", append(opts, preferenceOptions()...)...)
}

func (t *NearbyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	zip := stringArg(req, "zip")
	if zip == "" {
		return mcp.NewToolResultError("'zip' is required"), nil
	}
	res, err := t.p.Nearby(ctx, app.NearbyRequest{
		ZIP:         zip,
		RadiusMiles: req.GetFloat("radius_miles", 0),
		OnlyChains:  req.GetBool("only_chains", false),
		Preferences: preferences(req, t.defaults),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

// FoodFactsTool handles lookup_packaged_food.
type FoodFactsTool struct {
	p Pipeline
}

func NewFoodFactsTool(p Pipeline) *FoodFactsTool {
	return &FoodFactsTool{p: p}
}

func (t *FoodFactsTool) Definition() mcp.Tool {
	return mcp.NewTool("lookup_packaged_food",
		mcp.WithDescription("Search Open Food Facts for packaged foods with kcal and protein per 100 g."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Product name, e.g. 'greek yogurt'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum products to return (default 6)"),
		),
	)
}

func (t *FoodFactsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := stringArg(req, "query")
	if q == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	res, err := t.p.FoodFacts(ctx, q, req.GetInt("limit", 6))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

// toolError phrases pipeline failures for the calling model.
func toolError(err error) *mcp.CallToolResult {
	var verr *score.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, fetch.ErrBlockedByRobots):
		return mcp.NewToolResultError("The site's robots.txt blocks this page. Ask the user for a PDF of the menu instead.")
	case errors.Is(err, fetch.ErrUnsafeURL):
		return mcp.NewToolResultError("Only public http(s) URLs can be analyzed.")
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed: %v", err))
}
